package kick

import (
	"sort"

	"riverrace_stats/internal/domain/leaderboard"
)

// MaxShortlist is the hard cap on kick candidates, whatever the configured limit.
const MaxShortlist = 5

// Tier labels the stage that nominated a candidate.
type Tier string

const (
	TierStrict           Tier = "strict"
	TierWeakestRolling   Tier = "weakest_rolling"
	TierRevived          Tier = "revived"
	TierNewMembers       Tier = "new_members"
	TierNearestThreshold Tier = "nearest_threshold"
)

// Candidate is one nominated player with the numbers that got them nominated.
type Candidate struct {
	PlayerTag      string
	PlayerName     string
	Tier           Tier
	LastWeekDecks  int
	LastWeekFame   int
	RollingDecks   int
	RollingFame    int
	PriorWeekDecks int
	WeeksPlayed    int
	// DecksDelta and FameDelta are the distance to the minimum requirement
	// (positive means above it). Only set by the nearest-threshold tier.
	DecksDelta int
	FameDelta  int
}

// Input is everything the selector needs, already restricted to current members.
type Input struct {
	// Members maps current member tag to name.
	Members map[string]string
	// LastWeek holds the most recently completed week; members missing from it used 0 decks.
	LastWeek []leaderboard.Entry
	// Rolling holds sums over the rolling window of completed weeks.
	Rolling []leaderboard.Entry
	// RollingWeeks is the number of weeks summed in Rolling.
	RollingWeeks int
	// PriorWeekDecks holds decks used in the completed week before LastWeek.
	PriorWeekDecks map[string]int
	// WeeksPlayed is each member's all-time count of weeks with a participation record.
	WeeksPlayed map[string]int
	Protected   map[string]struct{}
}

// Rules are the configured thresholds.
type Rules struct {
	Limit int
	// NewMemberWeeks: members with at most this many weeks played are new.
	NewMemberWeeks int
	RevivedDecks   int
	MinDecks       int
	MinFame        int
}

// Shortlist is the selector's result.
type Shortlist struct {
	Candidates []Candidate
	// Tiers lists, in order, every tier that contributed at least one candidate.
	Tiers []Tier
}

// UsedFallback reports whether any tier beyond strict contributed.
func (s Shortlist) UsedFallback() bool {
	for _, tier := range s.Tiers {
		if tier != TierStrict {
			return true
		}
	}
	return false
}

// Stage is one tier: it returns ranked candidates not yet taken.
type Stage struct {
	Tier   Tier
	Select func(v view, taken map[string]struct{}) []Candidate
}

// DefaultStages returns tiers 0-3 in escalation order.
func DefaultStages() []Stage {
	return []Stage{
		{Tier: TierStrict, Select: strictStage},
		{Tier: TierWeakestRolling, Select: weakestRollingStage},
		{Tier: TierRevived, Select: revivedStage},
		{Tier: TierNewMembers, Select: newMembersStage},
	}
}

// Select builds the kick shortlist. Stages run in order and stop once the quota
// is filled. The nearest-threshold tier runs only when every stage came back empty.
// Pure function: deterministic for a fixed input.
func Select(in Input, rules Rules) Shortlist {
	return SelectWith(in, rules, DefaultStages())
}

// SelectWith is Select with an explicit list of stages.
func SelectWith(in Input, rules Rules, stages []Stage) Shortlist {
	limit := rules.Limit
	if limit <= 0 || limit > MaxShortlist {
		limit = MaxShortlist
	}

	v := newView(in, rules)
	taken := make(map[string]struct{})
	var result Shortlist

	add := func(tier Tier, candidates []Candidate) {
		contributed := false
		for _, c := range candidates {
			if len(result.Candidates) >= limit {
				break
			}
			if _, dup := taken[c.PlayerTag]; dup {
				continue
			}
			if v.isProtected(c.PlayerTag) {
				continue
			}
			c.Tier = tier
			taken[c.PlayerTag] = struct{}{}
			result.Candidates = append(result.Candidates, c)
			contributed = true
		}
		if contributed {
			result.Tiers = append(result.Tiers, tier)
		}
	}

	for _, stage := range stages {
		if len(result.Candidates) >= limit {
			break
		}
		add(stage.Tier, stage.Select(v, taken))
	}

	if len(result.Candidates) == 0 {
		add(TierNearestThreshold, nearestThresholdStage(v, limit))
	}

	return result
}

// view indexes the input for the stages.
type view struct {
	in       Input
	rules    Rules
	lastWeek map[string]leaderboard.Entry
	rolling  map[string]leaderboard.Entry
	tags     []string
}

func newView(in Input, rules Rules) view {
	v := view{
		in:       in,
		rules:    rules,
		lastWeek: make(map[string]leaderboard.Entry, len(in.LastWeek)),
		rolling:  make(map[string]leaderboard.Entry, len(in.Rolling)),
	}
	for _, e := range in.LastWeek {
		v.lastWeek[e.PlayerTag] = e
	}
	for _, e := range in.Rolling {
		v.rolling[e.PlayerTag] = e
	}
	for tag := range in.Members {
		v.tags = append(v.tags, tag)
	}
	sort.Strings(v.tags)
	return v
}

func (v view) isProtected(tag string) bool {
	_, ok := v.in.Protected[tag]
	return ok
}

func (v view) isNewMember(tag string) bool {
	return v.in.WeeksPlayed[tag] <= v.rules.NewMemberWeeks
}

// candidate assembles the full numbers for one member.
func (v view) candidate(tag string) Candidate {
	last := v.lastWeek[tag]
	rolling := v.rolling[tag]
	return Candidate{
		PlayerTag:      tag,
		PlayerName:     v.in.Members[tag],
		LastWeekDecks:  last.DecksUsed,
		LastWeekFame:   last.Fame,
		RollingDecks:   rolling.DecksUsed,
		RollingFame:    rolling.Fame,
		PriorWeekDecks: v.in.PriorWeekDecks[tag],
		WeeksPlayed:    v.in.WeeksPlayed[tag],
	}
}

// eligible lists members that are neither taken, protected, nor filtered out by keep.
func (v view) eligible(taken map[string]struct{}, keep func(tag string) bool) []Candidate {
	var out []Candidate
	for _, tag := range v.tags {
		if _, dup := taken[tag]; dup {
			continue
		}
		if v.isProtected(tag) || !keep(tag) {
			continue
		}
		out = append(out, v.candidate(tag))
	}
	return out
}
