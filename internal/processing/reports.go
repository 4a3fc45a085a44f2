package processing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"riverrace_stats/internal/app"
	"riverrace_stats/internal/domain/kick"
	"riverrace_stats/internal/domain/leaderboard"
	"riverrace_stats/internal/domain/promotion"
	"riverrace_stats/internal/domain/week"
	"riverrace_stats/internal/report"
	"riverrace_stats/internal/storage"
)

// TopDonorsLimit caps the donor blocks of the weekly and rolling reports.
const TopDonorsLimit = 5

const (
	// DecksPerDay is the number of war decks a member can play each battle day.
	DecksPerDay = 4
	// BattleDaysPerWeek caps the pace threshold of the current report.
	BattleDaysPerWeek = 4
)

// ReportKind names a report the CLI and publisher can render.
type ReportKind string

const (
	ReportWeekly    ReportKind = "weekly"
	ReportRolling   ReportKind = "rolling"
	ReportKick      ReportKind = "kick"
	ReportPromotion ReportKind = "promote"
	ReportDonations ReportKind = "donations"
	ReportCurrent   ReportKind = "current"
	ReportTop       ReportKind = "top"
)

// ReportKinds lists every report in display order.
var ReportKinds = []ReportKind{ReportCurrent, ReportWeekly, ReportRolling, ReportTop, ReportKick, ReportPromotion, ReportDonations}

// ReportService gathers report data from the store. Apart from the current
// report only completed weeks are reported; every leaderboard is restricted to
// the current roster.
type ReportService struct {
	store    *storage.Store
	importer *Importer
	config   *app.Config
	now      func() time.Time
}

// NewReportService creates a report service
func NewReportService(store *storage.Store, importer *Importer, config *app.Config) *ReportService {
	return &ReportService{
		store:    store,
		importer: importer,
		config:   config,
		now:      time.Now,
	}
}

// roster is the current member set in the shapes the queries need.
type roster struct {
	names map[string]string
	tags  map[string]struct{}
}

func (s *ReportService) loadRoster(ctx context.Context) (roster, error) {
	names, err := s.store.GetCurrentMemberNames(ctx, s.config.ClanTag)
	if err != nil {
		return roster{}, err
	}
	tags := make(map[string]struct{}, len(names))
	for tag := range names {
		tags[tag] = struct{}{}
	}
	return roster{names: names, tags: tags}, nil
}

// Weekly returns the data for the most recently completed week, nil when none.
func (s *ReportService) Weekly(ctx context.Context) (*report.WeeklyData, error) {
	weeks, err := s.importer.LastCompletedWeeks(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(weeks) == 0 {
		return nil, nil
	}
	return s.WeeklyFor(ctx, weeks[0])
}

// WeeklyFor returns the data for one week.
func (s *ReportService) WeeklyFor(ctx context.Context, k week.Key) (*report.WeeklyData, error) {
	r, err := s.loadRoster(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.GetWeekEntries(ctx, k)
	if err != nil {
		return nil, err
	}
	current := leaderboard.FillMembers(entries, r.names)
	board, err := s.store.GetWeekLeaderboard(ctx, k, r.names, s.config.ProtectedTagSet(), s.config.LeaderboardLimit)
	if err != nil {
		return nil, err
	}

	wtd, err := s.store.GetCurrentWTDDonations(ctx, s.config.ClanTag, s.now())
	if err != nil {
		return nil, err
	}

	return &report.WeeklyData{
		Week:      k,
		Members:   len(r.names),
		Board:     board,
		Summary:   leaderboard.Summarize(current),
		TopDonors: topDonorsWTD(wtd, r.names, TopDonorsLimit),
	}, nil
}

// Rolling returns the data for the rolling window, nil when no week is complete.
func (s *ReportService) Rolling(ctx context.Context) (*report.RollingData, error) {
	weeks, err := s.importer.LastCompletedWeeks(ctx, s.config.RollingWeeks)
	if err != nil {
		return nil, err
	}
	if len(weeks) == 0 {
		return nil, nil
	}

	r, err := s.loadRoster(ctx)
	if err != nil {
		return nil, err
	}
	board, err := s.store.GetRollingLeaderboard(ctx, weeks, r.names, s.config.ProtectedTagSet(), s.config.LeaderboardLimit)
	if err != nil {
		return nil, err
	}
	sums, _, err := s.store.GetDonationWeeklySums(ctx, s.config.ClanTag, s.config.DonationWeeksWindow, s.now(), r.tags)
	if err != nil {
		return nil, err
	}

	return &report.RollingData{
		Weeks:          weeks,
		Members:        len(r.names),
		Board:          board,
		DonationWindow: s.config.DonationWeeksWindow,
		TopDonors:      donorsFromSums(sums, r.names, TopDonorsLimit),
	}, nil
}

// Current returns the state of the week in progress, nil when no week is stored.
// The active week pointer wins over the newest stored week.
func (s *ReportService) Current(ctx context.Context) (*report.CurrentData, error) {
	state, err := s.currentState(ctx)
	if err != nil || state == nil {
		return nil, err
	}

	now := s.now()
	k := week.Key{SeasonID: state.SeasonID, SectionIndex: state.SectionIndex}
	data := &report.CurrentData{
		Clan:        s.config.ClanTag,
		Week:        k,
		IsColosseum: state.IsColosseum,
		Period:      week.NormalizePeriod(state.PeriodType),
		UpdatedAt:   state.UpdatedAt,
	}

	if data.Period == week.PeriodTraining {
		weeks, err := s.importer.LastCompletedWeeks(ctx, 1)
		if err != nil {
			return nil, err
		}
		if len(weeks) > 0 && weeks[0] != k {
			data.LastCompleted = &weeks[0]
		}
		return data, nil
	}

	r, err := s.loadRoster(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.store.GetWeekRecords(ctx, k)
	if err != nil {
		return nil, err
	}
	recorded := make(map[string]struct{}, len(records))
	for _, rec := range records {
		recorded[rec.PlayerTag] = struct{}{}
		if _, member := r.tags[rec.PlayerTag]; !member {
			continue
		}
		data.Participants++
		data.TotalDecks += rec.DecksUsed
		data.TotalFame += rec.Fame
		if data.Period.IsBattle() {
			data.DecksToday += rec.DecksUsedToday
		}
	}

	data.Board, err = s.store.GetWeekLeaderboard(ctx, k, r.names, s.config.ProtectedTagSet(), s.config.LeaderboardLimit)
	if err != nil {
		return nil, err
	}
	if !data.Period.IsBattle() {
		return data, nil
	}

	if data.Day, err = s.battleDay(ctx, k, now); err != nil {
		return nil, err
	}
	if data.Day == 0 {
		return data, nil
	}
	days := data.Day
	if days > BattleDaysPerWeek {
		days = BattleDaysPerWeek
	}
	data.PaceDecks = DecksPerDay * days
	behind, err := s.behindPace(ctx, k, r, recorded, data.PaceDecks)
	if err != nil {
		return nil, err
	}
	data.BehindCount = len(behind)
	data.Behind = leaderboard.RankInactive(behind, s.config.LeaderboardLimit)
	return data, nil
}

func (s *ReportService) currentState(ctx context.Context) (*storage.WarWeekState, error) {
	active, err := s.store.LoadActiveWeek(ctx)
	if err != nil {
		return nil, err
	}
	if active.Valid() {
		state, err := s.store.GetWarWeekState(ctx, s.config.ClanTag, active.Key())
		if err != nil || state != nil {
			return state, err
		}
	}
	return s.store.GetLatestWarWeekState(ctx, s.config.ClanTag)
}

// battleDay prefers the day the reminder stored today and otherwise resolves it
// from the override and the first snapshot. 0 means unknown.
func (s *ReportService) battleDay(ctx context.Context, k week.Key, now time.Time) (int, error) {
	saved, err := s.store.LoadWarDay(ctx)
	if err != nil {
		return 0, err
	}
	if saved != nil && saved.Day > 0 && storage.FormatDate(saved.Date) == storage.FormatDate(now) {
		return saved.Day, nil
	}

	first, err := s.store.GetFirstSnapshotDate(ctx, k)
	if err != nil {
		return 0, err
	}
	res := week.ResolveDay(week.DayInput{
		Today:                now,
		OverrideStart:        dayOverride(s.config, k),
		FirstSnapshotDate:    first,
		TrainingDaysFallback: s.config.TrainingDaysFallback,
	})
	if !res.Known {
		return 0, nil
	}
	return res.Day, nil
}

// behindPace lists roster members below minDecks this week. Protected members
// are skipped; members without a record count as zero.
func (s *ReportService) behindPace(ctx context.Context, k week.Key, r roster, recorded map[string]struct{}, minDecks int) ([]leaderboard.Entry, error) {
	records, err := s.store.GetInactivePlayers(ctx, k, minDecks)
	if err != nil {
		return nil, err
	}
	protected := s.config.ProtectedTagSet()

	behind := make([]leaderboard.Entry, 0, len(records))
	for _, rec := range records {
		name, member := r.names[rec.PlayerTag]
		if _, skip := protected[rec.PlayerTag]; !member || skip {
			continue
		}
		behind = append(behind, leaderboard.Entry{
			PlayerTag:  rec.PlayerTag,
			PlayerName: displayOr(name, rec.PlayerName),
			DecksUsed:  rec.DecksUsed,
			Fame:       rec.Fame,
		})
	}
	for tag, name := range r.names {
		_, seen := recorded[tag]
		_, skip := protected[tag]
		if !seen && !skip && minDecks > 0 {
			behind = append(behind, leaderboard.Entry{PlayerTag: tag, PlayerName: name})
		}
	}
	return behind, nil
}

func displayOr(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

// Top returns the strongest long-standing members over the top window. Only
// current members with at least TopMinTenureWeeks weeks played are ranked.
func (s *ReportService) Top(ctx context.Context) (report.TopData, error) {
	data := report.TopData{MinTenureWeeks: s.config.TopMinTenureWeeks}

	weeks, err := s.importer.LastCompletedWeeks(ctx, s.config.TopWindowWeeks)
	if err != nil {
		return data, err
	}
	data.Weeks = weeks
	if len(weeks) == 0 {
		return data, nil
	}

	r, err := s.loadRoster(ctx)
	if err != nil {
		return data, err
	}
	entries, err := s.store.GetRollingEntries(ctx, weeks, r.tags)
	if err != nil {
		return data, err
	}

	eligible := make([]leaderboard.Entry, 0, len(entries))
	for _, e := range entries {
		if e.WeeksPlayed < s.config.TopMinTenureWeeks {
			continue
		}
		e.PlayerName = displayOr(r.names[e.PlayerTag], e.PlayerName)
		eligible = append(eligible, e)
	}
	data.Eligible = len(eligible)
	data.ByDecks = leaderboard.TopByDecks(eligible, s.config.LeaderboardLimit)
	data.ByFame = leaderboard.TopByFame(eligible, s.config.LeaderboardLimit)
	return data, nil
}

// Kick returns the shortlist data. LastWeek is nil when no week is complete.
func (s *ReportService) Kick(ctx context.Context) (report.KickData, error) {
	now := s.now()
	data := report.KickData{
		Rules: s.kickRules(),
		Now:   now,
	}

	weeks, err := s.importer.LastCompletedWeeks(ctx, s.config.RollingWeeks)
	if err != nil {
		return data, err
	}
	if len(weeks) == 0 {
		return data, nil
	}
	last := weeks[0]
	data.LastWeek = &last
	data.Weeks = weeks

	r, err := s.loadRoster(ctx)
	if err != nil {
		return data, err
	}

	lastEntries, err := s.store.GetWeekEntries(ctx, last)
	if err != nil {
		return data, err
	}
	rolling, err := s.store.GetRollingEntries(ctx, weeks, r.tags)
	if err != nil {
		return data, err
	}
	prior := map[string]int{}
	if len(weeks) > 1 {
		if prior, err = s.store.GetWeekDecksMap(ctx, weeks[1], r.tags); err != nil {
			return data, err
		}
	}
	played, err := s.store.GetParticipationWeekCounts(ctx, r.tags)
	if err != nil {
		return data, err
	}

	data.Shortlist = kick.Select(kick.Input{
		Members:        r.names,
		LastWeek:       leaderboard.RestrictToMembers(lastEntries, r.tags),
		Rolling:        rolling,
		RollingWeeks:   len(weeks),
		PriorWeekDecks: prior,
		WeeksPlayed:    played,
		Protected:      s.config.ProtectedTagSet(),
	}, data.Rules)

	if data.LastSeen, err = s.store.GetLastSeenMap(ctx, s.config.ClanTag); err != nil {
		return data, err
	}
	if data.Donations, err = s.store.GetCurrentWTDDonations(ctx, s.config.ClanTag, now); err != nil {
		return data, err
	}
	return data, nil
}

func (s *ReportService) kickRules() kick.Rules {
	return kick.Rules{
		Limit:          s.config.KickShortlistLimit,
		NewMemberWeeks: s.config.NewMemberWeeksPlayed,
		RevivedDecks:   s.config.RevivedDecksThreshold,
		MinDecks:       s.config.KickMinDecks,
		MinFame:        s.config.KickMinFame,
	}
}

func (s *ReportService) promotionRules() promotion.Rules {
	tier := func(t app.PromotionThresholds) promotion.TierRules {
		return promotion.TierRules{
			MinWeeksPlayed:  t.MinWeeksPlayed,
			MinActiveWeeks:  t.MinActiveWeeks,
			MinAvgDecks:     t.MinAvgDecks,
			MinAllTimeWeeks: t.MinAllTimeWeeks,
			Limit:           t.Limit,
		}
	}
	return promotion.Rules{
		Elder:          tier(s.config.Elder),
		CoLeader:       tier(s.config.CoLeader),
		NewMemberWeeks: s.config.NewMemberWeeksPlayed,
		Protected:      s.config.ProtectedTagSet(),
	}
}

// Promotion returns the promotion recommendations over the rolling window.
func (s *ReportService) Promotion(ctx context.Context) (report.PromotionData, error) {
	data := report.PromotionData{Rules: s.promotionRules()}

	weeks, err := s.importer.LastCompletedWeeks(ctx, s.config.RollingWeeks)
	if err != nil {
		return data, err
	}
	data.WindowWeeks = len(weeks)
	if len(weeks) > 0 {
		data.Season = weeks[0].SeasonID
	}

	members, err := s.store.GetCurrentMembers(ctx, s.config.ClanTag)
	if err != nil {
		return data, err
	}
	tags := make(map[string]struct{}, len(members))
	for _, m := range members {
		tags[m.PlayerTag] = struct{}{}
	}

	war, err := s.store.GetWarStatsForWeeks(ctx, weeks, tags, s.config.ActiveWeekMinDecks)
	if err != nil {
		return data, err
	}
	allTime, err := s.store.GetParticipationWeekCounts(ctx, tags)
	if err != nil {
		return data, err
	}
	sums, _, err := s.store.GetDonationWeeklySums(ctx, s.config.ClanTag, s.config.DonationWeeksWindow, s.now(), tags)
	if err != nil {
		return data, err
	}
	donations := make(map[string]storage.DonationSum, len(sums))
	for _, sum := range sums {
		donations[sum.PlayerTag] = sum
	}

	stats := make([]promotion.Stats, 0, len(members))
	for _, m := range members {
		w := war[m.PlayerTag]
		d := donations[m.PlayerTag]
		stats = append(stats, promotion.Stats{
			PlayerTag:     m.PlayerTag,
			PlayerName:    m.PlayerName,
			Role:          m.Role,
			WeeksPlayed:   w.WeeksPlayed,
			ActiveWeeks:   w.ActiveWeeks,
			AvgDecks:      w.AvgDecks,
			AvgFame:       w.AvgFame,
			AllTimeWeeks:  allTime[m.PlayerTag],
			DonationsSum:  d.DonationsSum,
			DonationWeeks: d.WeeksPresent,
		})
	}

	data.Result = promotion.Select(stats, data.Rules)
	return data, nil
}

// Donations returns the week-to-date and windowed donation tops.
func (s *ReportService) Donations(ctx context.Context) (report.DonationsData, error) {
	data := report.DonationsData{WindowWeeks: s.config.DonationWeeksWindow}

	r, err := s.loadRoster(ctx)
	if err != nil {
		return data, err
	}
	wtd, err := s.store.GetCurrentWTDDonations(ctx, s.config.ClanTag, s.now())
	if err != nil {
		return data, err
	}
	sums, coverage, err := s.store.GetDonationWeeklySums(ctx, s.config.ClanTag, s.config.DonationWeeksWindow, s.now(), r.tags)
	if err != nil {
		return data, err
	}

	data.WTD = topDonorsWTD(wtd, r.names, s.config.LeaderboardLimit)
	data.Window = donorsFromSums(sums, r.names, s.config.LeaderboardLimit)
	data.Coverage = coverage
	return data, nil
}

// Render builds the plain-text report of the given kind.
func (s *ReportService) Render(ctx context.Context, kind ReportKind) (string, error) {
	switch kind {
	case ReportCurrent:
		data, err := s.Current(ctx)
		if err != nil || data == nil {
			return report.NoCurrentWeek, err
		}
		return report.Current(*data), nil
	case ReportTop:
		data, err := s.Top(ctx)
		if err != nil {
			return "", err
		}
		return report.Top(data), nil
	case ReportWeekly:
		data, err := s.Weekly(ctx)
		if err != nil || data == nil {
			return report.NoCompletedWeeks, err
		}
		return report.Weekly(*data), nil
	case ReportRolling:
		data, err := s.Rolling(ctx)
		if err != nil || data == nil {
			return report.NoCompletedWeeks, err
		}
		return report.Rolling(*data), nil
	case ReportKick:
		data, err := s.Kick(ctx)
		if err != nil {
			return "", err
		}
		return report.Kick(data), nil
	case ReportPromotion:
		data, err := s.Promotion(ctx)
		if err != nil {
			return "", err
		}
		return report.Promotion(data), nil
	case ReportDonations:
		data, err := s.Donations(ctx)
		if err != nil {
			return "", err
		}
		return report.Donations(data), nil
	default:
		return "", fmt.Errorf("unknown report %q", kind)
	}
}

func topDonorsWTD(wtd map[string]int, names map[string]string, limit int) []report.Donor {
	donors := make([]report.Donor, 0, len(wtd))
	for tag, donations := range wtd {
		name, member := names[tag]
		if !member || donations <= 0 {
			continue
		}
		donors = append(donors, report.Donor{PlayerTag: tag, PlayerName: name, Donations: donations, WeeksPresent: 1})
	}
	sort.Slice(donors, func(i, j int) bool {
		if donors[i].Donations != donors[j].Donations {
			return donors[i].Donations > donors[j].Donations
		}
		return donors[i].PlayerTag < donors[j].PlayerTag
	})
	if limit > 0 && len(donors) > limit {
		donors = donors[:limit]
	}
	return donors
}

// donorsFromSums keeps the store's order (donations desc) and prefers current names.
func donorsFromSums(sums []storage.DonationSum, names map[string]string, limit int) []report.Donor {
	donors := make([]report.Donor, 0, len(sums))
	for _, sum := range sums {
		if sum.DonationsSum <= 0 {
			continue
		}
		name := sum.PlayerName
		if current, ok := names[sum.PlayerTag]; ok && current != "" {
			name = current
		}
		donors = append(donors, report.Donor{
			PlayerTag:    sum.PlayerTag,
			PlayerName:   name,
			Donations:    sum.DonationsSum,
			WeeksPresent: sum.WeeksPresent,
		})
		if limit > 0 && len(donors) == limit {
			break
		}
	}
	return donors
}
