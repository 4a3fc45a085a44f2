package report

import (
	"fmt"
	"strings"
	"time"

	"riverrace_stats/internal/domain/kick"
	"riverrace_stats/internal/domain/leaderboard"
	"riverrace_stats/internal/domain/promotion"
	"riverrace_stats/internal/domain/week"
)

// WeeklyData is everything the single-week report shows.
type WeeklyData struct {
	Week    week.Key
	Members int
	Board   leaderboard.Board
	Summary leaderboard.Summary
	// TopDonors is the week-to-date donation top list; nil hides the block.
	TopDonors []Donor
}

// Weekly renders the report for one completed week.
func Weekly(d WeeklyData) string {
	head := append(header(fmt.Sprintf("River Race report: Season %d, Week %d", d.Week.SeasonID, d.Week.SectionIndex+1)),
		fmt.Sprintf("Current members: %d", d.Members))
	head = append(head, formatSummary(d.Summary)...)
	head = append(head, "", "Least active:")
	head = append(head, FormatEntries(d.Board.Inactive)...)

	active := append([]string{"Most active:"}, FormatEntries(d.Board.Active)...)

	var donors []string
	if d.TopDonors != nil {
		donors = donorsWTD(d.TopDonors)
	}
	return joinBlocks(head, active, donors)
}

// RollingData is everything the rolling-window report shows.
type RollingData struct {
	Weeks   []week.Key
	Members int
	Board   leaderboard.Board
	// DonationWindow is the number of donation weeks summed; 0 hides the block.
	DonationWindow int
	TopDonors      []Donor
}

// Rolling renders the report summed over several completed weeks.
func Rolling(d RollingData) string {
	head := append(header(fmt.Sprintf("River Race report: last %d weeks", len(d.Weeks))),
		fmt.Sprintf("Current members: %d", d.Members))
	if label := WeekLabel(d.Weeks); label != "" {
		head = append(head, "Weeks: "+label)
	} else {
		head = append(head, "Weeks: n/a")
	}
	head = append(head, "", "Least active:")
	head = append(head, FormatEntries(d.Board.Inactive)...)

	active := append([]string{"Most active:"}, FormatEntries(d.Board.Active)...)

	var donors []string
	if d.DonationWindow > 0 {
		donors = donorsWindow(d.TopDonors, d.DonationWindow)
	}
	return joinBlocks(head, active, donors)
}

// KickData is everything the kick shortlist report shows.
type KickData struct {
	LastWeek  *week.Key
	Weeks     []week.Key
	Shortlist kick.Shortlist
	Rules     kick.Rules
	// LastSeen and Donations are keyed by player tag; missing keys render as n/a.
	LastSeen  map[string]time.Time
	Donations map[string]int
	Now       time.Time
}

var tierTitles = map[kick.Tier]string{
	kick.TierStrict:           "Below the minimum last week",
	kick.TierWeakestRolling:   "Weakest over the rolling window",
	kick.TierRevived:          "Dropped to zero after an active week",
	kick.TierNewMembers:       "New members below the minimum",
	kick.TierNearestThreshold: "Closest to the minimum (no one below it)",
}

// TierTitle is the human label of a kick tier.
func TierTitle(t kick.Tier) string {
	if title, ok := tierTitles[t]; ok {
		return title
	}
	return string(t)
}

// Kick renders the shortlist grouped by the tier that nominated each player and
// discloses whether fallback tiers were used.
func Kick(d KickData) string {
	title := "Kick shortlist"
	if d.LastWeek != nil {
		title = fmt.Sprintf("Kick shortlist after Season %d, Week %d", d.LastWeek.SeasonID, d.LastWeek.SectionIndex+1)
	}
	lines := header(title)
	lines = append(lines, fmt.Sprintf("Minimum: %d decks | %d fame per week", d.Rules.MinDecks, d.Rules.MinFame))
	if label := WeekLabel(d.Weeks); label != "" {
		lines = append(lines, "Rolling weeks: "+label)
	}

	if d.LastWeek == nil || len(d.Shortlist.Candidates) == 0 {
		lines = append(lines, "", "No kick candidates.")
		return strings.Join(lines, "\n")
	}

	if d.Shortlist.UsedFallback() {
		tiers := make([]string, 0, len(d.Shortlist.Tiers))
		for _, tier := range d.Shortlist.Tiers {
			tiers = append(tiers, string(tier))
		}
		lines = append(lines, "Fallback tiers used: "+strings.Join(tiers, ", "))
	}

	index := 0
	for _, tier := range d.Shortlist.Tiers {
		lines = append(lines, "", TierTitle(tier)+":")
		for _, c := range d.Shortlist.Candidates {
			if c.Tier != tier {
				continue
			}
			index++
			lines = append(lines, kickLine(index, c, d))
		}
	}
	return strings.Join(lines, "\n")
}

func kickLine(index int, c kick.Candidate, d KickData) string {
	name := strings.TrimRight(FormatName(displayName(c.PlayerName, c.PlayerTag)), " ")
	line := fmt.Sprintf("%d. %s | last week %d decks, %d fame | window %d decks | weeks %d",
		index, name, c.LastWeekDecks, c.LastWeekFame, c.RollingDecks, c.WeeksPlayed)

	switch c.Tier {
	case kick.TierRevived:
		line += fmt.Sprintf(" | prior week %d decks", c.PriorWeekDecks)
	case kick.TierNearestThreshold:
		line += fmt.Sprintf(" | %+d decks, %+d fame vs minimum", c.DecksDelta, c.FameDelta)
	}

	donations := "n/a"
	if v, ok := d.Donations[c.PlayerTag]; ok {
		donations = fmt.Sprint(v)
	}
	seen, ok := d.LastSeen[c.PlayerTag]
	return line + fmt.Sprintf(" | donations %s | %s", donations, FormatLastSeen(seen, ok, d.Now))
}

// PromotionData is everything the promotion report shows.
type PromotionData struct {
	Season      int
	WindowWeeks int
	Result      promotion.Result
	Rules       promotion.Rules
}

var noteText = map[promotion.Note]string{
	promotion.NoteNoDonationData: "No donation data yet: co-leader picks are skipped and scores ignore donations.",
	promotion.NoteProtected:      "Protected players are excluded.",
	promotion.NoteNewMembers:     "New members are excluded.",
}

// Promotion renders elder and co-leader recommendations with explanatory notes.
func Promotion(d PromotionData) string {
	title := "Promotion recommendations"
	if d.Season > 0 {
		title = fmt.Sprintf("Promotion recommendations after Season %d", d.Season)
	}
	lines := header(title)
	lines = append(lines, fmt.Sprintf("Window: last %d weeks", d.WindowWeeks))

	e := d.Rules.Elder
	lines = append(lines, "", fmt.Sprintf("Elder (>= %d weeks, >= %d active, >= %s avg decks):",
		e.MinWeeksPlayed, e.MinActiveWeeks, formatAvg(e.MinAvgDecks)))
	if len(d.Result.Elder) == 0 {
		lines = append(lines, "No candidates.")
	}
	for i, c := range d.Result.Elder {
		lines = append(lines, promotionLine(i+1, c, true))
	}

	cl := d.Rules.CoLeader
	lines = append(lines, "", fmt.Sprintf("Co-leader (>= %d weeks, >= %d active, >= %s avg decks, >= %d weeks in clan):",
		cl.MinWeeksPlayed, cl.MinActiveWeeks, formatAvg(cl.MinAvgDecks), cl.MinAllTimeWeeks))
	if len(d.Result.CoLeader) == 0 {
		lines = append(lines, "No candidates.")
	}
	for i, c := range d.Result.CoLeader {
		lines = append(lines, promotionLine(i+1, c, false))
	}

	if len(d.Result.Notes) > 0 {
		lines = append(lines, "")
		for _, note := range d.Result.Notes {
			lines = append(lines, "* "+noteText[note])
		}
	}
	return strings.Join(lines, "\n")
}

func promotionLine(index int, c promotion.Candidate, withScore bool) string {
	name := strings.TrimRight(FormatName(displayName(c.PlayerName, c.PlayerTag)), " ")
	line := fmt.Sprintf("%d. %s | avg %s fame, %s decks | active %d/%d | donations %d",
		index, name, formatAvg(c.AvgFame), formatAvg(c.AvgDecks), c.ActiveWeeks, c.WeeksPlayed, c.DonationsSum)
	if withScore {
		line += fmt.Sprintf(" | score %.2f", c.Score)
	}
	return line
}

// DonationsData is everything the donations report shows.
type DonationsData struct {
	WTD         []Donor
	Window      []Donor
	WindowWeeks int
	Coverage    int
}

// Donations renders the week-to-date and windowed donation top lists.
func Donations(d DonationsData) string {
	head := header("Donations")
	head = append(head, donorsWTD(d.WTD)...)
	window := donorsWindow(d.Window, d.WindowWeeks)
	window = append(window, fmt.Sprintf("Data available for %d of %d weeks.", d.Coverage, d.WindowWeeks))
	return joinBlocks(head, window)
}

func donorsWTD(donors []Donor) []string {
	lines := []string{"Top donors this week:"}
	if len(donors) == 0 {
		return append(lines, "No donations recorded yet.")
	}
	for i, d := range donors {
		lines = append(lines, fmt.Sprintf("%d. %s: %d", i+1, displayName(d.PlayerName, d.PlayerTag), d.Donations))
	}
	return lines
}

func donorsWindow(donors []Donor, windowWeeks int) []string {
	lines := []string{fmt.Sprintf("Top donors over %d weeks:", windowWeeks)}
	if len(donors) == 0 {
		return append(lines, "No donations recorded yet.")
	}
	for i, d := range donors {
		lines = append(lines, fmt.Sprintf("%d. %s: %d (%d/%d weeks)",
			i+1, displayName(d.PlayerName, d.PlayerTag), d.Donations, d.WeeksPresent, windowWeeks))
	}
	return lines
}

// NoCompletedWeeks is shown when no completed week is known yet.
const NoCompletedWeeks = "No completed weeks found yet."

// NoCurrentWeek is shown when no war week has been stored yet.
const NoCurrentWeek = "No war week recorded yet."

// CurrentData is everything the current week report shows.
type CurrentData struct {
	Clan        string
	Week        week.Key
	IsColosseum bool
	Period      week.Period
	UpdatedAt   time.Time
	// Day is the battle day, 0 when unknown.
	Day int

	Participants int
	TotalDecks   int
	TotalFame    int
	DecksToday   int
	Board        leaderboard.Board

	// Behind holds members under PaceDecks, capped; BehindCount is the full count.
	PaceDecks   int
	Behind      []leaderboard.Entry
	BehindCount int

	// LastCompleted is shown during training.
	LastCompleted *week.Key
}

var periodTitles = map[week.Period]string{
	week.PeriodTraining:  "Training days",
	week.PeriodWarDay:    "Battle days",
	week.PeriodColosseum: "Colosseum",
	week.PeriodCompleted: "Week completed",
}

func raceKind(colosseum bool) string {
	if colosseum {
		return "Colosseum"
	}
	return "River Race"
}

// Current renders the week in progress. Training weeks only show the status
// and the last completed week.
func Current(d CurrentData) string {
	head := header("Current war: " + d.Clan)
	head = append(head, "Last update: "+formatUpdated(d.UpdatedAt))

	phase, ok := periodTitles[d.Period]
	if !ok {
		phase = "Unknown period"
	}
	status := []string{
		fmt.Sprintf("Season %d, Week %d (%s)", d.Week.SeasonID, d.Week.SectionIndex+1, raceKind(d.IsColosseum)),
	}
	switch {
	case d.Period.IsBattle() && d.Day > 0:
		status = append(status, fmt.Sprintf("%s: day %d", phase, d.Day))
	default:
		status = append(status, phase)
	}

	if d.Period == week.PeriodTraining {
		status = append(status, "", "Battles start after training; no decks count yet.")
		if d.LastCompleted != nil {
			status = append(status, fmt.Sprintf("Last completed: Season %d, Week %d",
				d.LastCompleted.SeasonID, d.LastCompleted.SectionIndex+1))
		}
		return joinBlocks(head, status)
	}

	totals := []string{
		fmt.Sprintf("Decks used: %d", d.TotalDecks),
		fmt.Sprintf("Fame: %d", d.TotalFame),
		fmt.Sprintf("Members participating: %d", d.Participants),
	}
	if d.Period.IsBattle() {
		totals = append(totals, fmt.Sprintf("Decks used today: %d", d.DecksToday))
	}

	top := append([]string{"Most active:"}, FormatEntries(d.Board.Active)...)
	bottom := append([]string{"Least active:"}, FormatEntries(d.Board.Inactive)...)

	var behind []string
	if d.PaceDecks > 0 {
		behind = []string{fmt.Sprintf("Below %d decks so far: %d", d.PaceDecks, d.BehindCount)}
		if d.BehindCount > 0 {
			behind = append(behind, FormatEntries(d.Behind)...)
		}
	}
	return joinBlocks(head, status, totals, top, bottom, behind)
}

func formatUpdated(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

// TopData is everything the top players report shows.
type TopData struct {
	Weeks          []week.Key
	MinTenureWeeks int
	Eligible       int
	ByDecks        []leaderboard.Entry
	ByFame         []leaderboard.Entry
}

// Top renders the decks and fame top lists over the window.
func Top(d TopData) string {
	if len(d.Weeks) == 0 {
		return NoCompletedWeeks
	}
	head := header(fmt.Sprintf("Top players: last %d weeks", len(d.Weeks)))
	head = append(head,
		fmt.Sprintf("Members with at least %d weeks played", d.MinTenureWeeks),
		"Weeks: "+WeekLabel(d.Weeks))
	if d.Eligible == 0 {
		head = append(head, "", fmt.Sprintf("No member has played %d weeks in this window yet.", d.MinTenureWeeks))
		return strings.Join(head, "\n")
	}

	window := len(d.Weeks)
	decks := append([]string{fmt.Sprintf("Top %d by decks:", len(d.ByDecks))}, topLines(d.ByDecks, window)...)
	fame := append([]string{fmt.Sprintf("Top %d by fame:", len(d.ByFame))}, topLines(d.ByFame, window)...)
	return joinBlocks(head, decks, fame)
}

func topLines(entries []leaderboard.Entry, window int) []string {
	lines := make([]string, 0, len(entries))
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%2d. %s %d decks | %d fame | %d/%d weeks",
			i+1, FormatName(e.PlayerName), e.DecksUsed, e.Fame, e.WeeksPlayed, window))
	}
	return lines
}
