// Package report renders computed leaderboards, shortlists and recommendations
// as plain text. Nothing here performs I/O.
package report

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"riverrace_stats/internal/domain/leaderboard"
	"riverrace_stats/internal/domain/week"
)

const (
	NameWidth   = 20
	HeaderLine  = "══════════════════════════════"
	DividerLine = "──────────────────────────────"

	unknownName = "Unknown"
	noData      = "No data yet."
)

// Donor is one row of a donations block.
type Donor struct {
	PlayerTag    string
	PlayerName   string
	Donations    int
	WeeksPresent int
}

// FormatName truncates names longer than NameWidth with an ellipsis and pads
// shorter ones so columns line up.
func FormatName(name string) string {
	if strings.TrimSpace(name) == "" {
		name = unknownName
	}
	if utf8.RuneCountInString(name) > NameWidth {
		runes := []rune(name)
		name = string(runes[:NameWidth-1]) + "…"
	}
	if pad := NameWidth - utf8.RuneCountInString(name); pad > 0 {
		name += strings.Repeat(" ", pad)
	}
	return name
}

func displayName(name, tag string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	if tag != "" {
		return tag
	}
	return unknownName
}

// FormatEntries renders numbered "name  decks  fame" lines with aligned columns.
func FormatEntries(entries []leaderboard.Entry) []string {
	if len(entries) == 0 {
		return []string{noData}
	}

	decksWidth, fameWidth := 2, 2
	for _, e := range entries {
		if w := len(fmt.Sprint(e.DecksUsed)); w > decksWidth {
			decksWidth = w
		}
		if w := len(fmt.Sprint(e.Fame)); w > fameWidth {
			fameWidth = w
		}
	}

	lines := make([]string, 0, len(entries))
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%2d. %s %*d decks | %*d fame",
			i+1, FormatName(e.PlayerName), decksWidth, e.DecksUsed, fameWidth, e.Fame))
	}
	return lines
}

// WeekLabel renders weeks as "season/week" with 1-based weeks, newest first as given.
func WeekLabel(weeks []week.Key) string {
	parts := make([]string, 0, len(weeks))
	for _, k := range weeks {
		parts = append(parts, fmt.Sprintf("%d/%d", k.SeasonID, k.SectionIndex+1))
	}
	return strings.Join(parts, ", ")
}

func formatAvg(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func formatSummary(s leaderboard.Summary) []string {
	if s.Players == 0 {
		return nil
	}
	return []string{
		fmt.Sprintf("Average: %s decks | %s fame", formatAvg(s.AvgDecks), formatAvg(s.AvgFame)),
		fmt.Sprintf("Median: %s decks | %s fame", formatAvg(s.MedianDecks), formatAvg(s.MedianFame)),
		fmt.Sprintf("Full participation: %d | No decks: %d", s.FullDecks, s.ZeroDecks),
	}
}

// FormatLastSeen renders how long ago a member was last online.
func FormatLastSeen(seen time.Time, ok bool, now time.Time) string {
	if !ok {
		return "last seen n/a"
	}
	delta := now.Sub(seen)
	switch {
	case delta < time.Hour:
		return "online recently"
	case delta < 24*time.Hour:
		return fmt.Sprintf("last seen %dh ago", int(delta.Hours()))
	default:
		return fmt.Sprintf("last seen %dd ago", int(delta.Hours()/24))
	}
}

func joinBlocks(blocks ...[]string) string {
	var lines []string
	for i, block := range blocks {
		if len(block) == 0 {
			continue
		}
		if i > 0 && len(lines) > 0 {
			lines = append(lines, "", DividerLine, "")
		}
		lines = append(lines, block...)
	}
	return strings.Join(lines, "\n")
}

func header(title string) []string {
	return []string{HeaderLine, title, HeaderLine}
}
