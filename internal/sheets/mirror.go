package sheets

import (
	"context"
	"fmt"
	"time"

	"riverrace_stats/internal/config"
	"riverrace_stats/internal/domain/kick"
	"riverrace_stats/internal/domain/leaderboard"
	"riverrace_stats/internal/domain/week"

	"github.com/rs/zerolog/log"
)

const (
	RollingSheetName = "Rolling"
	KickSheetName    = "Kick Shortlist"

	mirrorColumns = 8
)

// Mirror copies computed leaderboards and the kick shortlist into a spreadsheet.
// Each export replaces the sheet's previous content.
type Mirror struct {
	api           SheetsAPI
	spreadsheetID string
	retry         config.RetryConfig
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewMirror creates a mirror writing to spreadsheetID through api
func NewMirror(api SheetsAPI, spreadsheetID string) *Mirror {
	return &Mirror{
		api:           api,
		spreadsheetID: spreadsheetID,
		retry:         config.DefaultResilienceConfig.SheetWrite,
		sleep:         sleepContext,
	}
}

// WeekSheetName is the tab holding one week's leaderboard, e.g. "S129 W3".
func WeekSheetName(k week.Key) string {
	return k.String()
}

// ExportWeek writes the week's full leaderboard, most active first.
func (m *Mirror) ExportWeek(ctx context.Context, k week.Key, entries []leaderboard.Entry) error {
	rows := [][]interface{}{
		{"Week", k.String()},
		{"Rank", "Player Tag", "Player Name", "Decks Used", "Fame"},
	}
	for i, e := range leaderboard.RankActive(entries, 0) {
		rows = append(rows, []interface{}{i + 1, e.PlayerTag, e.PlayerName, e.DecksUsed, e.Fame})
	}
	return m.replaceSheet(ctx, WeekSheetName(k), k.String(), rows)
}

// ExportRolling writes the rolling window, least active first.
// It is skipped when the sheet already holds the same window.
func (m *Mirror) ExportRolling(ctx context.Context, weeks []week.Key, entries []leaderboard.Entry) error {
	label := windowLabel(weeks)
	rows := [][]interface{}{
		{"Weeks", label},
		{"Rank", "Player Tag", "Player Name", "Decks Used", "Fame", "Weeks Played"},
	}
	for i, e := range leaderboard.RankInactive(entries, 0) {
		rows = append(rows, []interface{}{i + 1, e.PlayerTag, e.PlayerName, e.DecksUsed, e.Fame, e.WeeksPlayed})
	}
	return m.replaceSheet(ctx, RollingSheetName, label, rows)
}

// ExportKickShortlist writes the shortlist with the tier that nominated each player.
func (m *Mirror) ExportKickShortlist(ctx context.Context, last week.Key, shortlist kick.Shortlist) error {
	rows := [][]interface{}{
		{"After", last.String()},
		{"#", "Player Tag", "Player Name", "Tier", "Last Week Decks", "Last Week Fame", "Window Decks", "Weeks Played"},
	}
	for i, c := range shortlist.Candidates {
		rows = append(rows, []interface{}{
			i + 1, c.PlayerTag, c.PlayerName, string(c.Tier),
			c.LastWeekDecks, c.LastWeekFame, c.RollingDecks, c.WeeksPlayed,
		})
	}
	return m.replaceSheet(ctx, KickSheetName, "", rows)
}

// ExportedLabel returns the label stored in B1 of a sheet, "" when absent.
func (m *Mirror) ExportedLabel(ctx context.Context, sheetName string) (string, error) {
	values, err := m.api.ReadRange(ctx, m.spreadsheetID, tabRange(sheetName, "A1:B1"))
	if err != nil {
		return "", err
	}
	if len(values) == 0 || len(values[0]) < 2 {
		return "", nil
	}
	return cellText(values[0][1]), nil
}

func cellText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func windowLabel(weeks []week.Key) string {
	label := ""
	for i, k := range weeks {
		if i > 0 {
			label += ", "
		}
		label += k.String()
	}
	return label
}

// replaceSheet rewrites the sheet with rows. When label is set and the sheet
// already carries it in B1, nothing is written.
func (m *Mirror) replaceSheet(ctx context.Context, sheetName, label string, rows [][]interface{}) error {
	return m.withRetry(ctx, sheetName, func() error {
		created, err := m.api.EnsureTab(ctx, m.spreadsheetID, sheetName, len(rows), mirrorColumns)
		if err != nil {
			return fmt.Errorf("failed to prepare %s: %w", sheetName, err)
		}

		if !created && label != "" {
			current, err := m.ExportedLabel(ctx, sheetName)
			if err != nil {
				return fmt.Errorf("failed to read %s label: %w", sheetName, err)
			}
			if current == label {
				log.Debug().
					Str("sheet_name", sheetName).
					Str("label", label).
					Msg("Mirror sheet already up to date")
				return nil
			}
		}

		if err := m.api.ClearRange(ctx, m.spreadsheetID, tabRange(sheetName, "A1:Z")); err != nil {
			return fmt.Errorf("failed to clear %s: %w", sheetName, err)
		}
		if err := m.api.WriteRange(ctx, m.spreadsheetID, tabRange(sheetName, "A1"), rows); err != nil {
			return fmt.Errorf("failed to write %s: %w", sheetName, err)
		}

		log.Info().
			Str("sheet_name", sheetName).
			Int("rows", len(rows)).
			Msg("Updated mirror sheet")
		return nil
	})
}

func (m *Mirror) withRetry(ctx context.Context, sheetName string, op func() error) error {
	attempts := m.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		delay := m.retry.Backoff(attempt)
		log.Warn().
			Err(err).
			Str("sheet_name", sheetName).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Sheet write failed, retrying")
		if sleepErr := m.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
