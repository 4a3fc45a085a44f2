package sheets

import (
	"context"
	"fmt"
	"strings"
)

// SheetsAPI is the part of the Google Sheets API the mirror writes through.
// Cell blocks are [][]interface{} because that is what the API exchanges.
type SheetsAPI interface {
	ReadRange(ctx context.Context, spreadsheetID, a1 string) ([][]interface{}, error)
	WriteRange(ctx context.Context, spreadsheetID, a1 string, values [][]interface{}) error
	ClearRange(ctx context.Context, spreadsheetID, a1 string) error

	// EnsureTab creates the tab when missing and grows it to hold at least
	// rows x cols. It reports whether the tab was created.
	EnsureTab(ctx context.Context, spreadsheetID, title string, rows, cols int) (bool, error)
}

// tabRange builds an A1 range on a named tab, quoting the title.
func tabRange(title, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(title, "'", "''"), cells)
}
