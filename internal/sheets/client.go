package sheets

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Headroom added when a tab has to grow, so most exports don't resize.
const (
	rowHeadroom    = 50
	columnHeadroom = 2
)

// Client implements SheetsAPI with a service-account Sheets client.
type Client struct {
	service *sheets.Service
}

// NewClient creates a Sheets client from a service-account credentials file
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Client{service: service}, nil
}

func (c *Client) ReadRange(ctx context.Context, spreadsheetID, a1 string) ([][]interface{}, error) {
	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, a1).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", a1, err)
	}
	return resp.Values, nil
}

// WriteRange stores values as given. RAW input keeps player names that start
// with "=" or "+" from being evaluated as formulas.
func (c *Client) WriteRange(ctx context.Context, spreadsheetID, a1 string, values [][]interface{}) error {
	_, err := c.service.Spreadsheets.Values.Update(spreadsheetID, a1, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", a1, err)
	}
	return nil
}

func (c *Client) ClearRange(ctx context.Context, spreadsheetID, a1 string) error {
	_, err := c.service.Spreadsheets.Values.Clear(spreadsheetID, a1, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", a1, err)
	}
	return nil
}

func (c *Client) EnsureTab(ctx context.Context, spreadsheetID, title string, rows, cols int) (bool, error) {
	spreadsheet, err := c.service.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return false, fmt.Errorf("failed to load spreadsheet: %w", err)
	}

	var props *sheets.SheetProperties
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			props = sheet.Properties
			break
		}
	}

	if props == nil {
		req := &sheets.Request{AddSheet: &sheets.AddSheetRequest{
			Properties: &sheets.SheetProperties{
				Title: title,
				GridProperties: &sheets.GridProperties{
					RowCount:    int64(rows + rowHeadroom),
					ColumnCount: int64(cols + columnHeadroom),
				},
			},
		}}
		if err := c.batchUpdate(ctx, spreadsheetID, req); err != nil {
			return false, fmt.Errorf("failed to add tab %s: %w", title, err)
		}
		log.Info().Str("tab", title).Msg("Created mirror tab")
		return true, nil
	}

	var currentRows, currentCols int
	if props.GridProperties != nil {
		currentRows = int(props.GridProperties.RowCount)
		currentCols = int(props.GridProperties.ColumnCount)
	}
	newRows, growRows := grow(currentRows, rows, rowHeadroom)
	newCols, growCols := grow(currentCols, cols, columnHeadroom)
	if !growRows && !growCols {
		return false, nil
	}

	req := &sheets.Request{UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
		Properties: &sheets.SheetProperties{
			SheetId: props.SheetId,
			GridProperties: &sheets.GridProperties{
				RowCount:    int64(newRows),
				ColumnCount: int64(newCols),
			},
		},
		Fields: "gridProperties.rowCount,gridProperties.columnCount",
	}}
	if err := c.batchUpdate(ctx, spreadsheetID, req); err != nil {
		return false, fmt.Errorf("failed to resize tab %s: %w", title, err)
	}

	log.Debug().
		Str("tab", title).
		Int("rows", newRows).
		Int("cols", newCols).
		Msg("Resized mirror tab")
	return false, nil
}

func (c *Client) batchUpdate(ctx context.Context, spreadsheetID string, reqs ...*sheets.Request) error {
	_, err := c.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).
		Do()
	return err
}

// grow returns the size a dimension must take to hold required, and whether
// it has to change.
func grow(current, required, headroom int) (int, bool) {
	if required <= current {
		return current, false
	}
	return required + headroom, true
}
