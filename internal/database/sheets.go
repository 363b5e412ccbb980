package database

import (
	"context"
	"fmt"

	"github.com/franckalain/mealcoach/internal/models"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// lastColumn is the letter of the final journal column (11 columns, A..K)
const lastColumn = "K"

// SheetsTable implements Table on one worksheet of a Google spreadsheet
type SheetsTable struct {
	svc           *sheets.Service
	spreadsheetID string
	sheet         string
}

// NewSheetsTable connects to the spreadsheet. opts typically carry
// option.WithCredentialsFile for a service account.
func NewSheetsTable(ctx context.Context, spreadsheetID, sheet string, opts ...option.ClientOption) (*SheetsTable, error) {
	if sheet == "" {
		sheet = "Sheet1"
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return &SheetsTable{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

func (s *SheetsTable) span() string {
	return fmt.Sprintf("'%s'!A:%s", s.sheet, lastColumn)
}

// Append adds the row after the last non-empty line of the sheet
func (s *SheetsTable) Append(ctx context.Context, row models.Row) error {
	cells := make([]interface{}, models.NumColumns)
	for i := range cells {
		cells[i] = row.Cell(i)
	}

	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.span(), &sheets.ValueRange{Values: [][]interface{}{cells}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// Rows reads the whole sheet as displayed, so hand-entered dates come back
// as text rather than date serials
func (s *SheetsTable) Rows(ctx context.Context) ([]models.Row, error) {
	resp, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, s.span()).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	rows := make([]models.Row, 0, len(resp.Values))
	for _, line := range resp.Values {
		row := make(models.Row, len(line))
		for i, v := range line {
			if v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Close is a no-op; the HTTP client has nothing to release
func (s *SheetsTable) Close() error {
	return nil
}
