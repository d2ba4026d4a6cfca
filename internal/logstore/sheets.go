package logstore

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/config"
)

// Sheets appends rows to a Google spreadsheet.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	writeRange    string
}

// NewSheets creates a Sheets store. Extra options are appended after the
// credentials option, so tests can point the client at a local endpoint.
func NewSheets(ctx context.Context, cfg config.SheetsConfig, opts ...option.ClientOption) (*Sheets, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	var all []option.ClientOption
	if cfg.CredentialsFile != "" {
		all = append(all, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	all = append(all, opts...)

	svc, err := sheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	writeRange := cfg.Range
	if writeRange == "" {
		writeRange = "A:C"
	}
	return &Sheets{svc: svc, spreadsheetID: cfg.SpreadsheetID, writeRange: writeRange}, nil
}

func (s *Sheets) AppendRow(ctx context.Context, row Row) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{row.Values()}}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.writeRange, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}

func (s *Sheets) Close() error { return nil }
