// Google Sheets destination
//
// Wraps the four spreadsheet primitives the sync engine needs: list tabs, create a tab,
// clear a region and apply a batch of value and format requests.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/acctsync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// clearFields resets values and formatting but keeps the tab, its size and any protected ranges.
const clearFields = "userEnteredValue,userEnteredFormat,textFormatRuns,dataValidation"

// SheetsService implements the sync destination on top of a single spreadsheet.
type SheetsService struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsService builds a client for the configured spreadsheet.
//
// Credentials come from a service account key when CredentialsFile is set, otherwise from the OAuth client
// secret and the token saved by `sheets auth`. Extra options are appended last so callers can override them.
func NewSheetsService(ctx context.Context, config shared.SheetsConfig, opts ...option.ClientOption) (*SheetsService, error) {
	if config.SpreadsheetID == "" {
		return nil, fmt.Errorf("%w: sheets.spreadsheet_id", shared.ErrMissingConfig)
	}

	var base []option.ClientOption
	if len(opts) == 0 {
		auth, err := credentialOption(ctx, config)
		if err != nil {
			return nil, err
		}
		base = append(base, auth)
	}

	svc, err := sheets.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	return &SheetsService{svc: svc, spreadsheetID: config.SpreadsheetID}, nil
}

func credentialOption(ctx context.Context, config shared.SheetsConfig) (option.ClientOption, error) {
	if config.CredentialsFile != "" {
		return option.WithCredentialsFile(config.CredentialsFile), nil
	}

	oauthConfig, err := SheetsOAuthConfig(config)
	if err != nil {
		return nil, err
	}

	token, err := LoadToken(config.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: run `acctsync sheets auth` first: %w", shared.ErrNotAuthenticated, err)
	}

	return option.WithTokenSource(oauthConfig.TokenSource(ctx, token)), nil
}

// SheetsOAuthConfig reads the installed-app client secret and returns an OAuth config scoped to spreadsheets.
func SheetsOAuthConfig(config shared.SheetsConfig) (*oauth2.Config, error) {
	data, err := os.ReadFile(config.ClientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read client secret: %w", shared.ErrMissingCredentials, err)
	}

	oauthConfig, err := google.ConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse client secret: %w", shared.ErrInvalidConfig, err)
	}

	if config.RedirectPort > 0 {
		oauthConfig.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", config.RedirectPort)
	}
	return oauthConfig, nil
}

// LoadToken reads a saved OAuth token.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

// SaveToken writes an OAuth token with owner-only permissions.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// Tabs returns every tab title with its numeric id.
func (s *SheetsService) Tabs(ctx context.Context) (map[string]int64, error) {
	spreadsheet, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read spreadsheet: %w", shared.ErrAPIRequest, err)
	}

	tabs := make(map[string]int64, len(spreadsheet.Sheets))
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties == nil {
			continue
		}
		tabs[sh.Properties.Title] = sh.Properties.SheetId
	}
	return tabs, nil
}

// CreateTab adds a tab and returns its id.
func (s *SheetsService) CreateTab(ctx context.Context, title string) (int64, error) {
	resp, err := s.batch(ctx, []*sheets.Request{{
		AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
	}})
	if err != nil {
		return 0, err
	}

	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("%w: no sheet returned for %q", shared.ErrAPIRequest, title)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// ClearRange clears values and formatting in rows [0, rows) and columns [0, cols) of a tab.
func (s *SheetsService) ClearRange(ctx context.Context, tabID, rows, cols int64) error {
	_, err := s.batch(ctx, []*sheets.Request{{
		UpdateCells: &sheets.UpdateCellsRequest{
			Range: &sheets.GridRange{
				SheetId:          tabID,
				StartRowIndex:    0,
				EndRowIndex:      rows,
				StartColumnIndex: 0,
				EndColumnIndex:   cols,
				ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
			},
			Fields: clearFields,
		},
	}})
	return err
}

// BatchUpdate applies requests in one atomic call.
func (s *SheetsService) BatchUpdate(ctx context.Context, requests []*sheets.Request) error {
	_, err := s.batch(ctx, requests)
	return err
}

func (s *SheetsService) batch(ctx context.Context, requests []*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	resp, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: batch update: %w", shared.ErrAPIRequest, err)
	}
	return resp, nil
}
