// package formatter converts team reports to the run artifact (JSON snapshot) and to CSV exports.
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/acctsync/internal/models"
	"github.com/desertthunder/acctsync/internal/shared"
	"github.com/shopspring/decimal"
)

const (
	// DateLayout is how row dates are written to snapshots and exports.
	DateLayout = "2006-01-02 15:04:05"
	// SnapshotLayout names snapshot files: data_<timestamp>.json
	SnapshotLayout = "2006-01-02_15-04-05"
)

// SnapshotRow is one report row with every value reduced to a JSON string, number or null.
type SnapshotRow struct {
	ID           string       `json:"ID"`
	MCC          string       `json:"MCC"`
	Date         *string      `json:"DATE"`
	Email        string       `json:"EMAIL"`
	Amount       *json.Number `json:"AMOUNT"`
	Spend        *json.Number `json:"SPEND"`
	Refund       *json.Number `json:"REFUND"`
	Status       string       `json:"CURRENT STATUS"`
	AccountUID   string       `json:"account_uid,omitempty"`
	ProviderUUID string       `json:"mcc_uuid,omitempty"`
}

// SnapshotTeam is the artifact entry for one team.
type SnapshotTeam struct {
	Team string        `json:"team_name"`
	Data []SnapshotRow `json:"data"`
}

// ToSnapshot converts reports to their artifact form, preserving team and row order.
func ToSnapshot(reports []models.TeamReport) []SnapshotTeam {
	teams := make([]SnapshotTeam, 0, len(reports))
	for _, report := range reports {
		team := SnapshotTeam{Team: report.Team, Data: make([]SnapshotRow, 0, len(report.Rows))}
		for _, row := range report.Rows {
			team.Data = append(team.Data, toSnapshotRow(row))
		}
		teams = append(teams, team)
	}
	return teams
}

func toSnapshotRow(row models.EnrichedRow) SnapshotRow {
	out := SnapshotRow{
		ID:           row.DisplayID,
		MCC:          row.Provider,
		Email:        row.Email,
		Amount:       nullNumber(row.Balance),
		Spend:        nullNumber(row.Spend),
		Refund:       nullNumber(row.Refund),
		Status:       string(row.Status),
		AccountUID:   row.Identity.AccountUID,
		ProviderUUID: row.Identity.ProviderUUID,
	}
	if row.Date != nil {
		d := row.Date.Format(DateLayout)
		out.Date = &d
	}
	return out
}

func nullNumber(d decimal.NullDecimal) *json.Number {
	if !d.Valid {
		return nil
	}
	n := json.Number(d.Decimal.String())
	return &n
}

// FromSnapshot rebuilds reports from their artifact form.
func FromSnapshot(teams []SnapshotTeam) ([]models.TeamReport, error) {
	reports := make([]models.TeamReport, 0, len(teams))
	for _, team := range teams {
		report := models.TeamReport{Team: team.Team, Rows: make([]models.EnrichedRow, 0, len(team.Data))}
		for i, r := range team.Data {
			row, err := fromSnapshotRow(team.Team, r)
			if err != nil {
				return nil, fmt.Errorf("%w: team %s row %d: %w", shared.ErrSnapshot, team.Team, i, err)
			}
			report.Rows = append(report.Rows, row)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func fromSnapshotRow(team string, r SnapshotRow) (models.EnrichedRow, error) {
	row := models.EnrichedRow{
		Identity:  models.Identity{AccountUID: r.AccountUID, ProviderUUID: r.ProviderUUID, TeamName: team},
		Team:      team,
		DisplayID: r.ID,
		Provider:  r.MCC,
		Email:     r.Email,
		Status:    models.AccountStatus(r.Status),
	}

	if r.Date != nil {
		d, err := time.Parse(DateLayout, *r.Date)
		if err != nil {
			return row, fmt.Errorf("invalid date %q: %w", *r.Date, err)
		}
		row.Date = &d
	}

	var err error
	if row.Balance, err = parseNullNumber(r.Amount); err != nil {
		return row, fmt.Errorf("invalid amount: %w", err)
	}
	if row.Refund, err = parseNullNumber(r.Refund); err != nil {
		return row, fmt.Errorf("invalid refund: %w", err)
	}
	if row.Spend, err = parseNullNumber(r.Spend); err != nil {
		return row, fmt.Errorf("invalid spend: %w", err)
	}
	return row, nil
}

func parseNullNumber(n *json.Number) (decimal.NullDecimal, error) {
	if n == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// MarshalSnapshot encodes reports as an indented JSON artifact.
func MarshalSnapshot(reports []models.TeamReport) ([]byte, error) {
	data, err := json.MarshalIndent(ToSnapshot(reports), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSnapshot, err)
	}
	return data, nil
}

// WriteSnapshot writes reports to dir/data_<timestamp>.json, creating dir if needed, and returns the path.
func WriteSnapshot(dir string, reports []models.TeamReport, now time.Time) (string, error) {
	data, err := MarshalSnapshot(reports)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create directory: %w", shared.ErrSnapshot, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("data_%s.json", now.Format(SnapshotLayout)))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("%w: failed to write file: %w", shared.ErrSnapshot, err)
	}
	return path, nil
}

// LoadSnapshot reads an artifact written by [WriteSnapshot].
func LoadSnapshot(path string) ([]models.TeamReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read file: %w", shared.ErrSnapshot, err)
	}

	var teams []SnapshotTeam
	if err := json.Unmarshal(data, &teams); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %w", shared.ErrSnapshot, path, err)
	}
	return FromSnapshot(teams)
}

// ExportToCSV writes every report as one CSV table with a leading TEAM column.
// Missing values are empty fields.
func ExportToCSV(reports []models.TeamReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := append([]string{"TEAM"}, models.ReportColumns...)
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, team := range ToSnapshot(reports) {
		for _, row := range team.Data {
			record := []string{
				team.Team,
				row.ID,
				row.MCC,
				stringOrEmpty(row.Date),
				row.Email,
				numberOrEmpty(row.Amount),
				numberOrEmpty(row.Spend),
				numberOrEmpty(row.Refund),
				row.Status,
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func numberOrEmpty(n *json.Number) string {
	if n == nil {
		return ""
	}
	return n.String()
}

// WriteExport writes reports to path as "csv" or "json". An empty format is inferred from the
// file extension and defaults to JSON.
func WriteExport(reports []models.TeamReport, path, format string) error {
	if format == "" {
		format = "json"
		if filepath.Ext(path) == ".csv" {
			format = "csv"
		}
	}

	var data []byte
	var err error
	switch format {
	case "csv":
		data, err = ExportToCSV(reports)
	case "json":
		data, err = MarshalSnapshot(reports)
	default:
		return fmt.Errorf("%w: unsupported export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
