package formatter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/acctsync/internal/models"
	"github.com/desertthunder/acctsync/internal/shared"
	tu "github.com/desertthunder/acctsync/internal/testing"
	"github.com/shopspring/decimal"
)

func sampleReports() []models.TeamReport {
	created := time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
	return []models.TeamReport{
		{
			Team: "Alpha",
			Rows: []models.EnrichedRow{
				{
					Identity:  models.Identity{AccountUID: "A1", ProviderUUID: "M1", TeamName: "Alpha"},
					Team:      "Alpha",
					DisplayID: "123-456-7890",
					Provider:  "Main MCC",
					Email:     "ops@example.com",
					Date:      &created,
					Balance:   decimal.NewNullDecimal(decimal.RequireFromString("500.25")),
					Spend:     decimal.NewNullDecimal(decimal.NewFromInt(100)),
					Status:    models.StatusActive,
				},
				{
					Identity:  models.Identity{AccountUID: "A2", ProviderUUID: "M1", TeamName: "Alpha"},
					Team:      "Alpha",
					DisplayID: "N/A",
					Provider:  "Main MCC",
					Spend:     decimal.NewNullDecimal(decimal.NewFromInt(42)),
					Refund:    decimal.NewNullDecimal(decimal.RequireFromString("17.5")),
					Status:    models.StatusClosed,
				},
			},
		},
		{Team: "Beta", Rows: []models.EnrichedRow{}},
	}
}

func TestSnapshot(t *testing.T) {
	t.Run("MarshalSnapshot", func(t *testing.T) {
		data, err := MarshalSnapshot(sampleReports())
		if err != nil {
			t.Fatalf("MarshalSnapshot failed: %v", err)
		}

		var raw []map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatalf("snapshot is not valid JSON: %v", err)
		}
		if len(raw) != 2 || raw[0]["team_name"] != "Alpha" {
			t.Fatalf("expected Alpha then Beta, got %v", raw)
		}

		rows := raw[0]["data"].([]any)
		first := rows[0].(map[string]any)
		if first["DATE"] != "2024-03-14 09:30:00" {
			t.Errorf("expected formatted date, got %v", first["DATE"])
		}
		if first["AMOUNT"] != 500.25 {
			t.Errorf("expected AMOUNT as a JSON number, got %#v", first["AMOUNT"])
		}
		if first["REFUND"] != nil {
			t.Errorf("expected null REFUND, got %v", first["REFUND"])
		}

		second := rows[1].(map[string]any)
		if second["DATE"] != nil || second["AMOUNT"] != nil {
			t.Errorf("expected null DATE and AMOUNT, got %v and %v", second["DATE"], second["AMOUNT"])
		}
		if second["REFUND"] != 17.5 {
			t.Errorf("expected REFUND 17.5, got %v", second["REFUND"])
		}
		if second["CURRENT STATUS"] != "CLOSED" {
			t.Errorf("expected CLOSED status, got %v", second["CURRENT STATUS"])
		}
	})

	t.Run("WriteSnapshot and LoadSnapshot", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "temp")
		now := time.Date(2024, 3, 15, 8, 5, 9, 0, time.UTC)

		path, err := WriteSnapshot(dir, sampleReports(), now)
		if err != nil {
			t.Fatalf("WriteSnapshot failed: %v", err)
		}
		if filepath.Base(path) != "data_2024-03-15_08-05-09.json" {
			t.Errorf("unexpected snapshot name %s", filepath.Base(path))
		}
		tu.AssertFileExists(t, path)

		reports, err := LoadSnapshot(path)
		if err != nil {
			t.Fatalf("LoadSnapshot failed: %v", err)
		}
		if len(reports) != 2 || len(reports[0].Rows) != 2 {
			t.Fatalf("expected 2 teams with 2 Alpha rows, got %+v", reports)
		}

		row := reports[0].Rows[0]
		if row.Identity.AccountUID != "A1" || row.Identity.TeamName != "Alpha" {
			t.Errorf("expected identity to survive, got %+v", row.Identity)
		}
		if row.Date == nil || !row.Date.Equal(time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)) {
			t.Errorf("expected date to survive, got %v", row.Date)
		}
		if !row.Balance.Valid || !row.Balance.Decimal.Equal(decimal.RequireFromString("500.25")) {
			t.Errorf("expected balance 500.25, got %v", row.Balance)
		}

		flagged := reports[0].Rows[1]
		if !flagged.Flagged() {
			t.Error("expected refunded row to stay flagged after reload")
		}
		if flagged.Date != nil {
			t.Errorf("expected nil date, got %v", flagged.Date)
		}
	})

	t.Run("LoadSnapshot Missing File", func(t *testing.T) {
		_, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
		if !errors.Is(err, shared.ErrSnapshot) {
			t.Errorf("expected ErrSnapshot, got %v", err)
		}
	})

	t.Run("Null Spend", func(t *testing.T) {
		reports := []models.TeamReport{{Team: "Alpha", Rows: []models.EnrichedRow{
			{Team: "Alpha", DisplayID: "cust-5", Status: models.StatusClosed},
		}}}

		data, err := MarshalSnapshot(reports)
		if err != nil {
			t.Fatalf("MarshalSnapshot failed: %v", err)
		}
		if !strings.Contains(string(data), `"SPEND":null`) && !strings.Contains(string(data), `"SPEND": null`) {
			t.Errorf("expected null SPEND in snapshot, got %s", data)
		}

		path := filepath.Join(t.TempDir(), "null.json")
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}
		loaded, err := LoadSnapshot(path)
		if err != nil {
			t.Fatalf("LoadSnapshot failed: %v", err)
		}
		if loaded[0].Rows[0].Spend.Valid {
			t.Errorf("expected spend to stay null after reload, got %s", loaded[0].Rows[0].Spend.Decimal)
		}

		out, err := ExportToCSV(reports)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		if !strings.Contains(string(out), "Alpha,cust-5,,,,,,,CLOSED") {
			t.Errorf("expected empty spend cell, got %q", out)
		}
	})

	t.Run("LoadSnapshot Invalid Date", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		content := `[{"team_name":"Alpha","data":[{"ID":"1","DATE":"yesterday","SPEND":0}]}]`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}

		if _, err := LoadSnapshot(path); !errors.Is(err, shared.ErrSnapshot) {
			t.Errorf("expected ErrSnapshot, got %v", err)
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleReports())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d lines: %q", len(lines), lines)
		}
		if lines[0] != "TEAM,ID,MCC,DATE,EMAIL,AMOUNT,SPEND,REFUND,CURRENT STATUS" {
			t.Errorf("unexpected CSV header %q", lines[0])
		}
		if lines[1] != "Alpha,123-456-7890,Main MCC,2024-03-14 09:30:00,ops@example.com,500.25,100,,ACTIVE" {
			t.Errorf("unexpected first row %q", lines[1])
		}
		if lines[2] != "Alpha,N/A,Main MCC,,,,42,17.5,CLOSED" {
			t.Errorf("unexpected second row %q", lines[2])
		}
	})

	t.Run("WriteExport", func(t *testing.T) {
		tc := []struct {
			name   string
			file   string
			format string
			want   string
		}{
			{name: "csv by extension", file: "out/report.csv", want: "TEAM,ID"},
			{name: "json by default", file: "out/report.txt", want: `"team_name": "Alpha"`},
			{name: "explicit json", file: "report.csv", format: "json", want: `"team_name"`},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				path := filepath.Join(t.TempDir(), tt.file)
				if err := WriteExport(sampleReports(), path, tt.format); err != nil {
					t.Fatalf("WriteExport failed: %v", err)
				}
				if content := tu.MustReadFile(t, path); !strings.Contains(content, tt.want) {
					t.Errorf("expected %q in export, got %s", tt.want, content)
				}
			})
		}
	})

	t.Run("WriteExport Unsupported Format", func(t *testing.T) {
		err := WriteExport(sampleReports(), filepath.Join(t.TempDir(), "out.md"), "markdown")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
