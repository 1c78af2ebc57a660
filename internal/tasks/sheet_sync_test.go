package tasks

import (
	"bytes"
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/acctsync/internal/models"
	"github.com/desertthunder/acctsync/internal/shared"
	tu "github.com/desertthunder/acctsync/internal/testing"
	"github.com/desertthunder/acctsync/internal/throttle"
	"github.com/shopspring/decimal"
)

var syncStart = time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

func teamReport(team string, n int) models.TeamReport {
	report := models.TeamReport{Team: team}
	for i := range n {
		date := accountCreated.AddDate(0, 0, -i)
		row := models.EnrichedRow{
			Identity:  models.Identity{AccountUID: team + "-" + string(rune('a'+i)), ProviderUUID: "M1", TeamName: team},
			Team:      team,
			DisplayID: "cid",
			Provider:  "Main MCC",
			Email:     "ops@example.com",
			Date:      &date,
			Balance:   decimal.NewNullDecimal(decimal.NewFromInt(500)),
			Spend:     decimal.NewNullDecimal(decimal.NewFromInt(int64(10 * (i + 1)))),
			Status:    models.StatusActive,
		}
		if i%2 == 1 {
			row.Refund = decimal.NewNullDecimal(decimal.NewFromInt(5))
		}
		report.Rows = append(report.Rows, row)
	}
	return report
}

func newTestSync(dest *tu.FakeDestination, clock throttle.Clock) *SheetSync {
	return NewSheetSync(dest, throttle.New(1, 0, clock), clock, 1000, 10, quietLogger())
}

func TestBuildRequests(t *testing.T) {
	report := teamReport("Alpha", 2)
	report.Rows[0].Date = nil
	requests := BuildRequests(7, report, syncStart)

	if len(requests) != 4+len(report.Rows) {
		t.Fatalf("expected %d requests, got %d", 4+len(report.Rows), len(requests))
	}

	meta := requests[0].UpdateCells
	if meta == nil || meta.Start.SheetId != 7 || meta.Start.RowIndex != 0 {
		t.Fatalf("expected metadata block at A1, got %+v", requests[0])
	}
	if got := *meta.Rows[0].Values[1].UserEnteredValue.StringValue; got != "2024-03-15 08:00" {
		t.Errorf("expected updated timestamp, got %q", got)
	}
	if got := *meta.Rows[1].Values[1].UserEnteredValue.FormulaValue; got != "=SUM(F6:F)" {
		t.Errorf("unexpected spend formula %q", got)
	}
	if got := *meta.Rows[2].Values[1].UserEnteredValue.FormulaValue; got != "=SUMPRODUCT((MONTH(C6:C)=MONTH(TODAY()))*(YEAR(C6:C)=YEAR(TODAY())))" {
		t.Errorf("unexpected accounts formula %q", got)
	}

	table := requests[1].UpdateCells
	if table.Start.RowIndex != 4 || len(table.Rows) != 3 {
		t.Fatalf("expected header and 2 rows from A5, got start %d with %d rows", table.Start.RowIndex, len(table.Rows))
	}
	for i, col := range models.ReportColumns {
		if got := *table.Rows[0].Values[i].UserEnteredValue.StringValue; got != col {
			t.Errorf("header column %d = %q, want %q", i, got, col)
		}
	}

	if cell := table.Rows[1].Values[2]; cell.UserEnteredValue != nil {
		t.Errorf("expected empty date cell for missing date, got %+v", cell.UserEnteredValue)
	}
	dated := table.Rows[2].Values[2]
	if dated.UserEnteredValue == nil || *dated.UserEnteredValue.NumberValue != 45300 {
		t.Errorf("expected serial 45300 for 2024-01-09, got %+v", dated.UserEnteredValue)
	}
	if dated.UserEnteredFormat.NumberFormat.Type != "DATE" {
		t.Errorf("expected DATE number format, got %+v", dated.UserEnteredFormat.NumberFormat)
	}
	if cell := table.Rows[1].Values[6]; cell.UserEnteredValue != nil {
		t.Errorf("expected empty refund cell, got %+v", cell.UserEnteredValue)
	}

	if bold := requests[2].RepeatCell; bold == nil || !bold.Cell.UserEnteredFormat.TextFormat.Bold {
		t.Errorf("expected bold header request, got %+v", requests[2])
	}

	borders := requests[3].UpdateBorders
	if borders == nil || borders.Range.StartRowIndex != 4 || borders.Range.EndRowIndex != 7 || borders.Range.EndColumnIndex != 8 {
		t.Errorf("expected border over the full table, got %+v", requests[3])
	}
	if borders.InnerHorizontal.Style != "SOLID" || borders.Top.Width != 1 {
		t.Errorf("expected solid width-1 borders, got %+v", borders.Top)
	}

	if bg := requests[4].RepeatCell.Cell.UserEnteredFormat.BackgroundColor; bg.Green != 1 {
		t.Errorf("expected neutral background for unflagged row, got %+v", bg)
	}
	if bg := requests[5].RepeatCell.Cell.UserEnteredFormat.BackgroundColor; bg.Green != 0.8 {
		t.Errorf("expected flagged background for refunded row, got %+v", bg)
	}
}

func TestSheetSync(t *testing.T) {
	ctx := context.Background()

	t.Run("writes header rows and formatting", func(t *testing.T) {
		dest := tu.NewFakeDestination()
		sync := newTestSync(dest, tu.NewFakeClock(syncStart))

		result, err := sync.Sync(ctx, []models.TeamReport{teamReport("Alpha", 2)}, nil)
		if err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if !slices.Equal(result.Synced, []string{"Alpha"}) {
			t.Errorf("expected Alpha synced, got %v", result.Synced)
		}

		if got := dest.Cell("Alpha", 0, 1).Value; got != "2024-03-15 08:00" {
			t.Errorf("expected timestamp at B1, got %q", got)
		}
		header := dest.Cell("Alpha", 4, 0)
		if header.Value != "ID" || !header.Bold || !header.Bordered {
			t.Errorf("expected bold bordered ID header, got %+v", header)
		}
		if got := dest.Cell("Alpha", 5, 5).Value; got != "10" {
			t.Errorf("expected spend 10 in first row, got %q", got)
		}
		if got := dest.Cell("Alpha", 5, 0).Background; got != "1.00,1.00,1.00" {
			t.Errorf("expected neutral first row, got %q", got)
		}
		if got := dest.Cell("Alpha", 6, 7).Background; got != "1.00,0.80,0.80" {
			t.Errorf("expected flagged refunded row, got %q", got)
		}
		if dest.Cell("Alpha", 7, 0).Bordered {
			t.Error("border should stop at the last row")
		}
	})

	t.Run("null spend stays an empty cell", func(t *testing.T) {
		dest := tu.NewFakeDestination()
		report := teamReport("Alpha", 1)
		report.Rows[0].Spend = decimal.NullDecimal{}

		if _, err := newTestSync(dest, tu.NewFakeClock(syncStart)).Sync(ctx, []models.TeamReport{report}, nil); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if got := dest.Cell("Alpha", 5, 0).Value; got != "cid" {
			t.Fatalf("expected the row to be written, got id %q", got)
		}
		if got := dest.Cell("Alpha", 5, 5).Value; got != "" {
			t.Errorf("expected empty spend cell, got %q", got)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		dest := tu.NewFakeDestination()
		clock := tu.NewFakeClock(syncStart)
		sync := newTestSync(dest, clock)
		reports := []models.TeamReport{teamReport("Alpha", 3), teamReport("Beta", 1)}

		if _, err := sync.Sync(ctx, reports, nil); err != nil {
			t.Fatalf("first sync failed: %v", err)
		}
		first := dest.SnapshotIgnoring("Alpha", [2]int64{0, 1})

		clock.Advance(time.Hour)
		if _, err := sync.Sync(ctx, reports, nil); err != nil {
			t.Fatalf("second sync failed: %v", err)
		}
		second := dest.SnapshotIgnoring("Alpha", [2]int64{0, 1})

		if !maps.Equal(first, second) {
			t.Errorf("destination changed between identical syncs:\nfirst:  %v\nsecond: %v", first, second)
		}
		if dest.CreateCalls != 2 {
			t.Errorf("expected tabs to be created once, got %d create calls", dest.CreateCalls)
		}
	})

	t.Run("shorter report clears stale rows", func(t *testing.T) {
		dest := tu.NewFakeDestination()
		sync := newTestSync(dest, tu.NewFakeClock(syncStart))

		if _, err := sync.Sync(ctx, []models.TeamReport{teamReport("Alpha", 4)}, nil); err != nil {
			t.Fatalf("first sync failed: %v", err)
		}
		if _, err := sync.Sync(ctx, []models.TeamReport{teamReport("Alpha", 1)}, nil); err != nil {
			t.Fatalf("second sync failed: %v", err)
		}

		for row := int64(6); row < 9; row++ {
			for col := int64(0); col < 8; col++ {
				if cell := dest.Cell("Alpha", row, col); cell != (tu.FakeCell{}) {
					t.Fatalf("expected stale cell %d:%d to be cleared, got %+v", row, col, cell)
				}
			}
		}

		fresh := tu.NewFakeDestination()
		if _, err := newTestSync(fresh, tu.NewFakeClock(syncStart)).Sync(ctx, []models.TeamReport{teamReport("Alpha", 1)}, nil); err != nil {
			t.Fatalf("fresh sync failed: %v", err)
		}
		if !maps.Equal(dest.Snapshot("Alpha"), fresh.Snapshot("Alpha")) {
			t.Error("expected a reused tab to match a freshly written one")
		}
	})

	t.Run("report longer than the clear region", func(t *testing.T) {
		dest := tu.NewFakeDestination()
		clock := tu.NewFakeClock(syncStart)
		var logs bytes.Buffer
		sync := NewSheetSync(dest, throttle.New(1, 0, clock), clock, 6, 10, shared.NewLogger(&logs))

		result, err := sync.Sync(ctx, []models.TeamReport{teamReport("Alpha", 4)}, nil)
		if err != nil || len(result.Synced) != 1 {
			t.Fatalf("expected Alpha synced, got %+v (%v)", result, err)
		}
		if dest.ClearedRows != 9 {
			t.Errorf("expected clear to cover all 9 rows, got %d", dest.ClearedRows)
		}
		if !strings.Contains(logs.String(), "report exceeds clear region") {
			t.Errorf("expected a warning, got %q", logs.String())
		}

		logs.Reset()
		if _, err := sync.Sync(ctx, []models.TeamReport{teamReport("Alpha", 1)}, nil); err != nil {
			t.Fatalf("second sync failed: %v", err)
		}
		if dest.ClearedRows != 6 {
			t.Errorf("expected configured region for a fitting report, got %d rows", dest.ClearedRows)
		}
		if strings.Contains(logs.String(), "exceeds") {
			t.Errorf("expected no warning for a fitting report, got %q", logs.String())
		}
	})

	t.Run("existing tabs are reused", func(t *testing.T) {
		dest := tu.NewFakeDestination("Alpha")
		sync := newTestSync(dest, tu.NewFakeClock(syncStart))

		reports := []models.TeamReport{teamReport("Alpha", 1), teamReport("Beta", 1)}
		if _, err := sync.Sync(ctx, reports, nil); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if dest.TabsCalls != 1 || dest.CreateCalls != 1 {
			t.Errorf("expected 1 listing and 1 creation, got %d and %d", dest.TabsCalls, dest.CreateCalls)
		}
		if _, ok := dest.TabID("Beta"); !ok {
			t.Error("expected Beta tab to be created")
		}
	})

	t.Run("failed team does not block the rest", func(t *testing.T) {
		dest := tu.NewFakeDestination()
		dest.FailTabs["Beta"] = errors.New("quota exceeded")
		sync := newTestSync(dest, tu.NewFakeClock(syncStart))
		progress := make(chan ProgressUpdate, 10)

		reports := []models.TeamReport{teamReport("Alpha", 1), teamReport("Beta", 1), teamReport("Gamma", 1)}
		result, err := sync.Sync(ctx, reports, progress)
		if err != nil {
			t.Fatalf("Sync failed: %v", err)
		}

		if !slices.Equal(result.Synced, []string{"Alpha", "Gamma"}) {
			t.Errorf("expected Alpha and Gamma synced, got %v", result.Synced)
		}
		if err := result.Failed["Beta"]; !errors.Is(err, shared.ErrSyncWrite) {
			t.Errorf("expected Beta to fail with ErrSyncWrite, got %v", err)
		}
		if got := dest.Cell("Gamma", 4, 0).Value; got != "ID" {
			t.Errorf("expected Gamma to be written after Beta failed, got %q", got)
		}
		if len(progress) != 3 {
			t.Errorf("expected a progress update per team, got %d", len(progress))
		}
	})

	t.Run("listing failure", func(t *testing.T) {
		dest := tu.NewFakeDestination()
		dest.TabsErr = errors.New("permission denied")
		sync := newTestSync(dest, tu.NewFakeClock(syncStart))

		_, err := sync.Sync(ctx, []models.TeamReport{teamReport("Alpha", 1)}, nil)
		if !errors.Is(err, shared.ErrSyncWrite) {
			t.Errorf("expected ErrSyncWrite, got %v", err)
		}
		if dest.ClearCalls != 0 || dest.BatchCalls != 0 {
			t.Error("expected no writes after listing failed")
		}
	})

	t.Run("every call is spaced", func(t *testing.T) {
		dest := tu.NewFakeDestination()
		clock := tu.NewFakeClock(syncStart)
		sync := NewSheetSync(dest, throttle.New(1, time.Second, clock), clock, 1000, 10, quietLogger())

		if _, err := sync.Sync(ctx, []models.TeamReport{teamReport("Alpha", 1), teamReport("Beta", 1)}, nil); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}

		calls := dest.TabsCalls + dest.CreateCalls + dest.ClearCalls + dest.BatchCalls
		sleeps := clock.Sleeps()
		if len(sleeps) != calls-1 {
			t.Fatalf("expected %d waits for %d calls, got %d", calls-1, calls, len(sleeps))
		}
		for _, d := range sleeps {
			if d < time.Second {
				t.Errorf("expected waits of at least 1s, got %v", d)
			}
		}
	})

	t.Run("no reports", func(t *testing.T) {
		dest := tu.NewFakeDestination()
		result, err := newTestSync(dest, nil).Sync(ctx, nil, nil)
		if err != nil || len(result.Synced) != 0 {
			t.Errorf("expected empty result, got %+v, %v", result, err)
		}
		if dest.TabsCalls != 0 {
			t.Error("expected no destination calls")
		}
	})
}
