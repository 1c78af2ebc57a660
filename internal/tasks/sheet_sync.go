package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/acctsync/internal/models"
	"github.com/desertthunder/acctsync/internal/services"
	"github.com/desertthunder/acctsync/internal/shared"
	"github.com/desertthunder/acctsync/internal/throttle"
	"github.com/shopspring/decimal"
	"google.golang.org/api/sheets/v4"
)

// Layout of a team tab. Rows and columns are zero-based.
const (
	headerRow int64 = 4
	firstRow  int64 = headerRow + 1
	tableCols int64 = 8
)

const (
	updatedFmt  = "2006-01-02 15:04"
	datePattern = "yyyy-mm-dd"
)

var (
	flaggedColor = &sheets.Color{Red: 1, Green: 0.8, Blue: 0.8}
	neutralColor = &sheets.Color{Red: 1, Green: 1, Blue: 1}
	sheetsEpoch  = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
)

// SyncResult lists which team tabs were written and why the others were not.
type SyncResult struct {
	Synced []string
	Failed map[string]error
}

// SheetSync writes team reports to a spreadsheet with clear-then-write semantics, so running it
// twice with the same reports leaves the destination unchanged.
type SheetSync struct {
	dest      services.Destination
	limiter   *throttle.Limiter
	clock     throttle.Clock
	clearRows int64
	clearCols int64
	logger    *log.Logger
}

// NewSheetSync creates a SheetSync. Every destination call goes through limiter. clearRows should
// exceed the longest expected report; a report that does not fit grows the region for its own
// write and logs a warning, since rows it leaves past clearRows survive later, shorter runs.
func NewSheetSync(dest services.Destination, limiter *throttle.Limiter, clock throttle.Clock, clearRows, clearCols int64, logger *log.Logger) *SheetSync {
	if clock == nil {
		clock = throttle.RealClock{}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SheetSync{
		dest:      dest,
		limiter:   limiter,
		clock:     clock,
		clearRows: clearRows,
		clearCols: clearCols,
		logger:    logger,
	}
}

// Sync writes each report to the tab named after its team.
//
// A team that fails is logged, recorded in the result and skipped. The returned error is
// non-nil only when the existing tabs cannot be listed or ctx is cancelled.
func (s *SheetSync) Sync(ctx context.Context, reports []models.TeamReport, progress chan<- ProgressUpdate) (*SyncResult, error) {
	result := &SyncResult{Failed: make(map[string]error)}
	if len(reports) == 0 {
		return result, nil
	}

	var tabs map[string]int64
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		tabs, err = s.dest.Tabs(ctx)
		return err
	})
	if err != nil {
		return result, fmt.Errorf("%w: listing tabs: %w", shared.ErrSyncWrite, err)
	}

	updatedAt := s.clock.Now()
	for i, report := range reports {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		err := s.syncTeam(ctx, tabs, report, updatedAt)
		if err != nil {
			s.logger.Error("team sync failed", "team", report.Team, "rows", len(report.Rows), "error", err)
			result.Failed[report.Team] = err
		} else {
			s.logger.Info("team synced", "team", report.Team, "rows", len(report.Rows))
			result.Synced = append(result.Synced, report.Team)
		}
		sendProgress(progress, syncUpdate(i+1, len(reports), report, err))
	}

	return result, nil
}

// syncTeam resolves the tab, clears it, then writes values and formatting in one batch.
// Tabs created here are added to tabs.
func (s *SheetSync) syncTeam(ctx context.Context, tabs map[string]int64, report models.TeamReport, updatedAt time.Time) error {
	tabID, ok := tabs[report.Team]
	if !ok {
		err := s.limiter.Do(ctx, func(ctx context.Context) error {
			var err error
			tabID, err = s.dest.CreateTab(ctx, report.Team)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: creating tab: %w", shared.ErrSyncWrite, err)
		}
		tabs[report.Team] = tabID
		s.logger.Debug("created tab", "team", report.Team, "id", tabID)
	}

	rows := s.clearRows
	if need := firstRow + int64(len(report.Rows)); need > rows {
		s.logger.Warn("report exceeds clear region", "team", report.Team, "rows", need, "clear_rows", s.clearRows)
		rows = need
	}

	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		return s.dest.ClearRange(ctx, tabID, rows, s.clearCols)
	})
	if err != nil {
		return fmt.Errorf("%w: clearing tab: %w", shared.ErrSyncWrite, err)
	}

	requests := BuildRequests(tabID, report, updatedAt)
	err = s.limiter.Do(ctx, func(ctx context.Context) error {
		return s.dest.BatchUpdate(ctx, requests)
	})
	if err != nil {
		return fmt.Errorf("%w: writing tab: %w", shared.ErrSyncWrite, err)
	}
	return nil
}

// BuildRequests returns the batch that writes a team report into an already cleared tab:
// the metadata block at A1, the header at A5 followed by one row per entry, then formatting.
func BuildRequests(tabID int64, report models.TeamReport, updatedAt time.Time) []*sheets.Request {
	lastRow := firstRow + int64(len(report.Rows))

	metadata := []*sheets.RowData{
		{Values: []*sheets.CellData{stringCell("Updated:"), stringCell(updatedAt.Format(updatedFmt))}},
		{Values: []*sheets.CellData{stringCell("Spend:"), formulaCell(fmt.Sprintf("=SUM(F%d:F)", firstRow+1))}},
		{Values: []*sheets.CellData{
			stringCell("Accounts:"),
			formulaCell(fmt.Sprintf("=SUMPRODUCT((MONTH(C%[1]d:C)=MONTH(TODAY()))*(YEAR(C%[1]d:C)=YEAR(TODAY())))", firstRow+1)),
		}},
	}

	table := make([]*sheets.RowData, 0, len(report.Rows)+1)
	header := make([]*sheets.CellData, len(models.ReportColumns))
	for i, col := range models.ReportColumns {
		header[i] = stringCell(col)
	}
	table = append(table, &sheets.RowData{Values: header})
	for _, row := range report.Rows {
		table = append(table, &sheets.RowData{Values: rowCells(row)})
	}

	requests := []*sheets.Request{
		{UpdateCells: &sheets.UpdateCellsRequest{
			Start:  &sheets.GridCoordinate{SheetId: tabID},
			Rows:   metadata,
			Fields: "userEnteredValue",
		}},
		{UpdateCells: &sheets.UpdateCellsRequest{
			Start:  &sheets.GridCoordinate{SheetId: tabID, RowIndex: headerRow},
			Rows:   table,
			Fields: "userEnteredValue,userEnteredFormat.numberFormat",
		}},
		{RepeatCell: &sheets.RepeatCellRequest{
			Range: gridRange(tabID, headerRow, firstRow),
			Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
				TextFormat: &sheets.TextFormat{Bold: true},
			}},
			Fields: "userEnteredFormat.textFormat.bold",
		}},
		{UpdateBorders: &sheets.UpdateBordersRequest{
			Range:           gridRange(tabID, headerRow, lastRow),
			Top:             solidBorder(),
			Bottom:          solidBorder(),
			Left:            solidBorder(),
			Right:           solidBorder(),
			InnerHorizontal: solidBorder(),
			InnerVertical:   solidBorder(),
		}},
	}

	for i, row := range report.Rows {
		color := neutralColor
		if row.Flagged() {
			color = flaggedColor
		}
		r := firstRow + int64(i)
		requests = append(requests, &sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
			Range:  gridRange(tabID, r, r+1),
			Cell:   &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{BackgroundColor: color}},
			Fields: "userEnteredFormat.backgroundColor",
		}})
	}

	return requests
}

// rowCells projects a row onto the report columns. Missing values become empty cells.
func rowCells(row models.EnrichedRow) []*sheets.CellData {
	return []*sheets.CellData{
		stringCell(row.DisplayID),
		stringCell(row.Provider),
		dateCell(row.Date),
		stringCell(row.Email),
		nullDecimalCell(row.Balance),
		nullDecimalCell(row.Spend),
		nullDecimalCell(row.Refund),
		stringCell(string(row.Status)),
	}
}

func stringCell(s string) *sheets.CellData {
	return &sheets.CellData{UserEnteredValue: &sheets.ExtendedValue{StringValue: &s}}
}

func formulaCell(f string) *sheets.CellData {
	return &sheets.CellData{UserEnteredValue: &sheets.ExtendedValue{FormulaValue: &f}}
}

func numberCell(d decimal.Decimal) *sheets.CellData {
	v := d.InexactFloat64()
	return &sheets.CellData{UserEnteredValue: &sheets.ExtendedValue{NumberValue: &v}}
}

func nullDecimalCell(d decimal.NullDecimal) *sheets.CellData {
	if !d.Valid {
		return &sheets.CellData{}
	}
	return numberCell(d.Decimal)
}

// dateCell writes a date as a spreadsheet serial number so the formulas can compare it.
func dateCell(t *time.Time) *sheets.CellData {
	if t == nil {
		return &sheets.CellData{}
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	serial := day.Sub(sheetsEpoch).Hours() / 24
	return &sheets.CellData{
		UserEnteredValue:  &sheets.ExtendedValue{NumberValue: &serial},
		UserEnteredFormat: &sheets.CellFormat{NumberFormat: &sheets.NumberFormat{Type: "DATE", Pattern: datePattern}},
	}
}

func gridRange(tabID, startRow, endRow int64) *sheets.GridRange {
	return &sheets.GridRange{
		SheetId:          tabID,
		StartRowIndex:    startRow,
		EndRowIndex:      endRow,
		StartColumnIndex: 0,
		EndColumnIndex:   tableCols,
		ForceSendFields:  []string{"SheetId", "StartColumnIndex"},
	}
}

func solidBorder() *sheets.Border {
	return &sheets.Border{Style: "SOLID", Width: 1}
}
