package testing

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"google.golang.org/api/sheets/v4"
)

// FakeCell is the observable state of one destination cell
type FakeCell struct {
	Value      string
	Bold       bool
	Background string
	Bordered   bool
}

type cellKey struct{ row, col int64 }

// FakeDestination is an in-memory spreadsheet that applies clear, value, format and border requests
// the way the Sheets API does, so sync results can be compared across runs.
type FakeDestination struct {
	mu     sync.Mutex
	nextID int64
	titles map[string]int64
	grids  map[int64]map[cellKey]FakeCell

	// FailTabs makes ClearRange and BatchUpdate fail for the named tabs
	FailTabs map[string]error
	// TabsErr makes Tabs fail
	TabsErr error

	TabsCalls   int
	CreateCalls int
	ClearCalls  int
	BatchCalls  int
	// ClearedRows is the row count of the most recent ClearRange
	ClearedRows int64
}

func NewFakeDestination(existing ...string) *FakeDestination {
	d := &FakeDestination{
		nextID:   1,
		titles:   map[string]int64{},
		grids:    map[int64]map[cellKey]FakeCell{},
		FailTabs: map[string]error{},
	}
	for _, title := range existing {
		d.addTab(title)
	}
	return d
}

func (d *FakeDestination) addTab(title string) int64 {
	id := d.nextID
	d.nextID++
	d.titles[title] = id
	d.grids[id] = map[cellKey]FakeCell{}
	return id
}

func (d *FakeDestination) titleOf(id int64) string {
	for title, tid := range d.titles {
		if tid == id {
			return title
		}
	}
	return ""
}

func (d *FakeDestination) Tabs(ctx context.Context) (map[string]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.TabsCalls++
	if d.TabsErr != nil {
		return nil, d.TabsErr
	}

	tabs := make(map[string]int64, len(d.titles))
	for k, v := range d.titles {
		tabs[k] = v
	}
	return tabs, nil
}

func (d *FakeDestination) CreateTab(ctx context.Context, title string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.CreateCalls++
	if _, ok := d.titles[title]; ok {
		return 0, fmt.Errorf("a sheet with the name %q already exists", title)
	}
	return d.addTab(title), nil
}

func (d *FakeDestination) ClearRange(ctx context.Context, tabID, rows, cols int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ClearCalls++
	d.ClearedRows = rows
	if err := d.FailTabs[d.titleOf(tabID)]; err != nil {
		return err
	}

	grid, ok := d.grids[tabID]
	if !ok {
		return fmt.Errorf("no tab with id %d", tabID)
	}
	for k := range grid {
		if k.row < rows && k.col < cols {
			delete(grid, k)
		}
	}
	return nil
}

func (d *FakeDestination) BatchUpdate(ctx context.Context, requests []*sheets.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.BatchCalls++
	for _, req := range requests {
		if err := d.apply(req); err != nil {
			return err
		}
	}
	return nil
}

func (d *FakeDestination) grid(id int64) (map[cellKey]FakeCell, error) {
	if err := d.FailTabs[d.titleOf(id)]; err != nil {
		return nil, err
	}
	grid, ok := d.grids[id]
	if !ok {
		return nil, fmt.Errorf("no tab with id %d", id)
	}
	return grid, nil
}

func (d *FakeDestination) apply(req *sheets.Request) error {
	switch {
	case req.UpdateCells != nil:
		uc := req.UpdateCells
		grid, err := d.grid(uc.Start.SheetId)
		if err != nil {
			return err
		}
		for r, row := range uc.Rows {
			for c, cell := range row.Values {
				k := cellKey{uc.Start.RowIndex + int64(r), uc.Start.ColumnIndex + int64(c)}
				fc := grid[k]
				fc.Value = cellValue(cell)
				grid[k] = fc
			}
		}
	case req.RepeatCell != nil:
		rc := req.RepeatCell
		grid, err := d.grid(rc.Range.SheetId)
		if err != nil {
			return err
		}
		eachCell(rc.Range, func(k cellKey) {
			fc := grid[k]
			if f := rc.Cell.UserEnteredFormat; f != nil {
				if f.TextFormat != nil {
					fc.Bold = f.TextFormat.Bold
				}
				if f.BackgroundColor != nil {
					fc.Background = colorKey(f.BackgroundColor)
				}
			}
			grid[k] = fc
		})
	case req.UpdateBorders != nil:
		ub := req.UpdateBorders
		grid, err := d.grid(ub.Range.SheetId)
		if err != nil {
			return err
		}
		eachCell(ub.Range, func(k cellKey) {
			fc := grid[k]
			fc.Bordered = true
			grid[k] = fc
		})
	default:
		return fmt.Errorf("unsupported request")
	}
	return nil
}

func eachCell(r *sheets.GridRange, fn func(cellKey)) {
	for row := r.StartRowIndex; row < r.EndRowIndex; row++ {
		for col := r.StartColumnIndex; col < r.EndColumnIndex; col++ {
			fn(cellKey{row, col})
		}
	}
}

func cellValue(c *sheets.CellData) string {
	if c == nil || c.UserEnteredValue == nil {
		return ""
	}
	v := c.UserEnteredValue
	switch {
	case v.FormulaValue != nil:
		return *v.FormulaValue
	case v.StringValue != nil:
		return *v.StringValue
	case v.NumberValue != nil:
		return strconv.FormatFloat(*v.NumberValue, 'f', -1, 64)
	case v.BoolValue != nil:
		return strconv.FormatBool(*v.BoolValue)
	}
	return ""
}

func colorKey(c *sheets.Color) string {
	return fmt.Sprintf("%.2f,%.2f,%.2f", c.Red, c.Green, c.Blue)
}

// TabID returns the id of a tab and whether it exists
func (d *FakeDestination) TabID(title string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.titles[title]
	return id, ok
}

// Cell returns the state of a cell in the named tab
func (d *FakeDestination) Cell(title string, row, col int64) FakeCell {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.grids[d.titles[title]][cellKey{row, col}]
}

// Snapshot returns a copy of every non-empty cell in the named tab, keyed by "row:col"
func (d *FakeDestination) Snapshot(title string) map[string]FakeCell {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := map[string]FakeCell{}
	for k, v := range d.grids[d.titles[title]] {
		if v == (FakeCell{}) {
			continue
		}
		out[fmt.Sprintf("%d:%d", k.row, k.col)] = v
	}
	return out
}

// SnapshotIgnoring is Snapshot with the given cells left out, for values such as timestamps that change every run
func (d *FakeDestination) SnapshotIgnoring(title string, cells ...[2]int64) map[string]FakeCell {
	out := d.Snapshot(title)
	for _, c := range cells {
		delete(out, fmt.Sprintf("%d:%d", c[0], c[1]))
	}
	return out
}
