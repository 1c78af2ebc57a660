package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/acctsync/internal/models"
	"github.com/desertthunder/acctsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConfirmView ViewState = iota
	RunView
	ResultView
)

const (
	phaseCount = 7
	logSize    = 6
)

// RunFunc starts a pipeline run that reports through progress.
//
// Both [tasks.ReconcileEngine.Run] and [tasks.ReconcileEngine.Replay] fit once their options are bound.
type RunFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	title        string
	run          RunFunc
	view         ViewState
	width        int
	height       int
	spinner      spinner.Model
	bar          progress.Model
	progressChan chan tasks.ProgressUpdate
	done         chan runComplete
	progress     tasks.ProgressUpdate
	recent       []string
	result       *tasks.RunResult
	err          error
	teamList     list.Model
	dropList     list.Model
	showDrops    bool
	help         help.Model
	keys         keyMap
}

// NewModel creates a run monitor that asks for confirmation before calling run.
func NewModel(ctx context.Context, title string, run RunFunc) *Model {
	return &Model{
		ctx:     ctx,
		title:   title,
		run:     run,
		view:    ConfirmView,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.ok)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init implements [tea.Model]. Nothing runs until the user confirms.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case RunView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != RunView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.record(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgRunComplete:
			complete := msg.data.(runComplete)
			m.finish(complete.result, complete.err)
			return m, nil
		}
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no):
		return m, tea.Quit
	case key.Matches(msg, m.keys.yes):
		return m, m.startRun()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = ConfirmView
		return m, nil
	case key.Matches(msg, m.keys.tab):
		m.showDrops = !m.showDrops
		return m, nil
	}

	var cmd tea.Cmd
	if m.showDrops {
		m.dropList, cmd = m.dropList.Update(msg)
	} else {
		m.teamList, cmd = m.teamList.Update(msg)
	}
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != ResultView {
		return m, nil
	}
	var cmd tea.Cmd
	if m.showDrops {
		m.dropList, cmd = m.dropList.Update(msg)
	} else {
		m.teamList, cmd = m.teamList.Update(msg)
	}
	return m, cmd
}

func (m *Model) startRun() tea.Cmd {
	m.view = RunView
	m.progress = tasks.ProgressUpdate{}
	m.recent = nil
	m.result = nil
	m.err = nil
	m.showDrops = false

	progressChan := make(chan tasks.ProgressUpdate, 50)
	done := make(chan runComplete, 1)
	m.progressChan = progressChan
	m.done = done

	go func() {
		result, err := m.run(m.ctx, progressChan)
		done <- runComplete{result, err}
		close(progressChan)
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, done := m.progressChan, m.done
	return func() tea.Msg {
		update, ok := <-progressChan
		if !ok {
			complete := <-done
			return runCompleteMsg(complete.result, complete.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) record(update tasks.ProgressUpdate) {
	m.progress = update
	if update.Message == "" {
		return
	}
	m.recent = append(m.recent, fmt.Sprintf("[%s] %s", update.Phase, update.Message))
	if len(m.recent) > logSize {
		m.recent = m.recent[len(m.recent)-logSize:]
	}
}

// Err returns the error of the last completed run, or nil when it succeeded or never ran.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) finish(result *tasks.RunResult, err error) {
	m.view = ResultView
	m.result = result
	m.err = err
	m.progressChan = nil
	m.done = nil
	if result == nil {
		return
	}

	var failed map[string]error
	if result.Sync != nil {
		failed = result.Sync.Failed
	}
	teams := make([]list.Item, len(result.Reports))
	for i, report := range result.Reports {
		teams[i] = teamItem{report: report, err: failed[report.Team]}
	}
	drops := make([]list.Item, len(result.Drops))
	for i, drop := range result.Drops {
		drops[i] = dropItem{drop: drop}
	}

	m.teamList = list.New(teams, list.NewDefaultDelegate(), 0, 0)
	m.teamList.Title = "Teams"
	m.teamList.SetShowHelp(false)
	m.dropList = list.New(drops, list.NewDefaultDelegate(), 0, 0)
	m.dropList.Title = "Dropped identities"
	m.dropList.SetShowHelp(false)
	m.resizeLists()
}

func (m *Model) resizeLists() {
	if m.result == nil {
		return
	}
	w, h := max(m.width-4, 20), max(m.height-14, 8)
	m.teamList.SetSize(w, h)
	m.dropList.SetSize(w, h)
}

// percent is the overall completion across every phase.
func (m *Model) percent() float64 {
	p := m.progress
	within := 0.0
	if p.Total > 0 {
		within = float64(p.Step) / float64(p.Total)
	}
	return min((float64(p.Phase)+within)/phaseCount, 1)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(m.title)
	info := "Reads the ledger, enriches every account and overwrites the matching spreadsheet tabs.\n"
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderRun() string {
	title := styles.title.Render(m.title)

	phase := m.progress.Phase.String()
	if m.progress.Total > 1 {
		phase = fmt.Sprintf("%s (%d/%d)", phase, m.progress.Step, m.progress.Total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s %s\n\n%s\n\n", title, m.spinner.View(), phase, m.bar.ViewAs(m.percent()))
	for _, line := range m.recent {
		b.WriteString(styles.help.Render(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.tab, m.keys.restart, m.keys.quit})

	if m.result == nil || m.result.Run == nil {
		msg := "Run failed"
		if m.err != nil {
			msg = fmt.Sprintf("Run failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	run := m.result.Run
	var title string
	switch run.Status {
	case models.RunCompleted:
		title = styles.ok.Render("✓ Run complete")
	case models.RunPartial:
		title = styles.warn.Render("! Run partially complete")
	default:
		title = styles.err.Render(fmt.Sprintf("✗ Run failed: %s", run.ErrorMessage))
	}

	info := fmt.Sprintf(
		"Mode: %s  Identities: %d  Rows: %d  Dropped: %d\nTeams synced: %d  Teams failed: %d  Duration: %s",
		run.Mode, run.Identities, run.RowsEnriched, run.RowsDropped,
		run.TeamsSynced, run.TeamsFailed, run.Duration().Round(time.Millisecond),
	)
	if m.result.SnapshotPath != "" {
		info += "\nSnapshot: " + m.result.SnapshotPath
	}

	body := m.teamList.View()
	if m.showDrops {
		body = m.dropList.View()
	}
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, info, body, helpView)
}
