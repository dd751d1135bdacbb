// internal/tui/app.go
//
// The status board for keywork. It follows The Elm Architecture through
// bubbletea:
//
// 1. Model: the last snapshot of goals, attention items and activity
// 2. Update: snapshot, tick, filesystem and key messages
// 3. View: a goals table, the attention list and the activity tail
//
// The board is read-only. Every refresh re-reads disk; nothing is cached
// between snapshots.

package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kingrea/keywork/internal/attention"
	"github.com/kingrea/keywork/internal/config"
	"github.com/kingrea/keywork/internal/goals"
	"github.com/kingrea/keywork/internal/ledger"
	"github.com/kingrea/keywork/internal/logbook"
)

const (
	boardRefreshInterval = 3 * time.Second
	activityPanelLines   = 8
)

type boardFocus int

const (
	focusGoals boardFocus = iota
	focusAttention
)

// snapshotMsg carries one fresh read of the workspace.
type snapshotMsg struct {
	goals    []goals.Goal
	items    []attention.Item
	activity []string
	total    int
	at       time.Time
}

type tickMsg time.Time

// fsEventMsg reports a change (or a watcher error) under the goals root.
type fsEventMsg struct {
	Name string
	err  error
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) AppOption {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the time source used for the "refreshed" footer.
func WithClock(now func() time.Time) AppOption {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// WithoutWatcher disables the fsnotify trigger; the board then refreshes
// on the tick and on 'r' only.
func WithoutWatcher() AppOption {
	return func(a *App) { a.watch = false }
}

// App is the board model.
type App struct {
	config     *config.Config
	aggregator *attention.Aggregator
	activity   *logbook.Logbook
	logger     *zap.Logger
	now        func() time.Time

	watch   bool
	watcher *fsnotify.Watcher
	watched map[string]bool

	goalsTable    table.Model
	attentionList list.Model
	focus         boardFocus

	goals       []goals.Goal
	items       []attention.Item
	lines       []string
	totalLines  int
	refreshedAt time.Time
	statusMsg   string

	width  int
	height int
}

// attentionItem adapts attention.Item to the bubbles list.
type attentionItem struct {
	item attention.Item
}

func (i attentionItem) Title() string {
	return fmt.Sprintf("%s %s · %s", kindIcon(i.item.Kind), i.item.Goal, i.item.Title)
}

func (i attentionItem) Description() string {
	switch i.item.Kind {
	case attention.KindReview:
		return "review · " + i.item.TaskID
	case attention.KindQuestion:
		return "question · " + i.item.QuestionID
	default:
		return string(i.item.Kind)
	}
}

func (i attentionItem) FilterValue() string { return i.item.Goal + " " + i.item.Title }

// NewApp builds the board for the workspace described by cfg.
func NewApp(cfg *config.Config, opts ...AppOption) *App {
	goalsTable := table.New(
		table.WithColumns(goalColumns(100)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	attentionList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	attentionList.Title = "Attention"
	attentionList.SetShowStatusBar(false)
	attentionList.SetFilteringEnabled(false)
	attentionList.SetShowHelp(false)

	app := &App{
		config:        cfg,
		aggregator:    attention.New(attention.WithLedger(ledger.New(ledger.WithLookahead(cfg.Settings.ReviewLookahead)))),
		activity:      logbook.Open(cfg.ActivityLogPath()),
		logger:        zap.NewNop(),
		now:           time.Now,
		watch:         true,
		watched:       map[string]bool{},
		goalsTable:    goalsTable,
		attentionList: attentionList,
		focus:         focusGoals,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app
}

// Run starts the board on the terminal and blocks until the user quits.
func (a *App) Run() error {
	defer a.Close()
	_, err := tea.NewProgram(a, tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("tui: run: %w", err)
	}
	return nil
}

// Close releases the filesystem watcher.
func (a *App) Close() {
	if a.watcher == nil {
		return
	}
	if err := a.watcher.Close(); err != nil {
		a.logger.Debug("close watcher", zap.Error(err))
	}
	a.watcher = nil
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.fetchSnapshot(), scheduleTick()}
	if a.watch {
		if err := a.startWatcher(); err != nil {
			a.logger.Warn("file watcher unavailable", zap.Error(err))
		} else {
			cmds = append(cmds, a.waitForEvent())
		}
	}
	return tea.Batch(cmds...)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case snapshotMsg:
		a.applySnapshot(msg)
		return a, nil

	case tickMsg:
		return a, tea.Batch(a.fetchSnapshot(), scheduleTick())

	case fsEventMsg:
		if msg.err != nil {
			a.logger.Debug("watcher error", zap.Error(msg.err))
			return a, a.waitForEvent()
		}
		return a, tea.Batch(a.fetchSnapshot(), a.waitForEvent())

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "r":
			a.statusMsg = "Refreshing..."
			return a, a.fetchSnapshot()
		case "tab":
			a.toggleFocus()
			return a, nil
		}
	}

	var cmd tea.Cmd
	if a.focus == focusGoals {
		a.goalsTable, cmd = a.goalsTable.Update(msg)
	} else {
		a.attentionList, cmd = a.attentionList.Update(msg)
	}
	return a, cmd
}

func (a *App) toggleFocus() {
	if a.focus == focusGoals {
		a.focus = focusAttention
		a.goalsTable.Blur()
		return
	}
	a.focus = focusGoals
	a.goalsTable.Focus()
}

func (a *App) applySnapshot(msg snapshotMsg) {
	a.goals = msg.goals
	a.items = msg.items
	a.lines = msg.activity
	a.totalLines = msg.total
	a.refreshedAt = msg.at
	a.statusMsg = ""

	rows := make([]table.Row, 0, len(msg.goals))
	for _, g := range msg.goals {
		rows = append(rows, goalRow(g))
	}
	a.goalsTable.SetRows(rows)
	if cursor := a.goalsTable.Cursor(); cursor >= len(rows) && len(rows) > 0 {
		a.goalsTable.SetCursor(len(rows) - 1)
	}

	items := make([]list.Item, len(msg.items))
	for i, item := range msg.items {
		items[i] = attentionItem{item: item}
	}
	a.attentionList.SetItems(items)
	a.attentionList.Title = fmt.Sprintf("Attention (%d)", len(msg.items))

	if a.watcher != nil {
		a.watchGoalDirs(msg.goals)
	}
}

func (a *App) fetchSnapshot() tea.Cmd {
	return func() tea.Msg {
		return a.snapshot()
	}
}

func scheduleTick() tea.Cmd {
	return tea.Tick(boardRefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) snapshot() snapshotMsg {
	root := a.config.GoalsDir()
	lines, total := a.activity.Tail(activityPanelLines)
	return snapshotMsg{
		goals:    goals.LoadAll(root),
		items:    a.aggregator.Load(root),
		activity: lines,
		total:    total,
		at:       a.now(),
	}
}

func (a *App) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tui: create watcher: %w", err)
	}
	root := a.config.GoalsDir()
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("tui: watch %s: %w", root, err)
	}
	a.watcher = watcher
	a.watched[root] = true
	return nil
}

// watchGoalDirs adds goal directories that appeared since the last snapshot.
// fsnotify does not recurse, so each goal directory is watched on its own.
func (a *App) watchGoalDirs(current []goals.Goal) {
	for _, g := range current {
		if a.watched[g.Path] {
			continue
		}
		if err := a.watcher.Add(g.Path); err != nil {
			a.logger.Debug("watch goal", zap.String("path", g.Path), zap.Error(err))
			continue
		}
		a.watched[g.Path] = true
	}
}

func (a *App) waitForEvent() tea.Cmd {
	watcher := a.watcher
	if watcher == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			return fsEventMsg{Name: event.Name}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fsEventMsg{err: err}
		}
	}
}

func (a *App) resize() {
	width := a.width
	if width <= 0 {
		width = 100
	}
	leftWidth, rightWidth := splitWidth(width)
	a.goalsTable.SetColumns(goalColumns(leftWidth - 4))
	a.goalsTable.SetWidth(max(20, leftWidth-4))
	a.goalsTable.SetHeight(max(5, a.height-activityPanelLines-10))
	if rightWidth > 0 {
		a.attentionList.SetSize(max(20, rightWidth-4), max(5, a.height-activityPanelLines-8))
	}
}

// View renders the board.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	leftWidth, rightWidth := splitWidth(width)

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("⬡ KEYWORK")

	leftBox := panelStyle(a.focus == focusGoals).
		Width(max(20, leftWidth)).
		Render(a.renderGoalsPanel())
	body := leftBox
	if rightWidth > 0 {
		rightBox := panelStyle(a.focus == focusAttention).
			Width(max(20, rightWidth)).
			Render(a.renderAttentionPanel())
		body = lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)
	}

	sections := []string{header, body}
	if logPanel := a.renderActivityPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	sections = append(sections, a.renderFooter())
	return strings.Join(sections, "\n")
}

func (a *App) renderGoalsPanel() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("Goals (%d)", len(a.goals)))
	if len(a.goals) == 0 {
		note := lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Render("No active goals under " + a.config.GoalsDir())
		return lipgloss.JoinVertical(lipgloss.Left, title, note)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, a.goalsTable.View())
}

func (a *App) renderAttentionPanel() string {
	if len(a.items) == 0 {
		title := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF")).
			Render("Attention (0)")
		note := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("Nothing needs you right now.")
		return lipgloss.JoinVertical(lipgloss.Left, title, note)
	}
	return a.attentionList.View()
}

func (a *App) renderActivityPanel() string {
	if len(a.lines) == 0 {
		return ""
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("ACTIVITY · %s (%d lines)", filepath.Base(a.activity.Path()), a.totalLines))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(a.lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(head + "\n" + body)
}

func (a *App) renderFooter() string {
	summary := attention.Summary(a.items)
	parts := []string{
		fmt.Sprintf("%d review", summary[attention.KindReview]),
		fmt.Sprintf("%d question", summary[attention.KindQuestion]),
		fmt.Sprintf("%d paused", summary[attention.KindPaused]),
	}
	line := strings.Join(parts, " · ")
	if !a.refreshedAt.IsZero() {
		line += " · refreshed " + a.refreshedAt.Format("15:04:05")
	}
	if a.statusMsg != "" {
		line += " · " + a.statusMsg
	}
	line += "    r refresh · tab switch · q quit"
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(line)
}

func panelStyle(focused bool) lipgloss.Style {
	border := lipgloss.Color("#444444")
	if focused {
		border = lipgloss.Color("#5B8DEF")
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

func splitWidth(width int) (int, int) {
	rightWidth := max(32, width/3)
	leftWidth := width - rightWidth - 4
	if leftWidth < 40 {
		return width - 4, 0
	}
	return leftWidth, rightWidth
}

func goalColumns(width int) []table.Column {
	fixed := []table.Column{
		{Title: "Status", Width: 20},
		{Title: "Priority", Width: 8},
		{Title: "Progress", Width: 8},
		{Title: "Cost", Width: 8},
		{Title: "Repo", Width: 10},
	}
	used := 0
	for _, c := range fixed {
		used += c.Width + 2
	}
	return append([]table.Column{{Title: "Goal", Width: max(12, width-used-2)}}, fixed...)
}

func goalRow(g goals.Goal) table.Row {
	repo := g.Repo
	if repo == "" {
		repo = "-"
	}
	return table.Row{
		g.Name,
		g.StatusDisplay(),
		string(g.Priority),
		g.Progress(),
		fmt.Sprintf("$%.2f", g.TotalCostUSD),
		repo,
	}
}

func kindIcon(kind attention.Kind) string {
	switch kind {
	case attention.KindReview:
		return "🔍"
	case attention.KindQuestion:
		return "❓"
	case attention.KindPaused:
		return "⏸"
	default:
		return "•"
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
