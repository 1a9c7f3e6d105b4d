// Package ui provides the interactive terminal interface.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/tasktrack/internal/store"
	"github.com/nibzard/tasktrack/internal/task"
)

const defaultHealthInterval = 30 * time.Second

// TUIOption configures the TUI behavior.
type TUIOption func(*tuiConfig)

type tuiConfig struct {
	altScreen      bool
	healthInterval time.Duration
	output         io.Writer
}

// WithAltScreen runs the program in the terminal's alternate screen.
func WithAltScreen(enabled bool) TUIOption {
	return func(c *tuiConfig) {
		c.altScreen = enabled
	}
}

// WithHealthInterval sets how often the backend health line is refreshed.
// Zero disables polling; health is still checked on start and refresh.
func WithHealthInterval(d time.Duration) TUIOption {
	return func(c *tuiConfig) {
		c.healthInterval = d
	}
}

// WithOutput sets where the program renders. It defaults to stdout.
func WithOutput(w io.Writer) TUIOption {
	return func(c *tuiConfig) {
		c.output = w
	}
}

func newTUIConfig(opts []TUIOption) *tuiConfig {
	c := &tuiConfig{
		altScreen:      true,
		healthInterval: defaultHealthInterval,
		output:         os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunTUI runs the task list UI over s until the user quits or ctx ends.
func RunTUI(ctx context.Context, s *store.Store, opts ...TUIOption) error {
	c := newTUIConfig(opts)
	if !IsTTY(c.output) {
		return fmt.Errorf("tui requires a TTY")
	}

	model := newTUIModel(ctx, s, c, lipgloss.NewRenderer(c.output))
	programOpts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(c.output)}
	if c.altScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	_, err := tea.NewProgram(model, programOpts...).Run()
	return err
}

type mode int

const (
	modeList mode = iota
	modeForm
)

type formField int

const (
	fieldTitle formField = iota
	fieldDescription
)

type tuiModel struct {
	ctx            context.Context
	store          *store.Store
	styles         styles
	healthInterval time.Duration

	state    store.State
	cursor   int
	mode     mode
	focus    formField
	showHelp bool
	width    int

	health    string
	healthErr error
	checked   bool
}

type loadedMsg struct{ err error }

type createdMsg struct {
	task task.Task
	err  error
}

type resolvedMsg struct {
	op  string
	id  int64
	err error
}

type healthMsg struct {
	status string
	err    error
}

type healthTickMsg time.Time

func newTUIModel(ctx context.Context, s *store.Store, c *tuiConfig, r *lipgloss.Renderer) *tuiModel {
	return &tuiModel{
		ctx:            ctx,
		store:          s,
		styles:         newStyles(r),
		healthInterval: c.healthInterval,
		state:          s.State(),
	}
}

func (m *tuiModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadCmd(), m.healthCmd()}
	if m.healthInterval > 0 {
		cmds = append(cmds, healthTickCmd(m.healthInterval))
	}
	return tea.Batch(cmds...)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.mode == modeForm {
			return m.updateForm(msg)
		}
		return m.updateList(msg)
	case loadedMsg, resolvedMsg:
		m.sync()
		return m, nil
	case createdMsg:
		m.sync()
		if msg.err == nil {
			m.mode = modeList
			m.focus = fieldTitle
			m.cursor = 0
		}
		return m, nil
	case healthMsg:
		m.checked = true
		m.health = msg.status
		m.healthErr = msg.err
		return m, nil
	case healthTickMsg:
		return m, tea.Batch(m.healthCmd(), healthTickCmd(m.healthInterval))
	}
	return m, nil
}

func (m *tuiModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "h", "?", "esc":
			m.showHelp = false
		}
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		m.cursor = len(m.state.Tasks) - 1
		m.clampCursor()
	case " ", "x":
		if t, ok := m.selected(); ok {
			return m, m.resolveCmd("toggle", m.store.StartToggle(t))
		}
	case "d", "delete":
		if t, ok := m.selected(); ok {
			return m, m.resolveCmd("remove", m.store.StartRemove(t))
		}
	case "n", "a":
		m.mode = modeForm
		m.focus = fieldTitle
	case "r", "f5":
		m.state.Loading = true
		return m, tea.Batch(m.loadCmd(), m.healthCmd())
	case "h", "?":
		m.showHelp = true
	}
	return m, nil
}

func (m *tuiModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	draft := m.state.Draft
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeList
		return m, nil
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		if m.focus == fieldTitle {
			m.focus = fieldDescription
		} else {
			m.focus = fieldTitle
		}
		return m, nil
	case tea.KeyEnter:
		if m.state.Saving {
			return m, nil
		}
		m.state.Saving = true
		return m, m.createCmd(draft.Title, draft.Description)
	case tea.KeyCtrlU:
		m.store.ClearDraft()
		m.focus = fieldTitle
		m.sync()
		return m, nil
	case tea.KeyBackspace:
		m.editFocused(func(s string) string {
			r := []rune(s)
			if len(r) == 0 {
				return s
			}
			return string(r[:len(r)-1])
		})
		return m, nil
	case tea.KeySpace:
		m.editFocused(func(s string) string { return s + " " })
		return m, nil
	case tea.KeyRunes:
		text := string(msg.Runes)
		m.editFocused(func(s string) string { return s + text })
		return m, nil
	}
	return m, nil
}

func (m *tuiModel) editFocused(edit func(string) string) {
	d := m.state.Draft
	if m.focus == fieldTitle {
		d.Title = edit(d.Title)
	} else {
		d.Description = edit(d.Description)
	}
	m.store.SetDraft(d.Title, d.Description)
	m.sync()
}

// sync pulls the latest state and keeps the cursor on a real row.
func (m *tuiModel) sync() {
	m.state = m.store.State()
	m.clampCursor()
}

func (m *tuiModel) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
}

func (m *tuiModel) clampCursor() {
	if m.cursor >= len(m.state.Tasks) {
		m.cursor = len(m.state.Tasks) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *tuiModel) selected() (task.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Tasks) {
		return task.Task{}, false
	}
	return m.state.Tasks[m.cursor], true
}

// resolveCmd shows the optimistic change at once and confirms it in the
// background.
func (m *tuiModel) resolveCmd(op string, p *store.Pending) tea.Cmd {
	m.sync()
	ctx := m.ctx
	return func() tea.Msg {
		return resolvedMsg{op: op, id: p.TaskID(), err: p.Resolve(ctx)}
	}
}

func (m *tuiModel) loadCmd() tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		return loadedMsg{err: s.Load(ctx)}
	}
}

func (m *tuiModel) createCmd(title, description string) tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		t, err := s.Create(ctx, title, description)
		return createdMsg{task: t, err: err}
	}
}

func (m *tuiModel) healthCmd() tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		h, err := s.Health(ctx)
		return healthMsg{status: h.Status, err: err}
	}
}

func healthTickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return healthTickMsg(t)
	})
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
