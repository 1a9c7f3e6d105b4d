package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/tasktrack/internal/task"
	"github.com/nibzard/tasktrack/internal/utils"
)

type styles struct {
	title     lipgloss.Style
	muted     lipgloss.Style
	err       lipgloss.Style
	ok        lipgloss.Style
	selected  lipgloss.Style
	done      lipgloss.Style
	label     lipgloss.Style
	focused   lipgloss.Style
	separator lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:     r.NewStyle().Foreground(lipgloss.Color("8")),
		err:       r.NewStyle().Foreground(lipgloss.Color("9")),
		ok:        r.NewStyle().Foreground(lipgloss.Color("10")),
		selected:  r.NewStyle().Bold(true),
		done:      r.NewStyle().Foreground(lipgloss.Color("8")),
		label:     r.NewStyle().Width(13),
		focused:   r.NewStyle().Foreground(lipgloss.Color("12")),
		separator: r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (m *tuiModel) View() string {
	var b strings.Builder
	m.writeHeader(&b)

	if m.showHelp {
		writeHelp(&b)
		m.writeFooter(&b)
		return b.String()
	}

	if m.mode == modeForm {
		m.writeForm(&b)
	}
	if m.state.Err != "" {
		b.WriteString(m.styles.err.Render("Error: "+m.state.Err) + "\n\n")
	}
	m.writeTasks(&b)
	m.writeFooter(&b)
	return b.String()
}

func (m *tuiModel) writeHeader(b *strings.Builder) {
	b.WriteString(m.styles.title.Render("TaskTrack") + "\n")
	b.WriteString(fmt.Sprintf("%d total • %d remaining\n", m.state.Total(), m.state.Remaining()))
	b.WriteString(m.healthLine() + "\n\n")
}

func (m *tuiModel) healthLine() string {
	switch {
	case !m.checked:
		return m.styles.muted.Render("Backend: checking…")
	case m.healthErr != nil:
		return m.styles.err.Render("Backend: unreachable (" + m.healthErr.Error() + ")")
	default:
		return m.styles.ok.Render("Backend: " + m.health)
	}
}

func (m *tuiModel) writeForm(b *strings.Builder) {
	b.WriteString("New Task\n\n")
	m.writeInput(b, "  Title", m.state.Draft.Title, m.focus == fieldTitle)
	m.writeInput(b, "  Description", m.state.Draft.Description, m.focus == fieldDescription)
	if m.state.Saving {
		b.WriteString(m.styles.muted.Render("  Saving…") + "\n")
	}
	b.WriteString(m.styles.muted.Render("  enter save • tab switch field • ctrl+u clear • esc cancel") + "\n\n")
}

func (m *tuiModel) writeInput(b *strings.Builder, label, value string, focused bool) {
	b.WriteString(m.styles.label.Render(label))
	if focused {
		b.WriteString(m.styles.focused.Render("> "+value+"_") + "\n")
		return
	}
	b.WriteString("  " + value + "\n")
}

func (m *tuiModel) writeTasks(b *strings.Builder) {
	if m.state.Loading {
		b.WriteString("Loading…\n\n")
		return
	}
	if len(m.state.Tasks) == 0 {
		b.WriteString("No tasks yet. Create one.\n\n")
		return
	}
	for i, t := range m.state.Tasks {
		b.WriteString(m.formatTask(t, i == m.cursor))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func (m *tuiModel) formatTask(t task.Task, selected bool) string {
	pointer := "  "
	if selected {
		pointer = "> "
	}
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}

	title := t.Title
	switch {
	case t.Completed:
		title = m.styles.done.Render(title)
	case selected:
		title = m.styles.selected.Render(title)
	}

	line := fmt.Sprintf("%s%s %s %s", pointer, box, title, m.styles.muted.Render(fmt.Sprintf("#%d", t.ID)))
	if !t.CreatedAt.IsZero() {
		line += m.styles.muted.Render("  " + t.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if t.Description != "" {
		line += "\n      " + m.styles.muted.Render(utils.Truncate(t.Description, m.descriptionWidth()))
	}
	return line
}

func (m *tuiModel) descriptionWidth() int {
	if m.width > 20 {
		return m.width - 8
	}
	return 60
}

func writeHelp(b *strings.Builder) {
	b.WriteString("Keyboard Shortcuts\n\n")
	b.WriteString("  j/k, ↓/↑     Move selection\n")
	b.WriteString("  space, x     Toggle completed\n")
	b.WriteString("  d            Delete task\n")
	b.WriteString("  n            New task\n")
	b.WriteString("  r, F5        Refresh from server\n")
	b.WriteString("  h, ?         Toggle this help screen\n")
	b.WriteString("  q, ctrl+c    Quit\n\n")
	b.WriteString("New task form\n\n")
	b.WriteString("  tab          Switch field\n")
	b.WriteString("  enter        Save\n")
	b.WriteString("  ctrl+u       Clear form\n")
	b.WriteString("  esc          Back to list\n\n")
}

func (m *tuiModel) writeFooter(b *strings.Builder) {
	b.WriteString(m.styles.separator.Render("Press h for help | n new | space toggle | d delete | q quit") + "\n")
}
