// Package ui renders instrumentation progress in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"codeweave/internal/driver"
)

// maxRows bounds the class rows shown at once; finished rows scroll away first.
const maxRows = 16

type progressModel struct {
	title   string
	events  <-chan driver.Event
	spinner spinner.Model
	prog    progress.Model
	items   []classItem
	index   map[string]int
	total   int
	done    int
	failed  int
	width   int
	closed  bool
}

type classItem struct {
	class   string
	status  driver.Status
	running int
	done    int
	failed  int
}

type eventMsg driver.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders the progress of
// an instrumentation run over total methods declared by classes.
func NewProgressModel(title string, classes []string, total int, events <-chan driver.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]classItem, 0, len(classes))
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		items = append(items, classItem{class: c, status: driver.StatusQueued})
		index[c] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		total:   total,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(driver.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.closed = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.closed {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (%d/%d methods", m.title, m.done, m.total)
	if m.failed > 0 {
		header += fmt.Sprintf(", %d failed", m.failed)
	}
	header += ")"
	if m.closed {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 9
	nameWidth := max(m.width-statusWidth-16, 20)
	rows, hidden := m.visibleRows()
	for _, item := range rows {
		status := styleStatus(item.status).Render(fmt.Sprintf("%*s", statusWidth, item.status))
		fmt.Fprintf(&b, "  %s %s %s\n", status, runewidth.FillRight(truncate(item.class, nameWidth), nameWidth), item.counts())
	}
	if hidden > 0 {
		fmt.Fprintf(&b, "  %*s ... %d more classes\n", statusWidth, "", hidden)
	}

	b.WriteString("\n")
	if m.closed {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

// visibleRows keeps running classes first, then queued ones, then finished
// ones, up to maxRows.
func (m *progressModel) visibleRows() ([]classItem, int) {
	if len(m.items) <= maxRows {
		return m.items, 0
	}
	out := make([]classItem, 0, maxRows)
	for _, keep := range []func(classItem) bool{
		func(it classItem) bool { return it.running > 0 },
		func(it classItem) bool { return it.running == 0 && it.status == driver.StatusQueued },
		func(it classItem) bool { return it.running == 0 && it.status != driver.StatusQueued },
	} {
		for _, it := range m.items {
			if len(out) == maxRows {
				return out, len(m.items) - maxRows
			}
			if keep(it) {
				out = append(out, it)
			}
		}
	}
	return out, len(m.items) - len(out)
}

func (it classItem) counts() string {
	if it.failed > 0 {
		return fmt.Sprintf("%d done, %d failed", it.done, it.failed)
	}
	if it.done == 0 {
		return ""
	}
	return fmt.Sprintf("%d done", it.done)
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev driver.Event) tea.Cmd {
	idx, ok := m.index[ev.Class]
	if !ok {
		return nil
	}
	item := &m.items[idx]
	switch ev.Status {
	case driver.StatusWorking:
		item.running++
		item.status = driver.StatusWorking
		return nil
	case driver.StatusError:
		item.failed++
		m.failed++
	default:
		item.done++
	}
	item.running = max(item.running-1, 0)
	m.done++
	switch {
	case item.running > 0:
	case item.failed > 0:
		item.status = driver.StatusError
	default:
		item.status = ev.Status
	}
	if m.total == 0 {
		return nil
	}
	return m.prog.SetPercent(float64(m.done) / float64(m.total))
}

func styleStatus(status driver.Status) lipgloss.Style {
	switch status {
	case driver.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case driver.StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case driver.StatusWorking:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	case driver.StatusSkipped:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
