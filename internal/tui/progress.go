package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	tickInterval = 150 * time.Millisecond
	marqueeGap   = "   "
)

// tickMsg drives the marquee animation.
type tickMsg time.Time

// toolRow is one tool's line in the install table.
type toolRow struct {
	Tool     string
	Strategy string
	Phase    string
	Status   string
	Detail   string
}

type column struct {
	header string
	width  int
}

// The detail column absorbs whatever a phase reports, so it gets the
// most room; long values marquee while work is in flight.
var installColumns = []column{
	{"TOOL", 14},
	{"STRATEGY", 8},
	{"PHASE", 15},
	{"STATUS", 9},
	{"DETAIL", 44},
}

const statusCol = 3

// InstallModel is a bubbletea model rendering one row per tool while a
// compose run is in flight.
type InstallModel struct {
	rows     []toolRow
	rowIndex map[string]int
	done     bool
	err      error

	// Animation state: spin draws the footer, tick drives the marquee.
	spin spinner.Model
	tick int
}

// NewInstallModel creates an empty install table.
func NewInstallModel() InstallModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return InstallModel{rowIndex: make(map[string]int), spin: sp}
}

// AddTool pre-populates a pending row. Call this before the program
// starts; later updates arrive as ToolUpdateMsg.
func (m *InstallModel) AddTool(tool, strategy, version string) {
	m.rowIndex[tool] = len(m.rows)
	m.rows = append(m.rows, toolRow{
		Tool:     tool,
		Strategy: strategy,
		Status:   "pending",
		Detail:   "wants " + version,
	})
}

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init satisfies the tea.Model interface.
func (m InstallModel) Init() tea.Cmd {
	return tea.Batch(scheduleTick(), m.spin.Tick)
}

// Update satisfies the tea.Model interface.
func (m InstallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tick++
		if m.done {
			return m, nil
		}
		return m, scheduleTick()

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case ToolUpdateMsg:
		m.applyUpdate(msg)
		return m, nil

	case WorkDoneMsg:
		m.done = true
		return m, tea.Quit

	case ErrorMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *InstallModel) applyUpdate(msg ToolUpdateMsg) {
	idx, ok := m.rowIndex[msg.Tool]
	if !ok {
		return
	}
	row := &m.rows[idx]
	if msg.Phase != "" {
		row.Phase = msg.Phase
	}
	if msg.Status != "" {
		row.Status = msg.Status
	}
	if msg.Detail != "" {
		row.Detail = msg.Detail
	}
}

// View satisfies the tea.Model interface.
func (m InstallModel) View() string {
	if m.done && m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}

	var b strings.Builder

	headerParts := make([]string, len(installColumns))
	for i, col := range installColumns {
		headerParts[i] = HeaderStyle.Render(pad(col.header, col.width))
	}
	b.WriteString(strings.Join(headerParts, "  "))
	b.WriteByte('\n')

	for _, row := range m.rows {
		fields := []string{row.Tool, row.Strategy, row.Phase, row.Status, row.Detail}
		parts := make([]string, len(installColumns))
		for i, col := range installColumns {
			val := fields[i]
			if !m.done && len(strings.TrimSpace(val)) > col.width {
				val = marqueeText(val, col.width, m.tick)
			} else {
				val = TruncateWithEllipsis(val, col.width)
			}
			if i == statusCol {
				parts[i] = StatusStyle(val).Render(pad(val, col.width))
			} else {
				parts[i] = pad(val, col.width)
			}
		}
		b.WriteString(strings.Join(parts, "  "))
		b.WriteByte('\n')
	}

	if !m.done {
		finished, total := m.progressCounts()
		fmt.Fprintf(&b, "\n%s Installing %d/%d...\n", m.spin.View(), finished, total)
	}

	return b.String()
}

// progressCounts returns (finished, total) based on how many rows reached
// a terminal status.
func (m InstallModel) progressCounts() (int, int) {
	finished := 0
	for _, row := range m.rows {
		if terminalStatus(row.Status) {
			finished++
		}
	}
	return finished, len(m.rows)
}

func terminalStatus(status string) bool {
	switch strings.TrimSpace(status) {
	case StatusDone, StatusSatisfied, StatusFailed, StatusPartial:
		return true
	}
	return false
}

// Done returns whether the model has finished (work done or error).
func (m InstallModel) Done() bool {
	return m.done
}

// Err returns any fatal error that occurred.
func (m InstallModel) Err() error {
	return m.err
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// marqueeText renders a scrolling window over text that exceeds the given
// width. The text slides left on each tick, with a gap between cycles.
func marqueeText(text string, width, tick int) string {
	text = strings.TrimSpace(text)
	if width <= 0 {
		return ""
	}
	if len(text) <= width {
		return text
	}
	cycle := text + marqueeGap
	cycleLen := len(cycle)
	offset := tick % cycleLen
	var result strings.Builder
	result.Grow(width)
	for i := 0; i < width; i++ {
		result.WriteByte(cycle[(offset+i)%cycleLen])
	}
	return result.String()
}

// NonEmptyOrDash returns "-" for empty/whitespace strings.
func NonEmptyOrDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}

// TruncateWithEllipsis truncates a string and adds "..." if it exceeds max
// length.
func TruncateWithEllipsis(value string, max int) string {
	if max <= 0 {
		return ""
	}
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
