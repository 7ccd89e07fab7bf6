package monitor

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/educube/groundstation/internal/channel"
	"github.com/educube/groundstation/internal/command"
	"github.com/educube/groundstation/internal/protocol"
	"github.com/educube/groundstation/internal/store"
	"github.com/educube/groundstation/internal/telemetry"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9D4EDD")).Bold(true)
	boardStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7B2CBF")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9D4EDD")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2A9D8F"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E9C46A"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27"))
)

// Model is the root Bubble Tea model of the console.
type Model struct {
	// Dependencies
	store    *store.Store
	feed     *command.Feed
	refresh  time.Duration
	now      func() time.Time
	controls []command.Control

	// UI state
	width   int
	ready   bool
	cursor  int
	notice  channel.Notice
	records map[string]telemetry.Record
	markers map[int]telemetry.GPSFix
}

// New creates the console model. refresh is the store redraw interval; zero
// disables the tick.
func New(st *store.Store, feed *command.Feed, refresh time.Duration) Model {
	m := Model{
		store:    st,
		feed:     feed,
		refresh:  refresh,
		now:      time.Now,
		controls: feed.Controls(),
		records:  make(map[string]telemetry.Record),
		markers:  make(map[int]telemetry.GPSFix),
	}
	m.reload()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) tickCmd() tea.Cmd {
	if m.refresh <= 0 {
		return nil
	}
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.ready = true

	case RecordMsg:
		m.records[msg.Record.Board] = msg.Record

	case NoticeMsg:
		m.notice = channel.Notice(msg)

	case MarkerMsg:
		m.markers[msg.Index] = telemetry.GPSFix{Lat: msg.Lat, Lon: msg.Lon}

	case TickMsg:
		m.reload()
		return m, m.tickCmd()

	case sentMsg:
		// Send failures are already reported by the channel.
		if msg.err != nil && !errors.Is(msg.err, protocol.ErrSendFailure) {
			m.notice = channel.Notice{Message: msg.err.Error(), Type: channel.NoticeError}
		}
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.controls)-1 {
			m.cursor++
		}

	case "left", "h":
		return m, m.nudge(-1)
	case "right", "l":
		return m, m.nudge(1)

	case "enter", " ":
		if c, ok := m.selected(); ok {
			return m, m.act(c.ID, m.feed.Press)
		}

	case "t":
		return m, m.requestAll()
	}

	return m, nil
}

func (m Model) selected() (command.Control, bool) {
	if m.cursor < 0 || m.cursor >= len(m.controls) {
		return command.Control{}, false
	}
	return m.controls[m.cursor], true
}

func (m Model) nudge(steps int) tea.Cmd {
	c, ok := m.selected()
	if !ok || !c.Slider {
		return nil
	}
	return m.act(c.ID, func(id string) error {
		return m.feed.Nudge(id, steps)
	})
}

// act runs a feed action off the update loop.
func (m Model) act(id string, fn func(string) error) tea.Cmd {
	return func() tea.Msg {
		return sentMsg{id: id, err: fn(id)}
	}
}

// requestAll asks every board for telemetry.
func (m Model) requestAll() tea.Cmd {
	return func() tea.Msg {
		var errs []error
		for _, b := range telemetry.Boards {
			if err := m.feed.Press("telem-" + strings.ToLower(b)); err != nil {
				errs = append(errs, err)
			}
		}
		return sentMsg{id: "telemetry", err: errors.Join(errs...)}
	}
}

func (m *Model) reload() {
	for _, rec := range m.store.Snapshot() {
		m.records[rec.Board] = rec
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("EduCube ground station") + "\n\n")
	b.WriteString(m.renderBoards())
	b.WriteString(m.renderMarkers())
	b.WriteString("\n" + m.renderControls())
	b.WriteString("\n" + m.renderFooter())
	return b.String()
}

func (m Model) renderBoards() string {
	var b strings.Builder
	for _, board := range telemetry.Boards {
		rec, ok := m.records[board]
		if !ok {
			b.WriteString(m.line(boardStyle.Render(fmt.Sprintf("%-4s", board)) + dimStyle.Render("  no telemetry")))
			continue
		}
		age := m.now().Sub(rec.ReceivedAt()).Round(time.Second)
		if age < 0 {
			age = 0
		}
		b.WriteString(m.line(
			boardStyle.Render(fmt.Sprintf("%-4s", board)) +
				dimStyle.Render(fmt.Sprintf(" %6s  ", age)) +
				Summary(rec),
		))
	}
	return b.String()
}

func (m Model) renderMarkers() string {
	if len(m.markers) == 0 {
		return ""
	}
	idx := make([]int, 0, len(m.markers))
	for i := range m.markers {
		idx = append(idx, i)
	}
	slices.Sort(idx)

	var b strings.Builder
	for _, i := range idx {
		fix := m.markers[i]
		b.WriteString(m.line(dimStyle.Render(fmt.Sprintf("marker %d  ", i)) + fmt.Sprintf("%.5f, %.5f", fix.Lat, fix.Lon)))
	}
	return b.String()
}

func (m Model) renderControls() string {
	var b strings.Builder
	for i, c := range m.controls {
		text := ""
		if st, ok := m.feed.State(c.ID); ok && c.Slider {
			text = "  [" + st.Text + "]"
		}
		if i == m.cursor {
			b.WriteString(m.line(activeStyle.Render("▶ "+c.Label) + text))
		} else {
			b.WriteString(m.line(dimStyle.Render("  "+c.Label) + text))
		}
	}
	return b.String()
}

func (m Model) renderFooter() string {
	var status string
	switch m.notice.Type {
	case channel.NoticeSuccess:
		status = successStyle.Render(m.notice.Message)
	case channel.NoticeWarning:
		status = warningStyle.Render(m.notice.Message)
	case channel.NoticeError:
		status = errorStyle.Render(m.notice.Message)
	default:
		status = m.notice.Message
	}

	help := dimStyle.Render("↑/↓ select  ←/→ adjust  enter send  t telemetry  q quit")
	return m.line(status) + help
}

func (m Model) line(s string) string {
	if m.width > 0 {
		s = lipgloss.NewStyle().MaxWidth(m.width).Render(s)
	}
	return s + "\n"
}
