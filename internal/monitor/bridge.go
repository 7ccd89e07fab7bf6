package monitor

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/educube/groundstation/internal/channel"
	"github.com/educube/groundstation/internal/telemetry"
)

// Msg types for Bubble Tea
type (
	// RecordMsg carries a rendered telemetry record.
	RecordMsg struct {
		Record telemetry.Record
	}

	// NoticeMsg carries an operator notice.
	NoticeMsg channel.Notice

	// MarkerMsg places or moves map marker Index.
	MarkerMsg struct {
		Index    int
		Lon, Lat float64
	}

	// TickMsg triggers a redraw from the store.
	TickMsg struct{}

	// sentMsg reports the outcome of a control action.
	sentMsg struct {
		id  string
		err error
	}
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards channel callbacks into a Bubble Tea program.
type Bridge struct {
	p Sender

	mu      sync.Mutex
	markers int
}

// NewBridge creates a Bridge sending to p.
func NewBridge(p Sender) *Bridge {
	return &Bridge{p: p}
}

// Render implements channel.Renderer.
func (b *Bridge) Render(rec telemetry.Record) {
	b.p.Send(RecordMsg{Record: rec})
}

// Notify implements channel.Notifier.
func (b *Bridge) Notify(n channel.Notice) {
	b.p.Send(NoticeMsg(n))
}

// AddMarker implements channel.MapWidget.
func (b *Bridge) AddMarker(lon, lat float64) int {
	b.mu.Lock()
	idx := b.markers
	b.markers++
	b.mu.Unlock()

	b.p.Send(MarkerMsg{Index: idx, Lon: lon, Lat: lat})
	return idx
}

// UpdateMarker implements channel.MapWidget.
func (b *Bridge) UpdateMarker(idx int, lon, lat float64) {
	b.p.Send(MarkerMsg{Index: idx, Lon: lon, Lat: lat})
}

// SendFunc is a function adapter for Sender.
type SendFunc func(tea.Msg)

func (f SendFunc) Send(msg tea.Msg) {
	f(msg)
}
