package channel

import (
	"sync"

	"github.com/educube/groundstation/internal/telemetry"
)

// GPSMarker renders CDH fixes as a single map marker. The first fix adds
// the marker, later fixes move it.
type GPSMarker struct {
	widget MapWidget

	mu      sync.Mutex
	idx     int
	placed  bool
	lastFix telemetry.GPSFix
}

// NewGPSMarker creates a GPSMarker drawing on w.
func NewGPSMarker(w MapWidget) *GPSMarker {
	return &GPSMarker{widget: w}
}

// Render implements Renderer. Records from other boards, and CDH records
// without a fix, are ignored.
func (g *GPSMarker) Render(rec telemetry.Record) {
	if rec.Board != telemetry.BoardCDH || rec.Data.GPSFix == nil {
		return
	}
	fix := *rec.Data.GPSFix

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.placed {
		g.idx = g.widget.AddMarker(fix.Lon, fix.Lat)
		g.placed = true
	} else {
		g.widget.UpdateMarker(g.idx, fix.Lon, fix.Lat)
	}
	g.lastFix = fix
}

// Fix returns the last rendered position.
func (g *GPSMarker) Fix() (telemetry.GPSFix, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastFix, g.placed
}
