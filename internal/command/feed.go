package command

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/educube/groundstation/internal/telemetry"
)

// ErrUnknownControl is returned for control ids not registered with a Feed.
var ErrUnknownControl = errors.New("unknown control")

// Sender sends a command request to the ground station.
type Sender interface {
	Send(command, board string, settings map[string]any) error
}

// Control is an operator button or slider bound to an element id.
type Control struct {
	ID      string
	Label   string
	Board   string
	Command string

	// Settings are sent with every request. Slider controls add their value
	// under Key (default "val").
	Settings map[string]any
	Key      string

	// Slider is false for buttons, which have no value.
	Slider bool
	Min    int
	Max    int
	Step   int

	// Template is the display text; {val} is replaced by the value.
	// Signed controls render it as +|N or -|N.
	Template string
	Signed   bool
}

// Format renders the display text for value v.
func (c Control) Format(v int) string {
	if c.Template == "" {
		return c.Command
	}
	s := strconv.Itoa(v)
	if c.Signed {
		if v >= 0 {
			s = "+|" + s
		} else {
			s = "-|" + strconv.Itoa(-v)
		}
	}
	return strings.ReplaceAll(c.Template, "{val}", s)
}

func (c Control) clamp(value float64) int {
	v := int(math.Round(value))
	if v < c.Min {
		v = c.Min
	}
	if v > c.Max {
		v = c.Max
	}
	return v
}

// State is the current display of a control.
type State struct {
	Value int
	Text  string
}

// Feed holds the operator controls and sends their commands.
type Feed struct {
	sender Sender

	mu       sync.RWMutex
	controls map[string]Control
	order    []string
	state    map[string]State
}

// NewFeed creates a Feed sending through s.
func NewFeed(s Sender, controls ...Control) *Feed {
	f := &Feed{
		sender:   s,
		controls: make(map[string]Control, len(controls)),
		state:    make(map[string]State, len(controls)),
	}
	for _, c := range controls {
		f.Register(c)
	}
	return f
}

// Register adds or replaces a control. Sliders start at the value closest
// to zero within their range.
func (f *Feed) Register(c Control) {
	if c.Key == "" {
		c.Key = "val"
	}
	if c.Step == 0 {
		c.Step = 1
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.controls[c.ID]; !ok {
		f.order = append(f.order, c.ID)
	}
	f.controls[c.ID] = c

	v := 0
	if c.Slider {
		v = c.clamp(0)
	}
	f.state[c.ID] = State{Value: v, Text: c.Format(v)}
}

// Controls returns the registered controls in registration order.
func (f *Feed) Controls() []Control {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Control, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.controls[id])
	}
	return out
}

// State returns the display state of control id.
func (f *Feed) State(id string) (State, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.state[id]
	return s, ok
}

// Set moves slider id to value. The value is rounded and clamped, the
// display is updated, and then the command is sent.
func (f *Feed) Set(id string, value float64) error {
	c, ok := f.control(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownControl, id)
	}
	if !c.Slider {
		return fmt.Errorf("%w: %s is not a slider", ErrUnknownControl, id)
	}

	v := c.clamp(value)
	f.display(c, v)
	return f.send(c, v)
}

// Nudge moves slider id by steps and sends the result.
func (f *Feed) Nudge(id string, steps int) error {
	c, ok := f.control(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownControl, id)
	}
	s, _ := f.State(id)
	return f.Set(id, float64(s.Value+steps*c.Step))
}

// Press sends control id with its current value.
func (f *Feed) Press(id string) error {
	c, ok := f.control(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownControl, id)
	}
	s, _ := f.State(id)
	return f.send(c, s.Value)
}

func (f *Feed) control(id string) (Control, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.controls[id]
	return c, ok
}

func (f *Feed) display(c Control, v int) {
	f.mu.Lock()
	f.state[c.ID] = State{Value: v, Text: c.Format(v)}
	f.mu.Unlock()
}

func (f *Feed) send(c Control, v int) error {
	settings := make(map[string]any, len(c.Settings)+1)
	maps.Copy(settings, c.Settings)
	if c.Slider {
		settings[c.Key] = v
	}
	return f.sender.Send(c.Command, c.Board, settings)
}

// DefaultControls returns the EduCube operator panel.
func DefaultControls() []Control {
	controls := make([]Control, 0, 16)

	for _, b := range telemetry.Boards {
		controls = append(controls, Control{
			ID:      "telem-" + strings.ToLower(b),
			Label:   b + " telemetry",
			Board:   b,
			Command: CmdTelemetry,
		})
	}

	controls = append(controls,
		Control{ID: "blinky", Label: "Blinky", Board: telemetry.BoardCDH, Command: CmdBlinky},
		Control{
			ID: "react", Label: "Reaction wheel", Board: telemetry.BoardADC, Command: CmdReact,
			Slider: true, Min: -100, Max: 100, Step: 10,
			Template: "REACT|{val}", Signed: true,
		},
	)

	for _, axis := range []string{"X", "Y"} {
		controls = append(controls, Control{
			ID: "mag-" + strings.ToLower(axis), Label: "Magnetorquer " + axis,
			Board: telemetry.BoardADC, Command: CmdMag,
			Settings: map[string]any{"axis": axis}, Key: "sign",
			Slider: true, Min: -1, Max: 1,
			Template: "MAG|" + axis + "|{val}",
		})
	}

	for _, panel := range []int{1, 2} {
		controls = append(controls, Control{
			ID: fmt.Sprintf("heat-%d", panel), Label: fmt.Sprintf("Thermal panel %d", panel),
			Board: telemetry.BoardEXP, Command: CmdHeat,
			Settings: map[string]any{"panel": panel},
			Slider:   true, Min: 0, Max: 100, Step: 10,
			Template: fmt.Sprintf("HEAT|%d|{val}", panel),
		})
	}

	for _, id := range telemetry.EPSCommandIDs {
		for _, cmd := range []string{CmdPowerOn, CmdPowerOff} {
			controls = append(controls, Control{
				ID:       strings.ToLower(cmd) + "-" + strings.ToLower(id),
				Label:    cmd + " " + id,
				Board:    telemetry.BoardEPS,
				Command:  cmd,
				Settings: map[string]any{"command_id": id},
			})
		}
	}

	return controls
}
