package command

import (
	"errors"
	"reflect"
	"testing"

	"github.com/educube/groundstation/internal/protocol"
)

type sentCommand struct {
	command  string
	board    string
	settings map[string]any
}

// recordingSender captures sends and checks the display was updated first.
type recordingSender struct {
	feed    *Feed
	sent    []sentCommand
	display []State
	err     error
}

func (s *recordingSender) Send(command, board string, settings map[string]any) error {
	s.sent = append(s.sent, sentCommand{command, board, settings})
	if s.feed != nil {
		st, _ := s.feed.State("react")
		s.display = append(s.display, st)
	}
	return s.err
}

func newTestFeed() (*Feed, *recordingSender) {
	s := &recordingSender{}
	f := NewFeed(s, DefaultControls()...)
	s.feed = f
	return f, s
}

func TestFeed_SetSlider(t *testing.T) {
	f, s := newTestFeed()

	if err := f.Set("react", 42.4); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if len(s.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(s.sent))
	}
	got := s.sent[0]
	if got.command != "REACT" || got.board != "ADC" {
		t.Errorf("sent %s/%s, want REACT/ADC", got.command, got.board)
	}
	if !reflect.DeepEqual(got.settings, map[string]any{"val": 42}) {
		t.Errorf("settings = %v, want val 42", got.settings)
	}

	// The display is updated before the command goes out.
	if s.display[0].Value != 42 || s.display[0].Text != "REACT|+|42" {
		t.Errorf("display during send = %+v", s.display[0])
	}
}

func TestFeed_SetClampsAndSigns(t *testing.T) {
	f, s := newTestFeed()

	if err := f.Set("react", -250); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	st, _ := f.State("react")
	if st.Value != -100 || st.Text != "REACT|-|100" {
		t.Errorf("state = %+v, want -100 REACT|-|100", st)
	}

	// The sent request translates to the wire command.
	last := s.sent[len(s.sent)-1]
	cmd, err := Translate(protocol.CommandRequest{Command: last.command, Board: last.board, Settings: last.settings})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if cmd != "C|ADC|REACT|-|100" {
		t.Errorf("Translate = %q", cmd)
	}
}

func TestFeed_SliderSettingsMerged(t *testing.T) {
	f, s := newTestFeed()

	if err := f.Set("heat-2", 55); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := f.Set("mag-y", -1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	want := []map[string]any{
		{"panel": 2, "val": 55},
		{"axis": "Y", "sign": -1},
	}
	for i, w := range want {
		if !reflect.DeepEqual(s.sent[i].settings, w) {
			t.Errorf("settings[%d] = %v, want %v", i, s.sent[i].settings, w)
		}
		req := protocol.CommandRequest{Command: s.sent[i].command, Board: s.sent[i].board, Settings: s.sent[i].settings}
		if _, err := Translate(req); err != nil {
			t.Errorf("Translate(%v) failed: %v", req, err)
		}
	}

	// Control settings are not mutated by sends.
	for _, c := range f.Controls() {
		if c.ID == "heat-2" {
			if _, ok := c.Settings["val"]; ok {
				t.Error("control settings were mutated")
			}
		}
	}
}

func TestFeed_Nudge(t *testing.T) {
	f, _ := newTestFeed()

	f.Nudge("heat-1", 3)
	f.Nudge("heat-1", -1)

	st, _ := f.State("heat-1")
	if st.Value != 20 || st.Text != "HEAT|1|20" {
		t.Errorf("state = %+v, want 20", st)
	}
}

func TestFeed_PressButton(t *testing.T) {
	f, s := newTestFeed()

	if err := f.Press("pwr_on-r"); err != nil {
		t.Fatalf("Press failed: %v", err)
	}
	if err := f.Press("telem-cdh"); err != nil {
		t.Fatalf("Press failed: %v", err)
	}

	if s.sent[0].command != "PWR_ON" || s.sent[0].settings["command_id"] != "R" {
		t.Errorf("sent = %+v", s.sent[0])
	}
	if s.sent[1].command != "T" || s.sent[1].board != "CDH" || len(s.sent[1].settings) != 0 {
		t.Errorf("sent = %+v", s.sent[1])
	}

	if err := f.Set("blinky", 1); !errors.Is(err, ErrUnknownControl) {
		t.Errorf("Set on button = %v, want ErrUnknownControl", err)
	}
}

func TestFeed_Errors(t *testing.T) {
	f, s := newTestFeed()
	s.err = protocol.ErrSendFailure

	if err := f.Set("react", 10); !errors.Is(err, protocol.ErrSendFailure) {
		t.Errorf("Set error = %v, want ErrSendFailure", err)
	}
	// The display still reflects the operator's choice.
	if st, _ := f.State("react"); st.Value != 10 {
		t.Errorf("state = %+v, want 10", st)
	}

	if err := f.Press("missing"); !errors.Is(err, ErrUnknownControl) {
		t.Errorf("Press error = %v, want ErrUnknownControl", err)
	}
}

func TestDefaultControls_Translate(t *testing.T) {
	for _, c := range DefaultControls() {
		settings := map[string]any{}
		for k, v := range c.Settings {
			settings[k] = v
		}
		if c.Slider {
			key := c.Key
			if key == "" {
				key = "val"
			}
			settings[key] = c.Max
		}
		req := protocol.CommandRequest{Command: c.Command, Board: c.Board, Settings: settings}
		if _, err := Translate(req); err != nil {
			t.Errorf("control %s: Translate failed: %v", c.ID, err)
		}
	}
}
