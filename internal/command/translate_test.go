package command

import (
	"errors"
	"testing"

	"github.com/educube/groundstation/internal/protocol"
)

func req(command, board string, settings map[string]any) protocol.CommandRequest {
	return protocol.CommandRequest{Command: command, Board: board, Settings: settings}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		req  protocol.CommandRequest
		want string
	}{
		{"telemetry CDH", req("T", "CDH", nil), "C|CDH|T"},
		{"telemetry lowercase board", req("T", "eps", nil), "C|EPS|T"},
		{"blinky", req("BLINKY", "CDH", nil), "C|CDH|BLINKY"},
		{"mag plus", req("MAG", "ADC", map[string]any{"axis": "x", "sign": "+"}), "C|ADC|MAG|X|+"},
		{"mag numeric minus", req("MAG", "ADC", map[string]any{"axis": "Y", "sign": -1}), "C|ADC|MAG|Y|-"},
		{"mag zero float", req("MAG", "ADC", map[string]any{"axis": "X", "sign": float64(0)}), "C|ADC|MAG|X|0"},
		{"mag slider val", req("MAG", "ADC", map[string]any{"axis": "X", "val": 1}), "C|ADC|MAG|X|+"},
		{"react positive", req("REACT", "ADC", map[string]any{"val": 40}), "C|ADC|REACT|+|40"},
		{"react zero", req("REACT", "ADC", map[string]any{"val": 0}), "C|ADC|REACT|+|0"},
		{"react negative rounded", req("REACT", "ADC", map[string]any{"val": -39.6}), "C|ADC|REACT|-|40"},
		{"heat", req("HEAT", "EXP", map[string]any{"panel": 2, "val": 75}), "C|EXP|HEAT|2|75"},
		{"power on", req("PWR_ON", "EPS", map[string]any{"command_id": "R"}), "C|EPS|PWR_ON|R"},
		{"power off numeric id", req("PWR_OFF", "EPS", map[string]any{"command_id": float64(2)}), "C|EPS|PWR_OFF|2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Translate(tt.req)
			if err != nil {
				t.Fatalf("Translate failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Translate = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTranslate_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  protocol.CommandRequest
	}{
		{"unknown board", req("T", "COMM", nil)},
		{"unknown command", req("SPIN", "ADC", nil)},
		{"command on wrong board", req("REACT", "EXP", map[string]any{"val": 1})},
		{"mag bad axis", req("MAG", "ADC", map[string]any{"axis": "Z", "sign": "+"})},
		{"mag bad sign", req("MAG", "ADC", map[string]any{"axis": "X", "sign": 2})},
		{"mag missing sign", req("MAG", "ADC", map[string]any{"axis": "X"})},
		{"react out of range", req("REACT", "ADC", map[string]any{"val": 101})},
		{"react missing val", req("REACT", "ADC", nil)},
		{"heat bad panel", req("HEAT", "EXP", map[string]any{"panel": 3, "val": 10})},
		{"heat negative", req("HEAT", "EXP", map[string]any{"panel": 1, "val": -1})},
		{"power bad id", req("PWR_ON", "EPS", map[string]any{"command_id": "9"})},
		{"power missing id", req("PWR_OFF", "EPS", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Translate(tt.req)
			if !errors.Is(err, ErrInvalidCommand) {
				t.Errorf("Translate error = %v, want ErrInvalidCommand", err)
			}
		})
	}
}

func TestFrame(t *testing.T) {
	if got := Frame("C|CDH|T"); got != "[C|CDH|T]" {
		t.Errorf("Frame = %q, want [C|CDH|T]", got)
	}
}
