package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/educube/groundstation/internal/protocol"
	"github.com/educube/groundstation/internal/telemetry"
)

// ErrInvalidCommand is returned for requests that do not map to an EduCube
// command or carry out-of-range settings.
var ErrInvalidCommand = errors.New("invalid command")

// Command names accepted in CommandRequest.Command.
const (
	CmdTelemetry = "T"
	CmdBlinky    = "BLINKY"
	CmdMag       = "MAG"
	CmdReact     = "REACT"
	CmdHeat      = "HEAT"
	CmdPowerOn   = "PWR_ON"
	CmdPowerOff  = "PWR_OFF"
)

// Translate renders req as an EduCube command string.
func Translate(req protocol.CommandRequest) (string, error) {
	board := strings.ToUpper(req.Board)

	if req.Command == CmdTelemetry {
		return RequestTelemetry(board)
	}

	switch {
	case board == telemetry.BoardCDH && req.Command == CmdBlinky:
		return Blinky(), nil

	case board == telemetry.BoardADC && req.Command == CmdMag:
		axis, ok := req.String("axis")
		if !ok {
			return "", invalid(req, "axis is required")
		}
		sign, ok := req.String("sign")
		if !ok {
			// Sliders send their position as val.
			sign, ok = req.String("val")
		}
		if !ok {
			return "", invalid(req, "sign is required")
		}
		return Magnetorquer(axis, sign)

	case board == telemetry.BoardADC && req.Command == CmdReact:
		val, ok := req.Int("val")
		if !ok {
			return "", invalid(req, "val is required")
		}
		return ReactionWheel(val)

	case board == telemetry.BoardEXP && req.Command == CmdHeat:
		panel, ok := req.Int("panel")
		if !ok {
			return "", invalid(req, "panel is required")
		}
		val, ok := req.Int("val")
		if !ok {
			return "", invalid(req, "val is required")
		}
		return ThermalPanel(panel, val)

	case board == telemetry.BoardEPS && (req.Command == CmdPowerOn || req.Command == CmdPowerOff):
		id, ok := req.String("command_id")
		if !ok {
			return "", invalid(req, "command_id is required")
		}
		return Power(req.Command == CmdPowerOn, id)
	}

	return "", invalid(req, "unsupported command")
}

func invalid(req protocol.CommandRequest, reason string) error {
	return fmt.Errorf("%w: %s %s: %s", ErrInvalidCommand, req.Board, req.Command, reason)
}

// Frame wraps cmd for transmission on the serial link.
func Frame(cmd string) string {
	return "[" + cmd + "]"
}

// RequestTelemetry asks board for a telemetry line.
func RequestTelemetry(board string) (string, error) {
	if !telemetry.KnownBoard(board) {
		return "", fmt.Errorf("%w: unknown board %q", ErrInvalidCommand, board)
	}
	return "C|" + board + "|T", nil
}

// Blinky lights up every LED on the satellite.
func Blinky() string {
	return "C|CDH|BLINKY"
}

// Magnetorquer sets the coil on axis (X or Y). sign is one of -, 0, + or
// the numeric forms -1, 0, 1.
func Magnetorquer(axis, sign string) (string, error) {
	axis = strings.ToUpper(axis)
	if axis != "X" && axis != "Y" {
		return "", fmt.Errorf("%w: magnetorquer axis %q not in (X, Y)", ErrInvalidCommand, axis)
	}

	switch sign {
	case "0":
	case "1", "+", "+1":
		sign = "+"
	case "-1", "-":
		sign = "-"
	default:
		return "", fmt.Errorf("%w: magnetorquer %s sign %q", ErrInvalidCommand, axis, sign)
	}

	return "C|ADC|MAG|" + axis + "|" + sign, nil
}

// ReactionWheel sets the reaction wheel power in percent, -100 to 100.
func ReactionWheel(val int) (string, error) {
	if val < -100 || val > 100 {
		return "", fmt.Errorf("%w: reaction wheel value %d", ErrInvalidCommand, val)
	}
	sign := "+"
	if val < 0 {
		sign = "-"
		val = -val
	}
	return fmt.Sprintf("C|ADC|REACT|%s|%d", sign, val), nil
}

// ThermalPanel sets the heater power of panel 1 or 2 in percent.
func ThermalPanel(panel, val int) (string, error) {
	if panel != 1 && panel != 2 {
		return "", fmt.Errorf("%w: thermal panel %d not in [1, 2]", ErrInvalidCommand, panel)
	}
	if val < 0 || val > 100 {
		return "", fmt.Errorf("%w: thermal panel value %d not in [0, 100]", ErrInvalidCommand, val)
	}
	return fmt.Sprintf("C|EXP|HEAT|%d|%d", panel, val), nil
}

// Power switches an EPS rail on or off by command id.
func Power(on bool, id string) (string, error) {
	if !slices.Contains(telemetry.EPSCommandIDs, id) {
		return "", fmt.Errorf("%w: EPS command id %q", ErrInvalidCommand, id)
	}
	if on {
		return "C|EPS|PWR_ON|" + id, nil
	}
	return "C|EPS|PWR_OFF|" + id, nil
}
