package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Decode parses a raw frame into an Envelope.
// Invalid JSON and envelopes without a msgtype fail with ErrDecode.
// The msgtype itself is not checked; callers decide what to do with unknown types.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if env.MsgType == "" {
		return Envelope{}, fmt.Errorf("%w: missing msgtype", ErrDecode)
	}
	return env, nil
}

// Encode wraps content in an envelope of the given type and serializes it.
func Encode(t MsgType, content any) ([]byte, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal %s content: %w", t, err)
	}
	return json.Marshal(Envelope{MsgType: t, MsgContent: raw})
}

// EncodeCommand builds a command envelope. A nil settings map is sent as {}.
func EncodeCommand(command, board string, settings map[string]any) ([]byte, error) {
	if settings == nil {
		settings = map[string]any{}
	}
	return Encode(MsgCommand, CommandRequest{
		Command:  command,
		Board:    board,
		Settings: settings,
	})
}

// DecodeCommand extracts a CommandRequest from a command envelope.
func DecodeCommand(env Envelope) (CommandRequest, error) {
	if env.MsgType != MsgCommand {
		return CommandRequest{}, fmt.Errorf("%w: %q is not a command", ErrUnknownMessageType, env.MsgType)
	}
	var req CommandRequest
	dec := json.NewDecoder(bytes.NewReader(env.MsgContent))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return CommandRequest{}, fmt.Errorf("%w: command content: %v", ErrDecode, err)
	}
	if req.Command == "" || req.Board == "" {
		return CommandRequest{}, fmt.Errorf("%w: command and board are required", ErrDecode)
	}
	return req, nil
}

// Int returns settings[key] as an integer. Numbers are rounded to the
// nearest integer and numeric strings are accepted.
func (r CommandRequest) Int(key string) (int, bool) {
	v, ok := r.Settings[key]
	if !ok {
		return 0, false
	}
	var f float64
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Round(f)), true
}

// String returns settings[key] formatted as a string.
func (r CommandRequest) String(key string) (string, bool) {
	v, ok := r.Settings[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	default:
		return fmt.Sprint(v), true
	}
}
