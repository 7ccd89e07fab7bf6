package protocol

import (
	"encoding/json"
	"errors"
)

// Errors
var (
	ErrDecode             = errors.New("envelope decode failed")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrSendFailure        = errors.New("command send failed")
	ErrConnectionClosed   = errors.New("connection closed")
)

// MsgType identifies the payload carried by an Envelope.
type MsgType string

const (
	MsgTelemetry MsgType = "telemetry"
	MsgCommand   MsgType = "command"
)

// Known reports whether t is one of the message types this package defines.
func (t MsgType) Known() bool {
	return t == MsgTelemetry || t == MsgCommand
}

// Envelope is the top-level wire message.
type Envelope struct {
	MsgType    MsgType         `json:"msgtype"`
	MsgContent json.RawMessage `json:"msgcontent"`
}

// CommandRequest asks the ground station to issue a command to a board.
type CommandRequest struct {
	Command  string         `json:"command"`
	Board    string         `json:"board"`
	Settings map[string]any `json:"settings"`
}
