// Package protocol defines the JSON envelope exchanged between the ground
// station and operator consoles.
//
// Every WebSocket text frame carries one envelope:
//
//	{"msgtype": "telemetry", "msgcontent": {...telemetry record...}}
//	{"msgtype": "command",   "msgcontent": {"command": "...", "board": "...", "settings": {...}}}
//
// New message types are additive. Receivers ignore types they do not know.
package protocol
