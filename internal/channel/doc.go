// Package channel implements the operator console's side of the ground
// station WebSocket.
//
// A Channel owns one connection. It decodes inbound envelopes, rebuilds
// telemetry data from the raw telem line, writes each record into a
// store.Store and hands it to a Renderer. Commands go out through Send.
// Failures the operator should see (a command that could not be sent, a
// dropped connection) are reported through a Notifier; everything else is
// logged and contained.
//
// There is no automatic reconnect. After the connection drops the channel
// keeps rendering from the store and a new Connect may be issued by the
// caller.
package channel
