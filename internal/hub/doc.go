// Package hub serves operator consoles over WebSocket.
//
// Each console connected to /ws receives the latest record of every board on
// join, then every telemetry record as it arrives. Command envelopes read
// from a console are handed to the station. Consoles that fall behind are
// disconnected so a slow reader never stalls the broadcast.
//
// /health reports the state of registered checks and /telemetry serves the
// current store snapshot as JSON.
package hub
