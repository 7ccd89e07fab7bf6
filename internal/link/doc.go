// Package link talks to the EduCube CDH board over a serial line.
//
// Received bytes are framed on CRLF and decoded as latin-1. Each line is
// classified as telemetry (T|...), board debug output (DEBUG|...) or
// unrecognised, and emitted on Lines. Commands are queued and written by a
// dedicated goroutine so callers never block on the port.
//
// Telemetry lines and transmitted commands are appended to an optional
// Transcript, one tab-separated entry per line:
//
//	<epoch ms>	>>>	T|CDH|GPS,...
//	<epoch ms>	<<<	[C|CDH|T]
package link
