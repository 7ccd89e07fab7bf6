// Package relay mirrors ground station telemetry onto an MQTT broker and
// accepts commands from it.
//
// Topics, under a configurable prefix:
//
//	<prefix>/<board>/telemetry   record JSON, one message per record
//	<prefix>/command             command envelopes, same format as the console
//	<prefix>/status              "online" / "offline", retained
package relay
