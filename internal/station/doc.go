// Package station is the ground station core.
//
// It consumes lines from the serial link, parses telemetry lines into
// records, stores the latest record per board, and hands each record to
// the configured publishers (console hub, archive, MQTT relay). In the
// other direction it turns operator command requests into framed EduCube
// commands and queues them on the link.
package station
