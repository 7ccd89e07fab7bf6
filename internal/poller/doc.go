// Package poller requests telemetry from the EduCube on a fixed interval.
//
// The Poller:
//   - Requests telemetry from each configured board, immediately on start
//     and then every interval (5 seconds by default)
//   - Bounds concurrent requests and gives each a timeout
//   - Logs a summary of every cycle
//
// Boards only transmit telemetry when asked, so without a poller the
// ground station receives nothing but debug output.
package poller
