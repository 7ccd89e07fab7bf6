// Package monitor is the operator console. Model is a Bubble Tea program
// showing the latest record per board, the operator controls and the GPS
// marker; Bridge adapts a running program to the channel's Renderer,
// Notifier and MapWidget. Log is the headless equivalent writing through
// slog.
package monitor
