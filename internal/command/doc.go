// Package command turns operator command requests into EduCube wire commands.
//
// On the ground station, Translate validates a protocol.CommandRequest and
// renders the pipe-delimited string the CDH board understands, for example
// C|ADC|REACT|+|40. Frame wraps it in the square brackets the serial
// protocol expects.
//
// On the console, a Feed holds the operator controls (buttons and sliders).
// Setting a control updates its display text and then sends the request
// through a Sender, usually a channel.Channel.
package command
