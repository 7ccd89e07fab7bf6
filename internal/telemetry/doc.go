// Package telemetry decodes EduCube board telemetry lines.
//
// A board reports one line per telemetry request:
//
//	T|EPS|I,66,1.67,6.58,17.00|DA,25.72,6.93,975.00|DB,191.69|DC,171.13|C,0
//
// Tokens are separated by "|" and fields within a token by ",". Each board
// (EPS, ADC, EXP, CDH) has its own token grammar. Unknown or short tokens are
// skipped, so a damaged line still yields whatever could be read.
package telemetry
