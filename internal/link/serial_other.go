//go:build !linux

package link

import (
	"errors"
	"runtime"
)

// OpenSerial is only implemented on Linux. Use the fake port elsewhere.
func OpenSerial(path string, baud int) (Port, error) {
	return nil, errors.New("serial ports are not supported on " + runtime.GOOS)
}
