//go:build !linux

package command

import (
	"errors"
	"time"
)

var errNoBootClock = errors.New("boot clock not supported on this platform")

func sinceBoot() (time.Duration, error) {
	return 0, errNoBootClock
}

func kernelRelease() (string, error) {
	return "", errNoBootClock
}
