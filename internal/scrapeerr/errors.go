package scrapeerr

import (
	"context"
	"errors"
	"net"
)

var (
	ErrConfig    = errors.New("invalid configuration")
	ErrDiscovery = errors.New("link discovery failed")
	ErrTimeout   = errors.New("timed out")
	ErrParse     = errors.New("malformed structured data")
	ErrFetch     = errors.New("fetch failed")
	ErrIO        = errors.New("persistence failed")
)

// IsTimeout reports whether err is a timeout from any layer, including
// expired context deadlines and net.Error timeouts.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
