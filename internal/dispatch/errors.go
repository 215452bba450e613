package dispatch

import (
	"errors"
	"time"
)

// ErrPermanent marks a send failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent delivery failure")

// IsPermanent reports whether err is ErrPermanent or carries a
// Permanent() bool method returning true.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) {
		return true
	}
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}

// retryAfter extracts a server-requested delay, if any.
func retryAfter(err error) time.Duration {
	var r interface{ RetryAfterDelay() time.Duration }
	if errors.As(err, &r) {
		return r.RetryAfterDelay()
	}
	return 0
}
