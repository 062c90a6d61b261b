//go:build !unix

package throttle

import (
	"errors"
	"time"
)

// processCPUTime is not implemented on this platform; the limiter disables
// itself when sampling fails.
func processCPUTime() (time.Duration, error) {
	return 0, errors.ErrUnsupported
}
