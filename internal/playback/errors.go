package playback

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotStarted means elapsed time never moved past zero.
	ErrNotStarted = errors.New("playback did not start")
	// ErrNoDuration means the video never reported a positive duration.
	ErrNoDuration = errors.New("video duration unavailable")
)

// TimeoutError means polling outlived its budget before the video finished.
type TimeoutError struct {
	Elapsed  float64
	Duration float64
	Waited   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("playback timed out after %s at %.1fs of %.1fs", e.Waited, e.Elapsed, e.Duration)
}

// IsTransient reports whether err is a playback failure that a reload may
// clear.
func IsTransient(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) || errors.Is(err, ErrNotStarted) || errors.Is(err, ErrNoDuration)
}
