package playback

import "time"

// Config controls how a started video is watched.
type Config struct {
	// StartTimeout bounds the wait for elapsed time to move past zero.
	StartTimeout time.Duration
	// StartPoll is the interval between reads while waiting for start.
	StartPoll time.Duration
	// PollInterval is the interval between progress reads.
	PollInterval time.Duration
	// TimeoutFactor multiplies the video duration to get the polling budget.
	TimeoutFactor float64
	// Slack is how many seconds short of the duration still count as done.
	Slack float64
	// ReportStep is the progress fraction between checkpoint logs.
	ReportStep float64
	// DurationAttempts and DurationWait bound the wait for a usable duration.
	DurationAttempts int
	DurationWait     time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StartTimeout:     30 * time.Second,
		StartPoll:        time.Second,
		PollInterval:     5 * time.Second,
		TimeoutFactor:    1.5,
		Slack:            1,
		ReportStep:       0.1,
		DurationAttempts: 3,
		DurationWait:     2 * time.Second,
	}
}
