// Package playback watches a started video until it finishes or stalls.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/abhisek/coursewalk/internal/page"
)

// Status is the outcome of watching a video.
type Status int

const (
	Completed Status = iota
	TimedOut
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Player reads a video's clock.
type Player interface {
	ReadElapsed(ctx context.Context, v page.Video) (float64, error)
	ReadDuration(ctx context.Context, v page.Video) (float64, error)
}

// Monitor blocks until a video completes. It never touches progress state.
type Monitor struct {
	player     Player
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	onProgress func(fraction float64)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger for progress checkpoints.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithClock replaces the wall clock and the sleep function.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Monitor) {
		m.now = now
		m.sleep = sleep
	}
}

// WithProgress registers a callback invoked at every checkpoint.
func WithProgress(fn func(fraction float64)) Option {
	return func(m *Monitor) { m.onProgress = fn }
}

// New creates a Monitor reading clocks through p.
func New(p Player, cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		player: p,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WaitDuration reads the video duration until it is positive, within the
// configured attempt budget.
func (m *Monitor) WaitDuration(ctx context.Context, v page.Video) (float64, error) {
	attempts := max(m.cfg.DurationAttempts, 1)
	for attempt := range attempts {
		d, err := m.player.ReadDuration(ctx, v)
		if err != nil {
			return 0, err
		}
		if d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d) {
			return d, nil
		}
		m.logger.Warn("video duration not ready",
			slog.Int("attempt", attempt+1),
			slog.Float64("duration", d),
		)
		if attempt == attempts-1 {
			break
		}
		if err := m.sleep(ctx, m.cfg.DurationWait); err != nil {
			return 0, err
		}
	}
	return 0, ErrNoDuration
}

// Await blocks until v has played to within Slack of duration seconds.
// It returns ErrNotStarted if playback never begins, and TimedOut with a
// *TimeoutError once polling exceeds TimeoutFactor times the duration.
func (m *Monitor) Await(ctx context.Context, v page.Video, duration float64) (Status, error) {
	if duration <= 0 {
		return TimedOut, ErrNoDuration
	}
	if err := m.awaitStart(ctx, v); err != nil {
		return TimedOut, err
	}

	start := m.now()
	budget := time.Duration(duration * m.cfg.TimeoutFactor * float64(time.Second))
	reported := 0

	for {
		elapsed, err := m.player.ReadElapsed(ctx, v)
		if err != nil {
			return TimedOut, err
		}

		progress := elapsed / duration
		if m.cfg.ReportStep > 0 {
			// Epsilon absorbs float error at exact boundaries (0.6/0.1).
			if bucket := int(math.Floor(progress/m.cfg.ReportStep + 1e-9)); bucket > reported {
				reported = bucket
				m.logger.Info("playback progress", slog.String("progress", fmt.Sprintf("%.1f%%", progress*100)))
				if m.onProgress != nil {
					m.onProgress(float64(bucket) * m.cfg.ReportStep)
				}
			}
		}

		if elapsed >= duration-m.cfg.Slack {
			return Completed, nil
		}

		if waited := m.now().Sub(start); waited > budget {
			return TimedOut, &TimeoutError{Elapsed: elapsed, Duration: duration, Waited: waited}
		}

		if err := m.sleep(ctx, m.cfg.PollInterval); err != nil {
			return TimedOut, err
		}
	}
}

func (m *Monitor) awaitStart(ctx context.Context, v page.Video) error {
	deadline := m.now().Add(m.cfg.StartTimeout)
	for {
		elapsed, err := m.player.ReadElapsed(ctx, v)
		if err != nil {
			return err
		}
		if elapsed > 0 {
			return nil
		}
		if !m.now().Before(deadline) {
			return fmt.Errorf("%w within %s", ErrNotStarted, m.cfg.StartTimeout)
		}
		if err := m.sleep(ctx, m.cfg.StartPoll); err != nil {
			return err
		}
	}
}

// FormatClock renders seconds as HH:MM:SS.
func FormatClock(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
