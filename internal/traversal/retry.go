package traversal

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/coursewalk/internal/page"
	"github.com/abhisek/coursewalk/internal/playback"
)

// DefaultMaxRetries is the per-course recovery budget.
const DefaultMaxRetries = 3

// ErrRetriesExhausted means a course kept failing after every recovery.
var ErrRetriesExhausted = errors.New("retry budget exhausted")

// RetryPolicy bounds recoveries per unit of work. A unit is a course, or a
// subject while it is being selected and loaded. Budgets live only in memory,
// so every process run starts fresh.
type RetryPolicy struct {
	MaxRetries int

	key  string
	used int
}

// NewRetryPolicy creates a policy allowing maxRetries recoveries per unit.
func NewRetryPolicy(maxRetries int) *RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryPolicy{MaxRetries: maxRetries}
}

// Allow records a fault against key and reports whether another recovery is
// permitted. A key different from the previous one starts a new budget.
func (p *RetryPolicy) Allow(key string) bool {
	if key != p.key {
		p.key = key
		p.used = 0
	}
	if p.used >= p.MaxRetries {
		return false
	}
	p.used++
	return true
}

// Used returns the recoveries spent on the current key.
func (p *RetryPolicy) Used() int {
	return p.used
}

// Reset forgets the current key.
func (p *RetryPolicy) Reset() {
	p.key = ""
	p.used = 0
}

// isTransient classifies errors the policy may retry. Bare context errors
// are not transient; they mean the run is being interrupted.
func isTransient(err error) bool {
	return page.IsTransient(err) || playback.IsTransient(err)
}

// recoverPage reloads the session and, when a subject is known, navigates
// back into its course list.
func recoverPage(ctx context.Context, p page.Page, subjectIndex int) error {
	if err := p.ReestablishSession(ctx); err != nil {
		return fmt.Errorf("reestablish session: %w", err)
	}
	if subjectIndex < 0 {
		return nil
	}
	if err := p.OpenSubject(ctx, subjectIndex); err != nil {
		return fmt.Errorf("reopen subject %d: %w", subjectIndex, err)
	}
	return nil
}
