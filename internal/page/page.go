// Package page defines the contract the traversal engine drives a course
// catalog through. Implementations own a single automated browsing session.
package page

import "context"

// Video is an opaque handle to a started video.
type Video struct {
	Ref string
}

// Page is the catalog automation surface. All methods may fail with a
// *Fault for conditions that a reload is expected to clear; any other error
// is fatal for the run.
type Page interface {
	// ListSubjects returns subject display names in catalog order.
	ListSubjects(ctx context.Context) ([]string, error)

	// OpenSubject navigates to the subject at index and enters its course list.
	OpenSubject(ctx context.Context, index int) error

	// ListCourses returns the course ids of the open subject in catalog order.
	ListCourses(ctx context.Context) ([]string, error)

	OpenCourse(ctx context.Context, courseID string) error
	StartPlayback(ctx context.Context) (Video, error)
	ReadElapsed(ctx context.Context, v Video) (float64, error)
	ReadDuration(ctx context.Context, v Video) (float64, error)

	// NavigateBack returns from a course to the subject's course list.
	NavigateBack(ctx context.Context) error

	// ReestablishSession reloads the site and re-applies credentials.
	ReestablishSession(ctx context.Context) error

	// Close releases the session.
	Close() error
}
