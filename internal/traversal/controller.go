// Package traversal walks a course catalog subject by subject, playing every
// unprocessed course and checkpointing each completion so an interrupted run
// can resume at the exact next course.
package traversal

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/abhisek/coursewalk/internal/page"
	"github.com/abhisek/coursewalk/internal/playback"
)

// ProgressStore is the durable completion table the controller resumes from.
type ProgressStore interface {
	RegisterCourses(ctx context.Context, subject string, semester int, courseIDs []string) (int, error)
	NextUnprocessed(ctx context.Context, subject string, semester int) (string, bool, error)
	MarkProcessed(ctx context.Context, subject, courseID string, semester int) error
	ProcessedCourses(ctx context.Context, subject string, semester int) ([]string, error)
}

// Watcher waits for a started video to finish.
type Watcher interface {
	WaitDuration(ctx context.Context, v page.Video) (float64, error)
	Await(ctx context.Context, v page.Video, duration float64) (playback.Status, error)
}

// Options configures a Controller.
type Options struct {
	// Semester tags every record written by the run.
	Semester int
	// MaxRetries is the recovery budget per course. Zero disables recovery.
	MaxRetries int
	Logger     *slog.Logger
	// RunID correlates log lines; a random id is used when empty.
	RunID string
}

// Report summarizes a finished run.
type Report struct {
	RunID      string
	Outcome    Outcome
	Semester   int
	Subjects   int // subjects entered
	Completed  int // courses marked processed by this run
	Recoveries int // page reloads performed
	// Subject and Course locate the cursor when the run ended.
	Subject string
	Course  string
}

// Controller drives the traversal state machine. It owns the page for the
// duration of Run and closes it on exit.
type Controller struct {
	page    page.Page
	store   ProgressStore
	watcher Watcher
	opts    Options
}

// New creates a Controller.
func New(p page.Page, st ProgressStore, w Watcher, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Controller{page: p, store: st, watcher: w, opts: opts}
}

// run is the mutable state of one Run call.
type run struct {
	start     string
	subjects  []string
	cursor    Cursor
	processed map[string]bool
	// active is the course whose play or return is in progress.
	active    string
	policy    *RetryPolicy
	retryFrom State

	err         error
	interrupted bool
	report      Report
	log         *slog.Logger
}

// Run traverses the catalog starting at startSubject (or the first subject
// when empty or unknown). It returns a nil error only when every subject was
// walked to the end. Progress committed before a failure stays valid for the
// next run with the same semester.
func (c *Controller) Run(ctx context.Context, startSubject string) (Report, error) {
	r := &run{
		start:  startSubject,
		cursor: Cursor{SubjectIndex: -1},
		policy: NewRetryPolicy(c.opts.MaxRetries),
		report: Report{RunID: c.opts.RunID, Semester: c.opts.Semester},
		log: c.opts.Logger.With(
			slog.String("run_id", c.opts.RunID),
			slog.Int("semester", c.opts.Semester),
		),
	}
	r.log.Info("run started", slog.String("start_subject", startSubject))

	state := StateSelectSubject
	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			state = r.interrupt(err)
			break
		}
		next := c.step(ctx, r, state)
		r.log.Debug("transition", slog.String("from", state.String()), slog.String("to", next.String()))
		state = next
	}

	if err := c.page.Close(); err != nil {
		r.log.Warn("release page", slog.Any("error", err))
	}

	r.report.Subject = r.cursor.Subject
	r.report.Course = r.cursor.Course()
	if r.active != "" {
		r.report.Course = r.active
	}

	switch {
	case state == StateDone:
		r.report.Outcome = OutcomeDone
		r.log.Info("run complete",
			slog.Int("subjects", r.report.Subjects),
			slog.Int("completed", r.report.Completed),
		)
		return r.report, nil
	case r.interrupted:
		r.report.Outcome = OutcomeInterrupted
		r.log.Info("run interrupted by user",
			slog.String("subject", r.report.Subject),
			slog.Int("completed", r.report.Completed),
		)
	default:
		r.report.Outcome = OutcomeAborted
		r.log.Error("run aborted",
			slog.String("subject", r.report.Subject),
			slog.String("course", r.report.Course),
			slog.Any("error", r.err),
		)
	}
	return r.report, r.err
}

func (c *Controller) step(ctx context.Context, r *run, s State) State {
	switch s {
	case StateSelectSubject:
		return c.selectSubject(ctx, r)
	case StateLoadCourses:
		return c.loadCourses(ctx, r)
	case StateResumeCursor:
		return c.resumeCursor(ctx, r)
	case StateProcessCourse:
		return c.processCourse(ctx, r)
	case StateRetry:
		return c.retry(ctx, r)
	case StateNextSubject:
		return c.nextSubject(r)
	}
	return r.abort(fmt.Errorf("unexpected state %s", s))
}

func (c *Controller) selectSubject(ctx context.Context, r *run) State {
	if r.subjects == nil {
		subjects, err := c.page.ListSubjects(ctx)
		if err != nil {
			return c.fail(ctx, r, "subject list", StateSelectSubject, err)
		}
		if len(subjects) == 0 {
			r.log.Warn("catalog has no subjects")
			return StateDone
		}
		r.subjects = subjects
		r.log.Info("subjects loaded", slog.Int("count", len(subjects)), slog.Any("subjects", subjects))

		idx := 0
		if r.start != "" {
			if i := slices.Index(subjects, r.start); i >= 0 {
				idx = i
			} else {
				r.log.Warn("start subject not found, starting from the first", slog.String("subject", r.start))
			}
		}
		r.enterSubject(idx)
	}

	if err := c.page.OpenSubject(ctx, r.cursor.SubjectIndex); err != nil {
		return c.fail(ctx, r, fmt.Sprintf("subject %q", r.cursor.Subject), StateSelectSubject, err)
	}
	r.log.Info("processing subject",
		slog.String("subject", r.cursor.Subject),
		slog.Int("index", r.cursor.SubjectIndex),
	)
	return StateLoadCourses
}

func (c *Controller) loadCourses(ctx context.Context, r *run) State {
	ids, err := c.page.ListCourses(ctx)
	if err != nil {
		return c.fail(ctx, r, fmt.Sprintf("subject %q", r.cursor.Subject), StateLoadCourses, err)
	}
	added, err := c.store.RegisterCourses(ctx, r.cursor.Subject, c.opts.Semester, ids)
	if err != nil {
		return r.storeFailed(ctx, err)
	}
	r.cursor.Courses = ids
	r.log.Info("courses loaded",
		slog.String("subject", r.cursor.Subject),
		slog.Int("count", len(ids)),
		slog.Int("new", added),
	)
	return StateResumeCursor
}

func (c *Controller) resumeCursor(ctx context.Context, r *run) State {
	next, ok, err := c.store.NextUnprocessed(ctx, r.cursor.Subject, c.opts.Semester)
	if err != nil {
		return r.storeFailed(ctx, err)
	}
	if !ok {
		r.log.Info("subject already complete", slog.String("subject", r.cursor.Subject))
		return StateNextSubject
	}

	idx := slices.Index(r.cursor.Courses, next)
	if idx < 0 {
		r.log.Warn("stored course not in catalog, resuming from the first course",
			slog.String("subject", r.cursor.Subject),
			slog.String("course", next),
		)
		idx = 0
	}

	done, err := c.store.ProcessedCourses(ctx, r.cursor.Subject, c.opts.Semester)
	if err != nil {
		return r.storeFailed(ctx, err)
	}
	r.processed = make(map[string]bool, len(done))
	for _, id := range done {
		r.processed[id] = true
	}

	r.cursor.CourseIndex = idx
	r.log.Info("resuming subject",
		slog.String("subject", r.cursor.Subject),
		slog.String("course", r.cursor.Course()),
		slog.Int("position", idx),
	)
	return StateProcessCourse
}

func (c *Controller) processCourse(ctx context.Context, r *run) State {
	for r.cursor.Course() != "" && r.processed[r.cursor.Course()] {
		r.cursor.CourseIndex++
	}
	course := r.cursor.Course()
	if course == "" {
		return StateNextSubject
	}

	r.active = course
	if err := c.playCourse(ctx, r, course); err != nil {
		return c.fail(ctx, r, fmt.Sprintf("course %q in %q", course, r.cursor.Subject), StateProcessCourse, err)
	}

	// A finished playback is committed even if the run is being interrupted.
	if err := c.store.MarkProcessed(context.WithoutCancel(ctx), r.cursor.Subject, course, c.opts.Semester); err != nil {
		return r.storeFailed(ctx, err)
	}
	r.processed[course] = true
	r.report.Completed++
	r.cursor.CourseIndex++
	r.log.Info("course complete", slog.String("subject", r.cursor.Subject), slog.String("course", course))

	if err := c.page.NavigateBack(ctx); err != nil {
		return c.fail(ctx, r, fmt.Sprintf("return from course %q", course), StateProcessCourse, err)
	}
	r.active = ""
	return StateProcessCourse
}

func (c *Controller) playCourse(ctx context.Context, r *run, course string) error {
	r.log.Info("opening course", slog.String("course", course))
	if err := c.page.OpenCourse(ctx, course); err != nil {
		return err
	}
	video, err := c.page.StartPlayback(ctx)
	if err != nil {
		return err
	}
	duration, err := c.watcher.WaitDuration(ctx, video)
	if err != nil {
		return err
	}
	r.log.Info("playback started",
		slog.String("course", course),
		slog.String("duration", playback.FormatClock(duration)),
	)
	status, err := c.watcher.Await(ctx, video, duration)
	if err != nil {
		return err
	}
	if status != playback.Completed {
		return fmt.Errorf("course %q ended with status %s", course, status)
	}
	return nil
}

func (c *Controller) retry(ctx context.Context, r *run) State {
	r.report.Recoveries++
	r.log.Info("recovering page", slog.String("subject", r.cursor.Subject))
	if err := recoverPage(ctx, c.page, r.cursor.SubjectIndex); err != nil {
		if ctx.Err() != nil {
			return r.interrupt(ctx.Err())
		}
		if !isTransient(err) {
			return r.abort(err)
		}
		// The retried step fails again and spends budget, so this stays bounded.
		r.log.Warn("recovery incomplete", slog.Any("error", err))
	}
	return r.retryFrom
}

func (c *Controller) nextSubject(r *run) State {
	next := r.cursor.SubjectIndex + 1
	if next >= len(r.subjects) {
		return StateDone
	}
	r.enterSubject(next)
	return StateSelectSubject
}

// fail routes a step error: transient faults go to Retry while budget
// remains, everything else aborts the run.
func (c *Controller) fail(ctx context.Context, r *run, unit string, from State, err error) State {
	if ctx.Err() != nil {
		return r.interrupt(ctx.Err())
	}
	if !isTransient(err) {
		return r.abort(err)
	}
	if !r.policy.Allow(unit) {
		return r.abort(fmt.Errorf("%w: %s after %d recoveries: %w", ErrRetriesExhausted, unit, r.policy.MaxRetries, err))
	}
	r.log.Warn("transient fault",
		slog.String("unit", unit),
		slog.Int("attempt", r.policy.Used()),
		slog.Int("max_retries", r.policy.MaxRetries),
		slog.Any("error", err),
	)
	r.retryFrom = from
	return StateRetry
}

func (r *run) enterSubject(idx int) {
	r.cursor = Cursor{Subject: r.subjects[idx], SubjectIndex: idx}
	r.processed = nil
	r.active = ""
	r.policy.Reset()
	r.report.Subjects++
}

// storeFailed aborts on a store error unless the run is being interrupted,
// in which case the error is the cancellation itself.
func (r *run) storeFailed(ctx context.Context, err error) State {
	if ctx.Err() != nil {
		return r.interrupt(ctx.Err())
	}
	return r.abort(err)
}

func (r *run) abort(err error) State {
	r.err = err
	return StateAborted
}

func (r *run) interrupt(cause error) State {
	r.interrupted = true
	r.err = fmt.Errorf("interrupted: %w", cause)
	return StateAborted
}
