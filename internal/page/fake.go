package page

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Op names a Page operation for fault injection and call recording.
type Op string

const (
	OpListSubjects       Op = "list_subjects"
	OpOpenSubject        Op = "open_subject"
	OpListCourses        Op = "list_courses"
	OpOpenCourse         Op = "open_course"
	OpStartPlayback      Op = "start_playback"
	OpReadElapsed        Op = "read_elapsed"
	OpReadDuration       Op = "read_duration"
	OpNavigateBack       Op = "navigate_back"
	OpReestablishSession Op = "reestablish_session"
)

// FakeCourse is a scripted course with its video length in seconds.
type FakeCourse struct {
	ID       string
	Duration float64
}

// FakeSubject is a scripted subject.
type FakeSubject struct {
	Name    string
	Courses []FakeCourse
}

// Call records one Page invocation. Arg is the subject name for subject
// operations, the course id for course operations, and empty otherwise.
type Call struct {
	Op  Op
	Arg string
}

type injectedFault struct {
	op        Op
	key       string
	remaining int
	err       error
}

// Fake is a deterministic in-memory Page for testing.
// It serves a scripted catalog, records every call, and fails operations on
// demand.
type Fake struct {
	mu       sync.Mutex
	subjects []FakeSubject
	faults   []*injectedFault

	// ElapsedStep is how many seconds playback advances per ReadElapsed call.
	// Zero makes the first read report the full duration.
	ElapsedStep float64

	Calls []Call

	subject int
	course  *FakeCourse
	played  []string
	playing bool
	elapsed float64
	closed  int
}

// NewFake creates a Fake serving the given catalog.
func NewFake(subjects ...FakeSubject) *Fake {
	return &Fake{subjects: subjects, subject: -1}
}

// Fail makes op fail times times (negative means forever) when its Arg
// matches key; an empty key matches any call. A nil err injects a
// navigation *Fault.
func (f *Fake) Fail(op Op, key string, times int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, &injectedFault{op: op, key: key, remaining: times, err: err})
}

// Count returns the number of calls to op whose Arg equals arg; an empty arg
// counts all calls to op.
func (f *Fake) Count(op Op, arg string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c.Op == op && (arg == "" || c.Arg == arg) {
			n++
		}
	}
	return n
}

// Played returns the course ids whose playback started successfully, in
// order.
func (f *Fake) Played() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...)
}

// Closed returns how many times Close was called.
func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// record appends the call and returns the injected error for it, if any.
// Caller must hold f.mu.
func (f *Fake) record(op Op, arg string) error {
	f.Calls = append(f.Calls, Call{Op: op, Arg: arg})
	for _, fl := range f.faults {
		if fl.op != op || (fl.key != "" && fl.key != arg) || fl.remaining == 0 {
			continue
		}
		if fl.remaining > 0 {
			fl.remaining--
		}
		if fl.err != nil {
			return fl.err
		}
		return NewFault(KindNavigation, string(op), errors.New("injected"))
	}
	return nil
}

func (f *Fake) currentSubject() string {
	if f.subject < 0 || f.subject >= len(f.subjects) {
		return ""
	}
	return f.subjects[f.subject].Name
}

func (f *Fake) currentCourse() string {
	if f.course == nil {
		return ""
	}
	return f.course.ID
}

func (f *Fake) ListSubjects(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpListSubjects, ""); err != nil {
		return nil, err
	}
	names := make([]string, len(f.subjects))
	for i, s := range f.subjects {
		names[i] = s.Name
	}
	return names, nil
}

func (f *Fake) OpenSubject(ctx context.Context, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := ""
	if index >= 0 && index < len(f.subjects) {
		name = f.subjects[index].Name
	}
	if err := f.record(OpOpenSubject, name); err != nil {
		return err
	}
	if name == "" {
		return NewFault(KindNotFound, "open subject", fmt.Errorf("no subject at index %d", index))
	}
	f.subject = index
	f.course = nil
	f.playing = false
	return nil
}

func (f *Fake) ListCourses(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpListCourses, f.currentSubject()); err != nil {
		return nil, err
	}
	if f.currentSubject() == "" {
		return nil, NewFault(KindNotFound, "list courses", errors.New("no subject open"))
	}
	courses := f.subjects[f.subject].Courses
	ids := make([]string, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
	}
	return ids, nil
}

func (f *Fake) OpenCourse(ctx context.Context, courseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpOpenCourse, courseID); err != nil {
		return err
	}
	if f.currentSubject() == "" {
		return NewFault(KindNotFound, "open course", errors.New("no subject open"))
	}
	for i := range f.subjects[f.subject].Courses {
		c := &f.subjects[f.subject].Courses[i]
		if c.ID == courseID {
			f.course = c
			f.playing = false
			f.elapsed = 0
			return nil
		}
	}
	return NewFault(KindNotFound, "open course", fmt.Errorf("course %q not listed", courseID))
}

func (f *Fake) StartPlayback(ctx context.Context) (Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpStartPlayback, f.currentCourse()); err != nil {
		return Video{}, err
	}
	if f.course == nil {
		return Video{}, NewFault(KindNotFound, "start playback", errors.New("no course open"))
	}
	f.playing = true
	f.played = append(f.played, f.course.ID)
	return Video{Ref: f.course.ID}, nil
}

func (f *Fake) ReadElapsed(ctx context.Context, v Video) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpReadElapsed, v.Ref); err != nil {
		return 0, err
	}
	if f.course == nil || f.course.ID != v.Ref || !f.playing {
		return 0, NewFault(KindStale, "read elapsed", fmt.Errorf("video %q is gone", v.Ref))
	}
	if f.ElapsedStep <= 0 {
		f.elapsed = f.course.Duration
	} else {
		f.elapsed = min(f.elapsed+f.ElapsedStep, f.course.Duration)
	}
	return f.elapsed, nil
}

func (f *Fake) ReadDuration(ctx context.Context, v Video) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpReadDuration, v.Ref); err != nil {
		return 0, err
	}
	if f.course == nil || f.course.ID != v.Ref {
		return 0, NewFault(KindStale, "read duration", fmt.Errorf("video %q is gone", v.Ref))
	}
	return f.course.Duration, nil
}

func (f *Fake) NavigateBack(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpNavigateBack, f.currentCourse()); err != nil {
		return err
	}
	f.course = nil
	f.playing = false
	return nil
}

func (f *Fake) ReestablishSession(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpReestablishSession, ""); err != nil {
		return err
	}
	f.subject = -1
	f.course = nil
	f.playing = false
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}
