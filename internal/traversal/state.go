package traversal

import "fmt"

// State is a step of the traversal state machine.
type State int

const (
	StateSelectSubject State = iota // Fetch subjects, open the current one
	StateLoadCourses                // Enumerate and register the subject's courses
	StateResumeCursor               // Find where the subject left off
	StateProcessCourse              // Play the course under the cursor
	StateRetry                      // Recover the page after a transient fault
	StateNextSubject                // Move to the following subject
	StateDone
	StateAborted
)

var stateNames = map[State]string{
	StateSelectSubject: "select_subject",
	StateLoadCourses:   "load_courses",
	StateResumeCursor:  "resume_cursor",
	StateProcessCourse: "process_course",
	StateRetry:         "retry",
	StateNextSubject:   "next_subject",
	StateDone:          "done",
	StateAborted:       "aborted",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Outcome is how a run ended.
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeAborted
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeAborted:
		return "aborted"
	case OutcomeInterrupted:
		return "interrupted"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Cursor is the in-memory working position of a run. It is rebuilt from the
// store each time a subject is entered.
type Cursor struct {
	Subject      string
	SubjectIndex int
	Courses      []string
	CourseIndex  int
}

// Course returns the course under the cursor, or "" past the end.
func (c *Cursor) Course() string {
	if c.CourseIndex < 0 || c.CourseIndex >= len(c.Courses) {
		return ""
	}
	return c.Courses[c.CourseIndex]
}
