package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// LearnRecord is one discovered course in one semester.
type LearnRecord struct {
	ID        int64
	Subject   string
	CourseID  string
	Semester  int
	Processed bool
}

// SubjectProgress summarizes a subject's records for one semester.
type SubjectProgress struct {
	Subject   string
	Total     int
	Processed int
}

// Percent returns the processed fraction in [0, 1].
func (p SubjectProgress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.Total)
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func scope(subject string, semester int) *entsql.Predicate {
	return entsql.And(
		entsql.EQ("subject", subject),
		entsql.EQ("semester", semester),
	)
}

// RegisterCourses inserts one unprocessed row per course id, in order.
// Rows that already exist for (subject, course, semester) are left untouched,
// so reloading a course list never clears completed work. It returns the
// number of rows actually inserted.
func (s *Store) RegisterCourses(ctx context.Context, subject string, semester int, courseIDs []string) (int, error) {
	if len(courseIDs) == 0 {
		return 0, nil
	}
	var inserted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// One statement per id keeps insertion order equal to discovery
		// order and stays clear of SQLite's bound-parameter limit.
		for _, id := range courseIDs {
			query, args := builder().Insert(recordTable).
				Columns("subject", "course_id", "semester").
				Values(subject, id, semester).
				OnConflict(
					entsql.ConflictColumns("subject", "course_id", "semester"),
					entsql.DoNothing(),
				).
				Query()
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("insert course %q: %w", id, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("register courses for %q: %w", subject, err)
	}
	return int(inserted), nil
}

// NextUnprocessed returns the earliest-discovered course of subject that is
// not yet processed in semester. ok is false when the subject is complete.
func (s *Store) NextUnprocessed(ctx context.Context, subject string, semester int) (courseID string, ok bool, err error) {
	query, args := builder().Select("course_id").
		From(entsql.Table(recordTable)).
		Where(entsql.And(scope(subject, semester), entsql.EQ("processed", false))).
		OrderBy("id").
		Limit(1).
		Query()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, query, args...).Scan(&courseID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("next unprocessed for %q: %w", subject, err)
	}
	return courseID, true, nil
}

// MarkProcessed flags a course as fully played. Marking twice is a no-op.
func (s *Store) MarkProcessed(ctx context.Context, subject, courseID string, semester int) error {
	query, args := builder().Update(recordTable).
		Set("processed", true).
		Where(entsql.And(scope(subject, semester), entsql.EQ("course_id", courseID))).
		Query()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark %q processed: %w", courseID, err)
	}
	return nil
}

// ProcessedCourses returns the processed course ids of subject in semester,
// in discovery order.
func (s *Store) ProcessedCourses(ctx context.Context, subject string, semester int) ([]string, error) {
	query, args := builder().Select("course_id").
		From(entsql.Table(recordTable)).
		Where(entsql.And(scope(subject, semester), entsql.EQ("processed", true))).
		OrderBy("id").
		Query()

	var ids []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("processed courses for %q: %w", subject, err)
	}
	return ids, nil
}

// Records returns every record of subject in semester, in discovery order.
func (s *Store) Records(ctx context.Context, subject string, semester int) ([]LearnRecord, error) {
	query, args := builder().Select("id", "subject", "course_id", "semester", "processed").
		From(entsql.Table(recordTable)).
		Where(scope(subject, semester)).
		OrderBy("id").
		Query()

	var out []LearnRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r LearnRecord
			if err := rows.Scan(&r.ID, &r.Subject, &r.CourseID, &r.Semester, &r.Processed); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("records for %q: %w", subject, err)
	}
	return out, nil
}

// Summary returns per-subject progress for semester, ordered by the first
// time each subject was discovered.
func (s *Store) Summary(ctx context.Context, semester int) ([]SubjectProgress, error) {
	query, args := builder().Select(
		"subject",
		entsql.Count("*"),
		entsql.Sum("processed"),
		entsql.As(entsql.Min("id"), "first_id"),
	).
		From(entsql.Table(recordTable)).
		Where(entsql.EQ("semester", semester)).
		GroupBy("subject").
		OrderBy("first_id").
		Query()

	var out []SubjectProgress
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				p       SubjectProgress
				firstID int64
			)
			if err := rows.Scan(&p.Subject, &p.Total, &p.Processed, &firstID); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("summary for semester %d: %w", semester, err)
	}
	return out, nil
}

// ClearAll deletes every record and returns how many were removed.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	query, args := builder().Delete(recordTable).Query()
	n, err := s.execCount(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("clear all: %w", err)
	}
	return n, nil
}

// ClearSubject deletes every record of subject across all semesters.
func (s *Store) ClearSubject(ctx context.Context, subject string) (int64, error) {
	query, args := builder().Delete(recordTable).
		Where(entsql.EQ("subject", subject)).
		Query()
	n, err := s.execCount(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("clear subject %q: %w", subject, err)
	}
	return n, nil
}

func (s *Store) execCount(ctx context.Context, query string, args []any) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
