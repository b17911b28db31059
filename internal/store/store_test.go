package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err, "open test store")
	t.Cleanup(func() { s.Close() })
	return s
}

func countRows(t *testing.T, s *Store, subject, course string) int {
	t.Helper()
	var n int
	err := s.DB().QueryRow(
		`SELECT COUNT(*) FROM learn_record WHERE subject = ? AND course_id = ?`, subject, course,
	).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.RegisterCourses(context.Background(), "S", 1, []string{"c1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Initialize(context.Background()))

	recs, err := s.Records(context.Background(), "S", 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)

	var mode string
	require.NoError(t, s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestRegisterCourses_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ids := []string{"c1", "c2", "c3"}

	n, err := s.RegisterCourses(ctx, "S", 2, ids)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, s.MarkProcessed(ctx, "S", "c2", 2))

	n, err = s.RegisterCourses(ctx, "S", 2, ids)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "re-registration inserts nothing")

	recs, err := s.Records(ctx, "S", 2)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.False(t, recs[0].Processed)
	assert.True(t, recs[1].Processed, "existing processed flag preserved")
	assert.False(t, recs[2].Processed)
}

func TestRegisterCourses_AppendsNewlyDiscovered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.RegisterCourses(ctx, "S", 1, []string{"c1", "c2"})
	require.NoError(t, err)
	n, err := s.RegisterCourses(ctx, "S", 1, []string{"c0", "c1", "c2", "c3"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := s.Records(ctx, "S", 1)
	require.NoError(t, err)
	var got []string
	for _, r := range recs {
		got = append(got, r.CourseID)
	}
	assert.Equal(t, []string{"c1", "c2", "c0", "c3"}, got, "discovery order, not catalog order")
}

func TestRegisterCourses_Empty(t *testing.T) {
	s := openTestStore(t)
	n, err := s.RegisterCourses(context.Background(), "S", 1, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNextUnprocessed_Resumption(t *testing.T) {
	ids := []string{"c1", "c2", "c3", "c4"}

	for k := 0; k <= len(ids); k++ {
		s := openTestStore(t)
		ctx := context.Background()
		_, err := s.RegisterCourses(ctx, "S", 1, ids)
		require.NoError(t, err)
		for _, id := range ids[:k] {
			require.NoError(t, s.MarkProcessed(ctx, "S", id, 1))
		}

		got, ok, err := s.NextUnprocessed(ctx, "S", 1)
		require.NoError(t, err)
		if k == len(ids) {
			assert.False(t, ok, "k=%d", k)
			assert.Empty(t, got)
			continue
		}
		assert.True(t, ok, "k=%d", k)
		assert.Equal(t, ids[k], got, "k=%d", k)
	}
}

func TestNextUnprocessed_UnknownSubject(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.NextUnprocessed(context.Background(), "nope", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkProcessed_Twice(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.RegisterCourses(ctx, "S", 1, []string{"c1"})
	require.NoError(t, err)

	require.NoError(t, s.MarkProcessed(ctx, "S", "c1", 1))
	require.NoError(t, s.MarkProcessed(ctx, "S", "c1", 1))

	assert.Equal(t, 1, countRows(t, s, "S", "c1"))
	done, err := s.ProcessedCourses(ctx, "S", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, done)
}

func TestSemesterIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.RegisterCourses(ctx, "S", 1, []string{"c1", "c2"})
	require.NoError(t, err)
	n, err := s.RegisterCourses(ctx, "S", 2, []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "same ids in another semester are new records")
	assert.Equal(t, 2, countRows(t, s, "S", "c1"))

	require.NoError(t, s.MarkProcessed(ctx, "S", "c1", 1))

	next1, ok, err := s.NextUnprocessed(ctx, "S", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c2", next1)

	next2, ok, err := s.NextUnprocessed(ctx, "S", 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c1", next2)
}

func TestResumeScenario(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.RegisterCourses(ctx, "S", 2, []string{"c1", "c2", "c3"})
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed(ctx, "S", "c1", 2))

	next, ok, err := s.NextUnprocessed(ctx, "S", 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "c2", next)

	require.NoError(t, s.MarkProcessed(ctx, "S", next, 2))

	recs, err := s.Records(ctx, "S", 2)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.True(t, recs[0].Processed)
	assert.True(t, recs[1].Processed)
	assert.False(t, recs[2].Processed)
}

func TestSummary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.RegisterCourses(ctx, "B", 1, []string{"b1", "b2"})
	require.NoError(t, err)
	_, err = s.RegisterCourses(ctx, "A", 1, []string{"a1", "a2", "a3", "a4"})
	require.NoError(t, err)
	_, err = s.RegisterCourses(ctx, "A", 9, []string{"a1"})
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed(ctx, "A", "a1", 1))
	require.NoError(t, s.MarkProcessed(ctx, "A", "a2", 1))

	got, err := s.Summary(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, SubjectProgress{Subject: "B", Total: 2, Processed: 0}, got[0])
	assert.Equal(t, SubjectProgress{Subject: "A", Total: 4, Processed: 2}, got[1])
	assert.InDelta(t, 0.5, got[1].Percent(), 1e-9)
	assert.Zero(t, SubjectProgress{}.Percent())
}

func TestClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.RegisterCourses(ctx, "A", 1, []string{"a1", "a2"})
	require.NoError(t, err)
	_, err = s.RegisterCourses(ctx, "A", 2, []string{"a1"})
	require.NoError(t, err)
	_, err = s.RegisterCourses(ctx, "B", 1, []string{"b1"})
	require.NoError(t, err)

	n, err := s.ClearSubject(ctx, "A")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	recs, err := s.Records(ctx, "B", 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	n, err = s.ClearAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestInitialize_MigratesLegacyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE IF NOT EXISTS learn_record (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		course_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		semester INTEGER NOT NULL,
		processed INTEGER DEFAULT 0,
		UNIQUE(subject, course_id)
	)`)
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO learn_record (subject, course_id, semester, processed)
		VALUES ('S', 'c1', 3, 1), ('S', 'c2', 3, 0)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	next, ok, err := s.NextUnprocessed(ctx, "S", 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c2", next, "legacy progress survives migration")

	n, err := s.RegisterCourses(ctx, "S", 4, []string{"c1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "new uniqueness admits another semester")
}
