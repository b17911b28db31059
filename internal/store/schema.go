package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const recordTable = "learn_record"

const createRecordTable = `CREATE TABLE IF NOT EXISTS learn_record (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	course_id TEXT    NOT NULL,
	subject   TEXT    NOT NULL,
	semester  INTEGER NOT NULL,
	processed INTEGER NOT NULL DEFAULT 0,
	UNIQUE(subject, course_id, semester)
)`

// Initialize idempotently ensures the record table exists. Tables created
// with the older (subject, course_id) uniqueness are rebuilt so the same
// course can be tracked in more than one semester; existing rows and their
// ids are preserved, which keeps discovery order intact.
func (s *Store) Initialize(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		legacy, err := hasLegacyUniqueness(ctx, tx)
		if err != nil {
			return err
		}
		if legacy {
			return migrateLegacy(ctx, tx)
		}
		if _, err := tx.ExecContext(ctx, createRecordTable); err != nil {
			return fmt.Errorf("create %s: %w", recordTable, err)
		}
		return nil
	})
}

// hasLegacyUniqueness reports whether an existing learn_record table lacks
// semester in its unique constraint.
func hasLegacyUniqueness(ctx context.Context, tx *sql.Tx) (bool, error) {
	var ddl string
	err := tx.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, recordTable,
	).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect schema: %w", err)
	}
	compact := strings.ToLower(strings.Join(strings.Fields(ddl), ""))
	return strings.Contains(compact, "unique(subject,course_id)"), nil
}

func migrateLegacy(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`ALTER TABLE learn_record RENAME TO learn_record_legacy`,
		createRecordTable,
		`INSERT INTO learn_record (id, course_id, subject, semester, processed)
			SELECT id, course_id, subject, semester, COALESCE(processed, 0) FROM learn_record_legacy`,
		`DROP TABLE learn_record_legacy`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate legacy %s: %w", recordTable, err)
		}
	}
	return nil
}
