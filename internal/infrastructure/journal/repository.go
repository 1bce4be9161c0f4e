package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Verbs recorded in the journal.
const (
	VerbRegister = "register"
	VerbVerify   = "verify"
	VerbBundle   = "bundle"
	VerbPrune    = "prune"
)

// Outcomes recorded in the journal.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Entry is one recorded operation.
type Entry struct {
	ID        string
	Verb      string
	Artifacts []string
	Outcome   string
	Detail    string
	CreatedAt time.Time
}

// Repository reads and writes journal entries.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps an open journal database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record inserts an operation row. Detail carries the error message for
// failed operations or a short result summary for successful ones.
func (r *Repository) Record(ctx context.Context, verb string, artifacts []string, outcome, detail string) (Entry, error) {
	entry := Entry{
		ID:        uuid.NewString(),
		Verb:      verb,
		Artifacts: artifacts,
		Outcome:   outcome,
		Detail:    detail,
		// Stored at second resolution; truncate so the entry we return
		// matches what a later Recent call reads back.
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO operations (id, verb, artifacts, outcome, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Verb, strings.Join(entry.Artifacts, ","),
		entry.Outcome, entry.Detail, entry.CreatedAt.Unix(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record operation: %w", err)
	}
	return entry, nil
}

// Recent returns the newest entries, newest first. A limit of 0 or less
// returns everything.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, verb, artifacts, outcome, detail, created_at
		 FROM operations ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			joined    string
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.Verb, &joined, &entry.Outcome, &entry.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}
		entry.CreatedAt = time.Unix(createdAt, 0).UTC()
		if joined != "" {
			entry.Artifacts = strings.Split(joined, ",")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation rows: %w", err)
	}
	return entries, nil
}
