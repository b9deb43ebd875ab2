// Package history keeps an audit trail of synthesis requests in Postgres.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ncecere/voiceclone/internal/synth"
)

const (
	StatusOK    = "ok"
	StatusError = "error"

	DefaultLimit = 50
	MaxLimit     = 500
)

// Entry is one row of synthesis_history.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Voice     string    `json:"voice"`
	Language  string    `json:"language"`
	TextChars int       `json:"text_chars"`
	Bytes     int       `json:"bytes"`
	Engine    string    `json:"engine"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	OutputID  string    `json:"output_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DB is the subset of pgxpool.Pool used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Store struct {
	db  DB
	now func() time.Time
}

func NewStore(db DB) *Store {
	return &Store{db: db, now: time.Now}
}

const insertEntry = `
INSERT INTO synthesis_history
    (id, voice, language, text_chars, bytes, engine, status, error, latency_ms, output_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, NULLIF($10, ''), $11)`

func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	_, err := s.db.Exec(ctx, insertEntry,
		e.ID, e.Voice, e.Language, e.TextChars, e.Bytes, e.Engine, e.Status,
		e.Error, e.LatencyMS, e.OutputID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// RecordAttempt adapts a finished synthesis into an Entry.
func (s *Store) RecordAttempt(ctx context.Context, a synth.Attempt) error {
	return s.Record(ctx, EntryFromAttempt(a))
}

const selectRecent = `
SELECT id, voice, language, text_chars, bytes, engine, status,
       COALESCE(error, ''), latency_ms, COALESCE(output_id, ''), created_at
FROM synthesis_history
ORDER BY created_at DESC
LIMIT $1`

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.Query(ctx, selectRecent, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.Voice, &e.Language, &e.TextChars, &e.Bytes, &e.Engine,
			&e.Status, &e.Error, &e.LatencyMS, &e.OutputID, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return entries, nil
}

func EntryFromAttempt(a synth.Attempt) Entry {
	e := Entry{
		Voice:     a.Voice,
		Language:  string(a.Language),
		TextChars: a.TextChars,
		Bytes:     a.Bytes,
		Engine:    a.Engine,
		Status:    StatusOK,
		LatencyMS: a.Latency.Milliseconds(),
		OutputID:  a.OutputID,
	}
	if a.Err != nil {
		e.Status = StatusError
		e.Error = a.Err.Error()
	}
	return e
}

func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
