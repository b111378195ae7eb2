// Package audit keeps a PostgreSQL record of every analytics stream session.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avika-ai/avika-bff/bff/internal/bridge"
	"github.com/avika-ai/avika-bff/common/database"
	"github.com/avika-ai/avika-bff/common/logging"
)

// DefaultListLimit caps Recent when no limit is given.
const DefaultListLimit = 50

// SessionRecord is one row of stream_sessions.
type SessionRecord struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id,omitempty"`
	Username   string    `json:"username,omitempty"`
	Scope      string    `json:"scope"`
	ScopeID    string    `json:"scope_id,omitempty"`
	Window     string    `json:"window"`
	Opened     bool      `json:"opened"`
	Outcome    string    `json:"outcome"`
	Frames     int       `json:"frames"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// NewSessionRecord flattens a finished session.
func NewSessionRecord(s bridge.Summary) SessionRecord {
	rec := SessionRecord{
		ID:         s.SessionID,
		RequestID:  s.RequestID,
		Username:   s.User,
		Scope:      s.Filter.Scope.String(),
		ScopeID:    s.Filter.ID,
		Window:     s.Filter.Window,
		Opened:     s.Opened,
		Outcome:    string(s.Outcome),
		Frames:     s.Frames,
		Skipped:    s.Skipped,
		StartedAt:  s.StartedAt.UTC(),
		DurationMS: s.Duration.Milliseconds(),
	}
	if s.Err != nil {
		rec.Error = s.Err.Error()
	}
	return rec
}

// Store writes session records. It is a bridge.Observer; only closed
// sessions are recorded.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewStore returns a Store over db.
func NewStore(db *sql.DB, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger}
}

// Insert stores rec.
func (s *Store) Insert(ctx context.Context, rec SessionRecord) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO stream_sessions (
			id, request_id, username, scope, scope_id, time_window,
			opened, outcome, frames, skipped, error, started_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.RequestID, rec.Username, rec.Scope, rec.ScopeID, rec.Window,
		rec.Opened, rec.Outcome, rec.Frames, rec.Skipped, rec.Error, rec.StartedAt, rec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to insert stream session: %w", err)
	}
	return nil
}

// Recent returns the newest sessions, optionally only those of username.
func (s *Store) Recent(ctx context.Context, username string, limit int) ([]SessionRecord, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}

	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT id, request_id, username, scope, scope_id, time_window,
		       opened, outcome, frames, skipped, error, started_at, duration_ms
		FROM stream_sessions
		WHERE ($1 = '' OR username = $1)
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stream sessions: %w", err)
	}
	defer rows.Close()

	records := make([]SessionRecord, 0, limit)
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(
			&rec.ID, &rec.RequestID, &rec.Username, &rec.Scope, &rec.ScopeID, &rec.Window,
			&rec.Opened, &rec.Outcome, &rec.Frames, &rec.Skipped, &rec.Error, &rec.StartedAt, &rec.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stream session: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stream sessions: %w", err)
	}
	return records, nil
}

func (s *Store) StreamOpened(context.Context, bridge.Summary) {}

func (s *Store) StreamClosed(ctx context.Context, sum bridge.Summary) {
	if err := s.Insert(ctx, NewSessionRecord(sum)); err != nil {
		s.logger.ErrorContext(ctx, "failed to record stream session",
			logging.SessionID(sum.SessionID),
			logging.Error(err),
		)
	}
}
