package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "persona-gateway/pkg/domain"
)

// PostgresStore persists audit events in the audit_events table. The
// database/sql handle is expected to be backed by the pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts an event. Idempotent on the event ID so a retried emit does
// not duplicate rows.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (
			id, timestamp, account, action, subject, outcome, detail, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		event.Account.String(),
		event.Action,
		event.Subject,
		event.Outcome,
		event.Detail,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByAccount returns events for one account, newest first.
func (s *PostgresStore) ListByAccount(ctx context.Context, account id.AccountID) ([]Event, error) {
	query := `
		SELECT id, timestamp, account, action, subject, outcome, detail, request_id
		FROM audit_events
		WHERE account = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, account.String())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events across all accounts.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT id, timestamp, account, action, subject, outcome, detail, request_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			event   Event
			eventID uuid.UUID
			account string
		)
		err := rows.Scan(
			&eventID,
			&event.Timestamp,
			&account,
			&event.Action,
			&event.Subject,
			&event.Outcome,
			&event.Detail,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ID = eventID
		event.Account = id.AccountID(account)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
