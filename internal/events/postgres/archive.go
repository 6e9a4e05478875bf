// Package postgres archives registry events for offline querying.
//
// The archive is a sink, not the ordering authority: rows are keyed by the
// sequence number the in-process log assigned, and duplicate deliveries are
// ignored so replays stay idempotent.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"vitae/internal/events"
	id "vitae/pkg/domain"
)

const createArchiveSQL = `
CREATE TABLE IF NOT EXISTS event_archive (
    seq         BIGINT PRIMARY KEY,
    kind        TEXT NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    claimant    UUID NOT NULL,
    fingerprint BYTEA NOT NULL,
    content     BYTEA NOT NULL DEFAULT ''::bytea,
    endorser    UUID,
    amount      BIGINT NOT NULL DEFAULT 0,
    request_id  TEXT NOT NULL DEFAULT '',
    client      TEXT NOT NULL DEFAULT ''
)`

// Archive persists events into the event_archive table.
type Archive struct {
	pool *pgxpool.Pool
}

func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

// EnsureSchema creates the archive table if it does not exist.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, createArchiveSQL); err != nil {
		return fmt.Errorf("create event archive schema: %w", err)
	}
	return nil
}

func (a *Archive) Name() string { return "postgres_archive" }

func (a *Archive) Publish(ctx context.Context, event events.Event) error {
	const query = `
		INSERT INTO event_archive (
			seq, kind, occurred_at, claimant, fingerprint,
			content, endorser, amount, request_id, client
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (seq) DO NOTHING
	`

	var endorser *uuid.UUID
	if !event.Endorser.IsZero() {
		e := uuid.UUID(event.Endorser)
		endorser = &e
	}

	// Endorsement and payout events carry no content; the column is NOT
	// NULL, so nil must become an empty value rather than SQL NULL.
	content := event.Content
	if content == nil {
		content = []byte{}
	}

	_, err := a.pool.Exec(ctx, query,
		int64(event.Seq),
		string(event.Kind),
		event.Timestamp,
		uuid.UUID(event.Claimant),
		event.Fingerprint[:],
		content,
		endorser,
		int64(event.Amount),
		event.RequestID,
		event.Client,
	)
	if err != nil {
		return fmt.Errorf("insert archived event: %w", err)
	}
	return nil
}

// ListRecent returns the newest events first, up to limit.
func (a *Archive) ListRecent(ctx context.Context, limit int) ([]events.Event, error) {
	const query = `
		SELECT seq, kind, occurred_at, claimant, fingerprint,
		       content, endorser, amount, request_id, client
		FROM event_archive
		ORDER BY seq DESC
		LIMIT $1
	`

	rows, err := a.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query event archive: %w", err)
	}
	defer rows.Close()

	var archived []events.Event
	for rows.Next() {
		var (
			event       events.Event
			seq         int64
			kind        string
			claimant    uuid.UUID
			fingerprint []byte
			endorser    *uuid.UUID
			amount      int64
		)
		err := rows.Scan(
			&seq,
			&kind,
			&event.Timestamp,
			&claimant,
			&fingerprint,
			&event.Content,
			&endorser,
			&amount,
			&event.RequestID,
			&event.Client,
		)
		if err != nil {
			return nil, fmt.Errorf("scan archived event: %w", err)
		}

		event.Seq = uint64(seq)
		event.Kind = events.Kind(kind)
		event.Claimant = id.AccountID(claimant)
		copy(event.Fingerprint[:], fingerprint)
		if endorser != nil {
			event.Endorser = id.AccountID(*endorser)
		}
		event.Amount = uint64(amount)

		archived = append(archived, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event archive: %w", err)
	}
	return archived, nil
}

// Close releases the underlying pool.
func (a *Archive) Close() error {
	a.pool.Close()
	return nil
}
