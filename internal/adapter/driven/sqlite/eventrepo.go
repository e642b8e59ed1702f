package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gateboard/gateboard/internal/domain/model"
	"github.com/gateboard/gateboard/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventStore = (*EventRepo)(nil)

// EventRepo is the SQLite implementation of the EventStore port interface.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new EventRepo backed by the given DB.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

const eventColumns = `id, uuid, project, branch, trigger_user, timestamp, duration, community_status`

// UpsertEvent atomically replaces the event and its PR list. The ingestion
// pipeline calls this; resolution results are never written back.
func (r *EventRepo) UpsertEvent(ctx context.Context, ev *model.Event) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	var communityStatus any
	if ev.Community != nil {
		communityStatus = string(ev.Community.Status)
	}

	const upsertQuery = `
		INSERT INTO events (id, uuid, project, branch, trigger_user, timestamp, duration, community_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET
			id = excluded.id,
			project = excluded.project,
			branch = excluded.branch,
			trigger_user = excluded.trigger_user,
			timestamp = excluded.timestamp,
			duration = excluded.duration,
			community_status = excluded.community_status
	`
	if _, err := tx.ExecContext(ctx, upsertQuery,
		ev.ID, ev.UUID, ev.Project, ev.Branch, ev.TriggerUser,
		ev.Timestamp, ev.Duration, communityStatus,
	); err != nil {
		return fmt.Errorf("upsert event %s: %w", ev.UUID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_prs WHERE event_uuid = ?`, ev.UUID); err != nil {
		return fmt.Errorf("delete PRs for event %s: %w", ev.UUID, err)
	}

	const insertPRQuery = `
		INSERT INTO event_prs (event_uuid, position, url, committer, repo_name)
		VALUES (?, ?, ?, ?, ?)
	`
	for i, pr := range ev.PRs {
		if _, err := tx.ExecContext(ctx, insertPRQuery,
			ev.UUID, i, pr.URL, pr.Committer, pr.RepoName,
		); err != nil {
			return fmt.Errorf("insert PR %d for event %s: %w", i, ev.UUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event %s: %w", ev.UUID, err)
	}
	return nil
}

// GetByID returns the event with the given document id, or (nil, nil) when
// it does not exist.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetByUUID returns the event with the given pipeline uuid, or (nil, nil)
// when it does not exist.
func (r *EventRepo) GetByUUID(ctx context.Context, uuid string) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE uuid = ?`
	return r.getOne(ctx, query, uuid)
}

// MustGetByUUID returns driven.ErrEventNotFound instead of (nil, nil).
func (r *EventRepo) MustGetByUUID(ctx context.Context, uuid string) (*model.Event, error) {
	ev, err := r.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, fmt.Errorf("event %s: %w", uuid, driven.ErrEventNotFound)
	}
	return ev, nil
}

// ListByWindow returns the project/branch events whose trigger timestamp
// falls inside [start, end], ordered by timestamp.
func (r *EventRepo) ListByWindow(ctx context.Context, project, branch, start, end string) ([]model.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE project = ? AND branch = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp, uuid`
	rows, err := r.db.Reader.QueryContext(ctx, query, project, branch, start, end)
	if err != nil {
		return nil, fmt.Errorf("list events for %s/%s: %w", project, branch, err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	for i := range events {
		prs, err := r.prsForEvent(ctx, events[i].UUID)
		if err != nil {
			return nil, err
		}
		events[i].PRs = prs
	}
	return events, nil
}

func (r *EventRepo) getOne(ctx context.Context, query string, arg any) (*model.Event, error) {
	row := r.db.Reader.QueryRowContext(ctx, query, arg)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	prs, err := r.prsForEvent(ctx, ev.UUID)
	if err != nil {
		return nil, err
	}
	ev.PRs = prs
	return ev, nil
}

func (r *EventRepo) prsForEvent(ctx context.Context, uuid string) ([]model.PRRef, error) {
	const query = `
		SELECT url, committer, repo_name
		FROM event_prs
		WHERE event_uuid = ?
		ORDER BY position
	`
	rows, err := r.db.Reader.QueryContext(ctx, query, uuid)
	if err != nil {
		return nil, fmt.Errorf("list PRs for event %s: %w", uuid, err)
	}
	defer rows.Close()

	var prs []model.PRRef
	for rows.Next() {
		var pr model.PRRef
		if err := rows.Scan(&pr.URL, &pr.Committer, &pr.RepoName); err != nil {
			return nil, fmt.Errorf("scan PR for event %s: %w", uuid, err)
		}
		prs = append(prs, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate PRs for event %s: %w", uuid, err)
	}
	return prs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var ev model.Event
	var communityStatus sql.NullString
	if err := row.Scan(&ev.ID, &ev.UUID, &ev.Project, &ev.Branch,
		&ev.TriggerUser, &ev.Timestamp, &ev.Duration, &communityStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	if communityStatus.Valid {
		ev.Community = &model.CheckDescriptor{Status: model.CommunityStatus(communityStatus.String)}
	}
	return &ev, nil
}
