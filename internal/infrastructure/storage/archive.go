// Package storage persists pipeline run history in Postgres.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"whatsnewgen/internal/domain"
	"whatsnewgen/internal/ports"
)

// PostgresArchive records which entry identities each run published, so
// later runs can report what was already covered.
type PostgresArchive struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.RunArchive = (*PostgresArchive)(nil)

// Open connects and verifies the archive database.
func Open(ctx context.Context, dsn string) (*PostgresArchive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive db: %w", err)
	}
	return NewPostgresArchive(db), nil
}

// NewPostgresArchive wires a sql.DB implementation.
func NewPostgresArchive(db *sql.DB) *PostgresArchive {
	return &PostgresArchive{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// RecordRun inserts one run row plus one row per published identity.
func (a *PostgresArchive) RecordRun(ctx context.Context, release string, entries []domain.EnrichedEntry) error {
	if a.db == nil {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	var runID int64
	err = a.builder.
		Insert("pipeline_runs").
		Columns("release_version", "entry_count", "created_at").
		Values(release, len(entries), time.Now().UTC()).
		Suffix("RETURNING id").
		RunWith(tx).
		QueryRowContext(ctx).
		Scan(&runID)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	insert := a.builder.
		Insert("published_entries").
		Columns("run_id", "repo", "number", "title")
	rows := 0
	for _, e := range entries {
		for _, id := range e.Identities() {
			insert = insert.Values(runID, id.Repo, id.Number, e.Title)
			rows++
		}
	}
	if rows > 0 {
		if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("insert published entries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

// PublishedIdentities returns every identity recorded by earlier runs
// for the release. A non-empty repos list narrows the lookup to those
// repositories.
func (a *PostgresArchive) PublishedIdentities(ctx context.Context, release string, repos []string) (map[domain.Identity]struct{}, error) {
	out := make(map[domain.Identity]struct{})
	if a.db == nil {
		return out, nil
	}

	query := a.builder.
		Select("pe.repo", "pe.number").
		From("published_entries pe").
		Join("pipeline_runs pr ON pr.id = pe.run_id").
		Where(sq.Eq{"pr.release_version": release})
	if len(repos) > 0 {
		query = query.Where("pe.repo = ANY(?)", pq.StringArray(repos))
	}

	rows, err := query.RunWith(a.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query published: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id domain.Identity
		if err := rows.Scan(&id.Repo, &id.Number); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (a *PostgresArchive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
