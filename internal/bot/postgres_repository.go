package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
//
// Expected table (schema bootstrap lives with the dashboard service):
//
//	CREATE TABLE bots (
//	    id                    BIGSERIAL PRIMARY KEY,
//	    name                  TEXT NOT NULL UNIQUE,
//	    token                 TEXT NOT NULL,
//	    target_url            TEXT NOT NULL,
//	    state                 TEXT NOT NULL DEFAULT 'standby',
//	    failures              INT NOT NULL DEFAULT 0,
//	    last_ok               TIMESTAMPTZ,
//	    last_reason           TEXT,
//	    last_token_ok         BOOLEAN,
//	    last_url_ok           BOOLEAN,
//	    last_webhook_ok       BOOLEAN,
//	    last_token_http       INT,
//	    last_url_http         INT,
//	    webhook_url           TEXT NOT NULL DEFAULT '',
//	    webhook_pending       INT NOT NULL DEFAULT 0,
//	    webhook_last_error    TEXT NOT NULL DEFAULT '',
//	    webhook_last_error_at TIMESTAMPTZ,
//	    created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    version               BIGINT NOT NULL DEFAULT 0
//	);
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL bot repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const botColumns = `
	id, name, token, target_url, state, failures, last_ok, last_reason,
	last_token_ok, last_url_ok, last_webhook_ok, last_token_http, last_url_http,
	webhook_url, webhook_pending, webhook_last_error, webhook_last_error_at,
	created_at, updated_at, version
`

func scanBot(row pgx.Row) (*Bot, error) {
	var b Bot
	err := row.Scan(
		&b.ID, &b.Name, &b.Token, &b.TargetURL, &b.State, &b.Failures,
		&b.LastOK, &b.LastReason,
		&b.LastTokenOK, &b.LastURLOK, &b.LastWebhookOK,
		&b.LastTokenHTTP, &b.LastURLHTTP,
		&b.WebhookURL, &b.WebhookPending, &b.WebhookLastError, &b.WebhookLastErrorAt,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Get retrieves a bot by id.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE id = $1`
	return scanBot(r.pool.QueryRow(ctx, query, id))
}

// GetByName retrieves a bot by its unique name.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE name = $1`
	return scanBot(r.pool.QueryRow(ctx, query, name))
}

// List retrieves every bot ordered by last update then id.
func (r *PostgresRepository) List(ctx context.Context) ([]*Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots ORDER BY updated_at ASC, id ASC`
	return r.queryBots(ctx, query)
}

// ListByState retrieves bots in one state, oldest-updated first.
func (r *PostgresRepository) ListByState(ctx context.Context, state State) ([]*Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE state = $1 ORDER BY updated_at ASC, id ASC`
	return r.queryBots(ctx, query, state)
}

func (r *PostgresRepository) queryBots(ctx context.Context, query string, args ...any) ([]*Bot, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []*Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, b)
	}
	return bots, rows.Err()
}

// Create inserts a new bot record.
func (r *PostgresRepository) Create(ctx context.Context, b *Bot) error {
	query := `
		INSERT INTO bots (name, token, target_url, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`
	now := time.Now().UTC()
	state := b.State
	if state == "" {
		state = StateStandby
	}
	b.CreatedAt = now
	b.UpdatedAt = now
	b.State = state
	return r.pool.QueryRow(ctx, query, b.Name, b.Token, b.TargetURL, state, now).Scan(&b.ID)
}

// UpdateAtomic applies mutate under a row lock so concurrent workers observe
// each other's writes. The row is re-read inside the transaction, mutated,
// and written back with a version bump in one commit.
func (r *PostgresRepository) UpdateAtomic(ctx context.Context, id int64, mutate func(*Bot) error) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	query := `SELECT ` + botColumns + ` FROM bots WHERE id = $1 FOR UPDATE`
	b, err := scanBot(tx.QueryRow(ctx, query, id))
	if err != nil {
		return false, err
	}

	if err := mutate(b); err != nil {
		if errors.Is(err, ErrSkipUpdate) {
			return false, nil
		}
		return false, err
	}

	update := `
		UPDATE bots SET
			name = $2, token = $3, target_url = $4, state = $5, failures = $6,
			last_ok = $7, last_reason = $8,
			last_token_ok = $9, last_url_ok = $10, last_webhook_ok = $11,
			last_token_http = $12, last_url_http = $13,
			webhook_url = $14, webhook_pending = $15,
			webhook_last_error = $16, webhook_last_error_at = $17,
			updated_at = $18, version = version + 1
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, update,
		b.ID, b.Name, b.Token, b.TargetURL, b.State, b.Failures,
		b.LastOK, b.LastReason,
		b.LastTokenOK, b.LastURLOK, b.LastWebhookOK,
		b.LastTokenHTTP, b.LastURLHTTP,
		b.WebhookURL, b.WebhookPending, b.WebhookLastError, b.WebhookLastErrorAt,
		b.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Stats returns aggregate pool counts.
func (r *PostgresRepository) Stats(ctx context.Context) (*PoolStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE state = 'active'),
			COUNT(*) FILTER (WHERE state = 'standby'),
			COUNT(*) FILTER (WHERE state = 'retired'),
			COALESCE(SUM(failures), 0),
			MAX(updated_at)
		FROM bots
	`
	var stats PoolStats
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.Total, &stats.Active, &stats.Standby, &stats.Retired,
		&stats.TotalFailures, &stats.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
