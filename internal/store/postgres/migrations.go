package postgres

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS workflows (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		trigger_provider TEXT NOT NULL,
		trigger_id TEXT NOT NULL,
		trigger_config JSONB NOT NULL DEFAULT '{}'::jsonb,
		trigger_credential_id TEXT NOT NULL DEFAULT '',
		action_provider TEXT NOT NULL,
		action_id TEXT NOT NULL,
		action_config JSONB NOT NULL DEFAULT '{}'::jsonb,
		action_credential_id TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		last_run_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS workflows_owner_idx ON workflows (owner_id)`,
	`CREATE INDEX IF NOT EXISTS workflows_active_idx ON workflows (is_active) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS credentials (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		account_id TEXT NOT NULL DEFAULT '',
		access_token TEXT NOT NULL DEFAULT '',
		refresh_token TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ,
		client_id TEXT NOT NULL DEFAULT '',
		client_secret TEXT NOT NULL DEFAULT '',
		is_valid BOOLEAN NOT NULL DEFAULT TRUE,
		polling_state JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS credentials_owner_provider_idx ON credentials (provider, owner_id)`,
	`CREATE INDEX IF NOT EXISTS credentials_account_idx ON credentials (provider, account_id)`,
	`CREATE INDEX IF NOT EXISTS credentials_account_lower_idx ON credentials (provider, lower(account_id))`,
	`CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		durable_run_id TEXT NOT NULL DEFAULT '',
		durable_run_correlation TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		trigger_data JSONB NOT NULL DEFAULT '{}'::jsonb,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS executions_workflow_idx ON executions (workflow_id, started_at DESC)`,
	`CREATE INDEX IF NOT EXISTS executions_run_idx ON executions (durable_run_id)`,
	`CREATE INDEX IF NOT EXISTS executions_correlation_idx ON executions (durable_run_correlation)`,
}

// Migrate creates the tables. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for i, statement := range migrations {
		if _, err := s.pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}

	log.Info().Int("statements", len(migrations)).Msg("Database migrated")

	return nil
}
