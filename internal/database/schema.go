package database

import (
	"context"
	"fmt"
)

// schemaStatements create the tables used by the service. They are
// idempotent so Migrate can run on every start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS campaigns (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_campaigns_user_id ON campaigns (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id UUID PRIMARY KEY,
		campaign_id UUID NOT NULL REFERENCES campaigns (id) ON DELETE CASCADE,
		platform_id TEXT NOT NULL CHECK (platform_id IN ('facebook', 'instagram', 'tiktok', 'x', 'linkedin')),
		name TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'idle' CHECK (state IN ('idle', 'analyzing', 'complete', 'error')),
		analysis_data JSONB NOT NULL DEFAULT '[]'::jsonb,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_campaign_platform ON posts (campaign_id, platform_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS post_images (
		id UUID PRIMARY KEY,
		post_id UUID NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		data BYTEA NOT NULL,
		position INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (post_id, position)
	)`,
}

// Migrate creates any missing tables inside a single transaction
func (db *DB) Migrate(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}
