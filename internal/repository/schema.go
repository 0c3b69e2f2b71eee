package repository

import (
	"context"
	"fmt"
)

// schemaTemplate takes the number of catalog categories as the width of the
// per-image score vector.
const schemaTemplate = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS listings (
	id BIGSERIAL PRIMARY KEY,
	owner_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price NUMERIC(14, 2) NOT NULL,
	location TEXT NOT NULL,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	moderation_state TEXT NOT NULL DEFAULT 'PENDING'
		CHECK (moderation_state IN ('PENDING', 'APPROVED', 'REJECTED')),
	primary_image_ref TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_listings_moderation_state ON listings(moderation_state);
CREATE INDEX IF NOT EXISTS idx_listings_owner_id ON listings(owner_id);

CREATE TABLE IF NOT EXISTS listing_images (
	id BIGSERIAL PRIMARY KEY,
	listing_id BIGINT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	position INT NOT NULL,
	object_key TEXT NOT NULL,
	filename TEXT NOT NULL,
	content_type TEXT NOT NULL,
	real_estate_score DOUBLE PRECISION NOT NULL,
	junk_score DOUBLE PRECISION NOT NULL,
	top_label TEXT NOT NULL,
	scores vector(%d) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (listing_id, position)
);`

// SchemaSQL returns the DDL for a catalog of scoreDims categories
func SchemaSQL(scoreDims int) string {
	return fmt.Sprintf(schemaTemplate, scoreDims)
}

// EnsureSchema creates the listing tables if needed
func (r *PostgresRepository) EnsureSchema(ctx context.Context, scoreDims int) error {
	if scoreDims <= 0 {
		return fmt.Errorf("ensure schema: score dimension must be positive, got %d", scoreDims)
	}
	if _, err := r.db.ExecContext(ctx, SchemaSQL(scoreDims)); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
