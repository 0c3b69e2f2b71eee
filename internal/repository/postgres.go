package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/moderation"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const listingColumns = `
	id, owner_id, title, description, price, location, latitude, longitude,
	moderation_state, primary_image_ref, created_at, updated_at`

// PostgresRepository handles database operations
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// NewPostgresRepositoryFromDB wraps an existing connection pool
func NewPostgresRepositoryFromDB(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// DB exposes the pool, for schema management
func (r *PostgresRepository) DB() *sqlx.DB {
	return r.db
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// CreateListing inserts a listing and its images in one transaction
func (r *PostgresRepository) CreateListing(ctx context.Context, listing *model.Listing, images []model.ListingImage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if len(images) > 0 {
		key := images[0].ObjectKey
		listing.PrimaryImageRef = &key
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO listings (owner_id, title, description, price, location, latitude, longitude, moderation_state, primary_image_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, listing.OwnerID, listing.Title, listing.Description, listing.Price, listing.Location,
		listing.Latitude, listing.Longitude, string(listing.ModerationState), listing.PrimaryImageRef,
	).Scan(&listing.ID, &listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}

	if len(images) > 0 {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO listing_images (listing_id, position, object_key, filename, content_type, real_estate_score, junk_score, top_label, scores)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i := range images {
			img := &images[i]
			img.ListingID = listing.ID
			img.Position = i
			if _, err := stmt.ExecContext(ctx, img.ListingID, img.Position, img.ObjectKey, img.Filename,
				img.ContentType, img.RealEstateScore, img.JunkScore, img.TopLabel, img.Scores); err != nil {
				return fmt.Errorf("failed to insert image %s: %w", img.Filename, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	listing.ImageRefs = make([]string, len(images))
	for i, img := range images {
		listing.ImageRefs[i] = img.ObjectKey
	}
	return nil
}

// GetListing retrieves a single listing by its ID if pred admits it.
// It returns nil, nil when no visible listing matches.
func (r *PostgresRepository) GetListing(ctx context.Context, id int64, pred moderation.Predicate) (*model.Listing, error) {
	where, args := buildWhere(pred, nil)
	args = append(args, id)
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE %s AND id = $%d`, listingColumns, where, len(args))

	var listing model.Listing
	err := r.db.GetContext(ctx, &listing, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	listings := []model.Listing{listing}
	if err := r.attachImageRefs(ctx, listings); err != nil {
		return nil, err
	}
	return &listings[0], nil
}

// ListListings returns the listings admitted by pred and filters, newest first
func (r *PostgresRepository) ListListings(ctx context.Context, pred moderation.Predicate, filters *model.ListingFilters) ([]model.Listing, error) {
	where, args := buildWhere(pred, filters)
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE %s ORDER BY created_at DESC, id DESC`, listingColumns, where)

	listings := []model.Listing{}
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	if err := r.attachImageRefs(ctx, listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// UpdateListing writes the editable fields of a listing. Owner and
// moderation state are never touched here.
func (r *PostgresRepository) UpdateListing(ctx context.Context, listing *model.Listing) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE listings
		SET title = $1, description = $2, price = $3, location = $4, latitude = $5, longitude = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at
	`, listing.Title, listing.Description, listing.Price, listing.Location, listing.Latitude, listing.Longitude, listing.ID,
	).Scan(&listing.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to update listing: %w", err)
	}
	return nil
}

// DeleteListing removes a listing and returns the object keys of its images
func (r *PostgresRepository) DeleteListing(ctx context.Context, id int64) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	keys := []string{}
	if err := tx.SelectContext(ctx, &keys, `SELECT object_key FROM listing_images WHERE listing_id = $1 ORDER BY position`, id); err != nil {
		return nil, fmt.Errorf("failed to fetch image keys: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete listing: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, model.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return keys, nil
}

// CompareAndSetState moves a listing from one moderation state to another.
// It reports false when the listing was not in state from.
func (r *PostgresRepository) CompareAndSetState(ctx context.Context, id int64, from, to model.ModerationState) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET moderation_state = $1, updated_at = NOW()
		WHERE id = $2 AND moderation_state = $3
	`, string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update moderation state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// ListingImages returns the stored images of a listing with their scores
func (r *PostgresRepository) ListingImages(ctx context.Context, listingID int64) ([]model.ListingImage, error) {
	images := []model.ListingImage{}
	err := r.db.SelectContext(ctx, &images, `
		SELECT id, listing_id, position, object_key, filename, content_type, real_estate_score, junk_score, top_label, scores, created_at
		FROM listing_images
		WHERE listing_id = $1
		ORDER BY position
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing images: %w", err)
	}
	return images, nil
}

func (r *PostgresRepository) attachImageRefs(ctx context.Context, listings []model.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	ids := make([]int64, len(listings))
	byID := make(map[int64]*model.Listing, len(listings))
	for i := range listings {
		ids[i] = listings[i].ID
		listings[i].ImageRefs = []string{}
		byID[listings[i].ID] = &listings[i]
	}

	var rows []struct {
		ListingID int64  `db:"listing_id"`
		ObjectKey string `db:"object_key"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT listing_id, object_key FROM listing_images
		WHERE listing_id = ANY($1)
		ORDER BY listing_id, position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to fetch image refs: %w", err)
	}
	for _, row := range rows {
		if l, ok := byID[row.ListingID]; ok {
			l.ImageRefs = append(l.ImageRefs, row.ObjectKey)
		}
	}
	return nil
}

// buildWhere renders a visibility predicate plus field filters as a SQL
// condition with positional arguments starting at $1.
func buildWhere(pred moderation.Predicate, filters *model.ListingFilters) (string, []interface{}) {
	whereClauses := []string{}
	args := []interface{}{}
	argIndex := 1

	switch pred.Scope {
	case moderation.ScopeAll:
		whereClauses = append(whereClauses, "1=1")
	case moderation.ScopeOwned:
		whereClauses = append(whereClauses, fmt.Sprintf("owner_id = $%d", argIndex))
		args = append(args, pred.OwnerID)
		argIndex++
	case moderation.ScopeOwnedOrApproved:
		whereClauses = append(whereClauses, fmt.Sprintf("(owner_id = $%d OR moderation_state = $%d)", argIndex, argIndex+1))
		args = append(args, pred.OwnerID, string(model.StateApproved))
		argIndex += 2
	default:
		whereClauses = append(whereClauses, fmt.Sprintf("moderation_state = $%d", argIndex))
		args = append(args, string(model.StateApproved))
		argIndex++
	}

	if filters != nil {
		if filters.Location != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("location = $%d", argIndex))
			args = append(args, *filters.Location)
			argIndex++
		}
		if filters.Price != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("price = $%d", argIndex))
			args = append(args, *filters.Price)
			argIndex++
		}
		if filters.PriceMin != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("price >= $%d", argIndex))
			args = append(args, *filters.PriceMin)
			argIndex++
		}
		if filters.PriceMax != nil {
			whereClauses = append(whereClauses, fmt.Sprintf("price <= $%d", argIndex))
			args = append(args, *filters.PriceMax)
			argIndex++
		}
		if search := strings.TrimSpace(filters.Search); search != "" {
			whereClauses = append(whereClauses, fmt.Sprintf("(title ILIKE $%d OR location ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex, argIndex))
			args = append(args, "%"+escapeLike(search)+"%")
			argIndex++
		}
	}

	return strings.Join(whereClauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
