package database

import (
	"context"
	"fmt"

	"github.com/benvon/comment-pulse/internal/models"
	"github.com/google/uuid"
)

// ImageRepository stores the screenshots uploaded for a post
type ImageRepository struct {
	db *DB
}

// NewImageRepository creates a new image repository
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Add appends an image after the post's existing images
func (r *ImageRepository) Add(ctx context.Context, img *models.Image) error {
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	query := `
		INSERT INTO post_images (id, post_id, name, mime_type, data, position)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM post_images WHERE post_id = $2))
		RETURNING position, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		img.ID,
		img.PostID,
		img.Name,
		img.MIMEType,
		img.Data,
	).Scan(&img.Position, &img.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add image: %w", err)
	}
	return nil
}

// ListByPost returns a post's images, with content, in upload order
func (r *ImageRepository) ListByPost(ctx context.Context, postID uuid.UUID) ([]models.Image, error) {
	return r.list(ctx, `
		SELECT id, post_id, name, mime_type, data, position, created_at
		FROM post_images
		WHERE post_id = $1
		ORDER BY position ASC
	`, postID, true)
}

// ListMetadata returns a post's images without their content
func (r *ImageRepository) ListMetadata(ctx context.Context, postID uuid.UUID) ([]models.Image, error) {
	return r.list(ctx, `
		SELECT id, post_id, name, mime_type, position, created_at
		FROM post_images
		WHERE post_id = $1
		ORDER BY position ASC
	`, postID, false)
}

func (r *ImageRepository) list(ctx context.Context, query string, postID uuid.UUID, withData bool) ([]models.Image, error) {
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer func() { _ = rows.Close() }()

	images := make([]models.Image, 0)
	for rows.Next() {
		var img models.Image
		dest := []any{&img.ID, &img.PostID, &img.Name, &img.MIMEType}
		if withData {
			dest = append(dest, &img.Data)
		}
		dest = append(dest, &img.Position, &img.CreatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}
	return images, nil
}

// DeleteByPost removes every image of a post
func (r *ImageRepository) DeleteByPost(ctx context.Context, postID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM post_images WHERE post_id = $1`, postID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete images: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
