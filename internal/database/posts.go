package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/comment-pulse/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PostRepository handles post database operations, including the
// analysis_data record list
type PostRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db, logger: zap.NewNop()}
}

// SetLogger sets the logger for the repository
func (r *PostRepository) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

const postColumns = `p.id, p.campaign_id, p.platform_id, p.name, p.state, p.analysis_data, p.last_error, p.created_at, p.updated_at`

// Create inserts a post with an empty record list
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	post.State = models.PostStateIdle
	post.Records = []models.CommentRecord{}

	query := `
		INSERT INTO posts (id, campaign_id, platform_id, name, state, analysis_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '[]'::jsonb, $6, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		post.ID,
		post.CampaignID,
		post.PlatformID,
		post.Name,
		post.State,
		time.Now(),
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// GetByID returns a post regardless of owner. Workers use it.
func (r *PostRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p WHERE p.id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// GetForOwner returns a post only if its campaign belongs to ownerID
func (r *PostRepository) GetForOwner(ctx context.Context, id uuid.UUID, ownerID string) (*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN campaigns c ON c.id = p.campaign_id
		WHERE p.id = $1 AND c.user_id = $2
	`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// ListByCampaign returns every post of a campaign, optionally restricted
// to one platform, oldest first
func (r *PostRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID, platform *models.PlatformID) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p WHERE p.campaign_id = $1`
	args := []any{campaignID}
	if platform != nil {
		query += ` AND p.platform_id = $2`
		args = append(args, string(*platform))
	}
	query += ` ORDER BY p.created_at ASC`

	return r.queryPosts(ctx, query, args...)
}

// ListByOwner returns every post across the owner's campaigns
func (r *PostRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN campaigns c ON c.id = p.campaign_id
		WHERE c.user_id = $1
		ORDER BY p.created_at ASC
	`
	return r.queryPosts(ctx, query, ownerID)
}

func (r *PostRepository) queryPosts(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	posts := make([]*models.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, nil
}

// BeginAnalysis clears the post's records and marks it analyzing. A re-run
// replaces earlier results rather than appending to them.
func (r *PostRepository) BeginAnalysis(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE posts
		SET state = $2, analysis_data = '[]'::jsonb, last_error = NULL, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, models.PostStateAnalyzing)
	if err != nil {
		return fmt.Errorf("failed to begin analysis: %w", err)
	}
	return requireAffected(res, "post", id)
}

// SaveAnalysis replaces the post's analysis_data with records
func (r *PostRepository) SaveAnalysis(ctx context.Context, id uuid.UUID, records []models.CommentRecord) error {
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET analysis_data = $2, updated_at = NOW() WHERE id = $1`,
		id, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	r.logger.Debug("analysis_saved",
		zap.String("post_id", id.String()),
		zap.Int("records", len(records)),
	)
	return requireAffected(res, "post", id)
}

// LoadAnalysis returns the stored records, or an empty list
func (r *PostRepository) LoadAnalysis(ctx context.Context, id uuid.UUID) ([]models.CommentRecord, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT analysis_data FROM posts WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}
	return decodeRecords(data)
}

// SetState records the terminal or in-flight state of a post. lastError
// is stored for the error state and cleared otherwise.
func (r *PostRepository) SetState(ctx context.Context, id uuid.UUID, state models.PostState, lastError *string) error {
	if state != models.PostStateError {
		lastError = nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET state = $2, last_error = $3, updated_at = NOW() WHERE id = $1`,
		id, state, lastError,
	)
	if err != nil {
		return fmt.Errorf("failed to set post state: %w", err)
	}
	return requireAffected(res, "post", id)
}

// CompleteAnalysis stores the final records and marks the post complete
// in one statement
func (r *PostRepository) CompleteAnalysis(ctx context.Context, id uuid.UUID, records []models.CommentRecord) error {
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET analysis_data = $2, state = $3, last_error = NULL, updated_at = NOW() WHERE id = $1`,
		id, string(data), models.PostStateComplete,
	)
	if err != nil {
		return fmt.Errorf("failed to complete analysis: %w", err)
	}
	return requireAffected(res, "post", id)
}

// StaleAnalysisError is the last_error stored by FailStaleAnalyses
const StaleAnalysisError = "Analysis did not finish: the job was lost or timed out"

// FailStaleAnalyses marks posts that have been analyzing without any saved
// progress for longer than olderThan as failed. Partial records are kept.
func (r *PostRepository) FailStaleAnalyses(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE posts
		SET state = $1, last_error = $2, updated_at = NOW()
		WHERE state = $3 AND updated_at < NOW() - make_interval(secs => $4)
	`
	res, err := r.db.ExecContext(ctx, query,
		models.PostStateError, StaleAnalysisError, models.PostStateAnalyzing, olderThan.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale analyses: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes a post owned by ownerID
func (r *PostRepository) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	query := `
		DELETE FROM posts p
		USING campaigns c
		WHERE p.id = $1 AND c.id = p.campaign_id AND c.user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return requireAffected(res, "post", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	post := &models.Post{}
	var data []byte
	var lastError sql.NullString
	if err := row.Scan(
		&post.ID,
		&post.CampaignID,
		&post.PlatformID,
		&post.Name,
		&post.State,
		&data,
		&lastError,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		return nil, err
	}
	records, err := decodeRecords(data)
	if err != nil {
		return nil, err
	}
	post.Records = records
	post.State = models.ResolveState(post.State, len(records))
	if lastError.Valid {
		post.LastError = &lastError.String
	}
	return post, nil
}

// encodeRecords returns JSON for analysis_data. Callers pass it as a
// string: lib/pq sends []byte parameters as bytea.
func encodeRecords(records []models.CommentRecord) ([]byte, error) {
	if records == nil {
		records = []models.CommentRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis data: %w", err)
	}
	return data, nil
}

func decodeRecords(data []byte) ([]models.CommentRecord, error) {
	records := []models.CommentRecord{}
	if len(data) == 0 || string(data) == "null" {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis data: %w", err)
	}
	if records == nil {
		records = []models.CommentRecord{}
	}
	return records, nil
}
