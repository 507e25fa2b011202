package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/comment-pulse/internal/models"
	"github.com/google/uuid"
)

// CampaignRepository handles campaign database operations
type CampaignRepository struct {
	db *DB
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create inserts a campaign, assigning an ID when unset
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	if campaign.ID == uuid.Nil {
		campaign.ID = uuid.New()
	}
	query := `
		INSERT INTO campaigns (id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		campaign.ID,
		campaign.OwnerID,
		campaign.Name,
		time.Now(),
	).Scan(&campaign.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	if campaign.Folders == nil {
		campaign.Folders = models.NewFolders()
	}
	return nil
}

// GetByID returns a campaign owned by ownerID, without posts
func (r *CampaignRepository) GetByID(ctx context.Context, id uuid.UUID, ownerID string) (*models.Campaign, error) {
	campaign := &models.Campaign{}
	query := `
		SELECT id, user_id, name, created_at
		FROM campaigns
		WHERE id = $1 AND user_id = $2
	`
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(
		&campaign.ID,
		&campaign.OwnerID,
		&campaign.Name,
		&campaign.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	campaign.Folders = models.NewFolders()
	return campaign, nil
}

// ListByOwner returns the owner's campaigns, newest first, without posts
func (r *CampaignRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Campaign, error) {
	query := `
		SELECT id, user_id, name, created_at
		FROM campaigns
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	campaigns := make([]*models.Campaign, 0)
	for rows.Next() {
		c := &models.Campaign{}
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		c.Folders = models.NewFolders()
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}
	return campaigns, nil
}

// Delete removes a campaign and, by cascade, its posts and images
func (r *CampaignRepository) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return requireAffected(res, "campaign", id)
}

// AttachPosts places posts into the matching platform folders of campaign.
// Posts for unknown platforms are dropped.
func AttachPosts(campaign *models.Campaign, posts []*models.Post) {
	if campaign.Folders == nil {
		campaign.Folders = models.NewFolders()
	}
	index := make(map[models.PlatformID]int, len(campaign.Folders))
	for i, f := range campaign.Folders {
		index[f.ID] = i
	}
	for _, p := range posts {
		if p.CampaignID != campaign.ID {
			continue
		}
		i, ok := index[p.PlatformID]
		if !ok {
			continue
		}
		campaign.Folders[i].Posts = append(campaign.Folders[i].Posts, *p)
	}
}

func requireAffected(res sql.Result, kind string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
