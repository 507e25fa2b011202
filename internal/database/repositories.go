package database

import (
	"context"

	"github.com/benvon/comment-pulse/internal/models"
	"github.com/google/uuid"
)

// CampaignRepositoryInterface defines the campaign operations handlers need.
// This interface enables better testability by allowing mock implementations.
type CampaignRepositoryInterface interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID, ownerID string) (*models.Campaign, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Campaign, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
}

// PostRepositoryInterface defines the post operations handlers and workers need
type PostRepositoryInterface interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	GetForOwner(ctx context.Context, id uuid.UUID, ownerID string) (*models.Post, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, platform *models.PlatformID) ([]*models.Post, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Post, error)
	BeginAnalysis(ctx context.Context, id uuid.UUID) error
	SaveAnalysis(ctx context.Context, id uuid.UUID, records []models.CommentRecord) error
	LoadAnalysis(ctx context.Context, id uuid.UUID) ([]models.CommentRecord, error)
	CompleteAnalysis(ctx context.Context, id uuid.UUID, records []models.CommentRecord) error
	SetState(ctx context.Context, id uuid.UUID, state models.PostState, lastError *string) error
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
}

// ImageRepositoryInterface defines the screenshot storage operations
type ImageRepositoryInterface interface {
	Add(ctx context.Context, img *models.Image) error
	ListByPost(ctx context.Context, postID uuid.UUID) ([]models.Image, error)
	ListMetadata(ctx context.Context, postID uuid.UUID) ([]models.Image, error)
	DeleteByPost(ctx context.Context, postID uuid.UUID) (int64, error)
}

// Ensure concrete types implement the interfaces
var (
	_ CampaignRepositoryInterface = (*CampaignRepository)(nil)
	_ PostRepositoryInterface     = (*PostRepository)(nil)
	_ ImageRepositoryInterface    = (*ImageRepository)(nil)
)
