package handlers

import (
	"context"
	"fmt"

	"github.com/benvon/comment-pulse/internal/database"
	"github.com/benvon/comment-pulse/internal/models"
	"github.com/benvon/comment-pulse/internal/progress"
	"github.com/benvon/comment-pulse/internal/queue"
	"github.com/google/uuid"
)

type mockCampaignRepo struct {
	createFunc      func(ctx context.Context, campaign *models.Campaign) error
	getByIDFunc     func(ctx context.Context, id uuid.UUID, ownerID string) (*models.Campaign, error)
	listByOwnerFunc func(ctx context.Context, ownerID string) ([]*models.Campaign, error)
	deleteFunc      func(ctx context.Context, id uuid.UUID, ownerID string) error
}

var _ database.CampaignRepositoryInterface = (*mockCampaignRepo)(nil)

func (m *mockCampaignRepo) Create(ctx context.Context, campaign *models.Campaign) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, campaign)
	}
	if campaign.ID == uuid.Nil {
		campaign.ID = uuid.New()
	}
	return nil
}

func (m *mockCampaignRepo) GetByID(ctx context.Context, id uuid.UUID, ownerID string) (*models.Campaign, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id, ownerID)
	}
	return nil, fmt.Errorf("campaign %s: %w", id, database.ErrNotFound)
}

func (m *mockCampaignRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Campaign, error) {
	if m.listByOwnerFunc != nil {
		return m.listByOwnerFunc(ctx, ownerID)
	}
	return []*models.Campaign{}, nil
}

func (m *mockCampaignRepo) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, ownerID)
	}
	return nil
}

type mockPostRepo struct {
	createFunc         func(ctx context.Context, post *models.Post) error
	getForOwnerFunc    func(ctx context.Context, id uuid.UUID, ownerID string) (*models.Post, error)
	listByCampaignFunc func(ctx context.Context, campaignID uuid.UUID, platform *models.PlatformID) ([]*models.Post, error)
	listByOwnerFunc    func(ctx context.Context, ownerID string) ([]*models.Post, error)
	beginAnalysisFunc  func(ctx context.Context, id uuid.UUID) error
	setStateFunc       func(ctx context.Context, id uuid.UUID, state models.PostState, lastError *string) error
	deleteFunc         func(ctx context.Context, id uuid.UUID, ownerID string) error
	beginAnalysisCalls int
	setStateCalls      []models.PostState
}

var _ database.PostRepositoryInterface = (*mockPostRepo)(nil)

func (m *mockPostRepo) Create(ctx context.Context, post *models.Post) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, post)
	}
	post.ID = uuid.New()
	post.State = models.PostStateIdle
	post.Records = []models.CommentRecord{}
	return nil
}

func (m *mockPostRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return m.GetForOwner(ctx, id, "")
}

func (m *mockPostRepo) GetForOwner(ctx context.Context, id uuid.UUID, ownerID string) (*models.Post, error) {
	if m.getForOwnerFunc != nil {
		return m.getForOwnerFunc(ctx, id, ownerID)
	}
	return nil, fmt.Errorf("post %s: %w", id, database.ErrNotFound)
}

func (m *mockPostRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID, platform *models.PlatformID) ([]*models.Post, error) {
	if m.listByCampaignFunc != nil {
		return m.listByCampaignFunc(ctx, campaignID, platform)
	}
	return []*models.Post{}, nil
}

func (m *mockPostRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Post, error) {
	if m.listByOwnerFunc != nil {
		return m.listByOwnerFunc(ctx, ownerID)
	}
	return []*models.Post{}, nil
}

func (m *mockPostRepo) BeginAnalysis(ctx context.Context, id uuid.UUID) error {
	m.beginAnalysisCalls++
	if m.beginAnalysisFunc != nil {
		return m.beginAnalysisFunc(ctx, id)
	}
	return nil
}

func (m *mockPostRepo) SaveAnalysis(context.Context, uuid.UUID, []models.CommentRecord) error {
	return nil
}

func (m *mockPostRepo) LoadAnalysis(context.Context, uuid.UUID) ([]models.CommentRecord, error) {
	return []models.CommentRecord{}, nil
}

func (m *mockPostRepo) CompleteAnalysis(context.Context, uuid.UUID, []models.CommentRecord) error {
	return nil
}

func (m *mockPostRepo) SetState(ctx context.Context, id uuid.UUID, state models.PostState, lastError *string) error {
	m.setStateCalls = append(m.setStateCalls, state)
	if m.setStateFunc != nil {
		return m.setStateFunc(ctx, id, state, lastError)
	}
	return nil
}

func (m *mockPostRepo) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, ownerID)
	}
	return nil
}

type mockImageRepo struct {
	added            []*models.Image
	addFunc          func(ctx context.Context, img *models.Image) error
	listMetadataFunc func(ctx context.Context, postID uuid.UUID) ([]models.Image, error)
	deleteByPostFunc func(ctx context.Context, postID uuid.UUID) (int64, error)
}

var _ database.ImageRepositoryInterface = (*mockImageRepo)(nil)

func (m *mockImageRepo) Add(ctx context.Context, img *models.Image) error {
	if m.addFunc != nil {
		if err := m.addFunc(ctx, img); err != nil {
			return err
		}
	}
	img.ID = uuid.New()
	img.Position = len(m.added)
	m.added = append(m.added, img)
	return nil
}

func (m *mockImageRepo) ListByPost(ctx context.Context, postID uuid.UUID) ([]models.Image, error) {
	return m.ListMetadata(ctx, postID)
}

func (m *mockImageRepo) ListMetadata(ctx context.Context, postID uuid.UUID) ([]models.Image, error) {
	if m.listMetadataFunc != nil {
		return m.listMetadataFunc(ctx, postID)
	}
	return []models.Image{}, nil
}

func (m *mockImageRepo) DeleteByPost(ctx context.Context, postID uuid.UUID) (int64, error) {
	if m.deleteByPostFunc != nil {
		return m.deleteByPostFunc(ctx, postID)
	}
	return 0, nil
}

type mockEnqueuer struct {
	jobs        []*queue.Job
	enqueueFunc func(ctx context.Context, job *queue.Job) error
}

var _ JobEnqueuer = (*mockEnqueuer)(nil)

func (m *mockEnqueuer) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueFunc != nil {
		if err := m.enqueueFunc(ctx, job); err != nil {
			return err
		}
	}
	m.jobs = append(m.jobs, job)
	return nil
}

type mockProgressStore struct {
	snapshots map[uuid.UUID]progress.Snapshot
	getErr    error
}

var _ progress.Store = (*mockProgressStore)(nil)

func newMockProgressStore() *mockProgressStore {
	return &mockProgressStore{snapshots: make(map[uuid.UUID]progress.Snapshot)}
}

func (m *mockProgressStore) Set(_ context.Context, snap progress.Snapshot) error {
	m.snapshots[snap.PostID] = snap
	return nil
}

func (m *mockProgressStore) Get(_ context.Context, postID uuid.UUID) (*progress.Snapshot, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	snap, ok := m.snapshots[postID]
	if !ok {
		return nil, progress.ErrNotFound
	}
	return &snap, nil
}
