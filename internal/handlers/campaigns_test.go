package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/benvon/comment-pulse/internal/database"
	"github.com/benvon/comment-pulse/internal/models"
	"github.com/google/uuid"
)

func record(sentiment models.Sentiment, topic, theme string) models.CommentRecord {
	return models.CommentRecord{
		ID:         uuid.New(),
		Text:       "comment",
		Sentiment:  sentiment,
		Confidence: 0.9,
		Topic:      topic,
		Theme:      theme,
	}
}

func ownedCampaign(id uuid.UUID) func(context.Context, uuid.UUID, string) (*models.Campaign, error) {
	return func(_ context.Context, got uuid.UUID, owner string) (*models.Campaign, error) {
		if got != id || owner != testOwner {
			return nil, fmt.Errorf("campaign %s: %w", got, database.ErrNotFound)
		}
		return &models.Campaign{ID: id, OwnerID: owner, Name: "Spring", Folders: models.NewFolders()}, nil
	}
}

func TestCampaignHandler_CreateCampaign(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       any
		owner      string
		wantStatus int
		wantName   string
	}{
		{"valid", map[string]string{"name": "  Spring launch  "}, testOwner, http.StatusCreated, "Spring launch"},
		{"missing name", map[string]string{"name": "   "}, testOwner, http.StatusBadRequest, ""},
		{"unknown field", map[string]any{"name": "a", "owner_id": "x"}, testOwner, http.StatusBadRequest, ""},
		{"too long", map[string]string{"name": strings.Repeat("n", 201)}, testOwner, http.StatusBadRequest, ""},
		{"unauthenticated", map[string]string{"name": "a"}, "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewCampaignHandler(&mockCampaignRepo{}, &mockPostRepo{})
			r := newTestRequest(http.MethodPost, "/campaigns", tt.body)
			if tt.owner == "" {
				r = r.WithContext(context.Background())
			}
			w := serve(h.RegisterRoutes, "/campaigns", r)

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				return
			}
			var got models.Campaign
			decodeData(t, w, &got)
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if got.OwnerID != testOwner {
				t.Errorf("OwnerID = %q, want %q", got.OwnerID, testOwner)
			}
			if len(got.Folders) != len(models.Platforms) {
				t.Errorf("Expected %d folders, got %d", len(models.Platforms), len(got.Folders))
			}
		})
	}
}

func TestCampaignHandler_ListCampaigns_BuildsTree(t *testing.T) {
	t.Parallel()

	campaignID := uuid.New()
	campaigns := &mockCampaignRepo{
		listByOwnerFunc: func(_ context.Context, owner string) ([]*models.Campaign, error) {
			return []*models.Campaign{{ID: campaignID, OwnerID: owner, Name: "Spring", Folders: models.NewFolders()}}, nil
		},
	}
	posts := &mockPostRepo{
		listByOwnerFunc: func(context.Context, string) ([]*models.Post, error) {
			return []*models.Post{
				{ID: uuid.New(), CampaignID: campaignID, PlatformID: models.PlatformTikTok, Name: "teaser"},
				{ID: uuid.New(), CampaignID: campaignID, PlatformID: models.PlatformTikTok, Name: "reveal"},
				{ID: uuid.New(), CampaignID: campaignID, PlatformID: models.PlatformX, Name: "thread"},
			}, nil
		},
	}

	h := NewCampaignHandler(campaigns, posts)
	w := serve(h.RegisterRoutes, "/campaigns", newTestRequest(http.MethodGet, "/campaigns", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var got []models.Campaign
	decodeData(t, w, &got)
	if len(got) != 1 {
		t.Fatalf("Expected 1 campaign, got %d", len(got))
	}
	counts := map[models.PlatformID]int{}
	for _, f := range got[0].Folders {
		counts[f.ID] = len(f.Posts)
	}
	if counts[models.PlatformTikTok] != 2 || counts[models.PlatformX] != 1 || counts[models.PlatformFacebook] != 0 {
		t.Errorf("Unexpected folder contents: %v", counts)
	}
}

func TestCampaignHandler_ListCampaigns_RepoError(t *testing.T) {
	t.Parallel()

	campaigns := &mockCampaignRepo{
		listByOwnerFunc: func(context.Context, string) ([]*models.Campaign, error) {
			return nil, errors.New("db down")
		},
	}
	h := NewCampaignHandler(campaigns, &mockPostRepo{})
	w := serve(h.RegisterRoutes, "/campaigns", newTestRequest(http.MethodGet, "/campaigns", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestCampaignHandler_ExportCampaigns(t *testing.T) {
	t.Parallel()

	campaignID := uuid.New()
	campaigns := &mockCampaignRepo{
		listByOwnerFunc: func(_ context.Context, owner string) ([]*models.Campaign, error) {
			return []*models.Campaign{{ID: campaignID, OwnerID: owner, Name: "Spring", Folders: models.NewFolders()}}, nil
		},
	}
	h := NewCampaignHandler(campaigns, &mockPostRepo{})
	h.now = func() time.Time { return time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC) }

	w := serve(h.RegisterRoutes, "/campaigns", newTestRequest(http.MethodGet, "/campaigns/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	want := `attachment; filename="commentpulse_export_2024-03-09.json"`
	if got := w.Header().Get("Content-Disposition"); got != want {
		t.Errorf("Content-Disposition = %q, want %q", got, want)
	}
	if !strings.Contains(w.Body.String(), "\n  ") {
		t.Error("Expected indented JSON")
	}
	var tree []models.Campaign
	if err := json.Unmarshal(w.Body.Bytes(), &tree); err != nil {
		t.Fatalf("Export is not a campaign list: %v", err)
	}
	if len(tree) != 1 || tree[0].ID != campaignID {
		t.Errorf("Unexpected export: %+v", tree)
	}
}

func TestCampaignHandler_GetCampaign(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	h := NewCampaignHandler(&mockCampaignRepo{getByIDFunc: ownedCampaign(id)}, &mockPostRepo{
		listByCampaignFunc: func(_ context.Context, campaignID uuid.UUID, platform *models.PlatformID) ([]*models.Post, error) {
			if platform != nil {
				return nil, errors.New("unexpected platform filter")
			}
			return []*models.Post{{ID: uuid.New(), CampaignID: campaignID, PlatformID: models.PlatformLinkedIn}}, nil
		},
	})

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"owned", "/campaigns/" + id.String(), http.StatusOK},
		{"not owned", "/campaigns/" + uuid.NewString(), http.StatusNotFound},
		{"bad id", "/campaigns/not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := serve(h.RegisterRoutes, "/campaigns", newTestRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got models.Campaign
			decodeData(t, w, &got)
			for _, f := range got.Folders {
				if f.ID == models.PlatformLinkedIn && len(f.Posts) != 1 {
					t.Errorf("Expected 1 LinkedIn post, got %d", len(f.Posts))
				}
			}
		})
	}
}

func TestCampaignHandler_DeleteCampaign(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	campaigns := &mockCampaignRepo{
		deleteFunc: func(_ context.Context, got uuid.UUID, _ string) error {
			if got != id {
				return fmt.Errorf("campaign %s: %w", got, database.ErrNotFound)
			}
			return nil
		},
	}
	h := NewCampaignHandler(campaigns, &mockPostRepo{})

	w := serve(h.RegisterRoutes, "/campaigns", newTestRequest(http.MethodDelete, "/campaigns/"+id.String(), nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	w = serve(h.RegisterRoutes, "/campaigns", newTestRequest(http.MethodDelete, "/campaigns/"+uuid.NewString(), nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCampaignHandler_CampaignStats(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	posts := &mockPostRepo{
		listByCampaignFunc: func(context.Context, uuid.UUID, *models.PlatformID) ([]*models.Post, error) {
			return []*models.Post{
				{Records: []models.CommentRecord{
					record(models.SentimentPositive, "Price", "Value"),
					record(models.SentimentPositive, "Price", "Value"),
				}},
				{Records: []models.CommentRecord{
					record(models.SentimentNegative, "Shipping", "Delays"),
				}},
				{Records: []models.CommentRecord{}},
			}, nil
		},
	}
	h := NewCampaignHandler(&mockCampaignRepo{getByIDFunc: ownedCampaign(id)}, posts)

	w := serve(h.RegisterRoutes, "/campaigns", newTestRequest(http.MethodGet, "/campaigns/"+id.String()+"/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var got StatsResponse
	decodeData(t, w, &got)
	if got.Posts != 3 {
		t.Errorf("Posts = %d, want 3", got.Posts)
	}
	if got.Stats.Total != 3 || got.Stats.Positive != 2 || got.Stats.Negative != 1 {
		t.Errorf("Unexpected stats: %+v", got.Stats)
	}
	if got.Percentages.Positive != 67 || got.Percentages.Negative != 33 || got.Percentages.Neutral != 0 {
		t.Errorf("Unexpected percentages: %+v", got.Percentages)
	}
	if len(got.TopTopics) != 2 || got.TopTopics[0].Name != "Price" || got.TopTopics[0].Count != 2 {
		t.Errorf("Unexpected top topics: %+v", got.TopTopics)
	}
}

func TestCampaignHandler_PlatformStats(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	var gotPlatform *models.PlatformID
	posts := &mockPostRepo{
		listByCampaignFunc: func(_ context.Context, _ uuid.UUID, platform *models.PlatformID) ([]*models.Post, error) {
			gotPlatform = platform
			return []*models.Post{}, nil
		},
	}
	h := NewCampaignHandler(&mockCampaignRepo{getByIDFunc: ownedCampaign(id)}, posts)

	w := serve(h.RegisterRoutes, "/campaigns", newTestRequest(http.MethodGet, "/campaigns/"+id.String()+"/platforms/instagram/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotPlatform == nil || *gotPlatform != models.PlatformInstagram {
		t.Errorf("Expected instagram filter, got %v", gotPlatform)
	}
	var got StatsResponse
	decodeData(t, w, &got)
	if got.Stats.Total != 0 || got.Percentages != (models.SentimentPercentages{}) {
		t.Errorf("Expected empty stats, got %+v", got)
	}

	w = serve(h.RegisterRoutes, "/campaigns", newTestRequest(http.MethodGet, "/campaigns/"+id.String()+"/platforms/myspace/stats", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown platform, got %d", w.Code)
	}
}

func TestCampaignHandler_CreatePost(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	tests := []struct {
		name       string
		campaign   uuid.UUID
		body       any
		wantStatus int
	}{
		{"valid", id, map[string]string{"platform_id": "tiktok", "name": "Teaser"}, http.StatusCreated},
		{"unknown platform", id, map[string]string{"platform_id": "myspace", "name": "Teaser"}, http.StatusBadRequest},
		{"missing name", id, map[string]string{"platform_id": "x"}, http.StatusBadRequest},
		{"foreign campaign", uuid.New(), map[string]string{"platform_id": "x", "name": "Teaser"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewCampaignHandler(&mockCampaignRepo{getByIDFunc: ownedCampaign(id)}, &mockPostRepo{})
			path := "/campaigns/" + tt.campaign.String() + "/posts"
			w := serve(h.RegisterRoutes, "/campaigns", newTestRequest(http.MethodPost, path, tt.body))
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				return
			}
			var got models.Post
			decodeData(t, w, &got)
			if got.CampaignID != id || got.PlatformID != models.PlatformTikTok || got.State != models.PostStateIdle {
				t.Errorf("Unexpected post: %+v", got)
			}
		})
	}
}
