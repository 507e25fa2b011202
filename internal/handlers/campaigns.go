package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/comment-pulse/internal/analysis"
	"github.com/benvon/comment-pulse/internal/database"
	"github.com/benvon/comment-pulse/internal/models"
	"github.com/benvon/comment-pulse/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// TopCountLimit caps the ranked topic and theme lists in stats responses
const TopCountLimit = 10

// CampaignHandler handles campaign, folder and export requests
type CampaignHandler struct {
	campaigns database.CampaignRepositoryInterface
	posts     database.PostRepositoryInterface
	now       func() time.Time
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaigns database.CampaignRepositoryInterface, posts database.PostRepositoryInterface) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, posts: posts, now: time.Now}
}

// RegisterRoutes registers campaign routes on the given router
// The router should already have the /campaigns prefix
func (h *CampaignHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListCampaigns).Methods("GET")
	r.HandleFunc("", h.CreateCampaign).Methods("POST")
	r.HandleFunc("/export", h.ExportCampaigns).Methods("GET")
	r.HandleFunc("/{id}", h.GetCampaign).Methods("GET")
	r.HandleFunc("/{id}", h.DeleteCampaign).Methods("DELETE")
	r.HandleFunc("/{id}/stats", h.CampaignStats).Methods("GET")
	r.HandleFunc("/{id}/platforms/{platform}/stats", h.PlatformStats).Methods("GET")
	r.HandleFunc("/{id}/posts", h.CreatePost).Methods("POST")
}

// StatsResponse is the aggregate view of a set of posts
type StatsResponse struct {
	Stats       models.AnalysisStats        `json:"stats"`
	Percentages models.SentimentPercentages `json:"percentages"`
	TopTopics   []analysis.Count            `json:"top_topics"`
	TopThemes   []analysis.Count            `json:"top_themes"`
	Posts       int                         `json:"posts"`
}

func newStatsResponse(posts []*models.Post) StatsResponse {
	values := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		values = append(values, *p)
	}
	stats := analysis.AggregatePosts(values)
	return StatsResponse{
		Stats:       stats,
		Percentages: analysis.Percentages(stats),
		TopTopics:   analysis.TopCounts(stats.Topics, TopCountLimit),
		TopThemes:   analysis.TopCounts(stats.Themes, TopCountLimit),
		Posts:       len(posts),
	}
}

// loadTree returns the owner's campaigns with every post placed in its folder
func (h *CampaignHandler) loadTree(r *http.Request, ownerID string) ([]*models.Campaign, error) {
	ctx := r.Context()
	campaigns, err := h.campaigns.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	posts, err := h.posts.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, c := range campaigns {
		database.AttachPosts(c, posts)
	}
	return campaigns, nil
}

// ListCampaigns returns the authenticated user's campaign tree
func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	campaigns, err := h.loadTree(r, user.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve campaigns")
		return
	}
	respondJSON(w, http.StatusOK, campaigns)
}

// CreateCampaign creates an empty campaign with the default platform folders
func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req validation.CreateCampaignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = validation.SanitizeText(req.Name)
	if err := validation.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	campaign := &models.Campaign{
		OwnerID: user.ID,
		Name:    req.Name,
		Folders: models.NewFolders(),
	}
	if err := h.campaigns.Create(r.Context(), campaign); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create campaign")
		return
	}
	respondJSON(w, http.StatusCreated, campaign)
}

// ExportCampaigns downloads the whole campaign tree as indented JSON
func (h *CampaignHandler) ExportCampaigns(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	campaigns, err := h.loadTree(r, user.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to export campaigns")
		return
	}

	data, err := json.MarshalIndent(campaigns, "", "  ")
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to encode export")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, models.ExportFilename(h.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetCampaign returns one campaign with its posts
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	campaign, posts, ok := h.campaignPosts(w, r, id, user.ID, nil)
	if !ok {
		return
	}
	database.AttachPosts(campaign, posts)
	respondJSON(w, http.StatusOK, campaign)
}

// DeleteCampaign removes a campaign with its posts and images
func (h *CampaignHandler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.campaigns.Delete(r.Context(), id, user.ID); err != nil {
		respondRepoError(w, err, "campaign", "delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CampaignStats aggregates every post of a campaign
func (h *CampaignHandler) CampaignStats(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	_, posts, ok := h.campaignPosts(w, r, id, user.ID, nil)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newStatsResponse(posts))
}

// PlatformStats aggregates the posts of one platform folder
func (h *CampaignHandler) PlatformStats(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	platform := models.PlatformID(mux.Vars(r)["platform"])
	if !platform.Valid() {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("invalid platform_id: %s", platform))
		return
	}

	_, posts, ok := h.campaignPosts(w, r, id, user.ID, &platform)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newStatsResponse(posts))
}

// CreatePost adds a post to one of the campaign's platform folders
func (h *CampaignHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req validation.CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = validation.SanitizeText(req.Name)
	if err := validation.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	ctx := r.Context()
	if _, err := h.campaigns.GetByID(ctx, id, user.ID); err != nil {
		respondRepoError(w, err, "campaign", "load")
		return
	}

	post := &models.Post{
		CampaignID: id,
		PlatformID: models.PlatformID(req.PlatformID),
		Name:       req.Name,
	}
	if err := h.posts.Create(ctx, post); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create post")
		return
	}
	respondJSON(w, http.StatusCreated, post)
}

// campaignPosts checks ownership of a campaign and lists its posts,
// writing the error response itself on failure
func (h *CampaignHandler) campaignPosts(w http.ResponseWriter, r *http.Request, id uuid.UUID, ownerID string, platform *models.PlatformID) (*models.Campaign, []*models.Post, bool) {
	ctx := r.Context()
	campaign, err := h.campaigns.GetByID(ctx, id, ownerID)
	if err != nil {
		respondRepoError(w, err, "campaign", "load")
		return nil, nil, false
	}
	posts, err := h.posts.ListByCampaign(ctx, id, platform)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve posts")
		return nil, nil, false
	}
	return campaign, posts, true
}
