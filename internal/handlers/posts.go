package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/benvon/comment-pulse/internal/analysis"
	"github.com/benvon/comment-pulse/internal/database"
	"github.com/benvon/comment-pulse/internal/logger"
	"github.com/benvon/comment-pulse/internal/models"
	"github.com/benvon/comment-pulse/internal/progress"
	"github.com/benvon/comment-pulse/internal/queue"
	"github.com/benvon/comment-pulse/internal/request"
	"github.com/benvon/comment-pulse/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// DefaultMaxUploadBytes bounds one multipart screenshot upload
	DefaultMaxUploadBytes = 20 << 20
	// uploadField is the multipart field carrying screenshots
	uploadField = "images"
)

// JobEnqueuer is the part of the job queue the API uses
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// PostHandler handles post, screenshot and analysis requests
type PostHandler struct {
	posts          database.PostRepositoryInterface
	images         database.ImageRepositoryInterface
	jobs           JobEnqueuer
	progress       progress.Store
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewPostHandler creates a new post handler. jobs and progressStore may be
// nil; analysis requests then fail with 503 and progress falls back to the
// stored post state.
func NewPostHandler(
	posts database.PostRepositoryInterface,
	images database.ImageRepositoryInterface,
	jobs JobEnqueuer,
	progressStore progress.Store,
	logger *zap.Logger,
	maxUploadBytes int64,
) *PostHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &PostHandler{
		posts:          posts,
		images:         images,
		jobs:           jobs,
		progress:       progressStore,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers post routes on the given router
// The router should already have the /posts prefix
func (h *PostHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{id}", h.GetPost).Methods("GET")
	r.HandleFunc("/{id}", h.DeletePost).Methods("DELETE")
	r.HandleFunc("/{id}/images", h.UploadImages).Methods("POST")
	r.HandleFunc("/{id}/images", h.ListImages).Methods("GET")
	r.HandleFunc("/{id}/images", h.DeleteImages).Methods("DELETE")
	r.HandleFunc("/{id}/analysis", h.StartAnalysis).Methods("POST")
	r.HandleFunc("/{id}/progress", h.GetProgress).Methods("GET")
}

// PostView is a post together with the statistics of its records
type PostView struct {
	*models.Post
	Stats       models.AnalysisStats        `json:"stats"`
	Percentages models.SentimentPercentages `json:"percentages"`
}

// AnalysisStarted is returned when an analysis job was queued
type AnalysisStarted struct {
	JobID  string           `json:"job_id"`
	PostID string           `json:"post_id"`
	State  models.PostState `json:"state"`
	Images int              `json:"images"`
}

// loadPost resolves the {id} route variable to a post owned by the caller
func (h *PostHandler) loadPost(w http.ResponseWriter, r *http.Request) (*models.Post, *models.User, bool) {
	user := requireUser(w, r)
	if user == nil {
		return nil, nil, false
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, nil, false
	}
	post, err := h.posts.GetForOwner(r.Context(), id, user.ID)
	if err != nil {
		respondRepoError(w, err, "post", "load")
		return nil, nil, false
	}
	return post, user, true
}

// GetPost returns a post with its records, stats and percentages
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, _, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	stats := analysis.Aggregate(post.Records)
	respondJSON(w, http.StatusOK, PostView{
		Post:        post,
		Stats:       stats,
		Percentages: analysis.Percentages(stats),
	})
}

// DeletePost removes a post and its screenshots
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.posts.Delete(r.Context(), id, user.ID); err != nil {
		respondRepoError(w, err, "post", "delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImages stores the screenshots of a multipart upload after the
// post's existing images
func (h *PostHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	post, _, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	if post.State == models.PostStateAnalyzing {
		respondJSONError(w, http.StatusConflict, "Conflict", "Post is being analyzed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
				fmt.Sprintf("Upload exceeds maximum size of %d bytes", h.maxUploadBytes))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "No images in field \""+uploadField+"\"")
		return
	}

	// Validate every file before storing any of them
	images := make([]*models.Image, 0, len(files))
	for _, fh := range files {
		img, err := readUpload(fh)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		img.PostID = post.ID
		images = append(images, img)
	}

	ctx := r.Context()
	stored := make([]models.Image, 0, len(images))
	for _, img := range images {
		if err := h.images.Add(ctx, img); err != nil {
			h.logger.Error("image_store_failed",
				zap.String("post_id", post.ID.String()),
				logger.ImageName(img.Name),
				zap.Error(err),
			)
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to store image")
			return
		}
		stored = append(stored, *img)
	}

	h.logger.Info("images_uploaded",
		zap.String("post_id", post.ID.String()),
		zap.Int("count", len(stored)),
		zap.String("request_id", request.RequestID(ctx)),
	)
	respondJSON(w, http.StatusCreated, stored)
}

// readUpload reads and validates one multipart file. The declared content
// type is used unless it is missing or generic, in which case it is sniffed.
func readUpload(fh *multipart.FileHeader) (*models.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s", validation.SanitizeFilename(fh.Filename))
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s", validation.SanitizeFilename(fh.Filename))
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	upload := validation.ImageUpload{
		Name:     validation.SanitizeFilename(fh.Filename),
		MIMEType: mimeType,
		Size:     int64(len(data)),
	}
	if err := validation.Struct(upload); err != nil {
		if upload.Name == "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", upload.Name, err)
	}

	return &models.Image{
		Name:     upload.Name,
		MIMEType: upload.MIMEType,
		Data:     data,
	}, nil
}

// ListImages returns the post's screenshot metadata in upload order
func (h *PostHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	post, _, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	images, err := h.images.ListMetadata(r.Context(), post.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve images")
		return
	}
	respondJSON(w, http.StatusOK, images)
}

// DeleteImages removes every screenshot of a post. Stored records are kept.
func (h *PostHandler) DeleteImages(w http.ResponseWriter, r *http.Request) {
	post, _, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	if post.State == models.PostStateAnalyzing {
		respondJSONError(w, http.StatusConflict, "Conflict", "Post is being analyzed")
		return
	}
	n, err := h.images.DeleteByPost(r.Context(), post.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete images")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// StartAnalysis marks the post analyzing and queues an analysis job for
// its screenshots
func (h *PostHandler) StartAnalysis(w http.ResponseWriter, r *http.Request) {
	post, user, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	if h.jobs == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Analysis queue is not configured")
		return
	}
	if post.State == models.PostStateAnalyzing {
		respondJSONError(w, http.StatusConflict, "Conflict", "Analysis already in progress")
		return
	}

	ctx := r.Context()
	images, err := h.images.ListMetadata(ctx, post.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve images")
		return
	}
	if len(images) == 0 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Upload at least one image before analyzing")
		return
	}

	// Records stay in place until the worker begins the run, so a job that
	// never gets queued loses nothing
	if err := h.posts.SetState(ctx, post.ID, models.PostStateAnalyzing, nil); err != nil {
		respondRepoError(w, err, "post", "update")
		return
	}

	job := queue.NewPostAnalysisJob(post.ID, user.ID)
	if err := h.jobs.Enqueue(ctx, job); err != nil {
		h.logger.Error("analysis_enqueue_failed",
			zap.String("post_id", post.ID.String()),
			zap.Error(err),
		)
		h.restoreState(ctx, post)
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Failed to queue analysis")
		return
	}

	h.publish(ctx, progress.Snapshot{
		PostID:  post.ID,
		State:   string(models.PostStateAnalyzing),
		Message: fmt.Sprintf("Queued analysis of %d images...", len(images)),
	})
	h.logger.Info("analysis_queued",
		zap.String("post_id", post.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.Int("images", len(images)),
		logger.UserID(user.ID),
	)

	respondJSON(w, http.StatusAccepted, AnalysisStarted{
		JobID:  job.ID.String(),
		PostID: post.ID.String(),
		State:  models.PostStateAnalyzing,
		Images: len(images),
	})
}

// restoreState puts a post whose job could not be queued back in the state
// it was loaded with
func (h *PostHandler) restoreState(ctx context.Context, post *models.Post) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.posts.SetState(ctx, post.ID, post.State, post.LastError); err != nil {
		h.logger.Warn("post_state_restore_failed",
			zap.String("post_id", post.ID.String()),
			zap.Error(err),
		)
	}
}

func (h *PostHandler) publish(ctx context.Context, snap progress.Snapshot) {
	if h.progress == nil {
		return
	}
	snap.UpdatedAt = time.Now().UTC()
	if err := h.progress.Set(ctx, snap); err != nil {
		h.logger.Warn("progress_publish_failed",
			zap.String("post_id", snap.PostID.String()),
			zap.Error(err),
		)
	}
}

// GetProgress returns the latest progress message of the post's analysis.
// Without a recorded snapshot the stored post state is reported.
func (h *PostHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	post, _, ok := h.loadPost(w, r)
	if !ok {
		return
	}

	if h.progress != nil {
		snap, err := h.progress.Get(r.Context(), post.ID)
		switch {
		case err == nil:
			respondJSON(w, http.StatusOK, snap)
			return
		case !errors.Is(err, progress.ErrNotFound):
			h.logger.Warn("progress_lookup_failed",
				zap.String("post_id", post.ID.String()),
				zap.Error(err),
			)
		}
	}

	respondJSON(w, http.StatusOK, SnapshotFromPost(post))
}

// SnapshotFromPost describes a post's stored state as a progress snapshot
func SnapshotFromPost(post *models.Post) progress.Snapshot {
	snap := progress.Snapshot{
		PostID:    post.ID,
		State:     string(post.State),
		Records:   len(post.Records),
		UpdatedAt: post.UpdatedAt,
	}
	switch post.State {
	case models.PostStateAnalyzing:
		snap.Message = "Analysis in progress..."
	case models.PostStateComplete:
		snap.Message = fmt.Sprintf("Analysis complete: %d comments", len(post.Records))
	case models.PostStateError:
		snap.Message = "Analysis failed"
		if post.LastError != nil {
			snap.Error = *post.LastError
		}
	default:
		snap.Message = "Not analyzed"
	}
	return snap
}
