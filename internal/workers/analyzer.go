package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/comment-pulse/internal/analysis"
	"github.com/benvon/comment-pulse/internal/database"
	"github.com/benvon/comment-pulse/internal/models"
	"github.com/benvon/comment-pulse/internal/progress"
	"github.com/benvon/comment-pulse/internal/queue"
	"github.com/benvon/comment-pulse/internal/services/ai"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// stateWriteTimeout bounds state writes made after the job context is done
const stateWriteTimeout = 10 * time.Second

var (
	// errPermanent marks failures that retrying cannot fix
	errPermanent = errors.New("permanent failure")
	// errRecorded marks failures already written to the post
	errRecorded = errors.New("failure recorded on post")
)

// retriesExhaustedMessage is stored on a post whose job was dead-lettered
const retriesExhaustedMessage = "Analysis failed after retries"

// PostStore is the slice of the post repository the analyzer uses
type PostStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	BeginAnalysis(ctx context.Context, id uuid.UUID) error
	SaveAnalysis(ctx context.Context, id uuid.UUID, records []models.CommentRecord) error
	CompleteAnalysis(ctx context.Context, id uuid.UUID, records []models.CommentRecord) error
	SetState(ctx context.Context, id uuid.UUID, state models.PostState, lastError *string) error
}

// ImageSource loads a post's screenshots in upload order
type ImageSource interface {
	ListByPost(ctx context.Context, postID uuid.UUID) ([]models.Image, error)
}

// Runner runs the comment pipeline over images
type Runner interface {
	Run(ctx context.Context, images []models.Image, progress analysis.ProgressFunc) ([]models.CommentRecord, error)
}

var (
	_ PostStore   = (*database.PostRepository)(nil)
	_ ImageSource = (*database.ImageRepository)(nil)
	_ Runner      = (*analysis.Pipeline)(nil)
)

// PostAnalyzer processes post analysis jobs
type PostAnalyzer struct {
	posts    PostStore
	images   ImageSource
	runner   Runner
	progress progress.Store
	jobQueue queue.JobQueue
	logger   *zap.Logger
}

// NewPostAnalyzer creates a new post analyzer. progressStore and jobQueue
// may be nil: progress is then only persisted to the database and
// rate-limited jobs are requeued in place.
func NewPostAnalyzer(
	posts PostStore,
	images ImageSource,
	runner Runner,
	progressStore progress.Store,
	jobQueue queue.JobQueue,
	logger *zap.Logger,
) *PostAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostAnalyzer{
		posts:    posts,
		images:   images,
		runner:   runner,
		progress: progressStore,
		jobQueue: jobQueue,
		logger:   logger,
	}
}

// ProcessPostAnalysisJob runs the pipeline for the job's post, saving the
// accumulated records after every batch so readers see partial results
func (a *PostAnalyzer) ProcessPostAnalysisJob(ctx context.Context, job *queue.Job) error {
	post, err := a.posts.GetByID(ctx, job.PostID)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %w", errPermanent, err)
	}
	if err != nil {
		return fmt.Errorf("failed to get post: %w", err)
	}

	images, err := a.images.ListByPost(ctx, post.ID)
	if err != nil {
		return fmt.Errorf("failed to load images: %w", err)
	}

	if err := a.posts.BeginAnalysis(ctx, post.ID); err != nil {
		return fmt.Errorf("failed to begin analysis: %w", err)
	}
	a.publish(ctx, progress.Snapshot{
		PostID:  post.ID,
		State:   string(models.PostStateAnalyzing),
		Message: fmt.Sprintf("Starting analysis of %d image(s)...", len(images)),
	})

	a.logger.Info("post_analysis_started",
		zap.String("job_id", job.ID.String()),
		zap.String("post_id", post.ID.String()),
		zap.Int("images", len(images)),
		zap.Int("attempt", job.RetryCount+1),
	)

	records, err := a.runner.Run(ctx, images, a.onUpdate(ctx, post.ID))
	if err != nil {
		return a.failPost(ctx, post.ID, err)
	}

	if err := a.posts.CompleteAnalysis(ctx, post.ID, records); err != nil {
		return fmt.Errorf("failed to store analysis: %w", err)
	}

	stats := analysis.Aggregate(records)
	a.publish(ctx, progress.Snapshot{
		PostID:  post.ID,
		State:   string(models.PostStateComplete),
		Message: fmt.Sprintf("Analysis complete: %d comments", stats.Total),
		Records: stats.Total,
	})
	a.logger.Info("post_analysis_completed",
		zap.String("post_id", post.ID.String()),
		zap.Int("comments", stats.Total),
		zap.Int("positive", stats.Positive),
		zap.Int("negative", stats.Negative),
		zap.Int("neutral", stats.Neutral),
		zap.Int("unanalyzed", countUnanalyzed(records)),
	)
	return nil
}

// onUpdate persists each batch's accumulated records and mirrors the
// message to the progress store. Save failures are logged, not fatal: the
// final write replaces analysis_data anyway.
func (a *PostAnalyzer) onUpdate(ctx context.Context, postID uuid.UUID) analysis.ProgressFunc {
	count := 0
	return func(u analysis.Update) {
		if u.Records != nil {
			count = len(u.Records)
			if err := a.posts.SaveAnalysis(ctx, postID, u.Records); err != nil {
				a.logger.Warn("partial_analysis_save_failed",
					zap.String("post_id", postID.String()),
					zap.Int("records", count),
					zap.Error(err),
				)
			}
		}
		a.publish(ctx, progress.Snapshot{
			PostID:  postID,
			State:   string(models.PostStateAnalyzing),
			Message: u.Message,
			Image:   u.Image,
			Records: count,
		})
	}
}

// failPost records a failed run. An interrupted run leaves the post
// analyzing so the redelivered job's BeginAnalysis replaces the partial
// records; other failures leave it in error with whatever records were
// saved before the failure.
func (a *PostAnalyzer) failPost(ctx context.Context, postID uuid.UUID, runErr error) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stateWriteTimeout)
	defer cancel()

	if ctx.Err() != nil {
		a.publish(writeCtx, progress.Snapshot{
			PostID:  postID,
			State:   string(models.PostStateAnalyzing),
			Message: "Analysis interrupted, waiting for a worker to resume it...",
		})
		return fmt.Errorf("analysis interrupted: %w: %w", ctx.Err(), runErr)
	}

	msg := runErr.Error()
	var imgErr *analysis.ImageError
	if errors.As(runErr, &imgErr) {
		msg = fmt.Sprintf("Failed to extract comments from %s", imgErr.Image)
	}
	a.markFailed(writeCtx, postID, msg)

	if ai.IsRateLimitError(runErr) || ai.IsQuotaError(runErr) {
		return fmt.Errorf("%w: analysis failed: %w", errRecorded, runErr)
	}
	return fmt.Errorf("%w: analysis failed: %w", errPermanent, runErr)
}

// markFailed puts the post in its terminal error state
func (a *PostAnalyzer) markFailed(ctx context.Context, postID uuid.UUID, msg string) {
	if err := a.posts.SetState(ctx, postID, models.PostStateError, &msg); err != nil {
		a.logger.Error("failed_to_mark_post_error", zap.String("post_id", postID.String()), zap.Error(err))
	}
	a.publish(ctx, progress.Snapshot{
		PostID:  postID,
		State:   string(models.PostStateError),
		Message: msg,
		Error:   msg,
	})
}

func (a *PostAnalyzer) publish(ctx context.Context, snap progress.Snapshot) {
	if a.progress == nil {
		return
	}
	if err := a.progress.Set(ctx, snap); err != nil {
		a.logger.Debug("progress_publish_failed",
			zap.String("post_id", snap.PostID.String()),
			zap.Error(err),
		)
	}
}

// ProcessJob processes a job based on its type and settles the message
func (a *PostAnalyzer) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	switch job.Type {
	case queue.JobTypePostAnalysis:
		if err := a.ProcessPostAnalysisJob(ctx, job); err != nil {
			return a.handleJobError(ctx, msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Warn("failed_to_nack_unknown_job", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError settles a failed job: permanent failures are acked,
// interrupted jobs are requeued, and AI rate or quota limits are
// re-enqueued with a delay
func (a *PostAnalyzer) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("post_id", job.PostID.String()),
		zap.Int("retry_count", job.RetryCount),
		zap.Error(err),
	}

	switch {
	case errors.Is(err, errPermanent):
		// The post already records the failure; retrying would repeat it
		a.logger.Warn("post_analysis_failed", fields...)
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack failed job: %w", ackErr)
		}
		return err

	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		a.logger.Info("post_analysis_interrupted", fields...)
		if nackErr := msg.Nack(true); nackErr != nil {
			a.logger.Warn("failed_to_requeue_job", zap.Error(nackErr))
		}
		return err

	case ai.IsRateLimitError(err) || ai.IsQuotaError(err):
		if !job.CanRetry() && !ai.IsQuotaError(err) {
			break
		}
		delay := ai.GetRetryDelay(err, job.RetryCount)
		a.logger.Warn("post_analysis_rate_limited", append(fields, zap.Duration("retry_in", delay))...)
		return a.requeueWithDelay(ctx, msg, job, delay, err)
	}

	if job.CanRetry() {
		delay := ai.GetRetryDelay(err, job.RetryCount)
		a.logger.Warn("post_analysis_retrying", append(fields, zap.Duration("retry_in", delay))...)
		return a.requeueWithDelay(ctx, msg, job, delay, err)
	}

	a.logger.Error("post_analysis_dead_lettered", fields...)
	if !errors.Is(err, errRecorded) {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stateWriteTimeout)
		a.markFailed(writeCtx, job.PostID, retriesExhaustedMessage)
		cancel()
	}
	if nackErr := msg.Nack(false); nackErr != nil {
		a.logger.Warn("failed_to_dead_letter_job", zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}

// requeueWithDelay publishes a delayed copy of job and acks the original.
// Without a queue, or if publishing fails, the message is requeued as is.
func (a *PostAnalyzer) requeueWithDelay(ctx context.Context, msg queue.MessageInterface, job *queue.Job, delay time.Duration, cause error) error {
	retry := *job
	retry.RetryCount = job.RetryCount + 1
	retry.Delay(delay)

	if a.jobQueue != nil {
		enqueueErr := a.jobQueue.Enqueue(ctx, &retry)
		if enqueueErr == nil {
			if ackErr := msg.Ack(); ackErr != nil {
				a.logger.Warn("failed_to_ack_requeued_job", zap.Error(ackErr))
			}
			return fmt.Errorf("job rescheduled in %v: %w", delay, cause)
		}
		a.logger.Warn("failed_to_reenqueue_job", zap.String("job_id", job.ID.String()), zap.Error(enqueueErr))
	}

	if nackErr := msg.Nack(true); nackErr != nil {
		a.logger.Warn("failed_to_requeue_job", zap.Error(nackErr))
	}
	return fmt.Errorf("job requeued: %w", cause)
}

func countUnanalyzed(records []models.CommentRecord) int {
	n := 0
	for _, r := range records {
		if r.Unanalyzed() {
			n++
		}
	}
	return n
}
