package analysis

import (
	"context"
	"fmt"
	"slices"

	logpkg "github.com/benvon/comment-pulse/internal/logger"
	"github.com/benvon/comment-pulse/internal/models"
	"github.com/benvon/comment-pulse/internal/services/ai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the number of comments classified concurrently
const DefaultBatchSize = 5

const tracerName = "github.com/benvon/comment-pulse/internal/analysis"

// CommentExtractor pulls raw comment strings out of one image
type CommentExtractor interface {
	Extract(ctx context.Context, image models.Image) ([]string, error)
}

// CommentClassifier labels one comment. It must always return a record.
type CommentClassifier interface {
	Classify(ctx context.Context, sourceImage, text string) models.CommentRecord
}

var (
	_ CommentExtractor  = (*Extractor)(nil)
	_ CommentClassifier = (*Classifier)(nil)
)

// Update is one progress notification from a pipeline run. Records is set
// after each classified batch and holds every record produced so far in
// the run; it is nil for message-only updates.
type Update struct {
	Message string
	Image   string
	Records []models.CommentRecord
}

// ProgressFunc receives progress updates. It is called from the goroutine
// running the pipeline, never concurrently.
type ProgressFunc func(Update)

// ImageError reports the image whose extraction aborted a run
type ImageError struct {
	Image string
	Err   error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("analysis aborted at image %s: %v", e.Image, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// Pipeline extracts comments from each image in turn and classifies them
// in fixed-size concurrent batches
type Pipeline struct {
	extractor  CommentExtractor
	classifier CommentClassifier
	batchSize  int
	logger     *zap.Logger
	tracer     trace.Tracer
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithBatchSize overrides the number of comments classified at once
func WithBatchSize(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) PipelineOption {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

// NewPipeline wires a pipeline from its two stages
func NewPipeline(extractor CommentExtractor, classifier CommentClassifier, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		extractor:  extractor,
		classifier: classifier,
		batchSize:  DefaultBatchSize,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Options holds the tunables for NewFromGenerator
type Options struct {
	BatchSize       int
	MaxCommentChars int
}

// NewFromGenerator builds the standard extractor, classifier and pipeline
// on a single model capability
func NewFromGenerator(generator ai.Generator, logger *zap.Logger, opts Options) *Pipeline {
	return NewPipeline(
		NewExtractor(generator, logger),
		NewClassifier(generator, logger, WithMaxCommentChars(opts.MaxCommentChars)),
		logger,
		WithBatchSize(opts.BatchSize),
	)
}

// Run analyzes images in order and returns every record produced, in
// extraction order. A failed extraction aborts the run with an
// *ImageError and no records. Cancellation is observed between images and
// between batches.
func (p *Pipeline) Run(ctx context.Context, images []models.Image, progress ProgressFunc) ([]models.CommentRecord, error) {
	if progress == nil {
		progress = func(Update) {}
	}

	ctx, span := p.tracer.Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.Int("analysis.images", len(images)),
		attribute.Int("analysis.batch_size", p.batchSize),
	))
	defer span.End()

	records := make([]models.CommentRecord, 0)
	for _, image := range images {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return nil, err
		}

		var err error
		records, err = p.runImage(ctx, image, records, progress)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("analysis.records", len(records)))
	return records, nil
}

func (p *Pipeline) runImage(ctx context.Context, image models.Image, records []models.CommentRecord, progress ProgressFunc) ([]models.CommentRecord, error) {
	ctx, span := p.tracer.Start(ctx, "analysis.image", trace.WithAttributes(
		attribute.String("analysis.image", image.Name),
	))
	defer span.End()

	progress(Update{Message: fmt.Sprintf("Extracting text from %s...", image.Name), Image: image.Name})

	comments, err := p.extractor.Extract(ctx, image)
	if err != nil {
		p.logger.Error("pipeline_extraction_failed",
			logpkg.ImageName(image.Name),
			zap.Error(err),
		)
		return nil, &ImageError{Image: image.Name, Err: err}
	}
	span.SetAttributes(attribute.Int("analysis.comments", len(comments)))
	p.logger.Info("pipeline_image_extracted",
		logpkg.ImageName(image.Name),
		zap.Int("comments", len(comments)),
	)

	total := len(comments)
	for start := 0; start < total; start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+p.batchSize, total)

		batch := p.classifyBatch(ctx, image.Name, comments[start:end])
		// A batch cut short by cancellation holds fallback records only
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records = append(records, batch...)

		progress(Update{
			Message: fmt.Sprintf("Analyzing comments %d-%d of %d for %s...", start+1, end, total, image.Name),
			Image:   image.Name,
			Records: slices.Clone(records),
		})
	}

	return records, nil
}

// classifyBatch classifies texts concurrently. Results are written by
// index so output order matches input order regardless of completion order.
func (p *Pipeline) classifyBatch(ctx context.Context, image string, texts []string) []models.CommentRecord {
	ctx, span := p.tracer.Start(ctx, "analysis.batch", trace.WithAttributes(
		attribute.Int("analysis.batch_len", len(texts)),
	))
	defer span.End()

	out := make([]models.CommentRecord, len(texts))
	var g errgroup.Group
	g.SetLimit(p.batchSize)
	for i, text := range texts {
		g.Go(func() error {
			out[i] = p.classifier.Classify(ctx, image, text)
			return nil
		})
	}
	// Classify never fails; the group only bounds and joins the fan-out
	_ = g.Wait()

	failed := 0
	for _, r := range out {
		if r.Unanalyzed() {
			failed++
		}
	}
	if failed > 0 {
		span.SetAttributes(attribute.Int("analysis.batch_failed", failed))
	}
	return out
}
