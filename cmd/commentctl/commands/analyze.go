package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/benvon/comment-pulse/internal/analysis"
	"github.com/benvon/comment-pulse/internal/models"
	"github.com/benvon/comment-pulse/internal/services/ai"
	"github.com/benvon/comment-pulse/internal/validation"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// sniffLen is the number of bytes http.DetectContentType looks at
const sniffLen = 512

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd(opts *Options) *cobra.Command {
	var (
		provider string
		asJSON   bool
		topLimit int
	)

	cmd := &cobra.Command{
		Use:   "analyze <image|dir>...",
		Short: "Analyze comment screenshots without the API",
		Long: "Extract and classify the comments in the given screenshots. " +
			"Directories are read in name order and non-image files are skipped.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.ValidateAI(); err != nil {
				return err
			}
			zapLogger, err := opts.newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = zapLogger.Sync() }()

			images, err := loadImages(args)
			if err != nil {
				return err
			}

			generator, err := ai.DefaultRegistry().GetProvider(provider, ai.ProviderConfig{
				APIKey:    cfg.OpenAIKey,
				BaseURL:   cfg.AIBaseURL,
				Model:     cfg.AIModel,
				Timeout:   cfg.AITimeout,
				Logger:    zapLogger,
				DebugMode: opts.Debug,
			})
			if err != nil {
				return fmt.Errorf("failed to create AI provider: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			run := analyzeRun{
				pipeline: analysis.NewFromGenerator(generator, zapLogger, analysis.Options{
					BatchSize:       cfg.BatchSize,
					MaxCommentChars: cfg.MaxCommentChars,
				}),
				out:      cmd.OutOrStdout(),
				asJSON:   asJSON,
				topLimit: topLimit,
			}
			if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
				run.progress = cmd.ErrOrStderr()
			}
			return run.execute(ctx, images)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "openai", "model provider name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the records as JSON instead of tables")
	cmd.Flags().IntVar(&topLimit, "top", 10, "number of topics and themes to list (0 for all)")

	return cmd
}

type analysisRunner interface {
	Run(ctx context.Context, images []models.Image, progress analysis.ProgressFunc) ([]models.CommentRecord, error)
}

var _ analysisRunner = (*analysis.Pipeline)(nil)

// analyzeRun is one local analysis: it streams progress lines while the
// pipeline runs, then prints the result
type analyzeRun struct {
	pipeline analysisRunner
	out      io.Writer
	progress io.Writer
	asJSON   bool
	topLimit int
}

func (a analyzeRun) execute(ctx context.Context, images []models.Image) error {
	records, err := a.pipeline.Run(ctx, images, func(u analysis.Update) {
		if a.progress != nil {
			fmt.Fprintln(a.progress, u.Message)
		}
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if a.asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(a.out, "No comments found")
		return err
	}
	_, err = fmt.Fprintf(a.out, "%s\n\n%s\n", renderRecords(records), renderStats(analysis.Aggregate(records), a.topLimit))
	return err
}

// loadImages reads screenshots from files and directories, keeping
// argument order and name order within a directory
func loadImages(paths []string) ([]models.Image, error) {
	var images []models.Image
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		if !info.IsDir() {
			img, ok, err := readImage(p)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%s is not a supported image", p)
			}
			images = append(images, img)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", p, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			img, ok, err := readImage(filepath.Join(p, e.Name()))
			if err != nil {
				return nil, err
			}
			if ok {
				images = append(images, img)
			}
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images found")
	}
	for i := range images {
		images[i].Position = i
	}
	return images, nil
}

// readImage loads one file, reporting ok=false when its content is not an
// allowed image type
func readImage(path string) (models.Image, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Image{}, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	mimeType := http.DetectContentType(data[:min(len(data), sniffLen)])
	if !validation.IsAllowedImageType(mimeType) {
		return models.Image{}, false, nil
	}
	return models.Image{
		Name:     validation.SanitizeFilename(filepath.Base(path)),
		MIMEType: mimeType,
		Data:     data,
	}, true, nil
}
