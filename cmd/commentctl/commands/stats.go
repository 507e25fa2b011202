package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/benvon/comment-pulse/internal/analysis"
	"github.com/benvon/comment-pulse/internal/database"
	"github.com/benvon/comment-pulse/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// postReader is the slice of the post repository the stats command reads
type postReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, platform *models.PlatformID) ([]*models.Post, error)
}

var _ postReader = (*database.PostRepository)(nil)

// statsQuery selects either one post or a campaign, optionally narrowed
// to one platform folder
type statsQuery struct {
	postID     string
	campaignID string
	platform   string
}

// NewStatsCmd creates the stats command
func NewStatsCmd(opts *Options) *cobra.Command {
	var (
		q        statsQuery
		asJSON   bool
		topLimit int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stored sentiment statistics",
		Long:  "Aggregate the stored analysis of one post (--post) or of a campaign (--campaign, optionally --platform)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			db, closeDB, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			posts, err := q.load(cmd.Context(), database.NewPostRepository(db))
			if err != nil {
				return err
			}
			return writeStats(cmd.OutOrStdout(), posts, asJSON, topLimit)
		},
	}

	cmd.Flags().StringVar(&q.postID, "post", "", "post ID")
	cmd.Flags().StringVar(&q.campaignID, "campaign", "", "campaign ID")
	cmd.Flags().StringVar(&q.platform, "platform", "", "platform folder within the campaign")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the statistics as JSON")
	cmd.Flags().IntVar(&topLimit, "top", 10, "number of topics and themes to list (0 for all)")
	cmd.MarkFlagsMutuallyExclusive("post", "campaign")
	cmd.MarkFlagsOneRequired("post", "campaign")

	return cmd
}

func (q statsQuery) load(ctx context.Context, repo postReader) ([]models.Post, error) {
	if q.postID != "" {
		if q.platform != "" {
			return nil, errors.New("--platform only applies to --campaign")
		}
		id, err := uuid.Parse(q.postID)
		if err != nil {
			return nil, fmt.Errorf("invalid post ID %q: %w", q.postID, err)
		}
		post, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load post: %w", err)
		}
		return []models.Post{*post}, nil
	}

	id, err := uuid.Parse(q.campaignID)
	if err != nil {
		return nil, fmt.Errorf("invalid campaign ID %q: %w", q.campaignID, err)
	}
	var platform *models.PlatformID
	if q.platform != "" {
		p := models.PlatformID(q.platform)
		if !p.Valid() {
			return nil, fmt.Errorf("invalid platform_id: %s", q.platform)
		}
		platform = &p
	}
	posts, err := repo.ListByCampaign(ctx, id, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, *p)
	}
	return out, nil
}

type statsOutput struct {
	Posts       int                         `json:"posts"`
	Stats       models.AnalysisStats        `json:"stats"`
	Percentages models.SentimentPercentages `json:"percentages"`
	TopTopics   []analysis.Count            `json:"top_topics"`
	TopThemes   []analysis.Count            `json:"top_themes"`
}

func writeStats(w io.Writer, posts []models.Post, asJSON bool, topLimit int) error {
	stats := analysis.AggregatePosts(posts)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(statsOutput{
			Posts:       len(posts),
			Stats:       stats,
			Percentages: analysis.Percentages(stats),
			TopTopics:   analysis.TopCounts(stats.Topics, topLimit),
			TopThemes:   analysis.TopCounts(stats.Themes, topLimit),
		})
	}
	_, err := fmt.Fprintf(w, "Posts: %d\n%s\n", len(posts), renderStats(stats, topLimit))
	return err
}
