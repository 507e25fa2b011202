package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/benvon/comment-pulse/internal/database"
	"github.com/benvon/comment-pulse/internal/models"
	"github.com/spf13/cobra"
)

// stdoutPath selects standard output for --output
const stdoutPath = "-"

// NewExportCmd creates the export command
func NewExportCmd(opts *Options) *cobra.Command {
	var (
		owner  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's campaigns as JSON",
		Long:  "Write every campaign of a user, with folders, posts and records, as the same indented JSON the API export returns",
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

			campaigns, err := loadCampaignTree(cmd.Context(),
				database.NewCampaignRepository(db), database.NewPostRepository(db), owner)
			if err != nil {
				return err
			}

			if output == "" {
				output = models.ExportFilename(time.Now())
			}
			if output == stdoutPath {
				return writeExport(cmd.OutOrStdout(), campaigns)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := writeExport(f, campaigns); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d campaigns to %s\n", len(campaigns), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner (token subject) whose campaigns to export")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default commentpulse_export_<date>.json)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

type campaignLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Campaign, error)
}

type postLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Post, error)
}

var (
	_ campaignLister = (*database.CampaignRepository)(nil)
	_ postLister     = (*database.PostRepository)(nil)
)

// loadCampaignTree returns owner's campaigns with every post in its folder
func loadCampaignTree(ctx context.Context, campaigns campaignLister, posts postLister, owner string) ([]*models.Campaign, error) {
	list, err := campaigns.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	all, err := posts.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	for _, c := range list {
		database.AttachPosts(c, all)
	}
	return list, nil
}

func writeExport(w io.Writer, campaigns []*models.Campaign) error {
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	data, err := json.MarshalIndent(campaigns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
