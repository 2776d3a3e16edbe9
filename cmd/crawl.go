package cmd

import (
	"fmt"

	"github.com/jjenkins/bobbot/internal/store"
	"github.com/spf13/cobra"
)

var crawlMaxPosts int

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Synchronize regulation posts from the portal boards",
	Long: `Crawl walks every configured regulation board from its newest post
backwards and upserts each post by (title, type). Older sightings of a
document never overwrite a newer one, so repeated runs are idempotent.

A board that fails to load or parse is reported and skipped; a database
error stops the run. The command exits non-zero on any failure.

Examples:
  # Crawl all configured boards
  ./bobbot crawl

  # Walk at most 50 posts per board
  ./bobbot crawl --max-posts 50`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	crawlCmd.Flags().IntVar(&crawlMaxPosts, "max-posts", 0, "Posts to walk per board (default from portal.max_posts_per_board)")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if crawlMaxPosts > 0 {
		cfg.Portal.MaxPostsPerBoard = crawlMaxPosts
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	portal, err := newPortalClient()
	if err != nil {
		return err
	}
	regs := store.NewRegulationStore(db)
	metrics := newMetrics()

	logger.Info("Starting crawl")
	stats, err := newCrawler(portal, regs, metrics).Crawl(ctx)
	printCrawlSummary(stats)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("crawl cancelled")
		}
		return fmt.Errorf("crawl failed: %w", err)
	}

	refreshGauges(ctx, metrics, regs)

	if len(stats.Failures) > 0 {
		return fmt.Errorf("%d of %d boards failed", len(stats.Failures), stats.Boards)
	}
	return nil
}
