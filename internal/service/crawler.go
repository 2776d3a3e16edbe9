package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jjenkins/bobbot/internal/model"
	"go.uber.org/zap"
)

// PageFetcher retrieves a portal page by link.
type PageFetcher interface {
	FetchPage(ctx context.Context, ref string) ([]byte, error)
}

// RegulationUpserter synchronizes scraped posts into storage.
type RegulationUpserter interface {
	Upsert(ctx context.Context, post *model.RegulationPost, now time.Time) (model.UpsertResult, error)
}

// CrawlStats tracks crawl statistics
type CrawlStats struct {
	Boards    int
	Posts     int
	Inserted  int
	Updated   int
	Unchanged int
	Failures  []BoardFailure
}

// BoardFailure records why a board walk stopped early.
type BoardFailure struct {
	Board string
	Link  string
	Err   error
}

// boardError aborts the current board without failing the run.
type boardError struct {
	link string
	err  error
}

func (e *boardError) Error() string { return fmt.Sprintf("%s: %v", e.link, e.err) }
func (e *boardError) Unwrap() error { return e.err }

// Crawler walks each board from its newest post back through the
// "previous post" links and upserts every post it sees.
type Crawler struct {
	fetcher  PageFetcher
	parser   *PostParser
	store    RegulationUpserter
	boards   []string
	maxPosts int
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewCrawler creates a new Crawler. maxPosts caps the walk of a single
// board; zero means no cap.
func NewCrawler(fetcher PageFetcher, parser *PostParser, store RegulationUpserter, boards []string, maxPosts int, metrics *Metrics, logger *zap.Logger) *Crawler {
	return &Crawler{
		fetcher:  fetcher,
		parser:   parser,
		store:    store,
		boards:   boards,
		maxPosts: maxPosts,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Crawl processes every configured board. Fetch and parse problems end the
// affected board only and are reported in the stats. A storage error stops
// the run; posts upserted before it stay committed.
func (c *Crawler) Crawl(ctx context.Context) (*CrawlStats, error) {
	stats := &CrawlStats{}

	for idx, board := range c.boards {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		c.logger.Info("Crawling board",
			zap.String("progress", fmt.Sprintf("%d/%d", idx+1, len(c.boards))),
			zap.String("board", board),
		)
		stats.Boards++

		err := c.crawlBoard(ctx, board, stats)
		var be *boardError
		switch {
		case err == nil:
		case errors.As(err, &be) && ctx.Err() == nil:
			c.logger.Warn("Board walk aborted",
				zap.String("board", board),
				zap.String("link", be.link),
				zap.Error(be.err),
			)
			c.metrics.BoardFailures.Inc()
			stats.Failures = append(stats.Failures, BoardFailure{Board: board, Link: be.link, Err: be.err})
		default:
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			return stats, err
		}
	}

	return stats, nil
}

func (c *Crawler) crawlBoard(ctx context.Context, board string, stats *CrawlStats) error {
	listing, err := c.fetcher.FetchPage(ctx, board)
	if err != nil {
		return &boardError{link: board, err: err}
	}
	link, err := c.parser.FirstPostLink(listing)
	if err != nil {
		return &boardError{link: board, err: err}
	}

	visited := make(map[string]bool)
	for link != "" {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if visited[link] {
			c.logger.Warn("Post link cycle detected", zap.String("board", board), zap.String("link", link))
			return nil
		}
		if c.maxPosts > 0 && len(visited) >= c.maxPosts {
			c.logger.Warn("Post cap reached", zap.String("board", board), zap.Int("max_posts", c.maxPosts))
			return nil
		}
		visited[link] = true

		page, err := c.fetcher.FetchPage(ctx, link)
		if err != nil {
			return &boardError{link: link, err: err}
		}
		post, err := c.parser.ParsePost(page)
		if err != nil {
			return &boardError{link: link, err: err}
		}

		result, err := c.store.Upsert(ctx, post, c.now())
		if err != nil {
			return fmt.Errorf("failed to store %q: %w", post.Title, err)
		}

		stats.Posts++
		switch result {
		case model.Inserted:
			stats.Inserted++
		case model.Updated:
			stats.Updated++
		default:
			stats.Unchanged++
		}
		c.metrics.CrawledPosts.WithLabelValues(result.String()).Inc()

		c.logger.Info("Post synchronized",
			zap.String("type", post.Type),
			zap.String("title", post.Title),
			zap.Time("create_date", post.CreateDate),
			zap.Stringer("outcome", result),
		)

		link = post.NextLink
	}

	return nil
}
