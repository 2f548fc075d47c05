package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-atcoder/config"
	"github.com/aluiziolira/go-scrape-atcoder/models"
	"github.com/aluiziolira/go-scrape-atcoder/parser"
	"github.com/aluiziolira/go-scrape-atcoder/pipeline"
)

// Crawler walks every page of a contest's submission listing and streams the
// records through a pipeline.
type Crawler struct {
	client      *Client
	maxPages    int
	parallelism int
}

// NewCrawler builds a crawler that fetches through client.
func NewCrawler(client *Client, cfg *config.Config) *Crawler {
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Crawler{
		client:      client,
		maxPages:    cfg.MaxPages,
		parallelism: parallelism,
	}
}

type crawlState struct {
	requestCount int64
	pageCount    int64
	scraped      int64
	errorCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
}

// Run crawls contestID. Page one decides how many pages exist; a listing
// without page links is a single page. Failures of later pages are recorded
// and skipped. Cancelling ctx stops dispatching pages that have not started.
func (c *Crawler) Run(ctx context.Context, contestID string, p *pipeline.Pipeline) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st := &crawlState{errorsByType: make(map[string]int)}
	start := time.Now()

	atomic.AddInt64(&st.requestCount, 1)
	doc, first, err := c.client.submissionPage(contestID, 1)
	if err != nil {
		return nil, fmt.Errorf("crawl %s page 1: %w", contestID, err)
	}
	maxPage, err := c.client.probePages(doc, contestID, 1)
	if err != nil {
		if !errors.Is(err, parser.ErrNoPageLinks) {
			return nil, fmt.Errorf("crawl %s page 1: %w", contestID, err)
		}
		slog.Debug("listing has no page links, treating as single page", slog.String("contest", contestID))
		maxPage = 1
	}
	if err := c.deliver(st, p, first); err != nil {
		return nil, err
	}

	last := maxPage
	if c.maxPages > 0 && last > uint32(c.maxPages) {
		slog.Info("limiting crawl to configured max pages",
			slog.String("contest", contestID),
			slog.Uint64("listing_pages", uint64(maxPage)),
			slog.Int("max_pages", c.maxPages),
		)
		last = uint32(c.maxPages)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for page := uint32(2); page <= last; page++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			current := atomic.AddInt64(&st.requestCount, 1)
			if current%50 == 0 {
				slog.Debug("crawl progress",
					slog.String("contest", contestID),
					slog.Int64("requests", current),
					slog.Int64("pages", atomic.LoadInt64(&st.pageCount)),
				)
			}
			_, submissions, err := c.client.submissionPage(contestID, page)
			if err != nil {
				st.recordFailure(c.client.submissionListURL(contestID, page), err)
				return nil
			}
			return c.deliver(st, p, submissions)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		slog.Warn("crawl cancelled", slog.String("contest", contestID), slog.Any("error", ctx.Err()))
	}

	result := &models.CrawlResult{
		ContestID:    contestID,
		StartTime:    start,
		EndTime:      time.Now(),
		MaxPage:      maxPage,
		ScrapedCount: int(atomic.LoadInt64(&st.scraped)),
		ErrorCount:   int(atomic.LoadInt64(&st.errorCount)),
		FailedURLs:   st.snapshotFailedURLs(),
		ErrorsByType: st.snapshotErrors(),
		RequestCount: int(atomic.LoadInt64(&st.requestCount)),
		PageCount:    int(atomic.LoadInt64(&st.pageCount)),
	}
	if metrics := p.GetMetrics(); metrics != nil {
		if processed, ok := metrics["processed_submissions"].(int64); ok {
			result.TotalCount = int(processed)
		}
	}
	return result, nil
}

func (c *Crawler) deliver(st *crawlState, p *pipeline.Pipeline, submissions []models.Submission) error {
	atomic.AddInt64(&st.pageCount, 1)
	atomic.AddInt64(&st.scraped, int64(len(submissions)))
	if err := p.Process(submissions...); err != nil {
		if errors.Is(err, pipeline.ErrPipelineClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("pipeline process: %w", err)
	}
	return nil
}

func (st *crawlState) recordFailure(url string, err error) {
	atomic.AddInt64(&st.errorCount, 1)
	category := errorTypeLabel(err)

	st.mu.Lock()
	st.errorsByType[category]++
	st.failedURLs = append(st.failedURLs, url)
	st.mu.Unlock()

	slog.Error("page failed",
		slog.String("url", url),
		slog.String("category", category),
		slog.Any("error", err),
	)
}

func (st *crawlState) snapshotFailedURLs() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]string, len(st.failedURLs))
	copy(out, st.failedURLs)
	return out
}

func (st *crawlState) snapshotErrors() map[string]int {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]int, len(st.errorsByType))
	for k, v := range st.errorsByType {
		out[k] = v
	}
	return out
}
