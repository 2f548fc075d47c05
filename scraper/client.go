package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-atcoder/config"
	"github.com/aluiziolira/go-scrape-atcoder/models"
	"github.com/aluiziolira/go-scrape-atcoder/parser"
)

// Client fetches and scrapes AtCoder pages. Each call performs exactly one
// fetch and shares no state with other calls, so it is safe for concurrent
// use.
type Client struct {
	baseURL string
	fetcher *Fetcher
	Metrics *Metrics
}

// NewClient builds a client rooted at cfg.BaseURL.
func NewClient(cfg *config.Config) (*Client, error) {
	metrics := NewMetrics()
	fetcher, err := NewFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		fetcher: fetcher,
		Metrics: metrics,
	}, nil
}

// FetchContestList scrapes one page of the contest archive. Page zero is
// treated as page one.
func (c *Client) FetchContestList(req models.ContestListRequest) (*models.ContestListResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	doc, err := c.document(c.contestArchiveURL(page))
	if err != nil {
		return nil, err
	}
	contests, err := parser.ScrapeContests(doc)
	if err != nil {
		return nil, c.parseFailure(fmt.Errorf("scrape contest archive page %d: %w", page, err))
	}
	c.Metrics.AddRecords("contest", len(contests))
	return &models.ContestListResponse{Contests: contests}, nil
}

// FetchProblemList scrapes the task list of a contest.
func (c *Client) FetchProblemList(req models.ProblemListRequest) (*models.ProblemListResponse, error) {
	doc, err := c.document(c.taskListURL(req.ContestID))
	if err != nil {
		return nil, err
	}
	problems, err := parser.ScrapeProblems(doc, req.ContestID)
	if err != nil {
		return nil, c.parseFailure(fmt.Errorf("scrape tasks of %s: %w", req.ContestID, err))
	}
	c.Metrics.AddRecords("problem", len(problems))
	return &models.ProblemListResponse{Problems: problems}, nil
}

// FetchSubmissionList scrapes one page of a contest's submissions and the
// number of pages the listing spans. The page count comes from the same
// document as the records.
func (c *Client) FetchSubmissionList(req models.SubmissionListRequest) (*models.SubmissionListResponse, error) {
	doc, submissions, err := c.submissionPage(req.ContestID, req.Page)
	if err != nil {
		return nil, err
	}
	maxPage, err := c.probePages(doc, req.ContestID, req.Page)
	if err != nil {
		return nil, err
	}
	return &models.SubmissionListResponse{
		MaxPage:     maxPage,
		Submissions: submissions,
	}, nil
}

// FetchSubmissionCode returns the source code of one submission.
func (c *Client) FetchSubmissionCode(contestID string, submissionID uint64) (string, error) {
	doc, err := c.document(c.submissionURL(contestID, submissionID))
	if err != nil {
		return "", err
	}
	code, err := parser.ScrapeSubmissionCode(doc)
	if err != nil {
		return "", c.parseFailure(fmt.Errorf("scrape code of %s/%d: %w", contestID, submissionID, err))
	}
	c.Metrics.AddRecords("code", 1)
	return code, nil
}

// submissionPage fetches and scrapes one submission listing. The document is
// returned so the caller can probe it without a second fetch.
func (c *Client) submissionPage(contestID string, page uint32) (*goquery.Document, []models.Submission, error) {
	if page == 0 {
		page = 1
	}
	doc, err := c.document(c.submissionListURL(contestID, page))
	if err != nil {
		return nil, nil, err
	}
	submissions, err := parser.ScrapeSubmissions(doc, contestID)
	if err != nil {
		return nil, nil, c.parseFailure(fmt.Errorf("scrape submissions of %s page %d: %w", contestID, page, err))
	}
	c.Metrics.AddRecords("submission", len(submissions))
	return doc, submissions, nil
}

func (c *Client) probePages(doc *goquery.Document, contestID string, page uint32) (uint32, error) {
	maxPage, err := parser.ScrapeSubmissionPageCount(doc)
	if err != nil {
		return 0, c.parseFailure(fmt.Errorf("probe pages of %s page %d: %w", contestID, page, err))
	}
	return maxPage, nil
}

func (c *Client) document(rawURL string) (*goquery.Document, error) {
	body, err := c.fetcher.Get(rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := parser.NewDocument(body)
	if err != nil {
		return nil, c.parseFailure(fmt.Errorf("parse %s: %w", rawURL, err))
	}
	return doc, nil
}

func (c *Client) parseFailure(err error) error {
	c.Metrics.IncError(errorTypeLabel(err))
	return err
}

func (c *Client) contestArchiveURL(page uint32) string {
	return fmt.Sprintf("%s/contests/archive?lang=ja&page=%d", c.baseURL, page)
}

func (c *Client) taskListURL(contestID string) string {
	return fmt.Sprintf("%s/contests/%s/tasks", c.baseURL, url.PathEscape(contestID))
}

func (c *Client) submissionListURL(contestID string, page uint32) string {
	return fmt.Sprintf("%s/contests/%s/submissions?page=%d", c.baseURL, url.PathEscape(contestID), page)
}

func (c *Client) submissionURL(contestID string, submissionID uint64) string {
	return fmt.Sprintf("%s/contests/%s/submissions/%d", c.baseURL, url.PathEscape(contestID), submissionID)
}
