// Package models defines the records scraped from AtCoder.
package models

import "time"

// Contest is one row of the contest archive.
type Contest struct {
	ID               string `csv:"id" json:"id"`
	StartEpochSecond uint64 `csv:"start_epoch_second" json:"start_epoch_second"`
	DurationSecond   uint64 `csv:"duration_second" json:"duration_second"`
	Title            string `csv:"title" json:"title"`
	RateChange       string `csv:"rate_change" json:"rate_change"`
}

// Problem is one row of a contest task list.
type Problem struct {
	ID        string `csv:"id" json:"id"`
	ContestID string `csv:"contest_id" json:"contest_id"`
	Position  string `csv:"position" json:"position"`
	Title     string `csv:"title" json:"title"`
}

// Submission is one row of a contest submission listing.
//
// ExecutionTime is nil when the listing shows no execution time (pending or
// compile error). Code is only filled by a dedicated code fetch.
type Submission struct {
	ID            uint64  `csv:"id" json:"id"`
	EpochSecond   uint64  `csv:"epoch_second" json:"epoch_second"`
	ProblemID     string  `csv:"problem_id" json:"problem_id"`
	ContestID     string  `csv:"contest_id" json:"contest_id"`
	UserID        string  `csv:"user_id" json:"user_id"`
	Language      string  `csv:"language" json:"language"`
	Point         float64 `csv:"point" json:"point"`
	Length        uint64  `csv:"length" json:"length"`
	Result        string  `csv:"result" json:"result"`
	ExecutionTime *uint64 `csv:"execution_time" json:"execution_time,omitempty"`
	Code          string  `csv:"code" json:"code,omitempty"`
}

// CrawlResult holds the overall result of crawling a contest's submissions.
type CrawlResult struct {
	ContestID    string
	StartTime    time.Time
	EndTime      time.Time
	MaxPage      uint32
	ScrapedCount int
	TotalCount   int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RequestCount int
	PageCount    int
}
