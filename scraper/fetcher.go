package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-atcoder/config"
)

// Fetcher downloads single HTML documents. Every Get runs on its own clone of
// the base collector, so concurrent calls share the transport and limits but
// no callbacks.
type Fetcher struct {
	collector *colly.Collector
	metrics   *Metrics
}

// NewFetcher builds a fetcher restricted to the host of cfg.BaseURL.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
	}); err != nil {
		return nil, fmt.Errorf("configure parallelism: %w", err)
	}

	return &Fetcher{collector: collector, metrics: metrics}, nil
}

// Get fetches rawURL and returns the decoded body. It asks for text/html and
// gzip; gzip bodies are inflated by the collector.
func (f *Fetcher) Get(rawURL string) ([]byte, error) {
	c := f.collector.Clone()

	var (
		body       []byte
		statusCode int
		fetchErr   error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html")
		r.Headers.Set("Accept-Encoding", "gzip")
		f.metrics.IncRequest("started")
		slog.Debug("fetching page", slog.String("url", r.URL.String()))
	})

	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	start := time.Now()
	if err := c.Visit(rawURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	f.metrics.ObserveDuration(time.Since(start))

	if fetchErr != nil {
		classified := classifyError(rawURL, fetchErr, statusCode)
		category := errorTypeLabel(classified)
		f.metrics.IncRequest("failed")
		f.metrics.IncError(category)
		slog.Error("fetch failed",
			slog.String("url", rawURL),
			slog.Int("status", statusCode),
			slog.String("category", category),
			slog.Any("error", fetchErr),
		)
		return nil, classified
	}

	f.metrics.IncRequest("completed")
	slog.Debug("fetched page",
		slog.String("url", rawURL),
		slog.Int("status", statusCode),
		slog.Int("bytes", len(body)),
	)
	return body, nil
}

func classifyError(rawURL string, err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{URL: rawURL, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{URL: rawURL, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{URL: rawURL, Err: err}
	}

	if statusCode >= http.StatusBadRequest {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{URL: rawURL, Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{URL: rawURL, Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{URL: rawURL, Err: wrapped}
		default:
			return ErrStatus{URL: rawURL, StatusCode: statusCode, Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return fmt.Errorf("fetch %s: %w", rawURL, err)
}
