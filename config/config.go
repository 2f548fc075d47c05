package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds client and crawl configuration.
type Config struct {
	BaseURL            string
	Timeout            time.Duration
	UserAgent          string
	Parallelism        int
	MaxPages           int
	OutputFile         string
	OutputFormat       string // csv, json, or dual
	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int
	MetricsAddr        string
	Verbose            bool
}

// DefaultConfig returns conservative defaults for atcoder.jp.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://atcoder.jp",
		Timeout:            30 * time.Second,
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Parallelism:        2,
		MaxPages:           1000,
		OutputFile:         "output/submissions.csv",
		OutputFormat:       "csv",
		PipelineBufferSize: 512,
		BatchSize:          64,
		DedupeMaxSize:      1_000_000,
		MetricsAddr:        "",
		Verbose:            false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}
