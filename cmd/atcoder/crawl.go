package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-atcoder/config"
	"github.com/aluiziolira/go-scrape-atcoder/models"
	"github.com/aluiziolira/go-scrape-atcoder/pipeline"
	"github.com/aluiziolira/go-scrape-atcoder/scraper"
)

func (a *app) crawlCmd() *cobra.Command {
	defaults := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "crawl <contest>",
		Short: "Crawl every submission page of a contest into a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCrawl(ctx, a.cfg, args[0], cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.Int(config.KeyMaxPages, defaults.MaxPages, "Maximum listing pages to crawl")
	flags.StringP(config.KeyOutputFile, "o", defaults.OutputFile, "Output file path")
	flags.String(config.KeyOutputFormat, defaults.OutputFormat, "Output format: csv, json, or dual")
	flags.Int(config.KeyBufferSize, defaults.PipelineBufferSize, "Pipeline channel buffer size")
	flags.Int(config.KeyBatchSize, defaults.BatchSize, "Submissions per writer batch")
	flags.Int(config.KeyDedupeSize, defaults.DedupeMaxSize, "Submission ids remembered for de-duplication")
	flags.String(config.KeyMetricsAddr, defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	for _, key := range []string{config.KeyMaxPages, config.KeyOutputFile, config.KeyOutputFormat, config.KeyBufferSize, config.KeyBatchSize, config.KeyDedupeSize, config.KeyMetricsAddr} {
		if err := a.v.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", key, err))
		}
	}
	return cmd
}

func runCrawl(ctx context.Context, cfg *config.Config, contestID string, out io.Writer) error {
	slog.Info("starting crawl",
		slog.String("base_url", cfg.BaseURL),
		slog.String("contest", contestID),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Int("workers", cfg.Parallelism),
	)

	client, err := scraper.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("initialising client: %w", err)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(client.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result, err := scraper.NewCrawler(client, cfg).Run(ctx, contestID, p)
	if err != nil {
		if closeErr := p.Close(); closeErr != nil {
			slog.Error("pipeline shutdown failed", slog.Any("error", closeErr))
		}
		return fmt.Errorf("crawl failed: %w", err)
	}

	if err := p.Close(); err != nil {
		return fmt.Errorf("pipeline shutdown failed: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}

	metrics := p.GetMetrics()
	if processed, ok := metrics["processed_submissions"].(int64); ok {
		result.TotalCount = int(processed)
	}
	printSummary(out, result, cfg.OutputFile, metrics)
	return nil
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		return pipeline.NewDualWriter(filename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(w io.Writer, result *models.CrawlResult, outputFile string, metrics map[string]interface{}) {
	duration := result.EndTime.Sub(result.StartTime)
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(result.TotalCount) / duration.Seconds()
	}

	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintf(w, "Crawl of %s complete\n", result.ContestID)
	fmt.Fprintf(w, "  Listing pages: %d\n", result.MaxPage)
	fmt.Fprintf(w, "  Pages crawled: %d\n", result.PageCount)
	fmt.Fprintf(w, "  Scraped:       %d\n", result.ScrapedCount)
	fmt.Fprintf(w, "  Written:       %d\n", result.TotalCount)

	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Fprintf(w, "  Success rate:  %.2f%%\n", successRate)
	fmt.Fprintf(w, "  Errors:        %d\n", result.ErrorCount)
	fmt.Fprintf(w, "  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Fprintf(w, "  Validation:    %v\n", valErrors)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration)
	fmt.Fprintf(w, "  Items/sec:     %.2f\n", itemsPerSec)
	fmt.Fprintf(w, "  Output file:   %s\n", outputFile)
	fmt.Fprintln(w, separator)
}
