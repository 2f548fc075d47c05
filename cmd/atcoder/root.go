package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aluiziolira/go-scrape-atcoder/config"
	"github.com/aluiziolira/go-scrape-atcoder/models"
	"github.com/aluiziolira/go-scrape-atcoder/scraper"
)

// app carries the resolved configuration between cobra hooks and commands.
type app struct {
	v   *viper.Viper
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}
	defaults := config.DefaultConfig()

	root := &cobra.Command{
		Use:           "atcoder",
		Short:         "Scrape contests, problems and submissions from AtCoder",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.FromViper(a.v)

			logger, level := newLogger(cmd.ErrOrStderr(), a.cfg.Verbose)
			slog.SetDefault(logger)
			slog.SetLogLoggerLevel(level.Level())

			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String(config.KeyBaseURL, defaults.BaseURL, "AtCoder base URL")
	flags.Duration(config.KeyTimeout, defaults.Timeout, "Per-request timeout")
	flags.String(config.KeyUserAgent, defaults.UserAgent, "User-Agent header")
	flags.Int(config.KeyParallelism, defaults.Parallelism, "Number of concurrent requests")
	flags.BoolP(config.KeyVerbose, "v", false, "Enable verbose logging")
	for _, key := range []string{config.KeyBaseURL, config.KeyTimeout, config.KeyUserAgent, config.KeyParallelism, config.KeyVerbose} {
		if err := a.v.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", key, err))
		}
	}

	root.AddCommand(
		a.contestsCmd(),
		a.problemsCmd(),
		a.submissionsCmd(),
		a.codeCmd(),
		a.crawlCmd(),
	)
	return root
}

func (a *app) contestsCmd() *cobra.Command {
	var page uint32
	cmd := &cobra.Command{
		Use:   "contests",
		Short: "List one page of the contest archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := scraper.NewClient(a.cfg)
			if err != nil {
				return err
			}
			resp, err := client.FetchContestList(models.ContestListRequest{Page: page})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp.Contests)
		},
	}
	cmd.Flags().Uint32Var(&page, "page", 1, "Archive page number")
	return cmd
}

func (a *app) problemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "problems <contest>",
		Short: "List the problems of a contest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := scraper.NewClient(a.cfg)
			if err != nil {
				return err
			}
			resp, err := client.FetchProblemList(models.ProblemListRequest{ContestID: args[0]})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp.Problems)
		},
	}
}

func (a *app) submissionsCmd() *cobra.Command {
	var page uint32
	cmd := &cobra.Command{
		Use:   "submissions <contest>",
		Short: "List one page of a contest's submissions with the page count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := scraper.NewClient(a.cfg)
			if err != nil {
				return err
			}
			resp, err := client.FetchSubmissionList(models.SubmissionListRequest{ContestID: args[0], Page: page})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().Uint32Var(&page, "page", 1, "Listing page number")
	return cmd
}

func (a *app) codeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "code <contest> <submission-id>",
		Short: "Print the source code of a submission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid submission id %q: %w", args[1], err)
			}
			client, err := scraper.NewClient(a.cfg)
			if err != nil {
				return err
			}
			code, err := client.FetchSubmissionCode(args[0], id)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), code)
			return err
		},
	}
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// newLogger writes to w so stdout stays reserved for command output.
func newLogger(w io.Writer, verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	var handler slog.Handler
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		handler = tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
