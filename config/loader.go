package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Keys shared by viper, CLI flags and ATCODER_* environment variables.
const (
	KeyBaseURL      = "base-url"
	KeyTimeout      = "timeout"
	KeyUserAgent    = "user-agent"
	KeyParallelism  = "parallel"
	KeyMaxPages     = "pages"
	KeyOutputFile   = "output"
	KeyOutputFormat = "format"
	KeyBufferSize   = "buffer-size"
	KeyBatchSize    = "batch-size"
	KeyDedupeSize   = "dedupe-size"
	KeyMetricsAddr  = "metrics-addr"
	KeyVerbose      = "verbose"
)

// NewViper returns a viper instance holding the defaults and reading
// ATCODER_* environment variables, e.g. ATCODER_BASE_URL.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("ATCODER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// FromViper resolves a Config. Priority: flags > env > defaults.
func FromViper(v *viper.Viper) *Config {
	cfg := DefaultConfig()
	cfg.BaseURL = v.GetString(KeyBaseURL)
	cfg.Timeout = v.GetDuration(KeyTimeout)
	cfg.UserAgent = v.GetString(KeyUserAgent)
	cfg.Parallelism = v.GetInt(KeyParallelism)
	cfg.MaxPages = v.GetInt(KeyMaxPages)
	cfg.OutputFile = v.GetString(KeyOutputFile)
	cfg.OutputFormat = strings.ToLower(v.GetString(KeyOutputFormat))
	cfg.PipelineBufferSize = v.GetInt(KeyBufferSize)
	cfg.BatchSize = v.GetInt(KeyBatchSize)
	cfg.DedupeMaxSize = v.GetInt(KeyDedupeSize)
	cfg.MetricsAddr = v.GetString(KeyMetricsAddr)
	cfg.Verbose = v.GetBool(KeyVerbose)
	return cfg
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault(KeyBaseURL, cfg.BaseURL)
	v.SetDefault(KeyTimeout, cfg.Timeout)
	v.SetDefault(KeyUserAgent, cfg.UserAgent)
	v.SetDefault(KeyParallelism, cfg.Parallelism)
	v.SetDefault(KeyMaxPages, cfg.MaxPages)
	v.SetDefault(KeyOutputFile, cfg.OutputFile)
	v.SetDefault(KeyOutputFormat, cfg.OutputFormat)
	v.SetDefault(KeyBufferSize, cfg.PipelineBufferSize)
	v.SetDefault(KeyBatchSize, cfg.BatchSize)
	v.SetDefault(KeyDedupeSize, cfg.DedupeMaxSize)
	v.SetDefault(KeyMetricsAddr, cfg.MetricsAddr)
	v.SetDefault(KeyVerbose, cfg.Verbose)
}
