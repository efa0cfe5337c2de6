// Package config loads BrainStream's runtime configuration from environment
// variables, all under the BRAINSTREAM_ prefix, with safe fallbacks on
// malformed input.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	pkgconfig "catchup-feed/internal/pkg/config"
)

// Config holds every knob the four core subsystems and the HTTP/CLI surface need.
type Config struct {
	Host     string
	Port     int
	LogLevel string

	DataDir      string
	StateDBPath  string
	DatabaseURL  string

	EmbeddingModel  string
	OpenAIAPIKey    string

	HDBSCANMinClusterSize int
	HDBSCANMinSamples     int

	SummarizerCmd     string
	SummarizerTimeout time.Duration

	FeedDefaultLimit  int
	SerendipitySlots  int

	SchedulerEnabled bool
	FetchInterval    time.Duration
	RunOnStart       bool
	FetchParallelism int

	SlackWebhookURL     string
	SlackNotifyTimeout  time.Duration
}

// Load reads Config from the environment, applying defaults documented in
// SPEC_FULL.md and logging a warning for every value that failed validation
// and fell back.
func Load(logger *slog.Logger) *Config {
	dataDir := pkgconfig.LoadEnvString("BRAINSTREAM_DATA_DIR", defaultDataDir())

	portResult := pkgconfig.LoadEnvInt("BRAINSTREAM_PORT", 3001, func(v int) error {
		if v < 1 || v > 65535 {
			return fmt.Errorf("port must be in 1-65535")
		}
		return nil
	})
	logWarnings(logger, portResult)

	clusterSizeResult := pkgconfig.LoadEnvInt("BRAINSTREAM_HDBSCAN_MIN_CLUSTER_SIZE", 5, positiveInt)
	logWarnings(logger, clusterSizeResult)

	minSamplesResult := pkgconfig.LoadEnvInt("BRAINSTREAM_HDBSCAN_MIN_SAMPLES", 3, positiveInt)
	logWarnings(logger, minSamplesResult)

	summarizerTimeoutResult := pkgconfig.LoadEnvDuration("BRAINSTREAM_SUMMARIZER_TIMEOUT", 120*time.Second, positiveDuration)
	logWarnings(logger, summarizerTimeoutResult)

	feedLimitResult := pkgconfig.LoadEnvInt("BRAINSTREAM_FEED_DEFAULT_LIMIT", 20, func(v int) error {
		if v < 1 || v > 100 {
			return fmt.Errorf("feed default limit must be in 1-100")
		}
		return nil
	})
	logWarnings(logger, feedLimitResult)

	serendipityResult := pkgconfig.LoadEnvInt("BRAINSTREAM_SERENDIPITY_SLOTS", 2, func(v int) error {
		if v < 0 {
			return fmt.Errorf("serendipity slots must be >= 0")
		}
		return nil
	})
	logWarnings(logger, serendipityResult)

	fetchIntervalResult := pkgconfig.LoadEnvInt("BRAINSTREAM_FETCH_INTERVAL", 30, positiveInt)
	logWarnings(logger, fetchIntervalResult)

	parallelismResult := pkgconfig.LoadEnvInt("BRAINSTREAM_FETCH_PARALLELISM", 3, positiveInt)
	logWarnings(logger, parallelismResult)

	schedulerResult := pkgconfig.LoadEnvBool("BRAINSTREAM_SCHEDULER", true)
	runOnStartResult := pkgconfig.LoadEnvBool("BRAINSTREAM_RUN_ON_START", true)

	return &Config{
		Host:     pkgconfig.LoadEnvString("BRAINSTREAM_HOST", "127.0.0.1"),
		Port:     portResult.Value.(int),
		LogLevel: pkgconfig.LoadEnvString("BRAINSTREAM_LOG_LEVEL", "info"),

		DataDir:     dataDir,
		StateDBPath: pkgconfig.LoadEnvString("BRAINSTREAM_STATE_DB_PATH", filepath.Join(dataDir, "state.db")),
		DatabaseURL: pkgconfig.LoadEnvString("BRAINSTREAM_DATABASE_URL", ""),

		EmbeddingModel: pkgconfig.LoadEnvString("BRAINSTREAM_EMBEDDING_MODEL", "text-embedding-3-small"),
		OpenAIAPIKey:   pkgconfig.LoadEnvString("BRAINSTREAM_OPENAI_API_KEY", ""),

		HDBSCANMinClusterSize: clusterSizeResult.Value.(int),
		HDBSCANMinSamples:     minSamplesResult.Value.(int),

		SummarizerCmd:     pkgconfig.LoadEnvString("BRAINSTREAM_SUMMARIZER_CMD", "claude"),
		SummarizerTimeout: summarizerTimeoutResult.Value.(time.Duration),

		FeedDefaultLimit: feedLimitResult.Value.(int),
		SerendipitySlots: serendipityResult.Value.(int),

		SchedulerEnabled: schedulerResult.Value.(bool),
		FetchInterval:    time.Duration(fetchIntervalResult.Value.(int)) * time.Minute,
		RunOnStart:       runOnStartResult.Value.(bool),
		FetchParallelism: parallelismResult.Value.(int),

		SlackWebhookURL:    pkgconfig.LoadEnvString("BRAINSTREAM_SLACK_WEBHOOK_URL", ""),
		SlackNotifyTimeout: 10 * time.Second,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".brainstream"
	}
	return filepath.Join(home, ".brainstream")
}

func positiveInt(v int) error {
	if v <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func positiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func logWarnings(logger *slog.Logger, result pkgconfig.ConfigLoadResult) {
	if logger == nil {
		return
	}
	for _, w := range result.Warnings {
		logger.Warn("config fallback applied", slog.String("detail", w))
	}
}

// EnsureDataDir creates the data directory (and its parent) if missing.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o755)
}
