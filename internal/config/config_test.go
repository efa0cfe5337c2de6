package config_test

import (
	"testing"
	"time"

	"catchup-feed/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load(nil)

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want 127.0.0.1", cfg.Host)
	}
	if cfg.Port != 3001 {
		t.Errorf("Port = %d, want 3001", cfg.Port)
	}
	if cfg.HDBSCANMinClusterSize != 5 {
		t.Errorf("HDBSCANMinClusterSize = %d, want 5", cfg.HDBSCANMinClusterSize)
	}
	if cfg.HDBSCANMinSamples != 3 {
		t.Errorf("HDBSCANMinSamples = %d, want 3", cfg.HDBSCANMinSamples)
	}
	if cfg.SummarizerTimeout != 120*time.Second {
		t.Errorf("SummarizerTimeout = %v, want 120s", cfg.SummarizerTimeout)
	}
	if cfg.FeedDefaultLimit != 20 {
		t.Errorf("FeedDefaultLimit = %d, want 20", cfg.FeedDefaultLimit)
	}
	if cfg.SerendipitySlots != 2 {
		t.Errorf("SerendipitySlots = %d, want 2", cfg.SerendipitySlots)
	}
	if cfg.FetchInterval != 30*time.Minute {
		t.Errorf("FetchInterval = %v, want 30m", cfg.FetchInterval)
	}
	if !cfg.SchedulerEnabled {
		t.Error("SchedulerEnabled = false, want true by default")
	}
	if !cfg.RunOnStart {
		t.Error("RunOnStart = false, want true by default")
	}
	if cfg.SlackWebhookURL != "" {
		t.Errorf("SlackWebhookURL = %q, want empty", cfg.SlackWebhookURL)
	}
}

func TestLoad_ReadsEnvOverrides(t *testing.T) {
	t.Setenv("BRAINSTREAM_HOST", "0.0.0.0")
	t.Setenv("BRAINSTREAM_PORT", "8080")
	t.Setenv("BRAINSTREAM_FEED_DEFAULT_LIMIT", "50")
	t.Setenv("BRAINSTREAM_SCHEDULER", "false")
	t.Setenv("BRAINSTREAM_SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/x")

	cfg := config.Load(nil)

	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", cfg.Host)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.FeedDefaultLimit != 50 {
		t.Errorf("FeedDefaultLimit = %d, want 50", cfg.FeedDefaultLimit)
	}
	if cfg.SchedulerEnabled {
		t.Error("SchedulerEnabled = true, want false")
	}
	if cfg.SlackWebhookURL != "https://hooks.slack.com/services/x" {
		t.Errorf("SlackWebhookURL = %q, want the configured webhook", cfg.SlackWebhookURL)
	}
}

func TestLoad_FallsBackOnInvalidPort(t *testing.T) {
	t.Setenv("BRAINSTREAM_PORT", "not-a-number")

	cfg := config.Load(nil)

	if cfg.Port != 3001 {
		t.Errorf("Port = %d, want fallback default 3001 for an unparseable value", cfg.Port)
	}
}

func TestLoad_FallsBackOnOutOfRangePort(t *testing.T) {
	t.Setenv("BRAINSTREAM_PORT", "70000")

	cfg := config.Load(nil)

	if cfg.Port != 3001 {
		t.Errorf("Port = %d, want fallback default 3001 for an out-of-range value", cfg.Port)
	}
}

func TestLoad_FallsBackOnNonPositiveClusterSize(t *testing.T) {
	t.Setenv("BRAINSTREAM_HDBSCAN_MIN_CLUSTER_SIZE", "0")

	cfg := config.Load(nil)

	if cfg.HDBSCANMinClusterSize != 5 {
		t.Errorf("HDBSCANMinClusterSize = %d, want fallback default 5", cfg.HDBSCANMinClusterSize)
	}
}

func TestEnsureDataDir_CreatesDirectory(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir() + "/nested/brainstream"}
	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir: %v", err)
	}
}
