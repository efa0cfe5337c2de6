package main

import (
	"testing"
	"time"

	"catchup-feed/internal/config"
	"catchup-feed/internal/notify"
)

func TestBuildRegistry_RegistersSevenUniquelyNamedPlugins(t *testing.T) {
	r := buildRegistry()
	all := r.All()
	if len(all) != 7 {
		t.Fatalf("got %d plugins, want 7", len(all))
	}
	seen := make(map[string]bool)
	for _, p := range all {
		name := p.Info().Name
		if seen[name] {
			t.Errorf("duplicate plugin name %q", name)
		}
		seen[name] = true
		if err := p.ValidateConfig(); err != nil {
			t.Errorf("plugin %q failed ValidateConfig: %v", name, err)
		}
	}
}

func TestBuildNotifier_DefaultsToNoOp(t *testing.T) {
	cfg := &config.Config{}
	n := buildNotifier(cfg)
	if _, ok := n.(notify.NoOp); !ok {
		t.Fatalf("notifier = %T, want notify.NoOp when no webhook is configured", n)
	}
}

func TestBuildNotifier_UsesSlackWhenWebhookConfigured(t *testing.T) {
	cfg := &config.Config{SlackWebhookURL: "https://hooks.slack.com/services/x", SlackNotifyTimeout: 5 * time.Second}
	n := buildNotifier(cfg)
	if _, ok := n.(*notify.Slack); !ok {
		t.Fatalf("notifier = %T, want *notify.Slack when a webhook is configured", n)
	}
}

func TestAllTechStack_DedupsAcrossPlugins(t *testing.T) {
	r := buildRegistry()
	stack := allTechStack(r)
	seen := make(map[string]bool)
	for _, t2 := range stack {
		if seen[t2] {
			t.Errorf("tech %q appears more than once", t2)
		}
		seen[t2] = true
	}
	if !seen["cloud"] {
		t.Error(`expected "cloud" to be present (shared by aws-whatsnew and gcp-release-notes)`)
	}
}
