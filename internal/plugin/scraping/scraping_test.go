package scraping

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"catchup-feed/internal/plugin"
)

const samplePage = `<!DOCTYPE html>
<html><body>
<h2>2026-01-15</h2>
<p>First release notes paragraph.</p>
<p>Second paragraph of details.</p>
<h2>2025-11-01</h2>
<p>Older release notes.</p>
</body></html>`

func testConfig(pageURL string) Config {
	return Config{PageURL: pageURL, HeadingSelector: "h2"}
}

func TestPlugin_ValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{PageURL: "https://example.com", HeadingSelector: "h2"}, wantErr: false},
		{name: "missing url", cfg: Config{HeadingSelector: "h2"}, wantErr: true},
		{name: "missing selector", cfg: Config{PageURL: "https://example.com"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New("v", "Vendor", "Vendor", tt.cfg, nil)
			err := p.ValidateConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlugin_FetchUpdates_ExtractsHeadingsAndContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	p := New("v", "Vendor", "Vendor", testConfig(srv.URL), nil)
	items, err := p.FetchUpdates(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchUpdates: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].PublishedAt == nil || !items[0].PublishedAt.Equal(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PublishedAt = %v, want 2026-01-15", items[0].PublishedAt)
	}
	if items[0].Content == "" {
		t.Error("expected non-empty content collected from siblings")
	}
}

func TestPlugin_FetchUpdates_FiltersBySince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := New("v", "Vendor", "Vendor", testConfig(srv.URL), nil)
	items, err := p.FetchUpdates(context.Background(), &since)
	if err != nil {
		t.Fatalf("FetchUpdates: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (only the post-since heading)", len(items))
	}
}

func TestPlugin_FetchUpdates_DedupsIdenticalHeadings(t *testing.T) {
	const dupPage = `<html><body><h2>2026-01-15</h2><p>text</p><h2>2026-01-15</h2><p>text</p></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(dupPage))
	}))
	defer srv.Close()

	p := New("v", "Vendor", "Vendor", testConfig(srv.URL), nil)
	items, err := p.FetchUpdates(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchUpdates: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (identical title+date should dedup)", len(items))
	}
}

func TestPlugin_FetchUpdates_WrapsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New("v", "Vendor", "Vendor", testConfig(srv.URL), nil)
	_, err := p.FetchUpdates(context.Background(), nil)
	if _, ok := err.(*plugin.FetchError); !ok {
		t.Fatalf("err = %T (%v), want *plugin.FetchError", err, err)
	}
}

func TestExtractDate_CustomLayout(t *testing.T) {
	p := New("v", "Vendor", "Vendor", Config{
		PageURL:         "https://example.com",
		HeadingSelector: "h2",
		DateLayouts:     []string{"January 2, 2006"},
	}, nil)
	if got := p.layouts(); len(got) != 1 || got[0] != "January 2, 2006" {
		t.Errorf("layouts() = %+v, want the configured layout", got)
	}

	p2 := New("v", "Vendor", "Vendor", testConfig("https://example.com"), nil)
	if got := p2.layouts(); len(got) != 2 {
		t.Errorf("layouts() = %+v, want the two default layouts", got)
	}
}
