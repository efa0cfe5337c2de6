package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEnhancer_Enhance_SkipsWhenOriginalIsLongEnough(t *testing.T) {
	e := New(nil)
	original := strings.Repeat("x", MinContentBytes)
	got := e.Enhance(context.Background(), "https://example.com/article", original)
	if got != original {
		t.Errorf("expected the original content to be returned unchanged")
	}
}

func TestEnhancer_Enhance_InvalidURLFallsBackToOriginal(t *testing.T) {
	e := New(nil)
	got := e.Enhance(context.Background(), "not-a-url", "short")
	if got != "short" {
		t.Errorf("got %q, want original content on an unparseable URL", got)
	}
}

func TestEnhancer_Enhance_ServerErrorFallsBackToOriginal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := New(nil)
	got := e.Enhance(context.Background(), srv.URL, "short")
	if got != "short" {
		t.Errorf("got %q, want original content on a 5xx response", got)
	}
}

func TestEnhancer_Enhance_ExtractsArticleText(t *testing.T) {
	const body = `<!DOCTYPE html>
<html>
<head><title>A Real Announcement</title></head>
<body>
<article>
<h1>A Real Announcement</h1>
<p>This is the first paragraph of a much longer article body that readability should be able to extract as the primary textual content of the page, well past the short-content threshold the enhancer checks against before even attempting a fetch.</p>
<p>This is a second paragraph adding more substantive text so the extracted content clearly exceeds the minimum content length used elsewhere in the pipeline to decide whether enhancement was worth attempting in the first place.</p>
</article>
</body>
</html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	e := New(nil)
	got := e.Enhance(context.Background(), srv.URL, "short")
	if got == "short" {
		t.Fatal("expected enhancement to replace the short original content")
	}
	if !strings.Contains(got, "first paragraph") {
		t.Errorf("got %q, want it to contain extracted article text", got)
	}
}
