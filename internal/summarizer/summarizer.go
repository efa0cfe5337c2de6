// Package summarizer wraps an external command-line LLM tool as a
// process-execution step. It never retries: a missing or misbehaving tool
// is the Collector's fallback path to handle, not this package's.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"catchup-feed/internal/utils/text"
)

// Payload is the structured analysis the external tool must emit as JSON on
// stdout. Missing keys are treated as absent/empty defaults, never errors.
type Payload struct {
	Summary         string   `json:"summary"`
	Tags            []string `json:"tags"`
	IsPrimarySource bool     `json:"is_primary_source"`
	TechDomain      string   `json:"tech_domain"`
}

// ToolMissingError is raised when the configured command isn't on PATH.
type ToolMissingError struct{ Command string }

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("summarizer tool %q not found on PATH", e.Command)
}

// TimeoutError is raised when the subprocess exceeds the wall-clock budget.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("summarizer %q exceeded timeout %s", e.Command, e.Timeout)
}

// ExecutionFailureError is raised on a non-zero exit from the subprocess.
type ExecutionFailureError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExecutionFailureError) Error() string {
	return fmt.Sprintf("summarizer %q exited %d: %s", e.Command, e.ExitCode, e.Stderr)
}

// ParseFailureError is raised when none of the tolerant JSON extraction
// strategies could decode the tool's stdout.
type ParseFailureError struct {
	Command string
	Output  string
}

func (e *ParseFailureError) Error() string {
	return fmt.Sprintf("summarizer %q produced undecodable output: %.200s", e.Command, e.Output)
}

var (
	invocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summarizer_invocations_total",
			Help: "Total summarizer subprocess invocations by outcome",
		},
		[]string{"outcome"},
	)
	invocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "summarizer_invocation_duration_seconds",
			Help:    "Wall-clock duration of summarizer subprocess invocations",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Wrapper executes a configured external command and parses its stdout as a
// Payload. It is safe for concurrent use, though callers are expected to
// invoke it sequentially per spec.
type Wrapper struct {
	command    string
	timeout    time.Duration
	available  *bool
}

// New builds a Wrapper around the named command (resolved via PATH at call
// time unless it's an absolute path).
func New(command string, timeout time.Duration) *Wrapper {
	return &Wrapper{command: command, timeout: timeout}
}

// IsAvailable probes whether the command exists on PATH. The result is
// cached for the lifetime of the Wrapper.
func (w *Wrapper) IsAvailable() bool {
	if w.available != nil {
		return *w.available
	}
	_, err := exec.LookPath(w.command)
	ok := err == nil
	w.available = &ok
	return ok
}

// Analyze runs the external tool against (title, content, url, vendor) and
// returns its structured analysis.
func (w *Wrapper) Analyze(ctx context.Context, title, content, url, vendor string) (Payload, error) {
	requestID := uuid.NewString()
	start := time.Now()

	if !w.IsAvailable() {
		invocationsTotal.WithLabelValues("tool_missing").Inc()
		return Payload{}, &ToolMissingError{Command: w.command}
	}

	prompt := buildPrompt(title, content, url, vendor)

	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, w.command, "-p", prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	invocationDuration.Observe(time.Since(start).Seconds())

	if runCtx.Err() == context.DeadlineExceeded {
		invocationsTotal.WithLabelValues("timeout").Inc()
		return Payload{}, &TimeoutError{Command: w.command, Timeout: w.timeout}
	}
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		invocationsTotal.WithLabelValues("execution_failure").Inc()
		return Payload{}, &ExecutionFailureError{
			Command:  w.command,
			ExitCode: exitCode,
			Stderr:   truncate(stderr.String(), 500),
		}
	}

	payload, parseErr := extractJSON(stdout.String())
	if parseErr != nil {
		invocationsTotal.WithLabelValues("parse_failure").Inc()
		return Payload{}, &ParseFailureError{Command: w.command, Output: stdout.String()}
	}

	invocationsTotal.WithLabelValues("success").Inc()
	_ = requestID
	return payload, nil
}

func buildPrompt(title, content, url, vendor string) string {
	return fmt.Sprintf(
		`Analyze this %s update and respond with ONLY a JSON object with keys
"summary" (2-3 sentences), "tags" (array of lowercase strings), "is_primary_source"
(boolean, true iff the URL below belongs to %s's official domain), and "tech_domain"
(a single hyphenated keyword).

Title: %s
URL: %s
Content: %s`,
		vendor, vendor, title, url, truncate(content, 4000))
}

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
)

// extractJSON implements the tolerant parsing chain required by the
// summarizer contract: raw JSON, then a markdown-fenced JSON block, then
// the first balanced-brace substring.
func extractJSON(output string) (Payload, error) {
	output = strings.TrimSpace(output)

	var payload Payload
	if err := json.Unmarshal([]byte(output), &payload); err == nil {
		return payload, nil
	}

	if m := fencedJSONPattern.FindStringSubmatch(output); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &payload); err == nil {
			return payload, nil
		}
	}

	if candidate, ok := firstBalancedBraceSubstring(output); ok {
		if err := json.Unmarshal([]byte(candidate), &payload); err == nil {
			return payload, nil
		}
	}

	return Payload{}, fmt.Errorf("no decodable JSON found")
}

func firstBalancedBraceSubstring(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	return text.Truncate(s, n)
}
