package pathutil

import (
	"testing"
)

// BenchmarkNormalizePath benchmarks the path normalization function.
func BenchmarkNormalizePath(b *testing.B) {
	paths := []string{
		"/api/v1/articles/aws-a1b2c3",
		"/api/v1/articles/aws-a1b2c3/action",
		"/api/v1/feed",
		"/health",
		"/metrics",
		"/unknown/path/123",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		path := paths[i%len(paths)]
		_ = NormalizePath(path)
	}
}

// BenchmarkNormalizePath_Match benchmarks paths that match a template pattern.
func BenchmarkNormalizePath_Match(b *testing.B) {
	path := "/api/v1/articles/aws-a1b2c3"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NormalizePath(path)
	}
}

// BenchmarkNormalizePath_NoMatch benchmarks static endpoints that never match a pattern.
func BenchmarkNormalizePath_NoMatch(b *testing.B) {
	path := "/health"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NormalizePath(path)
	}
}

// BenchmarkNormalizePath_WithQueryParams benchmarks paths carrying query parameters.
func BenchmarkNormalizePath_WithQueryParams(b *testing.B) {
	path := "/api/v1/articles/aws-a1b2c3?page=1"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NormalizePath(path)
	}
}

// BenchmarkNormalizePath_CardinalityReduction demonstrates the cardinality
// reduction that justifies this package's existence: many distinct external
// IDs collapse to one metrics label.
func BenchmarkNormalizePath_CardinalityReduction(b *testing.B) {
	vendors := []string{"aws", "anthropic", "openai", "github", "cloudflare"}
	paths := make([]string, 0, 10000)
	for i := 0; i < 10000; i++ {
		paths = append(paths, "/api/v1/articles/"+vendors[i%len(vendors)]+"-guid")
	}

	b.Run("normalized_paths", func(b *testing.B) {
		uniquePaths := make(map[string]bool)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			path := paths[i%len(paths)]
			uniquePaths[NormalizePath(path)] = true
		}
		b.StopTimer()
		b.Logf("normalized paths: %d unique labels", len(uniquePaths))
	})
}
