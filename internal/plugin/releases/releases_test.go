package releases

import (
	"testing"
	"time"
)

func TestNew_DefaultsToDefaultRepositories(t *testing.T) {
	p := New("releases", "Releases", "OSS", nil, "", nil)
	if len(p.repos) != len(DefaultRepositories) {
		t.Fatalf("repos = %+v, want the default repository list", p.repos)
	}
}

func TestNew_UsesProvidedRepositories(t *testing.T) {
	repos := []string{"owner/repo"}
	p := New("releases", "Releases", "OSS", repos, "", nil)
	if len(p.repos) != 1 || p.repos[0] != "owner/repo" {
		t.Fatalf("repos = %+v, want [owner/repo]", p.repos)
	}
}

func TestValidateConfig_NoRepositoriesIsInvalid(t *testing.T) {
	p := New("releases", "Releases", "OSS", []string{"owner/repo"}, "", nil)
	p.repos = nil
	if err := p.ValidateConfig(); err == nil {
		t.Fatal("expected an error when no repositories are configured")
	}
}

func TestValidateConfig_OK(t *testing.T) {
	p := New("releases", "Releases", "OSS", []string{"owner/repo"}, "", nil)
	if err := p.ValidateConfig(); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
}

func TestParseGithubTime(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *time.Time
	}{
		{name: "empty", in: "", want: nil},
		{name: "invalid", in: "not-a-time", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseGithubTime(tt.in)
			if (got == nil) != (tt.want == nil) {
				t.Errorf("parseGithubTime(%q) = %v, want nil-ness %v", tt.in, got, tt.want == nil)
			}
		})
	}

	valid := "2026-01-15T10:00:00Z"
	got := parseGithubTime(valid)
	if got == nil {
		t.Fatal("expected a parsed time for a valid RFC3339 string")
	}
	want := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestInfo(t *testing.T) {
	p := New("releases", "OSS Releases", "OSS", []string{"owner/repo"}, "", []string{"go"})
	info := p.Info()
	if info.Name != "releases" || info.Vendor != "OSS" {
		t.Errorf("info = %+v, unexpected", info)
	}
}
