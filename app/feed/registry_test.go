package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegistryLoadValidSource(t *testing.T) {
	tempDir := t.TempDir()

	content := `
color: 3447003
endpoints:
  - "https://example.com/feed.xml"
  - "https://example.org/rss"

settings:
  limit: 5
  timeout: 15

filters:
  - field: "title"
    includes:
      - "windows"
    excludes:
      - "sponsored"
`

	err := os.WriteFile(filepath.Join(tempDir, "windows.yml"), []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	if registry.Count() != 1 {
		t.Errorf("Expected 1 source, got %d", registry.Count())
	}

	source, err := registry.GetSource("windows")
	if err != nil {
		t.Fatal(err)
	}

	if source.Category != "windows" {
		t.Errorf("Expected category 'windows', got '%s'", source.Category)
	}
	if len(source.Endpoints) != 2 {
		t.Errorf("Expected 2 endpoints, got %d", len(source.Endpoints))
	}
	if source.Settings.Limit != 5 {
		t.Errorf("Expected limit 5, got %d", source.Settings.Limit)
	}
	if source.Settings.Timeout != 15 {
		t.Errorf("Expected timeout 15, got %d", source.Settings.Timeout)
	}
	if registry.Color("windows") != 0x3498db {
		t.Errorf("Expected color 0x3498db, got %#x", registry.Color("windows"))
	}
	if len(source.Filters) != 1 || source.Filters[0].Excludes[0] != "sponsored" {
		t.Errorf("Expected one filter excluding 'sponsored', got %+v", source.Filters)
	}
}

func TestRegistryDefaultsWhenSettingsOmitted(t *testing.T) {
	tempDir := t.TempDir()

	content := `
endpoints:
  - "https://example.com/feed.xml"
`

	if err := os.WriteFile(filepath.Join(tempDir, "minimal.yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	source, err := registry.GetSource("minimal")
	if err != nil {
		t.Fatal(err)
	}

	if source.Settings.Limit != DefaultLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultLimit, source.Settings.Limit)
	}
	if source.Settings.Timeout != DefaultTimeout {
		t.Errorf("Expected default timeout %d, got %d", DefaultTimeout, source.Settings.Timeout)
	}
	if registry.Color("minimal") != DefaultColor {
		t.Errorf("Expected default color, got %#x", registry.Color("minimal"))
	}
}

func TestRegistryCategoriesInFileNameOrder(t *testing.T) {
	tempDir := t.TempDir()

	for _, name := range []string{"windows", "android", "linux"} {
		content := "endpoints:\n  - \"https://example.com/" + name + "\"\n"
		if err := os.WriteFile(filepath.Join(tempDir, name+".yml"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	got := strings.Join(registry.Categories(), ",")
	if got != "android,linux,windows" {
		t.Errorf("Expected 'android,linux,windows', got '%s'", got)
	}
}

func TestRegistryMissingDirectoryUsesDefaults(t *testing.T) {
	registry := NewRegistry(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	got := strings.Join(registry.Categories(), ",")
	if got != "windows,linux" {
		t.Errorf("Expected 'windows,linux', got '%s'", got)
	}

	linux, err := registry.GetSource("linux")
	if err != nil {
		t.Fatal(err)
	}
	if len(linux.Endpoints) != 2 {
		t.Errorf("Expected 2 linux endpoints, got %d", len(linux.Endpoints))
	}
	if registry.Color("linux") != 0xe67e22 {
		t.Errorf("Expected linux color 0xe67e22, got %#x", registry.Color("linux"))
	}
}

func TestRegistryInvalidSources(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "no endpoints",
			content: "color: 1\n",
			errMsg:  "at least one endpoint is required",
		},
		{
			name: "invalid filter field",
			content: `
endpoints: ["https://example.com/feed"]
filters:
  - field: "authors"
    includes: ["x"]
`,
			errMsg: "invalid filter field",
		},
		{
			name: "filter without rules",
			content: `
endpoints: ["https://example.com/feed"]
filters:
  - field: "title"
`,
			errMsg: "must have at least one include or exclude rule",
		},
		{
			name: "negative timeout",
			content: `
endpoints: ["https://example.com/feed"]
settings:
  timeout: -1
`,
			errMsg: "timeout must be non-negative",
		},
		{
			name:    "malformed yaml",
			content: "endpoints: [unterminated\n",
			errMsg:  "failed to parse YAML",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tempDir := t.TempDir()
			if err := os.WriteFile(filepath.Join(tempDir, "broken.yml"), []byte(tc.content), 0644); err != nil {
				t.Fatal(err)
			}

			err := NewRegistry(tempDir).Run()
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("Expected error containing '%s', got '%s'", tc.errMsg, err.Error())
			}
		})
	}
}

func TestRegistryEmptyDirectory(t *testing.T) {
	if err := NewRegistry(t.TempDir()).Run(); err == nil {
		t.Error("Expected error for a directory without sources")
	}
}

func TestRegistryUnknownCategory(t *testing.T) {
	registry, err := NewRegistryFromSources(DefaultSources())
	if err != nil {
		t.Fatal(err)
	}

	if registry.Has("android") {
		t.Error("Expected 'android' to be unknown")
	}
	if _, err := registry.GetSource("android"); err == nil {
		t.Error("Expected error for unknown category")
	}
}
