package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	DefaultLimit   = 3
	DefaultTimeout = 30
	DefaultColor   = 0x95a5a6
)

// DefaultSources is used when no feeds directory exists.
func DefaultSources() []Source {
	return []Source{
		{
			Category:  "windows",
			Color:     0x3498db,
			Endpoints: []string{"https://www.windowslatest.com/feed/"},
			Settings:  SourceSettings{Limit: DefaultLimit, Timeout: DefaultTimeout},
			Filters: []SourceFilter{
				{Field: "title", Includes: []string{"windows", "microsoft"}},
			},
		},
		{
			Category:  "linux",
			Color:     0xe67e22,
			Endpoints: []string{"https://diolinux.com.br/feed", "https://9to5linux.com/feed/"},
			Settings:  SourceSettings{Limit: DefaultLimit, Timeout: DefaultTimeout},
			Filters: []SourceFilter{
				{Field: "title", Includes: []string{"linux", "ubuntu", "debian", "kernel", "fedora"}},
			},
		},
	}
}

// Registry maps categories to their sources. Category order is stable:
// the defaults keep their declared order, files are loaded in name order.
type Registry struct {
	feedsDir string
	sources  map[string]*Source
	order    []string
	mu       sync.RWMutex
}

func NewRegistry(feedsDir string) *Registry {
	return &Registry{
		feedsDir: feedsDir,
		sources:  make(map[string]*Source),
	}
}

func NewRegistryFromSources(sources []Source) (*Registry, error) {
	r := NewRegistry("")
	for i := range sources {
		if err := r.add(sources[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Run() error {
	if _, err := os.Stat(r.feedsDir); os.IsNotExist(err) {
		slog.Info("Feeds directory not found, using built-in sources", "dir", r.feedsDir)
		for _, source := range DefaultSources() {
			if err := r.add(source); err != nil {
				return err
			}
		}
		return nil
	}

	files, err := filepath.Glob(filepath.Join(r.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}
	slices.Sort(files)

	for _, file := range files {
		category := strings.TrimSuffix(filepath.Base(file), ".yml")

		source, err := r.LoadSource(category)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source loaded", "category", source.Category, "endpoints", len(source.Endpoints), "filters", len(source.Filters))
	}

	if len(r.order) == 0 {
		return fmt.Errorf("no feed sources found in %s", r.feedsDir)
	}

	return nil
}

func (r *Registry) LoadSource(category string) (*Source, error) {
	sourceFile := filepath.Join(r.feedsDir, category+".yml")
	source, err := parseSource(sourceFile)
	if err != nil {
		return nil, err
	}

	source.Category = strings.ToLower(category)

	if err := r.add(*source); err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", sourceFile, err)
	}

	return r.GetSource(source.Category)
}

func (r *Registry) GetSource(category string) (*Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source, ok := r.sources[category]
	if !ok {
		return nil, fmt.Errorf("source for category '%s' not found", category)
	}
	return source, nil
}

func (r *Registry) Has(category string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sources[category]
	return ok
}

// Categories returns the registered categories in registry order.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.order)
}

func (r *Registry) Color(category string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if source, ok := r.sources[category]; ok && source.Color != 0 {
		return source.Color
	}
	return DefaultColor
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

func (r *Registry) add(source Source) error {
	applyDefaults(&source)
	if err := validateSource(&source); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[source.Category]; !exists {
		r.order = append(r.order, source.Category)
	}
	r.sources[source.Category] = &source
	return nil
}

func parseSource(sourceFile string) (*Source, error) {
	data, err := os.ReadFile(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var source Source
	if err := yaml.Unmarshal(data, &source); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &source, nil
}

func applyDefaults(source *Source) {
	if source.Settings.Limit == 0 {
		source.Settings.Limit = DefaultLimit
	}
	if source.Settings.Timeout == 0 {
		source.Settings.Timeout = DefaultTimeout
	}
}

func validateSource(source *Source) error {
	if source.Category == "" {
		return fmt.Errorf("category is required")
	}
	if len(source.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required")
	}
	for i, endpoint := range source.Endpoints {
		if strings.TrimSpace(endpoint) == "" {
			return fmt.Errorf("endpoint at index %d is empty", i)
		}
	}

	nonNegativeFields := map[string]int{
		"limit":   source.Settings.Limit,
		"timeout": source.Settings.Timeout,
		"color":   source.Color,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	validFields := map[string]bool{
		"title":   true,
		"summary": true,
		"link":    true,
	}

	for i, filter := range source.Filters {
		if !validFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}
