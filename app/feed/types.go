package feed

import (
	"time"
)

// News types

type NewsItem struct {
	ID          string // GUID, or the link when the entry has none
	Title       string
	Link        string
	Summary     string // markup stripped and truncated
	ImageURL    string
	PublishedAt time.Time
	Category    string
}

// Configuration types

type Source struct {
	Category  string         // Derived from filename (without .yml extension)
	Color     int            `yaml:"color"`
	Endpoints []string       `yaml:"endpoints"`
	Settings  SourceSettings `yaml:"settings"`
	Filters   []SourceFilter `yaml:"filters"`
}

type SourceSettings struct {
	Limit   int `yaml:"limit"`
	Timeout int `yaml:"timeout"` // seconds
}

type SourceFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
