package feed

import (
	"log/slog"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run drops items rejected by the source's keyword filters.
func (f *Filterer) Run(items []NewsItem, source *Source) []NewsItem {
	if source == nil || len(source.Filters) == 0 {
		return items
	}

	kept := make([]NewsItem, 0, len(items))
	for _, item := range items {
		if rejected, reason := f.applyFilters(item, source.Filters); rejected {
			slog.Debug("Item filtered", "category", source.Category, "title", item.Title, "reason", reason)
			continue
		}
		kept = append(kept, item)
	}

	return kept
}

func (f *Filterer) applyFilters(item NewsItem, filters []SourceFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(item, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, "excluded by " + filter.Field + ": contains '" + exclude + "'"
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, "excluded by " + filter.Field + ": no include keyword"
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(item NewsItem, field string) string {
	switch field {
	case "title":
		return item.Title
	case "summary":
		return item.Summary
	case "link":
		return item.Link
	default:
		return ""
	}
}
