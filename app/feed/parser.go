package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"golang.org/x/text/unicode/norm"
)

const (
	SummaryLength = 300
	SummaryMarker = "..."
)

type Parser struct {
	gofeedParser *gofeed.Parser
	policy       *bluemonday.Policy
	now          func() time.Time
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		policy:       bluemonday.StrictPolicy(),
		now:          time.Now,
	}
}

// Run parses an RSS or Atom document into news items of the given category.
// Entries without a title or link are skipped.
func (p *Parser) Run(data []byte, category string) ([]NewsItem, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	fetchedAt := p.now()
	items := make([]NewsItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			slog.Warn("Skipping feed entry without title or link", "category", category, "guid", item.GUID, "title", title)
			continue
		}

		items = append(items, NewsItem{
			ID:          cmp.Or(strings.TrimSpace(item.GUID), link),
			Title:       title,
			Link:        link,
			Summary:     p.summarize(item),
			ImageURL:    findImage(item),
			PublishedAt: p.publishedAt(item, fetchedAt),
			Category:    category,
		})
	}

	return items, nil
}

func (p *Parser) publishedAt(item *gofeed.Item, fallback time.Time) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return fallback
}

func (p *Parser) summarize(item *gofeed.Item) string {
	text := p.plainText(item.Description)
	if text == "" && item.Content != "" {
		text = readableText(item.Content)
		if text == "" {
			text = p.plainText(item.Content)
		}
	}
	return truncate(text, SummaryLength)
}

// plainText strips markup and collapses whitespace.
func (p *Parser) plainText(markup string) string {
	if markup == "" {
		return ""
	}
	text := html.UnescapeString(p.policy.Sanitize(markup))
	text = strings.Join(strings.Fields(text), " ")
	return norm.NFC.String(text)
}

func readableText(markup string) string {
	article, err := readability.FromReader(strings.NewReader(markup), nil)
	if err != nil {
		slog.Debug("Readable text extraction failed", "error", err)
		return ""
	}
	return norm.NFC.String(strings.Join(strings.Fields(article.TextContent), " "))
}

// truncate cuts text to at most limit characters and always appends the marker.
func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit])
	}
	return text + SummaryMarker
}
