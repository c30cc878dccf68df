package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/news-relay/app/feed"
)

// Resolution is the outcome of looking up a destination.
type Resolution int

const (
	Resolved Resolution = iota
	NotFound
	Forbidden
	Transient
)

func (r Resolution) String() string {
	switch r {
	case Resolved:
		return "resolved"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("resolution(%d)", int(r))
	}
}

type Destination struct {
	Handle string
	Name   string
}

// Message is one rich news message. MentionTargets are rendered as mentions
// after Text.
type Message struct {
	Text           string
	Title          string
	URL            string
	Description    string
	Color          int
	ImageURL       string
	FooterText     string
	MentionTargets []string
}

type Notifier interface {
	// ResolveDestination reports whether handle can receive messages. The
	// error only carries detail for non-Resolved outcomes.
	ResolveDestination(ctx context.Context, handle string) (Destination, Resolution, error)
	// Deliver sends msg. Any error is treated as transient by callers.
	Deliver(ctx context.Context, dest Destination, msg Message) error
}

const (
	headline     = "🔔 **Breaking News!**"
	footerLayout = "02/01/2006 15:04"
)

// BuildMessage renders a news item the same way for every notifier.
func BuildMessage(item feed.NewsItem, color int, targets []string, loc *time.Location) Message {
	if loc == nil {
		loc = time.UTC
	}
	return Message{
		Text:           headline,
		Title:          item.Title,
		URL:            item.Link,
		Description:    item.Summary,
		Color:          color,
		ImageURL:       item.ImageURL,
		FooterText:     fmt.Sprintf("Source: %s | %s", item.Category, item.PublishedAt.In(loc).Format(footerLayout)),
		MentionTargets: targets,
	}
}
