package feed

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// findImage picks an illustration for an entry. Structured media metadata
// wins over images embedded in the description, which win over images in
// the extended content.
func findImage(item *gofeed.Item) string {
	if url := mediaImage(item); url != "" {
		return url
	}
	if url := firstImageSrc(item.Description); url != "" {
		return url
	}
	return firstImageSrc(item.Content)
}

func mediaImage(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		if url := mediaURL(media); url != "" {
			return url
		}
		for _, group := range media["group"] {
			if url := mediaURL(group.Children); url != "" {
				return url
			}
		}
	}

	// item.Image is not used: gofeed fills it from the content markup
	if item.ITunesExt != nil && item.ITunesExt.Image != "" {
		return item.ITunesExt.Image
	}

	for _, enclosure := range item.Enclosures {
		if enclosure != nil && enclosure.URL != "" && strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure.URL
		}
	}

	return ""
}

func mediaURL(elements map[string][]ext.Extension) string {
	for _, name := range []string{"content", "thumbnail"} {
		for _, element := range elements[name] {
			url := element.Attrs["url"]
			if url == "" {
				continue
			}
			// media:content may describe video or audio
			if medium := element.Attrs["medium"]; medium != "" && medium != "image" {
				continue
			}
			if typ := element.Attrs["type"]; typ != "" && !strings.HasPrefix(typ, "image/") {
				continue
			}
			return url
		}
	}
	return ""
}

func firstImageSrc(markup string) string {
	if !strings.Contains(markup, "<img") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	var src string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if value, ok := s.Attr("src"); ok && strings.TrimSpace(value) != "" {
			src = strings.TrimSpace(value)
			return false
		}
		return true
	})
	return src
}
