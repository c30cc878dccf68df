package feed

import (
	"github.com/pemistahl/lingua-go"
)

const (
	flagPortuguese = "🇧🇷"
	flagEnglish    = "🇺🇸"
)

// LanguageTagger prefixes titles with a flag for the detected language.
// Only English and Portuguese are told apart; anything else gets the
// English flag.
type LanguageTagger struct {
	detector lingua.LanguageDetector
}

func NewLanguageTagger() *LanguageTagger {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.English, lingua.Portuguese).
		Build()

	return &LanguageTagger{detector: detector}
}

func (t *LanguageTagger) Flag(text string) string {
	if language, ok := t.detector.DetectLanguageOf(text); ok && language == lingua.Portuguese {
		return flagPortuguese
	}
	return flagEnglish
}

func (t *LanguageTagger) Tag(item NewsItem) NewsItem {
	item.Title = t.Flag(item.Title+" "+item.Summary) + " " + item.Title
	return item
}
