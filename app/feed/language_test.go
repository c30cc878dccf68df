package feed

import (
	"strings"
	"testing"
)

func TestLanguageTagger(t *testing.T) {
	tagger := NewLanguageTagger()

	testCases := []struct {
		name     string
		item     NewsItem
		expected string
	}{
		{
			name: "portuguese",
			item: NewsItem{
				Title:   "Nova versão do Ubuntu chega com melhorias de desempenho",
				Summary: "A atualização traz um novo kernel e várias correções para os usuários",
			},
			expected: flagPortuguese,
		},
		{
			name: "english",
			item: NewsItem{
				Title:   "New Ubuntu release arrives with performance improvements",
				Summary: "The update brings a new kernel and several fixes for users",
			},
			expected: flagEnglish,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tagged := tagger.Tag(tc.item)
			if !strings.HasPrefix(tagged.Title, tc.expected+" ") {
				t.Errorf("Expected title prefixed with %s, got '%s'", tc.expected, tagged.Title)
			}
			if !strings.HasSuffix(tagged.Title, tc.item.Title) {
				t.Errorf("Expected original title to be kept, got '%s'", tagged.Title)
			}
		})
	}
}
