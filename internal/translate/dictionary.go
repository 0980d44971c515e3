package translate

import (
	"context"
	"strings"
	"unicode"
)

// Dictionary is the offline last resort: word-by-word lookup of the
// domain vocabulary. Unknown words are kept as they are.
type Dictionary struct {
	words map[string]string
}

func NewDictionary(words map[string]string) *Dictionary {
	d := &Dictionary{words: make(map[string]string, len(words))}
	for k, v := range words {
		d.words[strings.ToLower(k)] = v
	}
	return d
}

func (d *Dictionary) Name() string { return "dictionary" }

// Attempt answers only when at least one word was translated.
func (d *Dictionary) Attempt(_ context.Context, text string) (string, bool) {
	words := strings.Fields(text)
	hit := false
	for i, w := range words {
		key := strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}))
		if t, ok := d.words[key]; ok {
			words[i] = t
			hit = true
		}
	}
	if !hit {
		return "", false
	}
	return strings.Join(words, " "), true
}
