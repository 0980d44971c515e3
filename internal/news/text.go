package news

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var reTags = regexp.MustCompile(`<[^>]*>`)

// CleanTitle strips markup and entities and collapses whitespace. It repeats
// until nothing changes, so escaped markup such as "&lt;b&gt;" is removed too
// and CleanTitle(CleanTitle(s)) == CleanTitle(s).
func CleanTitle(s string) string {
	for {
		next := html.UnescapeString(s)
		next = reTags.ReplaceAllString(next, " ")
		next = strings.Join(strings.Fields(next), " ")
		if next == s {
			return next
		}
		s = next
	}
}

// normalize lower-cases s and replaces everything but letters and digits with spaces.
func normalize(s string) string {
	s = strings.ToLower(CleanTitle(s))
	b := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b = append(b, r)
		} else {
			b = append(b, ' ')
		}
	}
	return strings.Join(strings.Fields(string(b)), " ")
}

// Tokens returns normalized title words with stop-words removed.
func Tokens(s string, stop map[string]struct{}) []string {
	words := strings.Fields(normalize(s))
	out := words[:0]
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out = append(out, w)
	}
	return out
}

// NormalizeTitle is the form used for the informativeness floor and similarity.
func NormalizeTitle(s string, stop map[string]struct{}) string {
	return strings.Join(Tokens(s, stop), " ")
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Jaccard is |a∩b| / |a∪b| over token sets; two empty sets score 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// countMatches counts keywords present in text. Multi-word keywords match as
// substrings, short ones (<=3 runes) only as whole words so "ai" does not hit "said".
func countMatches(text string, words map[string]struct{}, keywords []string) int {
	n := 0
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		switch {
		case strings.Contains(k, " "):
			if strings.Contains(text, k) {
				n++
			}
		case len([]rune(k)) <= 3:
			if _, ok := words[k]; ok {
				n++
			}
		default:
			if strings.Contains(text, k) {
				n++
			}
		}
	}
	return n
}

// ContainsAny reports whether text mentions any of the keywords.
func ContainsAny(text string, keywords []string) bool {
	norm := normalize(text)
	return countMatches(norm, tokenSet(strings.Fields(norm)), keywords) > 0
}

// IsCyrillic reports whether most letters in s are Cyrillic.
func IsCyrillic(s string) bool {
	var cyr, letters int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Cyrillic, r) {
			cyr++
		}
	}
	return letters > 0 && cyr*2 > letters
}
