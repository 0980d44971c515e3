package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/deusflow/sandboxbot/internal/logger"
)

const yandexSpellerURL = "https://speller.yandex.net/services/spellservice.json/checkText"

// YandexSpeller fixes typos in Russian/English queries before translation.
type YandexSpeller struct {
	BaseURL string
	Lang    string
	Client  *http.Client
}

func NewYandexSpeller() *YandexSpeller {
	return &YandexSpeller{BaseURL: yandexSpellerURL, Lang: "ru,en", Client: http.DefaultClient}
}

func (s *YandexSpeller) Name() string { return "speller" }

type spellerHint struct {
	Pos int      `json:"pos"`
	Len int      `json:"len"`
	S   []string `json:"s"`
}

func (s *YandexSpeller) Attempt(ctx context.Context, text string) (string, bool) {
	hints, err := s.check(ctx, text)
	if err != nil {
		logger.Debug("speller failed", "error", err)
		return "", false
	}
	if len(hints) == 0 {
		return "", false
	}
	return applyHints(text, hints), true
}

func (s *YandexSpeller) check(ctx context.Context, text string) ([]spellerHint, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("lang", s.Lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speller returned status: %d", resp.StatusCode)
	}
	var hints []spellerHint
	if err := json.NewDecoder(resp.Body).Decode(&hints); err != nil {
		return nil, fmt.Errorf("decode speller response: %w", err)
	}
	return hints, nil
}

// applyHints replaces each flagged span with its first suggestion.
// Positions are in UTF-16 code units, which match runes for Cyrillic and Latin text.
func applyHints(text string, hints []spellerHint) string {
	runes := []rune(text)
	sort.Slice(hints, func(i, j int) bool { return hints[i].Pos > hints[j].Pos })
	for _, h := range hints {
		if len(h.S) == 0 || h.Pos < 0 || h.Len <= 0 || h.Pos+h.Len > len(runes) {
			continue
		}
		fixed := []rune(h.S[0])
		runes = append(runes[:h.Pos], append(fixed, runes[h.Pos+h.Len:]...)...)
	}
	return strings.TrimSpace(string(runes))
}
