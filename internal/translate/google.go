package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/deusflow/sandboxbot/internal/logger"
)

const googleTranslateURL = "https://translate.googleapis.com/translate_a/single"

// GoogleTranslate uses the public gtx endpoint; no key required.
type GoogleTranslate struct {
	From, To string
	BaseURL  string
	Client   *http.Client
}

func NewGoogleTranslate(from, to string) *GoogleTranslate {
	return &GoogleTranslate{From: from, To: to, BaseURL: googleTranslateURL, Client: http.DefaultClient}
}

func (g *GoogleTranslate) Name() string { return "google" }

func (g *GoogleTranslate) Attempt(ctx context.Context, text string) (string, bool) {
	out, err := g.translate(ctx, text)
	if err != nil {
		logger.Debug("Google Translate failed", "from", g.From, "to", g.To, "error", err)
		return "", false
	}
	// an echo of the input means the endpoint did nothing
	if out == "" || strings.EqualFold(out, text) {
		return "", false
	}
	return out, true
}

func (g *GoogleTranslate) translate(ctx context.Context, text string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", g.From)
	params.Set("tl", g.To)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP error: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Debug("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google Translate API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	translation, err := parseGoogleTranslateResponse(body)
	if err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	return strings.TrimSpace(translation), nil
}

// parseGoogleTranslateResponse joins the segments of the gtx array-of-arrays answer.
func parseGoogleTranslateResponse(body []byte) (string, error) {
	var response []interface{}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}

	if len(response) == 0 {
		return "", errors.New("empty response from Google Translate")
	}

	translations, ok := response[0].([]interface{})
	if !ok {
		return "", errors.New("unexpected response format")
	}

	var result strings.Builder
	for _, translation := range translations {
		if translationArray, ok := translation.([]interface{}); ok && len(translationArray) > 0 {
			if translatedText, ok := translationArray[0].(string); ok {
				result.WriteString(translatedText)
			}
		}
	}

	return result.String(), nil
}
