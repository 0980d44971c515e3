package gemini

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-1.5-flash"

type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{client: client, model: defaultModel}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Translate turns a short search query from one language into another; from
// and to are language names such as "Russian". Only the translated query is
// expected back; anything longer than the input by a wide margin is treated
// as a failed answer.
func (c *Client) Translate(ctx context.Context, text, from, to string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0)

	prompt := fmt.Sprintf(`Translate this news search query from %s to %s.
Keep names of laws, regulators and programmes recognisable.
Reply with the translated query only, no quotes, no comments.

Query: %s`, from, to, text)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	if utf8.RuneCountInString(out) > 4*utf8.RuneCountInString(text)+40 {
		return "", fmt.Errorf("gemini answer too long for a query (%d runes)", utf8.RuneCountInString(out))
	}
	return out, nil
}
