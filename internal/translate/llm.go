package translate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/sandboxbot/internal/logger"
	"github.com/deusflow/sandboxbot/internal/ratelimit"
)

// Translator is any LLM-backed client able to translate a short text.
// from and to are English language names such as "Russian".
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// LLM adapts a Translator into a Strategy spending the daily AI budget.
type LLM struct {
	name     string
	client   Translator
	budget   *ratelimit.DailyBudget
	from, to string
}

func NewLLM(name string, client Translator, budget *ratelimit.DailyBudget, from, to string) *LLM {
	return &LLM{name: name, client: client, budget: budget, from: from, to: to}
}

func (l *LLM) Name() string { return l.name }

func (l *LLM) Attempt(ctx context.Context, text string) (string, bool) {
	if l.budget != nil {
		if err := l.budget.Use(l.name); err != nil {
			return "", false
		}
	}
	out, err := l.client.Translate(ctx, text, languageName(l.from), languageName(l.to))
	if err != nil {
		logger.Debug("LLM translate failed", "service", l.name, "error", err)
		return "", false
	}
	out = SanitizeAIText(out)
	return out, out != ""
}

// OpenAI translates through the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{client: openai.NewClient(apiKey), model: openai.GPT4oMini}
}

func (o *OpenAI) Translate(ctx context.Context, text, from, to string) (string, error) {
	prompt := fmt.Sprintf(`Translate the following %s news search query to %s.
Translate only the query itself, without quotes or comments.

Query:
%s`, from, to, text)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxCompletionTokens: 100,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// languageName spells out the codes LLM prompts need as words.
func languageName(code string) string {
	switch code {
	case "ru":
		return "Russian"
	case "en":
		return "English"
	default:
		return code
	}
}

var (
	reNoteLine      = regexp.MustCompile(`(?im)^\s*(note|примечание)\s*:.*$`)
	reNoteBracketed = regexp.MustCompile(`(?i)[\(\[]\s*(note|примечание)\s*:[^\)\]]*[\)\]]`)
	rePrefix        = regexp.MustCompile(`(?i)^\s*(translation|перевод|query|запрос)\s*:\s*`)
)

// SanitizeAIText strips disclaimers, labels and quotes LLMs wrap around answers.
func SanitizeAIText(s string) string {
	s = reNoteBracketed.ReplaceAllString(s, " ")
	s = reNoteLine.ReplaceAllString(s, " ")
	s = rePrefix.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.Trim(strings.TrimSpace(s), "\"'«»“”`")
	return strings.Join(strings.Fields(s), " ")
}
