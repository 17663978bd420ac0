package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/xaenox/voicememo/internal/errs"
)

// CompatProvider calls any OpenAI-compatible chat completions endpoint
// (OpenRouter, Groq, a self-hosted gateway) through the official SDK.
type CompatProvider struct {
	name    string
	baseURL string
	model   string
}

func NewCompatProvider(name, baseURL, model string) *CompatProvider {
	if name == "" {
		name = "compat"
	}
	return &CompatProvider{
		name:    name,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:   strings.TrimSpace(model),
	}
}

func (p *CompatProvider) Name() string { return p.name }

func (p *CompatProvider) Complete(ctx context.Context, apiKey string, prompt Prompt) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		// fallback between providers is the only retry
		option.WithMaxRetries(0),
	}
	if p.baseURL != "" {
		opts = append(opts, option.WithBaseURL(p.baseURL+"/"))
	}
	client := openaigo.NewClient(opts...)

	resp, err := client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(p.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(prompt.System),
			openaigo.UserMessage(prompt.User),
		},
		MaxTokens: openaigo.Int(int64(prompt.MaxTokens)),
	})
	if err != nil {
		var apiErr *openaigo.Error
		if errors.As(err, &apiErr) {
			return "", classifyStatus(apiErr.StatusCode, err)
		}
		return "", classifyTransport(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", errs.ErrDecodeFailure, p.name)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
