package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"shipdecl/internal/config"
	"shipdecl/internal/domain"
	"shipdecl/internal/parser"
	"shipdecl/internal/port"
)

const (
	defaultModel     = goopenai.GPT4o
	defaultMaxTokens = 2000
)

func init() {
	parser.RegisterProvider("openai", func(cfg *config.ParserProviderConfig) (port.PageExtractor, error) {
		return NewParser(cfg)
	})
}

// Parser implements port.PageExtractor using the OpenAI Chat Completions API.
type Parser struct {
	client    *goopenai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewParser creates an OpenAI-based page extractor from a provider config.
// cfg.Endpoint overrides the API base URL.
func NewParser(cfg *config.ParserProviderConfig) (*Parser, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", domain.ErrMissingAPIKey)
	}

	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Parser{
		client:    goopenai.NewClientWithConfig(clientConfig),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}, nil
}

func (p *Parser) Extract(ctx context.Context, input port.PageInput) (*port.PageOutput, error) {
	switch input.ContentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, input.ContentType)
	}

	dataURL := "data:" + input.ContentType + ";base64," + base64.StdEncoding.EncodeToString(input.Content)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, goopenai.ChatCompletionRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{
						Type: goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: goopenai.ImageURLDetailHigh,
						},
					},
					{
						Type: goopenai.ChatMessagePartTypeText,
						Text: input.Prompt,
					},
				},
			},
		},
	})
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, parser.NewRateLimitError("openai", err, 0)
		}
		var reqErr *goopenai.RequestError
		if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, parser.NewRateLimitError("openai", err, 0)
		}
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == goopenai.FinishReasonLength {
		return nil, fmt.Errorf("output truncated (finish_reason: length): raise parser max_tokens")
	}

	return &port.PageOutput{
		Text:       strings.TrimSpace(choice.Message.Content),
		ModelUsed:  p.model,
		PromptUsed: input.Prompt,
	}, nil
}
