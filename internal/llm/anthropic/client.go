package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"resume-agent/internal/llm"
)

const defaultMaxTokens = 4096

// Options configure the Messages API gateway.
type Options struct {
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int
}

// Client implements llm.Gateway on the Anthropic Messages API.
type Client struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// NewClient constructs a gateway. SDK retries are disabled; callers wrap the
// gateway with llm.WithRetry instead.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for Anthropic")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	return &Client{
		client:    sdk.NewClient(reqOpts...),
		model:     opts.Model,
		maxTokens: int64(maxTokens),
	}, nil
}

// Complete sends one Messages request and joins the text blocks of the reply.
func (c *Client) Complete(ctx context.Context, system string, messages []llm.Message) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  make([]sdk.MessageParam, 0, len(messages)),
	}
	if strings.TrimSpace(system) != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	for _, m := range messages {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == llm.RoleAssistant {
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(block))
			continue
		}
		params.Messages = append(params.Messages, sdk.NewUserMessage(block))
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return "", &llm.StatusError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Message: apiErr.Error(), Err: err}
		}
		return "", fmt.Errorf("anthropic request: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		b.WriteString(block.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("anthropic response empty content")
	}
	return text, nil
}

var _ llm.Gateway = (*Client)(nil)
