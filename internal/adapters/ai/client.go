// Package ai adapts the LLM and embedding capability behind a small client
package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	perr "devlog/internal/platform/errors"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Options configures the capability client
type Options struct {
	APIKey     string
	BaseURL    string // optional override for proxies/self-hosted gateways
	ChatModel  string
	EmbedModel string
	RatePerSec float64
	Burst      int
}

// Client calls the narrative and embedding capabilities with client-side
// rate limiting. All failures map onto the platform error taxonomy so the
// orchestrator can tell transient from terminal
type Client struct {
	oa         *openai.Client
	limiter    *rate.Limiter
	chatModel  string
	embedModel string
}

// NewClient constructs the capability client
func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.ChatModel == "" {
		opts.ChatModel = openai.GPT4oMini
	}
	if opts.EmbedModel == "" {
		opts.EmbedModel = string(openai.SmallEmbedding3)
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 2
	}
	return &Client{
		oa:         openai.NewClientWithConfig(cfg),
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		chatModel:  opts.ChatModel,
		embedModel: opts.EmbedModel,
	}
}

// ChatModel returns the configured narrative model id
func (c *Client) ChatModel() string { return c.chatModel }

// Narrative turns a session context into a short free-text story and
// returns the model that produced it
func (c *Client) Narrative(ctx context.Context, sc SessionContext) (string, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", "", perr.Wrap(err, perr.ErrorCodeUnavailable, "narrative rate wait")
	}

	resp, err := c.oa.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You summarize a developer's coding session into a short, " +
					"first-person narrative (2-4 sentences). Mention what was worked on " +
					"and notable scope. No markdown, no preamble.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: sc.Prompt(),
			},
		},
		MaxTokens:   300,
		Temperature: 0.4,
	})
	if err != nil {
		return "", "", capabilityErr(err, "narrative generation failed")
	}
	if len(resp.Choices) == 0 {
		return "", "", perr.Unavailablef("narrative response had no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), resp.Model, nil
}

// Embed computes the fixed-dimension vector for a session context.
// Deterministic for a fixed commit set, so cacheable indefinitely
func (c *Client) Embed(ctx context.Context, sc SessionContext) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "embed rate wait")
	}

	resp, err := c.oa.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: []string{sc.Prompt()},
	})
	if err != nil {
		return nil, capabilityErr(err, "embedding generation failed")
	}
	if len(resp.Data) == 0 {
		return nil, perr.Unavailablef("embedding response had no data")
	}
	return resp.Data[0].Embedding, nil
}

// capabilityErr maps provider failures onto the error taxonomy
// 429 and 5xx are transient; 4xx means the request itself is bad
func capabilityErr(err error, msg string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return perr.Wrap(err, perr.ErrorCodeTooManyRequests, msg)
		case apiErr.HTTPStatusCode >= 500:
			return perr.Wrap(err, perr.ErrorCodeUnavailable, msg)
		default:
			return perr.Wrap(err, perr.ErrorCodeInvalidArgument, msg)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, msg)
	}
	// network-level failures are transient
	return perr.Wrap(err, perr.ErrorCodeUnavailable, msg)
}
