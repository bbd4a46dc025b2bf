// Package trends fetches current fashion trend commentary from an online
// search model (Perplexity or any OpenAI-compatible endpoint).
package trends

import (
	"context"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "You are a fashion expert. Provide relevant and detailed responses about fashion, trends, and style."

// Provider answers free-form trend questions with sourced commentary.
type Provider interface {
	Fetch(ctx context.Context, query string) (string, error)
}

// Options configures the online trends client.
type Options struct {
	// BaseURL points at an OpenAI-compatible chat completions endpoint.
	BaseURL string

	// APIKey authenticates against the endpoint.
	APIKey string

	// Model is the online-search model id.
	Model string

	Temperature float64
}

// Client queries an OpenAI-compatible online-search endpoint for trends.
type Client struct {
	client *openaisdk.Client
	opts   Options
}

var _ Provider = (*Client)(nil)

// NewClient creates a trends client. Defaults target Perplexity's
// OpenAI-compatible API.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:     "https://api.perplexity.ai",
		Model:       "llama-3.1-sonar-small-128k-online",
		Temperature: 0.5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithBaseURL(opts.BaseURL)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openaisdk.NewClient(clientOpts...)

	return &Client{client: &client, opts: opts}
}

// Fetch implements Provider.
func (c *Client) Fetch(ctx context.Context, query string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: c.opts.Model,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt),
			openaisdk.UserMessage(query),
		},
		Temperature: openaisdk.Float(c.opts.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("trends: fetch %q: %w", query, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("trends: no choices returned for %q", query)
	}
	return resp.Choices[0].Message.Content, nil
}

// Static serves canned trend commentary; used in tests and offline examples.
type Static struct {
	// Reply is returned for every query. Empty means echo the query.
	Reply string
}

var _ Provider = (*Static)(nil)

// Fetch implements Provider.
func (s *Static) Fetch(ctx context.Context, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Reply != "" {
		return s.Reply, nil
	}
	return fmt.Sprintf("Trend notes for: %s", query), nil
}
