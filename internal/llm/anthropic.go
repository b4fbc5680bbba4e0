package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/sqlask/sqlask/internal/observability"
)

const DefaultAnthropicModel = "claude-3-7-sonnet-20250219"

// MessagesAPI is the subset of the Anthropic SDK client used here.
type MessagesAPI interface {
	CreateMessages(ctx context.Context, request anthropic.MessagesRequest) (anthropic.MessagesResponse, error)
}

type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	// API overrides the SDK client, mainly for tests.
	API    MessagesAPI
	Logger *slog.Logger
}

type AnthropicClient struct {
	api    MessagesAPI
	model  string
	logger *slog.Logger
}

func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultAnthropicModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	api := cfg.API
	if api == nil {
		httpClient := cfg.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: cfg.Timeout}
		}
		opts := []anthropic.ClientOption{anthropic.WithHTTPClient(httpClient)}
		if baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(baseURL))
		}
		api = anthropic.NewClient(apiKey, opts...)
	}

	return &AnthropicClient{api: api, model: model, logger: logger}, nil
}

func (c *AnthropicClient) Model() string {
	return c.model
}

// Completion sends a single user message. A missing system prompt is sent as
// an empty instruction.
func (c *AnthropicClient) Completion(ctx context.Context, req Request) (*Response, error) {
	system := ""
	if req.SystemPrompt != nil {
		system = *req.SystemPrompt
	}
	user := req.UserPrompt
	temperature := float32(req.Temperature)

	request := anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &user},
			}},
		},
		System:      system,
		MaxTokens:   maxTokensOrDefault(req.MaxTokens),
		Temperature: &temperature,
	}
	applyAnthropicOptions(&request, req.Options)

	start := time.Now()
	resp, err := c.api.CreateMessages(ctx, request)
	elapsed := time.Since(start)
	if err != nil {
		observability.ObserveCompletion("anthropic", elapsed, 0, 0, err)
		return nil, fmt.Errorf("create anthropic message: %w", err)
	}
	observability.ObserveCompletion("anthropic", elapsed, resp.Usage.InputTokens, resp.Usage.OutputTokens, nil)
	c.logger.DebugContext(ctx, "completion received",
		slog.String("model", c.model),
		slog.String("stop_reason", string(resp.StopReason)),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
		slog.String("duration", elapsed.String()),
	)

	return fromAnthropicResponse(resp), nil
}

func (c *AnthropicClient) ExtractText(resp *Response) string {
	return ExtractText(resp)
}

func (c *AnthropicClient) GenerateResponse(ctx context.Context, req Request) (string, error) {
	return generate(ctx, c, req)
}

func applyAnthropicOptions(request *anthropic.MessagesRequest, opts Options) {
	if opts.TopP != nil {
		topP := float32(*opts.TopP)
		request.TopP = &topP
	}
	if opts.TopK != nil {
		topK := *opts.TopK
		request.TopK = &topK
	}
	if len(opts.StopSequences) > 0 {
		request.StopSequences = append([]string(nil), opts.StopSequences...)
	}
	if len(opts.Metadata) > 0 {
		request.Metadata = opts.Metadata
	}
}

func fromAnthropicResponse(resp anthropic.MessagesResponse) *Response {
	out := &Response{
		ID:         resp.ID,
		Model:      string(resp.Model),
		StopReason: string(resp.StopReason),
		Content:    make([]Content, 0, len(resp.Content)),
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	for _, block := range resp.Content {
		text := ""
		if block.Text != nil {
			text = *block.Text
		}
		out.Content = append(out.Content, Content{Type: string(block.Type), Text: text})
	}
	return out
}
