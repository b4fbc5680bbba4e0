package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sqlask/sqlask/internal/observability"
)

const DefaultOpenAIModel = "gpt-4o-mini"

type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   model,
		client:  client,
		logger:  logger,
	}, nil
}

func (c *OpenAIClient) Model() string {
	return c.model
}

func (c *OpenAIClient) Completion(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := c.completion(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		observability.ObserveCompletion("openai", elapsed, 0, 0, err)
		return nil, err
	}
	observability.ObserveCompletion("openai", elapsed, resp.Usage.InputTokens, resp.Usage.OutputTokens, nil)
	c.logger.DebugContext(ctx, "completion received",
		slog.String("model", c.model),
		slog.String("stop_reason", resp.StopReason),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
		slog.String("duration", elapsed.String()),
	)
	return resp, nil
}

func (c *OpenAIClient) completion(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(buildOpenAIPayload(c.model, req))
	if err != nil {
		return nil, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawRespBody))
	}

	var parsed struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode chat completion response: %w", err)
	}

	out := &Response{
		ID:      parsed.ID,
		Model:   parsed.Model,
		Content: make([]Content, 0, len(parsed.Choices)),
		Usage: Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		},
	}
	for i, choice := range parsed.Choices {
		if i == 0 {
			out.StopReason = choice.FinishReason
		}
		out.Content = append(out.Content, Content{Type: "text", Text: choice.Message.Content})
	}
	return out, nil
}

func (c *OpenAIClient) ExtractText(resp *Response) string {
	return ExtractText(resp)
}

func (c *OpenAIClient) GenerateResponse(ctx context.Context, req Request) (string, error) {
	return generate(ctx, c, req)
}

// buildOpenAIPayload puts the system message first when one is set. TopK has
// no chat completions equivalent and is not sent.
func buildOpenAIPayload(model string, req Request) map[string]any {
	messages := make([]map[string]string, 0, 2)
	if req.SystemPrompt != nil && *req.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": *req.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.UserPrompt})

	payload := map[string]any{
		"model":       model,
		"messages":    messages,
		"temperature": req.Temperature,
		"max_tokens":  maxTokensOrDefault(req.MaxTokens),
	}
	if req.Options.TopP != nil {
		payload["top_p"] = *req.Options.TopP
	}
	if len(req.Options.StopSequences) > 0 {
		payload["stop"] = req.Options.StopSequences
	}
	if len(req.Options.Metadata) > 0 {
		payload["metadata"] = req.Options.Metadata
	}
	return payload
}
