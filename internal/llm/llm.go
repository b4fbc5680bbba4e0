package llm

import (
	"context"
	"errors"
	"strings"
)

var ErrMissingCredential = errors.New("api key must be provided or set in the environment")

const (
	DefaultMaxTokens             = 1024
	DefaultCompletionTemperature = 0.0
	DefaultGenerateTemperature   = 0.7
)

// Client wraps a remote text-completion API.
type Client interface {
	Completion(ctx context.Context, req Request) (*Response, error)
	ExtractText(resp *Response) string
	GenerateResponse(ctx context.Context, req Request) (string, error)
}

type Request struct {
	UserPrompt   string
	SystemPrompt *string
	MaxTokens    int
	Temperature  float64
	Options      Options
}

// Options are forwarded to the provider as-is; nothing here is validated.
type Options struct {
	TopP          *float64
	TopK          *int
	StopSequences []string
	Metadata      map[string]any
}

// NewCompletionRequest uses the deterministic defaults of Completion.
func NewCompletionRequest(user string, system *string) Request {
	return Request{
		UserPrompt:   user,
		SystemPrompt: system,
		MaxTokens:    DefaultMaxTokens,
		Temperature:  DefaultCompletionTemperature,
	}
}

// NewGenerateRequest uses the defaults of GenerateResponse.
func NewGenerateRequest(user string, system *string) Request {
	return Request{
		UserPrompt:   user,
		SystemPrompt: system,
		MaxTokens:    DefaultMaxTokens,
		Temperature:  DefaultGenerateTemperature,
	}
}

type Response struct {
	ID         string
	Model      string
	StopReason string
	Content    []Content
	Usage      Usage
}

type Content struct {
	Type string
	Text string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ExtractText returns the text of the first content entry, or "" when the
// envelope is nil or has no content.
func ExtractText(resp *Response) string {
	if resp == nil || len(resp.Content) == 0 {
		return ""
	}
	return resp.Content[0].Text
}

func generate(ctx context.Context, client Client, req Request) (string, error) {
	resp, err := client.Completion(ctx, req)
	if err != nil {
		return "", err
	}
	return client.ExtractText(resp), nil
}

// StripMarkdownSQL removes a surrounding ``` or ```sql fence.
func StripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}

func maxTokensOrDefault(value int) int {
	if value > 0 {
		return value
	}
	return DefaultMaxTokens
}
