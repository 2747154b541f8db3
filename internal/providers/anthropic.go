package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arium/arium/pkg/protocol"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	anthropicAPIBase      = "https://api.anthropic.com/v1"
	anthropicAPIVersion   = "2023-06-01"
)

// AnthropicProvider implements Provider using the Anthropic Messages
// API via net/http: single-shot, non-streaming Generate mapped onto
// protocol.ModelResponse.
type AnthropicProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	retryConfig  RetryConfig
}

type AnthropicOption func(*AnthropicProvider)

func WithAnthropicModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) { p.defaultModel = model }
}

func WithAnthropicBaseURL(baseURL string) AnthropicOption {
	return func(p *AnthropicProvider) {
		if baseURL != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		apiKey:       apiKey,
		baseURL:      anthropicAPIBase,
		defaultModel: defaultAnthropicModel,
		client:       &http.Client{Timeout: 120 * time.Second},
		retryConfig:  DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

type anthropicContentBlock struct {
	Type  string                 `json:"type"`
	Text  string                 `json:"text,omitempty"`
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *AnthropicProvider) buildBody(model string, prompt Prompt, opts Options) map[string]interface{} {
	var system string
	var messages []map[string]interface{}
	for _, m := range prompt.Messages {
		switch m.Role {
		case "system":
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case "tool":
			messages = append(messages, map[string]interface{}{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "tool_result", "tool_use_id": m.ToolCallID, "content": m.Content},
				},
			})
		default:
			messages = append(messages, map[string]interface{}{"role": m.Role, "content": m.Content})
		}
	}

	body := map[string]interface{}{
		"model":      model,
		"messages":   messages,
		"max_tokens": 4096,
	}
	if system != "" {
		body["system"] = system
	}
	if opts.MaxTokens > 0 {
		body["max_tokens"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		body["temperature"] = opts.Temperature
	}
	if len(opts.Tools) > 0 {
		var tools []map[string]interface{}
		for _, t := range opts.Tools {
			tools = append(tools, map[string]interface{}{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.InputSchema,
			})
		}
		body["tools"] = tools
		switch opts.ToolChoice.Mode {
		case "none":
			body["tool_choice"] = map[string]interface{}{"type": "none"}
		case "tool":
			body["tool_choice"] = map[string]interface{}{"type": "tool", "name": opts.ToolChoice.Tool}
		default:
			body["tool_choice"] = map[string]interface{}{"type": "auto"}
		}
	}
	return body
}

// Generate sends one request and maps the result to the tagged
// ModelResponse union: a tool_use content block becomes {type:"tool"},
// anything else becomes {type:"final"}.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt Prompt, opts Options) (protocol.ModelResponse, error) {
	model := p.defaultModel
	body := p.buildBody(model, prompt, opts)

	return RetryDo(ctx, p.retryConfig, func() (protocol.ModelResponse, error) {
		return p.doRequest(ctx, body)
	})
}

func (p *AnthropicProvider) doRequest(ctx context.Context, body map[string]interface{}) (protocol.ModelResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorPermanent, Err: fmt.Errorf("anthropic: marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorPermanent, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorTransient, Err: fmt.Errorf("anthropic: request: %w", err)}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorTransient, Err: fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, data)}
	}
	if resp.StatusCode >= 400 {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorPermanent, Err: fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, data)}
	}

	var ar anthropicResponse
	if err := json.Unmarshal(data, &ar); err != nil {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorPermanent, Err: fmt.Errorf("anthropic: decode response: %w", err)}
	}
	if ar.Error != nil {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorPermanent, Err: fmt.Errorf("anthropic: %s: %s", ar.Error.Type, ar.Error.Message)}
	}

	usage := &protocol.Usage{
		PromptTokens:     ar.Usage.InputTokens,
		CompletionTokens: ar.Usage.OutputTokens,
		TotalTokens:      ar.Usage.InputTokens + ar.Usage.OutputTokens,
	}

	var text string
	for _, block := range ar.Content {
		switch block.Type {
		case "tool_use":
			return protocol.ModelResponse{
				Type:      protocol.ModelResponseTool,
				Tool:      block.Name,
				Arguments: block.Input,
				Usage:     usage,
			}, nil
		case "text":
			text += block.Text
		}
	}
	return protocol.ModelResponse{Type: protocol.ModelResponseFinal, Content: text, Usage: usage}, nil
}
