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
	defaultOpenAIModel = "gpt-4o-mini"
	openAIAPIBase      = "https://api.openai.com/v1"
)

// OpenAIProvider implements Provider against the OpenAI-compatible
// chat completions schema (also used by Ollama and most local
// gateways).
type OpenAIProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	retryConfig  RetryConfig
}

type OpenAIOption func(*OpenAIProvider)

func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) { p.defaultModel = model }
}

func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if baseURL != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:       apiKey,
		baseURL:      openAIAPIBase,
		defaultModel: defaultOpenAIModel,
		client:       &http.Client{Timeout: 120 * time.Second},
		retryConfig:  DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

type openAIToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *OpenAIProvider) buildBody(model string, prompt Prompt, opts Options) map[string]interface{} {
	var messages []map[string]interface{}
	for _, m := range prompt.Messages {
		msg := map[string]interface{}{"role": m.Role, "content": m.Content}
		if m.ToolCallID != "" {
			msg["tool_call_id"] = m.ToolCallID
			msg["role"] = "tool"
		}
		messages = append(messages, msg)
	}

	body := map[string]interface{}{"model": model, "messages": messages}
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
				"type": "function",
				"function": map[string]interface{}{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.InputSchema,
				},
			})
		}
		body["tools"] = tools
		switch opts.ToolChoice.Mode {
		case "none":
			body["tool_choice"] = "none"
		case "tool":
			body["tool_choice"] = map[string]interface{}{
				"type":     "function",
				"function": map[string]interface{}{"name": opts.ToolChoice.Tool},
			}
		default:
			body["tool_choice"] = "auto"
		}
	}
	return body
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt Prompt, opts Options) (protocol.ModelResponse, error) {
	body := p.buildBody(p.defaultModel, prompt, opts)
	return RetryDo(ctx, p.retryConfig, func() (protocol.ModelResponse, error) {
		return p.doRequest(ctx, body)
	})
}

func (p *OpenAIProvider) doRequest(ctx context.Context, body map[string]interface{}) (protocol.ModelResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorPermanent, Err: fmt.Errorf("openai: marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorPermanent, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorTransient, Err: fmt.Errorf("openai: request: %w", err)}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorTransient, Err: fmt.Errorf("openai: status %d: %s", resp.StatusCode, data)}
	}
	if resp.StatusCode >= 400 {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorPermanent, Err: fmt.Errorf("openai: status %d: %s", resp.StatusCode, data)}
	}

	var or openAIResponse
	if err := json.Unmarshal(data, &or); err != nil {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorPermanent, Err: fmt.Errorf("openai: decode response: %w", err)}
	}
	if or.Error != nil {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorPermanent, Err: fmt.Errorf("openai: %s: %s", or.Error.Type, or.Error.Message)}
	}
	if len(or.Choices) == 0 {
		return protocol.ModelResponse{}, &AdapterError{Kind: ErrorPermanent, Err: fmt.Errorf("openai: empty choices")}
	}

	usage := &protocol.Usage{
		PromptTokens:     or.Usage.PromptTokens,
		CompletionTokens: or.Usage.CompletionTokens,
		TotalTokens:      or.Usage.TotalTokens,
	}

	choice := or.Choices[0]
	if len(choice.Message.ToolCalls) > 0 {
		tc := choice.Message.ToolCalls[0]
		args := map[string]interface{}{}
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		return protocol.ModelResponse{
			Type:      protocol.ModelResponseTool,
			Tool:      tc.Function.Name,
			Arguments: args,
			Usage:     usage,
		}, nil
	}
	return protocol.ModelResponse{Type: protocol.ModelResponseFinal, Content: choice.Message.Content, Usage: usage}, nil
}
