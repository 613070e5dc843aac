package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/coursegen/internal/config"
	"github.com/timmy/coursegen/internal/domain"
)

// TextGenerator is the generative-text backend.
type TextGenerator interface {
	// Complete sends one system/user exchange and returns the reply text.
	// jsonMode asks the backend for a JSON object response.
	Complete(ctx context.Context, system, user string, jsonMode bool) (string, error)
}

// ErrNotConfigured is returned by clients built without credentials.
var ErrNotConfigured = errors.New("service not configured")

// LLMService calls an OpenAI-compatible chat completion endpoint.
type LLMService struct {
	client      *resty.Client
	model       string
	endpoint    string
	temperature float64
	maxTokens   int
	enabled     bool
}

// NewLLMService creates a chat client.
// Parameters:
//   - cfg: model configuration; a config without API key yields a disabled client.
//
// Returns:
//   - *LLMService: client whose Complete fails with ErrNotConfigured when disabled.
func NewLLMService(cfg *config.ModelConfig) *LLMService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	return &LLMService{
		client:      client,
		model:       cfg.Model,
		endpoint:    openAIBaseURL(cfg.BaseURL) + "/chat/completions",
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		enabled:     cfg.Enabled(),
	}
}

// GetModel returns the model name being used.
func (s *LLMService) GetModel() string {
	return s.model
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete implements TextGenerator. Every failure wraps domain.ErrBackendUnavailable.
func (s *LLMService) Complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	if !s.enabled {
		return "", fmt.Errorf("%w: llm: %w", domain.ErrBackendUnavailable, ErrNotConfigured)
	}

	req := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}
	if jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: failed to call chat API: %w", domain.ErrBackendUnavailable, err)
	}

	if httpResp.IsError() {
		return "", fmt.Errorf("%w: chat API returned error: %s",
			domain.ErrBackendUnavailable, describeHTTPError(httpResp, resp.Error))
	}
	if resp.Error != nil {
		return "", fmt.Errorf("%w: chat API error: %s", domain.ErrBackendUnavailable, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in chat response (status: %d)",
			domain.ErrBackendUnavailable, httpResp.StatusCode())
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty chat response", domain.ErrBackendUnavailable)
	}
	return content, nil
}

func openAIBaseURL(baseURL string) string {
	if baseURL == "" {
		return "https://api.openai.com/v1"
	}
	return strings.TrimRight(baseURL, "/")
}

func describeHTTPError(httpResp *resty.Response, apiErr *apiError) string {
	if apiErr != nil && apiErr.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), apiErr.Message)
	}
	body := string(httpResp.Body())
	if len(body) > 300 {
		body = body[:300]
	}
	return fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), body)
}
