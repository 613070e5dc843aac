package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/coursegen/internal/config"
	"github.com/timmy/coursegen/internal/domain"
)

// ImageGenerator produces one image for a textual description.
type ImageGenerator interface {
	// Generate returns a data URL or hosted URL. An empty string means no
	// image was produced.
	Generate(ctx context.Context, description string) (string, error)
}

// ImageService calls an OpenAI-compatible image generation endpoint.
type ImageService struct {
	client   *resty.Client
	model    string
	size     string
	endpoint string
	enabled  bool
}

// NewImageService creates an image client. Without an API key it is disabled.
func NewImageService(cfg *config.ModelConfig) *ImageService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	size := cfg.Size
	if size == "" {
		size = "1024x1024"
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	return &ImageService{
		client:   client,
		model:    cfg.Model,
		size:     size,
		endpoint: openAIBaseURL(cfg.BaseURL) + "/images/generations",
		enabled:  cfg.Enabled(),
	}
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	N      int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

// Generate implements ImageGenerator.
func (s *ImageService) Generate(ctx context.Context, description string) (string, error) {
	if !s.enabled {
		return "", fmt.Errorf("%w: image: %w", domain.ErrBackendUnavailable, ErrNotConfigured)
	}

	req := imageRequest{
		Model:  s.model,
		Prompt: imagePrompt(description),
		Size:   s.size,
		N:      1,
	}

	var resp imageResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: failed to call image API: %w", domain.ErrBackendUnavailable, err)
	}
	if httpResp.IsError() {
		return "", fmt.Errorf("%w: image API returned error: %s",
			domain.ErrBackendUnavailable, describeHTTPError(httpResp, resp.Error))
	}
	if len(resp.Data) == 0 {
		return "", nil
	}

	item := resp.Data[0]
	if item.B64JSON != "" {
		return "data:image/png;base64," + item.B64JSON, nil
	}
	return item.URL, nil
}

func imagePrompt(description string) string {
	return "Clean educational illustration for a textbook chapter, no text overlays, " +
		"flat colors, white background. " + description
}
