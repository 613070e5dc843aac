package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/coursegen/internal/config"
	"github.com/timmy/coursegen/internal/domain"
)

// Work is one bibliographic record returned by a lookup.
type Work struct {
	DOI   string
	Title string
	Years []int
}

// WorkSearcher looks up published works by author.
type WorkSearcher interface {
	SearchWorks(ctx context.Context, author string, rows int) ([]Work, error)
}

// CrossRefService queries the CrossRef REST API.
type CrossRefService struct {
	client  *resty.Client
	baseURL string
	enabled bool
}

func NewCrossRefService(cfg *config.CrossRefConfig) *CrossRefService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.crossref.org"
	}

	client := resty.New()
	client.SetTimeout(timeout)
	ua := "coursegen/1.0"
	if cfg.Mailto != "" {
		ua += " (mailto:" + cfg.Mailto + ")"
	}
	client.SetHeader("User-Agent", ua)

	return &CrossRefService{
		client:  client,
		baseURL: baseURL,
		enabled: cfg.Enabled,
	}
}

type crossRefResponse struct {
	Message struct {
		Items []crossRefItem `json:"items"`
	} `json:"message"`
}

type crossRefItem struct {
	DOI    string   `json:"DOI"`
	Title  []string `json:"title"`
	Issued struct {
		DateParts [][]interface{} `json:"date-parts"`
	} `json:"issued"`
}

// SearchWorks returns up to rows works whose author matches.
func (s *CrossRefService) SearchWorks(ctx context.Context, author string, rows int) ([]Work, error) {
	if !s.enabled {
		return nil, fmt.Errorf("%w: crossref: %w", domain.ErrBackendUnavailable, ErrNotConfigured)
	}
	if rows <= 0 {
		rows = 3
	}

	var resp crossRefResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("query.author", author).
		SetQueryParam("rows", strconv.Itoa(rows)).
		SetResult(&resp).
		Get(s.baseURL + "/works")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to call crossref: %w", domain.ErrBackendUnavailable, err)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("%w: crossref returned HTTP %d", domain.ErrBackendUnavailable, httpResp.StatusCode())
	}

	works := make([]Work, 0, len(resp.Message.Items))
	for _, item := range resp.Message.Items {
		w := Work{DOI: item.DOI}
		if len(item.Title) > 0 {
			w.Title = item.Title[0]
		}
		for _, parts := range item.Issued.DateParts {
			if len(parts) == 0 {
				continue
			}
			if y, ok := dateYear(parts[0]); ok {
				w.Years = append(w.Years, y)
			}
		}
		works = append(works, w)
	}
	return works, nil
}

// dateYear reads a date-parts year, which CrossRef sends as a number and
// occasionally as a string.
func dateYear(v interface{}) (int, bool) {
	switch y := v.(type) {
	case float64:
		return int(y), true
	case string:
		n, err := strconv.Atoi(y)
		return n, err == nil
	}
	return 0, false
}
