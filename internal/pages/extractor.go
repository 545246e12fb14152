package pages

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/rktik/cortex/internal/config"
)

// Page is the metadata an extractor returns for a web page.
type Page struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Extractor fetches page metadata for a URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (*Page, error)
}

type httpExtractor struct {
	client  *resty.Client
	baseURL string
}

// NewHTTP returns an Extractor that calls the configured extraction
// service over HTTP.
// Parameters:
//   - cfg: extractor section of the application config.
// Returns:
//   - Extractor: remote page-metadata client.
func NewHTTP(cfg config.ExtractorConfig) Extractor {
	client := resty.New()
	client.SetTimeout(cfg.ExtractorTimeout())
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &httpExtractor{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

func (e *httpExtractor) Extract(ctx context.Context, url string) (*Page, error) {
	var page Page
	resp, err := e.client.R().
		SetContext(ctx).
		SetQueryParam("url", url).
		SetResult(&page).
		Get(e.baseURL + "/extract")
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", url, err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("extract %s: status %d", url, resp.StatusCode())
	}

	return &page, nil
}
