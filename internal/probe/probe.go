package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/rktik/cortex/internal/config"
)

// Result carries the response metadata of a reachable URL.
type Result struct {
	// URL is the final URL after any redirects were followed.
	URL string
	// StatusCode is the response status of the HEAD request.
	StatusCode int
	// ContentType is the response content type, possibly with parameters.
	ContentType string
	// Header is the full response header set.
	Header http.Header
}

// Image reports whether the probed resource is an image.
func (r *Result) Image() bool {
	return strings.HasPrefix(r.ContentType, "image")
}

// OK reports whether the response status permits treating the URL as live.
func (r *Result) OK() bool {
	return r.StatusCode < 400
}

// Prober checks whether a URL points at something reachable.
type Prober interface {
	// Probe issues a HEAD request against rawURL. A transport failure
	// returns an error; any HTTP response, including an error status,
	// returns a Result for the caller to judge.
	Probe(ctx context.Context, rawURL string) (*Result, error)
}

type httpProber struct {
	client *resty.Client
}

// NewHTTP returns a Prober backed by a resty client with the configured
// timeout and user agent.
// Parameters:
//   - cfg: probe section of the application config.
// Returns:
//   - Prober: HEAD-request prober.
func NewHTTP(cfg config.ProbeConfig) Prober {
	client := resty.New()
	client.SetTimeout(cfg.ProbeTimeout())
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &httpProber{client: client}
}

func (p *httpProber) Probe(ctx context.Context, rawURL string) (*Result, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		Head(rawURL)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", rawURL, err)
	}

	finalURL := rawURL
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	return &Result{
		URL:         finalURL,
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Header:      resp.Header(),
	}, nil
}
