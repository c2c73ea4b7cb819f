// Package weather serves National Weather Service alerts and forecasts as MCP
// tools.
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/weathermcp/pkg/errorsx"
	"github.com/harunnryd/weathermcp/pkg/logging"
	"github.com/harunnryd/weathermcp/pkg/resilience"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL   = "https://api.weather.gov"
	DefaultUserAgent = "weather-app/1.0"
)

// StatusError is a non-2xx NWS response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nws %s: status %d", e.URL, e.StatusCode)
}

type ClientConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryPolicy
	Logger    *slog.Logger
}

// Client fetches GeoJSON documents from the NWS API.
type Client struct {
	baseURL   string
	userAgent string
	retry     resilience.RetryPolicy
	http      *http.Client
	log       *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = retryable
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		retry:     cfg.Retry,
		http:      &http.Client{Timeout: cfg.Timeout},
		log:       logging.NewComponentLogger(cfg.Logger, "nws"),
	}
}

// Get fetches path (relative to the base URL, or absolute) and returns the
// parsed document.
func (c *Client) Get(ctx context.Context, path string) (gjson.Result, error) {
	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = c.baseURL + path
	}
	var doc gjson.Result
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		doc, err = c.fetch(ctx, url)
		return err
	})
	if err != nil {
		c.log.Warn("nws request failed", slog.String("url", url), slog.Any("error", err))
		return gjson.Result{}, errorsx.Wrap(err, errorsx.ReasonWeatherUpstream)
	}
	return doc, nil
}

func (c *Client) fetch(ctx context.Context, url string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")
	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("nws %s: invalid JSON body", url)
	}
	return gjson.ParseBytes(body), nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.StatusCode >= 500 || serr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
