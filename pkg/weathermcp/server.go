package weathermcp

import (
	"log/slog"
	"time"

	"github.com/harunnryd/weathermcp/pkg/resilience"
	"github.com/harunnryd/weathermcp/pkg/runner"
	"github.com/harunnryd/weathermcp/pkg/weather"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewWeatherServer builds the weather tool server from the weather section.
func NewWeatherServer(cfg Config, log *slog.Logger) *mcpsdk.Server {
	nws := weather.NewClient(weather.ClientConfig{
		BaseURL:   cfg.Weather.BaseURL,
		UserAgent: cfg.Weather.UserAgent,
		Timeout:   time.Duration(cfg.Weather.TimeoutMS) * time.Millisecond,
		Retry:     resilience.NewRetryPolicy(cfg.Weather.Retries, time.Duration(cfg.Weather.RetryBackoffMS)*time.Millisecond),
		Logger:    log,
	})
	return weather.NewServer(weather.NewService(nws, log), runner.Version)
}
