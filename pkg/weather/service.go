package weather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/weathermcp/pkg/logging"
)

// Messages returned as tool text when NWS cannot answer. Upstream failures are
// content, not protocol errors, so the model can relay them.
const (
	MsgAlertsUnavailable   = "Unable to fetch alerts or no alerts found."
	MsgNoActiveAlerts      = "No active alerts for this state."
	MsgForecastUnavailable = "Unable to fetch forecast data for this location."
	MsgDetailedUnavailable = "Unable to fetch detailed forecast."
)

type Service struct {
	nws *Client
	log *slog.Logger
}

func NewService(nws *Client, log *slog.Logger) *Service {
	return &Service{nws: nws, log: logging.NewComponentLogger(log, "weather")}
}

// Alerts returns the active alerts for a two-letter US state code.
func (s *Service) Alerts(ctx context.Context, region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	doc, err := s.nws.Get(ctx, "/alerts/active/area/"+region)
	if err != nil || !doc.Get("features").Exists() {
		return MsgAlertsUnavailable
	}
	features := doc.Get("features").Array()
	if len(features) == 0 {
		return MsgNoActiveAlerts
	}
	alerts := make([]string, 0, len(features))
	for _, f := range features {
		alerts = append(alerts, FormatAlert(f))
	}
	s.log.Debug("alerts fetched", slog.String("region", region), slog.Int("count", len(alerts)))
	return strings.Join(alerts, alertSeparator)
}

// Forecast resolves the forecast office for a point and returns the next
// periods.
func (s *Service) Forecast(ctx context.Context, latitude, longitude float64) string {
	points, err := s.nws.Get(ctx, fmt.Sprintf("/points/%.4f,%.4f", latitude, longitude))
	if err != nil {
		return MsgForecastUnavailable
	}
	forecastURL := points.Get("properties.forecast").String()
	if forecastURL == "" {
		return MsgForecastUnavailable
	}
	forecast, err := s.nws.Get(ctx, forecastURL)
	if err != nil {
		return MsgDetailedUnavailable
	}
	periods := forecast.Get("properties.periods").Array()
	if len(periods) > forecastPeriods {
		periods = periods[:forecastPeriods]
	}
	out := make([]string, 0, len(periods))
	for _, p := range periods {
		out = append(out, FormatPeriod(p))
	}
	return strings.Join(out, alertSeparator)
}
