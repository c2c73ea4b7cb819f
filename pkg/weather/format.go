package weather

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	alertSeparator  = "\n---\n"
	forecastPeriods = 5
)

// FormatAlert renders one alert feature.
func FormatAlert(feature gjson.Result) string {
	props := feature.Get("properties")
	return fmt.Sprintf(`
Event: %s
Area: %s
Severity: %s
Description: %s
Instructions: %s
`,
		stringOr(props.Get("event"), "Unknown"),
		stringOr(props.Get("areaDesc"), "Unknown"),
		stringOr(props.Get("severity"), "Unknown"),
		stringOr(props.Get("description"), "No description available"),
		stringOr(props.Get("instruction"), "No specific instructions provided"),
	)
}

// FormatPeriod renders one forecast period.
func FormatPeriod(period gjson.Result) string {
	return fmt.Sprintf(`
%s:
Temperature: %s°%s
Wind: %s %s
Forecast: %s
`,
		period.Get("name").String(),
		period.Get("temperature").String(),
		period.Get("temperatureUnit").String(),
		period.Get("windSpeed").String(),
		period.Get("windDirection").String(),
		period.Get("detailedForecast").String(),
	)
}

func stringOr(v gjson.Result, fallback string) string {
	if !v.Exists() || v.Type == gjson.Null || strings.TrimSpace(v.String()) == "" {
		return fallback
	}
	return v.String()
}
