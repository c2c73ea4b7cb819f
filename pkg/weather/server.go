package weather

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"
)

const (
	ServerName        = "weather-server"
	AlertsToolName    = "weather_alerts_tool"
	ForecastsToolName = "weather_forecasts_tool"
)

var stateCode = regexp.MustCompile(`^[A-Za-z]{2}$`)

// NewServer builds the MCP server exposing the weather tools.
func NewServer(svc *Service, version string) *mcpsdk.Server {
	if version == "" {
		version = "dev"
	}
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: version}, nil)
	server.AddTool(&mcpsdk.Tool{
		Name:        AlertsToolName,
		Description: "Get weather alerts for a US state.\n\nArgs:\n    region: Two-letter US state code (e.g. CA, NY)",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"region": map[string]any{"type": "string", "description": "Two-letter US state code (e.g. CA, NY)"},
			},
			"required": []any{"region"},
		},
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := gjson.ParseBytes(req.Params.Arguments)
		region := strings.TrimSpace(args.Get("region").String())
		if !stateCode.MatchString(region) {
			return errorResult(fmt.Sprintf("invalid region %q: expected a two-letter US state code", region)), nil
		}
		return textResult(svc.Alerts(ctx, region)), nil
	})
	server.AddTool(&mcpsdk.Tool{
		Name:        ForecastsToolName,
		Description: "Get weather forecast for a location.\n\nArgs:\n    latitude: Latitude of the location\n    longitude: Longitude of the location",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"latitude":  map[string]any{"type": "number", "description": "Latitude of the location"},
				"longitude": map[string]any{"type": "number", "description": "Longitude of the location"},
			},
			"required": []any{"latitude", "longitude"},
		},
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := gjson.ParseBytes(req.Params.Arguments)
		lat, err := coordinate(args.Get("latitude"), "latitude", 90)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		lon, err := coordinate(args.Get("longitude"), "longitude", 180)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return textResult(svc.Forecast(ctx, lat, lon)), nil
	})
	svc.log.Debug("weather tools registered", slog.String("server", ServerName))
	return server
}

// Serve runs the server over stdio until the client disconnects or ctx is done.
func Serve(ctx context.Context, server *mcpsdk.Server) error {
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

// coordinate accepts JSON numbers and numeric strings.
func coordinate(v gjson.Result, name string, limit float64) (float64, error) {
	switch v.Type {
	case gjson.Number:
	case gjson.String:
		if !gjson.Valid(v.Str) || gjson.Parse(v.Str).Type != gjson.Number {
			return 0, fmt.Errorf("%s must be a number, got %q", name, v.Str)
		}
	default:
		return 0, fmt.Errorf("%s is required and must be a number", name)
	}
	f := v.Float()
	if f < -limit || f > limit {
		return 0, fmt.Errorf("%s %v out of range", name, f)
	}
	return f, nil
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}}}
}

func errorResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{IsError: true, Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}}}
}
