package weather

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harunnryd/weathermcp/pkg/logging"
	"github.com/harunnryd/weathermcp/pkg/mcp"
	"github.com/harunnryd/weathermcp/pkg/resilience"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/goleak"
)

const alertsBody = `{"features":[
	{"properties":{"event":"Flood Warning","areaDesc":"Sacramento","severity":"Severe","description":"River rising","instruction":"Move to higher ground"}},
	{"properties":{"event":"Wind Advisory","areaDesc":"Fresno","severity":null}}
]}`

func newNWS(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		http.DefaultTransport.(*http.Transport).CloseIdleConnections()
	})
	client := NewClient(ClientConfig{
		BaseURL: srv.URL,
		Retry:   resilience.NewRetryPolicy(2, time.Millisecond),
		Logger:  logging.Discard(),
	})
	return NewService(client, logging.Discard())
}

func TestAlertsFormatting(t *testing.T) {
	svc := newNWS(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/alerts/active/area/CA", r.URL.Path)
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "application/geo+json", r.Header.Get("Accept"))
		_, _ = io.WriteString(w, alertsBody)
	})

	out := svc.Alerts(context.Background(), "ca")
	blocks := strings.Split(out, alertSeparator)
	require.Len(t, blocks, 2)
	assert.Contains(t, blocks[0], "Event: Flood Warning")
	assert.Contains(t, blocks[0], "Instructions: Move to higher ground")
	assert.Contains(t, blocks[1], "Severity: Unknown")
	assert.Contains(t, blocks[1], "Description: No description available")
	assert.Contains(t, blocks[1], "Instructions: No specific instructions provided")
}

func TestAlertsEmptyAndUnavailable(t *testing.T) {
	svc := newNWS(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"features":[]}`)
	})
	assert.Equal(t, MsgNoActiveAlerts, svc.Alerts(context.Background(), "NV"))

	var calls atomic.Int32
	svc = newNWS(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	assert.Equal(t, MsgAlertsUnavailable, svc.Alerts(context.Background(), "ZZ"))
	assert.Equal(t, int32(1), calls.Load(), "4xx responses are not retried")
}

func TestNWSRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	svc := newNWS(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"features":[]}`)
	})
	assert.Equal(t, MsgNoActiveAlerts, svc.Alerts(context.Background(), "CA"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestForecastFirstFivePeriods(t *testing.T) {
	var srvURL string
	svc := newNWS(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/points/38.5816,-121.4944":
			_, _ = io.WriteString(w, `{"properties":{"forecast":"`+srvURL+`/gridpoints/STO/1,2/forecast"}}`)
		case "/gridpoints/STO/1,2/forecast":
			var periods []string
			for _, name := range []string{"Today", "Tonight", "Monday", "Monday Night", "Tuesday", "Tuesday Night"} {
				periods = append(periods, `{"name":"`+name+`","temperature":75,"temperatureUnit":"F","windSpeed":"5 mph","windDirection":"NW","detailedForecast":"Sunny."}`)
			}
			_, _ = io.WriteString(w, `{"properties":{"periods":[`+strings.Join(periods, ",")+`]}}`)
		default:
			http.NotFound(w, r)
		}
	})
	srvURL = svc.nws.baseURL

	out := svc.Forecast(context.Background(), 38.5816, -121.4944)
	blocks := strings.Split(out, alertSeparator)
	require.Len(t, blocks, 5)
	assert.Contains(t, blocks[0], "Today:")
	assert.Contains(t, blocks[0], "Temperature: 75°F")
	assert.Contains(t, blocks[0], "Wind: 5 mph NW")
	assert.NotContains(t, out, "Tuesday Night")
}

func TestForecastUnavailable(t *testing.T) {
	svc := newNWS(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/points/") {
			_, _ = io.WriteString(w, `{"properties":{}}`)
			return
		}
		http.NotFound(w, r)
	})
	assert.Equal(t, MsgForecastUnavailable, svc.Forecast(context.Background(), 1, 2))
}

func TestServerToolsOverMCP(t *testing.T) {
	// Registered first so it runs after the NWS server cleanup.
	t.Cleanup(func() { goleak.VerifyNone(t, goleak.IgnoreCurrent()) })
	svc := newNWS(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, alertsBody)
	})
	server := NewServer(svc, "test")

	ctx := context.Background()
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	session, err := mcp.ConnectTransport(ctx, clientTransport, mcp.Options{Logger: logging.Discard()})
	require.NoError(t, err)
	defer func() {
		_ = session.Close()
		_ = ss.Close()
		_ = ss.Wait()
	}()

	tools, err := session.ListTools(ctx)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name] = true
	}
	assert.True(t, names[AlertsToolName])
	assert.True(t, names[ForecastsToolName])

	res, err := session.Invoke(ctx, AlertsToolName, map[string]any{"region": "CA"})
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Event: Flood Warning")

	_, err = session.Invoke(ctx, AlertsToolName, map[string]any{"region": "California"})
	var terr *mcp.ToolExecutionError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, err.Error(), "two-letter")

	_, err = session.Invoke(ctx, ForecastsToolName, map[string]any{"latitude": "north", "longitude": 1})
	require.ErrorAs(t, err, &terr)
}

func TestCoordinate(t *testing.T) {
	cases := []struct {
		json string
		ok   bool
	}{
		{`{"v":38.5}`, true},
		{`{"v":"38.5"}`, true},
		{`{"v":"north"}`, false},
		{`{"v":91}`, false},
		{`{}`, false},
	}
	for _, tc := range cases {
		_, err := coordinate(gjson.Get(tc.json, "v"), "latitude", 90)
		assert.Equal(t, tc.ok, err == nil, tc.json)
	}
}
