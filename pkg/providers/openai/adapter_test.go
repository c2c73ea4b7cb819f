package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harunnryd/weathermcp/pkg/conversation"
	"github.com/harunnryd/weathermcp/pkg/errorsx"
	"github.com/harunnryd/weathermcp/pkg/llm"
	"github.com/harunnryd/weathermcp/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestResolveAzureURL(t *testing.T) {
	a, err := NewAdapter(Config{Host: HostAzure, APIKey: "k", Resource: "contoso", Deployment: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "https://contoso.openai.azure.com/openai/deployments/gpt-4o/chat/completions?api-version="+DefaultAzureAPIVersion, a.URL())

	_, err = NewAdapter(Config{Host: HostAzure, APIKey: "k"})
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonConfig))

	_, err = NewAdapter(Config{Host: HostOpenAI, Model: "gpt-4o"})
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonConfig), "missing api key")
}

func TestGenerateAzureRequestShape(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "2024-02-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "/openai/deployments/dep/chat/completions", r.URL.Path)
		body, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"It is sunny."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}}`)
	}))
	defer srv.Close()

	a, err := NewAdapter(Config{Host: HostAzure, APIKey: "secret", Endpoint: srv.URL, Deployment: "dep", APIVersion: "2024-02-01"})
	require.NoError(t, err)

	resp, err := a.Generate(context.Background(), llm.Context{
		System: "be brief",
		Turns:  []conversation.Turn{conversation.UserTurn{Text: "weather?"}},
		Tools:  []llm.Tool{{Name: "weather_alerts_tool", Description: "alerts"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "It is sunny.", resp.Text)
	assert.False(t, resp.HasToolCalls())
	assert.Equal(t, 16, resp.Usage.TotalTokens)

	parsed := gjson.ParseBytes(body)
	assert.Equal(t, int64(1000), parsed.Get("max_tokens").Int())
	assert.Equal(t, "system", parsed.Get("messages.0.role").String())
	assert.Equal(t, "weather?", parsed.Get("messages.1.content").String())
	assert.Equal(t, "weather_alerts_tool", parsed.Get("tools.0.function.name").String())
	assert.Equal(t, "object", parsed.Get("tools.0.function.parameters.type").String())
	assert.Equal(t, "auto", parsed.Get("tool_choice").String())
}

func TestGenerateOpenAIToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "org-1", r.Header.Get("OpenAI-Organization"))
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"Checking.","tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"weather_alerts_tool","arguments":"{\"region\":\"CA\"}"}},
			{"id":"call_2","type":"function","function":{"name":"weather_forecasts_tool","arguments":""}}
		]},"finish_reason":"tool_calls"}]}`)
	}))
	defer srv.Close()

	a, err := NewAdapter(Config{Host: HostOpenAI, APIKey: "sk-test", Model: "gpt-4o", Endpoint: srv.URL + "/v1", Organization: "org-1"})
	require.NoError(t, err)
	resp, err := a.Generate(context.Background(), llm.Context{Turns: []conversation.Turn{conversation.UserTurn{Text: "alerts?"}}})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "Checking.", resp.Text)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, map[string]any{"region": "CA"}, resp.ToolCalls[0].Arguments)
	assert.Equal(t, map[string]any{}, resp.ToolCalls[1].Arguments)
}

func TestFromProviderFormatSkipsNonFunctionCalls(t *testing.T) {
	a, err := NewAdapter(Config{Host: HostOpenAI, APIKey: "k", Model: "m"})
	require.NoError(t, err)
	resp, err := a.FromProviderFormat(`{"choices":[{"message":{"tool_calls":[
		{"id":"call_1","type":"code_interpreter","function":{"name":"run","arguments":"{not json"}},
		{"id":"call_2","type":"function","function":{"name":"weather_alerts_tool","arguments":"{\"region\":\"TX\"}"}},
		{"id":"call_3","function":{"name":"weather_forecasts_tool","arguments":"{}"}}
	]}}]}`)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "call_2", resp.ToolCalls[0].ID)
	assert.Equal(t, "call_3", resp.ToolCalls[1].ID)
}

func TestGenerateMalformedArguments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"tool_calls":[
			{"id":"call_1","function":{"name":"weather_alerts_tool","arguments":"{region: CA"}}
		]}}]}`)
	}))
	defer srv.Close()

	a, err := NewAdapter(Config{Host: HostOpenAI, APIKey: "k", Model: "m", Endpoint: srv.URL})
	require.NoError(t, err)
	_, err = a.Generate(context.Background(), llm.Context{})
	require.Error(t, err)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonLLMMalformedArgument))
	assert.False(t, llm.DefaultIsRetryable(err))
}

func TestGenerateStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		reason errorsx.ReasonCode
	}{
		{http.StatusUnauthorized, errorsx.ReasonLLMAuth},
		{http.StatusForbidden, errorsx.ReasonLLMAuth},
		{http.StatusTooManyRequests, errorsx.ReasonLLMRateLimit},
		{http.StatusInternalServerError, errorsx.ReasonLLMGenerate},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, `{"error":{"message":"nope"}}`)
		}))
		a, err := NewAdapter(Config{Host: HostOpenAI, APIKey: "k", Model: "m", Endpoint: srv.URL})
		require.NoError(t, err)
		_, err = a.Generate(context.Background(), llm.Context{})
		srv.Close()

		require.Error(t, err)
		assert.Equal(t, tc.reason, errorsx.Reason(err), "status %d", tc.status)
		assert.Contains(t, err.Error(), "nope")
		if tc.status == http.StatusTooManyRequests {
			assert.True(t, resilience.IsRateLimit(err))
		}
	}
}

func TestInlineEncodingRequest(t *testing.T) {
	a, err := NewAdapter(Config{Host: HostOpenAI, APIKey: "k", Model: "m", Encoding: llm.EncodingInline})
	require.NoError(t, err)
	payload, err := a.ToProviderFormat(llm.Context{Turns: []conversation.Turn{
		conversation.UserTurn{Text: "alerts?"},
		conversation.AssistantToolRequestTurn{Requests: []conversation.ToolCall{{ID: "c1", Name: "weather_alerts_tool", RawArguments: `{"region":"CA"}`}}},
		conversation.ToolResultTurn{InvocationID: "c1", ToolName: "weather_alerts_tool", ResultText: "none"},
	}})
	require.NoError(t, err)
	messages := payload.(map[string]any)["messages"].([]map[string]any)
	require.Len(t, messages, 3)
	assert.Equal(t, "user", messages[2]["role"])
	assert.NotContains(t, messages[1], "tool_calls")
}
