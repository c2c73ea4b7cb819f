package metrics

// Event names emitted by the client.
const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventToolsListed  = "tools_listed"

	EventQueryStart  = "query_start"
	EventQueryDone   = "query_done"
	EventQueryFailed = "query_failed"

	EventModelRequest  = "model_request"
	EventModelResponse = "model_response"
	EventToolCall      = "tool_call"
	EventToolResult    = "tool_result"

	EventRateLimit     = "llm_rate_limit"
	EventBreakerOpen   = "llm_breaker_open"
	EventBreakerClose  = "llm_breaker_close"
	EventBreakerDenied = "llm_breaker_denied"
)

// Tag keys shared by emitters and observers.
const (
	TagSessionID = "session_id"
	TagQueryID   = "query_id"
	TagTool      = "tool"
	TagProvider  = "provider"
)
