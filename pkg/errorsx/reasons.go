package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonConfig ReasonCode = "config"

	ReasonMCPConnect   ReasonCode = "mcp_connect"
	ReasonMCPListTools ReasonCode = "mcp_list_tools"
	ReasonMCPToolCall  ReasonCode = "mcp_tool_call"

	ReasonLLMGenerate          ReasonCode = "llm_generate"
	ReasonLLMAuth              ReasonCode = "llm_auth"
	ReasonLLMRateLimit         ReasonCode = "llm_rate_limit"
	ReasonLLMTimeout           ReasonCode = "llm_timeout"
	ReasonLLMMalformedArgument ReasonCode = "llm_malformed_arguments"

	ReasonLoopLimit  ReasonCode = "loop_limit"
	ReasonTranscript ReasonCode = "transcript"

	ReasonWeatherUpstream ReasonCode = "weather_upstream"
)
