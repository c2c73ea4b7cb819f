// Package weathermcp wires configuration, the model provider, the tool server
// session and the orchestrator into a runnable client.
package weathermcp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/harunnryd/weathermcp/pkg/errorsx"
	"github.com/harunnryd/weathermcp/pkg/orchestrator"
	"github.com/harunnryd/weathermcp/pkg/shell"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	EnvPrefix        = "WEATHERMCP"
	profileEnvPrefix = "LLM_CLIENTS__"
	DefaultHost      = "aoai"
)

type Config struct {
	LLM           LLMConfig                 `mapstructure:"llm" yaml:"llm"`
	Clients       map[string]map[string]any `mapstructure:"llm_clients" yaml:"llm_clients"`
	Orchestrator  OrchestratorConfig        `mapstructure:"orchestrator" yaml:"orchestrator"`
	MCP           MCPConfig                 `mapstructure:"mcp" yaml:"mcp"`
	Shell         ShellConfig               `mapstructure:"shell" yaml:"shell"`
	Weather       WeatherConfig             `mapstructure:"weather" yaml:"weather"`
	LogLevel      string                    `mapstructure:"log_level" yaml:"log_level"`
	LogFormat     string                    `mapstructure:"log_format" yaml:"log_format"`
	Observability ObservabilityConfig       `mapstructure:"observability" yaml:"observability"`
	Privacy       PrivacyConfig             `mapstructure:"privacy" yaml:"privacy"`
}

type LLMConfig struct {
	// Host selects which profiles are eligible ("aoai", "openai", "mock").
	Host      string        `mapstructure:"host" yaml:"host"`
	TimeoutMS int           `mapstructure:"timeout_ms" yaml:"timeout_ms"`
	Retry     RetryConfig   `mapstructure:"retry" yaml:"retry"`
	Circuit   CircuitConfig `mapstructure:"circuit" yaml:"circuit"`
}

type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelayMS int `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMS  int `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
}

type CircuitConfig struct {
	Threshold  int `mapstructure:"threshold" yaml:"threshold"`
	CooldownMS int `mapstructure:"cooldown_ms" yaml:"cooldown_ms"`
}

type OrchestratorConfig struct {
	MaxRounds      int    `mapstructure:"max_rounds" yaml:"max_rounds"`
	MaxTokens      int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	ModelTimeoutMS int    `mapstructure:"model_timeout_ms" yaml:"model_timeout_ms"`
	ToolTimeoutMS  int    `mapstructure:"tool_timeout_ms" yaml:"tool_timeout_ms"`
	Memory         string `mapstructure:"memory" yaml:"memory"`
	RefreshTools   bool   `mapstructure:"refresh_tools" yaml:"refresh_tools"`
	SystemPrompt   string `mapstructure:"system_prompt" yaml:"system_prompt"`
}

type MCPConfig struct {
	Python      string   `mapstructure:"python" yaml:"python"`
	Node        string   `mapstructure:"node" yaml:"node"`
	Env         []string `mapstructure:"env" yaml:"env"`
	ConnectMS   int      `mapstructure:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	ClientName  string   `mapstructure:"client_name" yaml:"client_name"`
	ServerQuiet bool     `mapstructure:"server_quiet" yaml:"server_quiet"`
}

type ShellConfig struct {
	Prompt string `mapstructure:"prompt" yaml:"prompt"`
	Render string `mapstructure:"render" yaml:"render"`
	Color  bool   `mapstructure:"color" yaml:"color"`
	Banner bool   `mapstructure:"banner" yaml:"banner"`
}

type WeatherConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent"`
	TimeoutMS      int    `mapstructure:"timeout_ms" yaml:"timeout_ms"`
	Retries        int    `mapstructure:"retries" yaml:"retries"`
	RetryBackoffMS int    `mapstructure:"retry_backoff_ms" yaml:"retry_backoff_ms"`
}

type ObservabilityConfig struct {
	ArtifactsDir  string `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
	// EventsFile streams every event as JSONL; "-" means stderr.
	EventsFile    string `mapstructure:"events_file" yaml:"events_file"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

type PrivacyConfig struct {
	RedactSecrets bool `mapstructure:"redact_secrets" yaml:"redact_secrets"`
}

// ConfigError reports an unusable configuration. It is fatal at startup.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "config: " + e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

func configError(format string, args ...any) error {
	return errorsx.Wrap(&ConfigError{Err: fmt.Errorf(format, args...)}, errorsx.ReasonConfig)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.host", DefaultHost)
	v.SetDefault("llm.timeout_ms", 60000)
	v.SetDefault("llm.retry.max_attempts", 3)
	v.SetDefault("llm.retry.base_delay_ms", 200)
	v.SetDefault("llm.retry.max_delay_ms", 2000)
	v.SetDefault("llm.circuit.threshold", 3)
	v.SetDefault("llm.circuit.cooldown_ms", 30000)
	v.SetDefault("orchestrator.max_rounds", orchestrator.DefaultMaxRounds)
	v.SetDefault("orchestrator.max_tokens", orchestrator.DefaultMaxTokens)
	v.SetDefault("orchestrator.model_timeout_ms", 60000)
	v.SetDefault("orchestrator.tool_timeout_ms", 30000)
	v.SetDefault("orchestrator.memory", string(orchestrator.MemoryPerQuery))
	v.SetDefault("orchestrator.refresh_tools", true)
	v.SetDefault("orchestrator.system_prompt", "")
	v.SetDefault("mcp.python", "python")
	v.SetDefault("mcp.node", "node")
	v.SetDefault("mcp.connect_timeout_ms", 30000)
	v.SetDefault("mcp.client_name", "weathermcp-client")
	v.SetDefault("mcp.server_quiet", false)
	v.SetDefault("shell.prompt", shell.DefaultPrompt)
	v.SetDefault("shell.render", shell.RenderPlain)
	v.SetDefault("shell.color", true)
	v.SetDefault("shell.banner", true)
	v.SetDefault("weather.base_url", "https://api.weather.gov")
	v.SetDefault("weather.user_agent", "weather-app/1.0")
	v.SetDefault("weather.timeout_ms", 30000)
	v.SetDefault("weather.retries", 2)
	v.SetDefault("weather.retry_backoff_ms", 200)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.events_file", "")
	v.SetDefault("observability.retention_days", 0)
	v.SetDefault("privacy.redact_secrets", true)
}

// LoadConfig reads path (YAML), applies defaults, a sibling or working-dir
// .env file, WEATHERMCP_* overrides and LLM_CLIENTS__<NAME>__<FIELD> profile
// variables, then expands ${VAR} references. An empty path loads defaults and
// environment only.
func LoadConfig(path string) (Config, error) {
	loadDotEnv(path)

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, configError("read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, configError("unmarshal: %w", err)
	}
	cfg.Clients = mergeProfiles(cfg.Clients, profilesFromEnv(os.Environ()))

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.Host) == "" {
		return configError("llm.host is required")
	}
	if c.Orchestrator.MaxRounds <= 0 {
		return configError("orchestrator.max_rounds must be positive, got %d", c.Orchestrator.MaxRounds)
	}
	if c.Orchestrator.MaxTokens <= 0 {
		return configError("orchestrator.max_tokens must be positive, got %d", c.Orchestrator.MaxTokens)
	}
	if _, err := orchestrator.ParseMemoryPolicy(c.Orchestrator.Memory); err != nil {
		return configError("orchestrator.memory: %w", err)
	}
	switch strings.ToLower(c.Shell.Render) {
	case "", shell.RenderPlain, shell.RenderMarkdown:
	default:
		return configError("shell.render must be %q or %q, got %q", shell.RenderPlain, shell.RenderMarkdown, c.Shell.Render)
	}
	return nil
}

func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		if sibling := filepath.Join(filepath.Dir(configPath), ".env"); sibling != ".env" {
			candidates = append([]string{sibling}, candidates...)
		}
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = gotenv.Load(p)
		}
	}
}

// profilesFromEnv collects LLM_CLIENTS__<NAME>__<FIELD>=value entries.
func profilesFromEnv(environ []string) map[string]map[string]any {
	out := map[string]map[string]any{}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(strings.ToUpper(key), profileEnvPrefix) {
			continue
		}
		name, field, ok := strings.Cut(key[len(profileEnvPrefix):], "__")
		if !ok || name == "" || field == "" {
			continue
		}
		name = strings.ToLower(name)
		if out[name] == nil {
			out[name] = map[string]any{}
		}
		out[name][strings.ToLower(field)] = value
	}
	return out
}

// mergeProfiles overlays env profiles onto file profiles; env wins per field.
func mergeProfiles(base, overlay map[string]map[string]any) map[string]map[string]any {
	if base == nil {
		base = map[string]map[string]any{}
	}
	for name, fields := range overlay {
		target := base[name]
		if target == nil {
			target = map[string]any{}
			base[name] = target
		}
		for k, v := range fields {
			target[k] = v
		}
	}
	return base
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	for name, settings := range cfg.Clients {
		cfg.Clients[name] = expandSettings(settings)
	}
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	var cerr *ConfigError
	return errors.As(err, &cerr)
}
