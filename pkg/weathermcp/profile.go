package weathermcp

import (
	"sort"
	"strings"
	"time"

	"github.com/harunnryd/weathermcp/pkg/configutil"
	"github.com/harunnryd/weathermcp/pkg/providers/openai"
)

// Profile is one named model client configuration under llm_clients.
type Profile struct {
	Name              string `mapstructure:"-" yaml:"-"`
	Enabled           *bool  `mapstructure:"enabled" yaml:"enabled,omitempty"`
	IsDefault         bool   `mapstructure:"is_default" yaml:"is_default"`
	Host              string `mapstructure:"host" yaml:"host"`
	Endpoint          string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	CustomURL         string `mapstructure:"custom_url" yaml:"custom_url,omitempty"`
	Resource          string `mapstructure:"resource" yaml:"resource,omitempty"`
	Service           string `mapstructure:"service" yaml:"service,omitempty"`
	APIKey            string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	ModelDeploymentID string `mapstructure:"model_deployment_id" yaml:"model_deployment_id,omitempty"`
	ModelName         string `mapstructure:"model_name" yaml:"model_name,omitempty"`
	APIVersion        string `mapstructure:"api_version" yaml:"api_version,omitempty"`
	Organization      string `mapstructure:"organization" yaml:"organization,omitempty"`
	Project           string `mapstructure:"project" yaml:"project,omitempty"`
	// ToolMessages selects the transcript encoding: "structured" or "inline".
	ToolMessages string `mapstructure:"tool_messages" yaml:"tool_messages,omitempty"`
}

var profileSchema = configutil.Schema{
	Optional: []string{
		"enabled", "is_default", "host", "endpoint", "custom_url", "resource", "service",
		"api_key", "model_deployment_id", "model_name", "api_version", "organization",
		"project", "tool_messages",
	},
}

// IsEnabled treats an unset flag as enabled.
func (p Profile) IsEnabled() bool {
	return configutil.BoolValue(p.Enabled, true)
}

// AdapterConfig maps the profile onto the chat-completions adapter settings.
func (p Profile) AdapterConfig(timeout time.Duration) openai.Config {
	return openai.Config{
		Host:         p.Host,
		APIKey:       p.APIKey,
		Model:        p.ModelName,
		Deployment:   p.ModelDeploymentID,
		Endpoint:     p.Endpoint,
		CustomURL:    p.CustomURL,
		Resource:     p.Resource,
		APIVersion:   p.APIVersion,
		Organization: p.Organization,
		Project:      p.Project,
		Encoding:     p.ToolMessages,
		Timeout:      timeout,
	}
}

// DecodeProfiles validates and decodes the raw llm_clients section.
func DecodeProfiles(raw map[string]map[string]any) (map[string]Profile, error) {
	out := make(map[string]Profile, len(raw))
	for name, settings := range raw {
		if err := configutil.ValidateSettings(settings, profileSchema); err != nil {
			return nil, configError("llm_clients.%s: %w", name, err)
		}
		var p Profile
		if err := configutil.DecodeSettings(settings, &p); err != nil {
			return nil, configError("llm_clients.%s: %w", name, err)
		}
		p.Name = name
		if strings.TrimSpace(p.Host) == "" {
			p.Host = DefaultHost
		}
		p.Host = strings.ToLower(strings.TrimSpace(p.Host))
		out[name] = p
	}
	return out, nil
}

// ResolveActiveProfile picks the profile to use for host: enabled profiles on
// that host, is_default first, then by name.
func ResolveActiveProfile(profiles map[string]Profile, host string) (Profile, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	candidates := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.Host == host && p.IsEnabled() {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return Profile{}, configError("no enabled llm_clients profile for host %q", host)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].IsDefault != candidates[j].IsDefault {
			return candidates[i].IsDefault
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates[0], nil
}
