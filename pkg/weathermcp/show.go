package weathermcp

import (
	"io"
	"strings"

	"github.com/harunnryd/weathermcp/pkg/redact"
	"gopkg.in/yaml.v3"
)

var secretKeyHints = []string{"key", "secret", "token", "password"}

// WriteYAML renders the effective configuration. Credential-looking
// profile fields are always masked.
func WriteYAML(w io.Writer, cfg Config) error {
	out := cfg
	out.Clients = make(map[string]map[string]any, len(cfg.Clients))
	for name, settings := range cfg.Clients {
		masked := make(map[string]any, len(settings))
		for k, v := range settings {
			if s, ok := v.(string); ok && isSecretKey(k) {
				masked[k] = redact.Secret(s)
				continue
			}
			masked[k] = v
		}
		out.Clients[name] = masked
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, hint := range secretKeyHints {
		if strings.Contains(key, hint) {
			return true
		}
	}
	return false
}
