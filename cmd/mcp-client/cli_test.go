package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/harunnryd/weathermcp/pkg/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configPath = defaultConfigPath
		logLevel = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigShowMasksKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm_clients:
  primary:
    api_key: abcdefghijklmnop
    resource: contoso
`), 0o644))

	out, err := execute(t, "config", "show", "--config", path, "--log-level", "debug")
	require.NoError(t, err)
	assert.NotContains(t, out, "abcdefghijklmnop")
	assert.Contains(t, out, "****mnop")
	assert.Contains(t, out, "log_level: debug")
}

func TestExplicitConfigMustExist(t *testing.T) {
	_, err := execute(t, "config", "show", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestChatRejectsUnsupportedServerBeforeLaunch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  host: mock
llm_clients:
  demo:
    host: mock
log_level: error
`), 0o644))

	_, err := execute(t, "chat", "server.sh", "--config", path)
	require.Error(t, err)
	var cerr *mcp.ConnectionError
	assert.ErrorAs(t, err, &cerr)
}

func TestChatRequiresServerPath(t *testing.T) {
	_, err := execute(t, "chat")
	require.Error(t, err)
}
