// Command mcp-client is a conversational client that lets a chat model call
// the tools of a local MCP server.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/harunnryd/weathermcp/pkg/errorsx"
	"github.com/harunnryd/weathermcp/pkg/weathermcp"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yaml"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "mcp-client",
	Short:         "Chat with a model that can call MCP server tools",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log_level (debug, info, warn, error)")
	rootCmd.AddCommand(chatCmd, toolsCmd, configCmd)
}

// loadConfig reads the config file. The default path is optional; an
// explicitly passed one must exist.
func loadConfig(cmd *cobra.Command) (weathermcp.Config, error) {
	path := configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	cfg, err := weathermcp.LoadConfig(path)
	if err != nil {
		return weathermcp.Config{}, err
	}
	if strings.TrimSpace(logLevel) != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errorsx.Describe(err))
		os.Exit(1)
	}
}
