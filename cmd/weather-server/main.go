// Command weather-server exposes National Weather Service alerts and
// forecasts as MCP tools over stdio.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/weathermcp/pkg/errorsx"
	"github.com/harunnryd/weathermcp/pkg/logging"
	"github.com/harunnryd/weathermcp/pkg/runner"
	"github.com/harunnryd/weathermcp/pkg/weather"
	"github.com/harunnryd/weathermcp/pkg/weathermcp"
	"github.com/spf13/cobra"
)

var (
	configPath string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "weather-server",
	Short: "Serve weather_alerts_tool and weather_forecasts_tool over stdio",
	Long: `Serve NWS weather tools to an MCP client over stdin/stdout.
Stdout carries the protocol stream; logs and the banner go to stderr.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file (weather and logging sections)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the banner")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := weathermcp.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log := logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	if !quiet && !cfg.MCP.ServerQuiet {
		runner.PrintBanner(cmd.ErrOrStderr(), weather.ServerName, false)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("weather server starting", "base_url", cfg.Weather.BaseURL)
	if err := weather.Serve(ctx, weathermcp.NewWeatherServer(cfg, log)); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("weather server stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errorsx.Describe(err))
		os.Exit(1)
	}
}
