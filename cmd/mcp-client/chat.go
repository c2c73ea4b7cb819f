package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/weathermcp/pkg/weathermcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var chatCmd = &cobra.Command{
	Use:   "chat <server-path>",
	Short: "Start an interactive session against a tool server",
	Long: `Launch the tool server at <server-path> (.py, .js or an executable),
list its tools and read queries from stdin until 'quit' or EOF.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := weathermcp.NewEngine(weathermcp.EngineOptions{Config: cfg})
	if err != nil {
		return err
	}
	if err := engine.Start(ctx, args[0]); err != nil {
		_ = engine.Drain()
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n"+weathermcp.ConnectedMessage(engine.Tools()))

	sh, err := engine.NewShell(cmd.InOrStdin(), out)
	if err != nil {
		_ = engine.Drain()
		return err
	}
	lr := engine.NewRunner(cmd.ErrOrStderr())

	g, gctx := errgroup.WithContext(ctx)
	sessionCtx, endSession := context.WithCancel(gctx)
	defer endSession()
	g.Go(func() error {
		return lr.Run(sessionCtx)
	})
	g.Go(func() error {
		defer endSession()
		return sh.Run(sessionCtx)
	})
	return g.Wait()
}
