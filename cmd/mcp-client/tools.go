package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/harunnryd/weathermcp/pkg/weathermcp"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools <server-path>",
	Short: "List the tools a server exposes and exit",
	Args:  cobra.ExactArgs(1),
	RunE:  runTools,
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	engine, err := weathermcp.NewEngine(weathermcp.EngineOptions{Config: cfg})
	if err != nil {
		return err
	}
	defer func() { _ = engine.Drain() }()
	if err := engine.Start(cmd.Context(), args[0]); err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, tool := range engine.Tools() {
		desc, _, _ := strings.Cut(strings.TrimSpace(tool.Description), "\n")
		fmt.Fprintf(w, "%s\t%s\n", tool.Name, desc)
	}
	return w.Flush()
}
