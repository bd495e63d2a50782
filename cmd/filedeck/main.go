package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the CLI. Running it without a subcommand serves.
func newRootCommand() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "filedeck",
		Short: "Serve file management operations over HTTP",
		Long: `filedeck exposes list, count, move, rename and preview operations on the
local filesystem, plus a small JSON settings store, over a REST and
WebSocket API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), resolveConfigPath(cfgPath))
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default $FILEDECK_CONFIG or filedeck.yaml)")

	root.AddCommand(
		newServeCommand(&cfgPath),
		newDoctorCommand(&cfgPath),
		newVersionCommand(),
		newDiscoverCommand(),
	)
	return root
}

func newServeCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), resolveConfigPath(*cfgPath))
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "filedeck %s\n", version)
		},
	}
}

// resolveConfigPath picks the --config flag, then FILEDECK_CONFIG, then
// filedeck.yaml.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv("FILEDECK_CONFIG"); p != "" {
		return p
	}
	return "filedeck.yaml"
}
