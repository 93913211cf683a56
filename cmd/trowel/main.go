// ABOUTME: Entry point for the trowel renovation estimator server
// ABOUTME: Cobra root command wiring serve, init, health, users and version

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/trowel/internal/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

const banner = `
  _                        _
 | |_ _ __ _____      _____| |
 | __| '__/ _ \ \ /\ / / _ \ |
 | |_| | | (_) \ V  V /  __/ |
  \__|_|  \___/ \_/\_/ \___|_|
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The --config flag is shared by every
// subcommand.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "trowel",
		Short: "Renovation estimator API server",
		Long: `trowel serves the renovation estimator API: accounts with bearer
tokens, a shared materials catalog, saved projects and a chat relay.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(),
		"config file (env "+config.EnvConfigPath+")")

	root.AddCommand(
		serveCmd(&configPath),
		initCmd(&configPath),
		healthCmd(&configPath),
		usersCmd(&configPath),
		versionCmd(),
	)
	return root
}

// printBanner prints the trowel banner and version.
func printBanner() {
	color.New(color.FgCyan).Print(banner)
	color.New(color.FgHiBlack).Printf("    version: %s\n\n", version)
}
