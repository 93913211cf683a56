// ABOUTME: serve command: loads config and runs the HTTP server until signalled
// ABOUTME: Prints a short startup summary before handing off to the server

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/trowel/internal/config"
	"github.com/2389/trowel/internal/server"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			printBanner()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			logger := setupLogger(cfg.Logging, cmd.OutOrStdout())
			printStartup(*configPath, cfg)

			logger.Info("starting trowel",
				"config", *configPath,
				"http_addr", cfg.Server.HTTPAddr,
				"database", cfg.Database.Driver,
			)

			srv, err := server.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			return srv.Run(ctx)
		},
	}
}

func printStartup(configPath string, cfg *config.Config) {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	switch cfg.Database.Driver {
	case config.DriverMongo:
		fmt.Printf("Database:  mongo (%s)\n", cfg.Database.Name)
	default:
		fmt.Printf("Database:  sqlite (%s)\n", cfg.Database.Path)
	}
	if cfg.Images.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Images:    s3://%s\n", cfg.Images.Bucket)
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	fmt.Println()
}
