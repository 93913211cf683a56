// ABOUTME: users command: operator account maintenance against the configured store
// ABOUTME: Deleting a user revokes every token issued to them on the next request

package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/trowel/internal/config"
	"github.com/2389/trowel/internal/server"
	"github.com/2389/trowel/internal/store"
)

func usersCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(usersDeleteCmd(configPath))
	return cmd
}

func usersDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete EMAIL",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDatabase(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			s, err := server.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			email := args[0]
			if err := s.DeleteUser(cmd.Context(), email); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no user with email %s", email)
				}
				return fmt.Errorf("deleting user: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", color.GreenString("✓"), email)
			return nil
		},
	}
}
