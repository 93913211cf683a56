// ABOUTME: init command: writes a starter config file
// ABOUTME: Optionally fills in a freshly generated token signing secret

package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/trowel/internal/config"
)

const secretPlaceholder = `"${` + config.EnvJWTSecret + `}"`

func initCmd(configPath *string) *cobra.Command {
	var (
		force          bool
		generateSecret bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content := config.Example
			if generateSecret {
				secret, err := newSecret()
				if err != nil {
					return err
				}
				content = strings.Replace(content, secretPlaceholder, `"`+secret+`"`, 1)
			}

			if err := writeConfig(*configPath, content, force); err != nil {
				return err
			}

			color.New(color.FgGreen).Printf("  ✓ Created config: %s\n", *configPath)
			if !generateSecret {
				fmt.Printf("    Set %s (at least %d bytes) before running serve.\n",
					config.EnvJWTSecret, config.MinJWTSecretLength)
			}
			fmt.Println("\n  To start the server:\n    trowel serve")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	cmd.Flags().BoolVar(&generateSecret, "generate-secret", true, "write a random token signing secret into the file")
	return cmd
}

// newSecret returns 32 random bytes, base64 encoded.
func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// writeConfig writes content to path with owner-only permissions, refusing
// to replace an existing file unless force is set.
func writeConfig(path, content string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
