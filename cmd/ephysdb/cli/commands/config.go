package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mwantia/ephysdb/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management utilities",
		Long: `Manage ephysdb configuration files.

This command provides utilities for generating configuration files
with storage roots, rig hostnames and the metadata store connection.`,
	}

	cmd.AddCommand(newConfigGenerateCommand())

	return cmd
}

func newConfigGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an example configuration file",
		Long: `Generate an example configuration file holding every default.

The generated file can be customized with the session storage roots
and the hostname to rig mapping of your acquisition machines.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputDir, _ := cmd.Flags().GetString("output")
			overwrite, _ := cmd.Flags().GetBool("overwrite")

			fmt.Fprintf(cmd.OutOrStdout(), "Generating configuration file (output: %s)\n", outputDir)

			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			filename := filepath.Join(outputDir, "config.yaml")

			if _, err := os.Stat(filename); err == nil && !overwrite {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipping %s (file exists, use --overwrite to replace)\n", filename)
				return nil
			}

			data, err := yaml.Marshal(config.GetDefault())
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			if err := os.WriteFile(filename, data, 0644); err != nil {
				return fmt.Errorf("failed to write config file %s: %w", filename, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s\n", filename)
			return nil
		},
	}

	cmd.Flags().String("output", ".", "output directory for the configuration file")
	cmd.Flags().Bool("overwrite", false, "overwrite an existing file")

	return cmd
}
