package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/oarkflow/releaseit"
	"github.com/oarkflow/releaseit/internal/config"
	"github.com/oarkflow/releaseit/internal/schema"
)

func newCheckCmd(r *Releaser, g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check configuration file",
		Long: `Check if the configuration file is valid.

This validates:
  - JSON and YAML syntax
  - Unknown keys and value types
  - Template syntax
  - Hook names, increments and regular expressions
  - Extended configuration files`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := g.cfgFile
			if configPath == "" {
				dir, err := r.workDir()
				if err != nil {
					return fmt.Errorf("failed to get working directory: %w", err)
				}
				configPath, err = config.Find(dir)
				if errors.Is(err, config.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "✓ No configuration file found, using defaults")
					return nil
				}
			}

			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				return fmt.Errorf("config file not found: %s", configPath)
			}

			result := schema.ValidateConfig(configPath)
			if !result.Valid {
				errs := make([]error, 0, len(result.Errors))
				for _, e := range result.Errors {
					errs = append(errs, e)
				}
				return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration file %s is valid\n", configPath)
			return nil
		},
	}
}

func newInitCmd(r *Releaser, g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new configuration file",
		Long: `Initialize a new .release-it.yaml configuration file.

This creates a basic configuration file that you can customize
for your project.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := g.cfgFile
			if configPath == "" {
				dir, err := r.workDir()
				if err != nil {
					return fmt.Errorf("failed to get working directory: %w", err)
				}
				configPath = filepath.Join(dir, ".release-it.yaml")
			}

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			if err := os.WriteFile(configPath, []byte(config.DefaultTemplate()), 0o644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created %s\n", configPath)
			fmt.Fprintln(out, "\nEdit this file to customize your release configuration.")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit, and build date of release-it.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			commit := releaseit.GitCommit
			if commit == "" {
				commit = vcsRevision()
			}

			fmt.Fprintf(out, "release-it %s\n", releaseit.Version)
			if commit != "" {
				fmt.Fprintf(out, "  Commit: %s\n", commit)
			}
			if releaseit.BuildDate != "" {
				fmt.Fprintf(out, "  Built:  %s\n", releaseit.BuildDate)
			}
		},
	}
}

// vcsRevision reads the commit stamped by the go toolchain.
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
