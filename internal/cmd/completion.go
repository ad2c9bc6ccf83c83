package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var shells = []string{"bash", "zsh", "fish", "powershell"}

func newCompletionCmd() *cobra.Command {
	completionCmd := &cobra.Command{
		Use:   "completion [shell]",
		Short: "Generate shell completions",
		Long: `Generate shell completion scripts for various shells.

Bash:
  source <(release-it completion bash)

Zsh:
  release-it completion zsh > "${fpath[1]}/_release-it"

Fish:
  release-it completion fish | source

PowerShell:
  release-it completion powershell | Out-String | Invoke-Expression

Use "release-it completion install [shell]" to write the script to the
usual location for the current user.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             shells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return genCompletion(cmd.Root(), args[0], cmd.OutOrStdout())
		},
	}

	completionCmd.AddCommand(&cobra.Command{
		Use:       "install [shell]",
		Short:     "Install shell completions",
		ValidArgs: shells,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path, err := installCompletion(cmd.Root(), args[0], home)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completion script installed to: %s\n", path)
			return nil
		},
	})

	return completionCmd
}

func genCompletion(root *cobra.Command, shell string, w io.Writer) error {
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, true)
	case "zsh":
		return root.GenZshCompletion(w)
	case "fish":
		return root.GenFishCompletion(w, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(w)
	}
	return fmt.Errorf("unsupported shell: %s", shell)
}

// completionPath returns where shell loads user completions from under home.
func completionPath(shell, home string) string {
	switch shell {
	case "bash":
		return filepath.Join(home, ".local/share/bash-completion/completions/release-it")
	case "zsh":
		return filepath.Join(home, ".zsh/completions/_release-it")
	case "fish":
		return filepath.Join(home, ".config/fish/completions/release-it.fish")
	default:
		return filepath.Join(home, ".config/powershell/release-it.ps1")
	}
}

// installCompletion writes the completion script for shell below home.
func installCompletion(root *cobra.Command, shell, home string) (string, error) {
	var content bytes.Buffer
	if err := genCompletion(root, shell, &content); err != nil {
		return "", err
	}

	path := completionPath(shell, home)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write completion file: %w", err)
	}
	return path, nil
}
