package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/oarkflow/releaseit/internal/changelog"
	"github.com/oarkflow/releaseit/internal/pipeline"
)

func newChangelogCmd(r *Releaser, g *globalOptions) *cobra.Command {
	var (
		output string
		format string
		since  string
	)

	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Generate or preview changelog",
		Long: `Generate or preview the changelog for the next release.

Commits since the latest release tag are filtered and grouped the same way
the release does it. This is useful for testing your changelog
configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir, err := r.workDir()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}

			p, err := pipeline.New(ctx, pipeline.ReleaseOptions{
				ConfigFile: g.cfgFile,
				Dir:        dir,
				CI:         true,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}

			text, err := p.Changelog(ctx, since, format)
			if err != nil {
				return fmt.Errorf("failed to generate changelog: %w", err)
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(text), 0o644); err != nil {
					return fmt.Errorf("failed to write changelog: %w", err)
				}
				log.Info("Changelog written", "path", output)
				return nil
			}

			out := cmd.OutOrStdout()
			if format == changelog.FormatMarkdown && isTerminal(out) {
				text = renderMarkdown(text)
			}
			_, err = io.WriteString(out, text)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write changelog to file")
	cmd.Flags().StringVar(&format, "format", changelog.FormatMarkdown, "output format (markdown, json, yaml)")
	cmd.Flags().StringVar(&since, "since", "", "generate changelog since this ref (default is the latest release tag)")
	return cmd
}

// renderMarkdown styles Markdown for the terminal, returning it unchanged
// when rendering fails.
func renderMarkdown(text string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return text
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return rendered
}
