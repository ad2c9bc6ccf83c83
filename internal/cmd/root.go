/*
Package cmd provides the CLI commands for release-it.
*/
package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/oarkflow/releaseit/internal/parallel"
	"github.com/oarkflow/releaseit/internal/prompt"
	"github.com/oarkflow/releaseit/internal/publish"
)

// Releaser runs the release-it command line. It implements entry.Releaser.
type Releaser struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	dir    string

	prompter       prompt.Prompter
	publishOptions []publish.Option
}

// Option configures a Releaser
type Option func(*Releaser)

// WithIO sets the standard streams.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(r *Releaser) {
		r.stdin = in
		r.stdout = out
		r.stderr = errOut
	}
}

// WithDir runs commands against the repository containing dir instead of
// the working directory.
func WithDir(dir string) Option {
	return func(r *Releaser) { r.dir = dir }
}

// WithPrompter replaces the terminal prompts.
func WithPrompter(p prompt.Prompter) Option {
	return func(r *Releaser) { r.prompter = p }
}

// WithPublishOptions configures the GitHub and GitLab clients.
func WithPublishOptions(opts ...publish.Option) Option {
	return func(r *Releaser) { r.publishOptions = opts }
}

// NewReleaser creates the command line releaser.
func NewReleaser(opts ...Option) *Releaser {
	r := &Releaser{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Release parses args and runs the selected command. Background work is
// handed to tasks.
func (r *Releaser) Release(ctx context.Context, args []string, tasks parallel.Spawner) error {
	root := newRootCmd(r, tasks)
	root.SetArgs(args)
	root.SetIn(r.stdin)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	return root.ExecuteContext(ctx)
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	cfgFile string
	verbose bool
	debug   bool
}

func newRootCmd(r *Releaser, tasks parallel.Spawner) *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "release-it [increment]",
		Short: "Automate versioning and releasing",
		Long: `release-it bumps the version, writes the changelog, commits, tags and
pushes, then creates GitHub or GitLab releases and announces them.

The optional increment is one of major, minor, patch, premajor, preminor,
prepatch, prerelease, or an explicit version.

Example:
  release-it                     # Prompt for the next version
  release-it minor --ci          # Release the next minor version unattended
  release-it --dry-run           # Show what would happen
  release-it --release-version   # Print the next version
  release-it changelog           # Preview the changelog`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setLogLevel(g)
		},
	}

	root.PersistentFlags().StringVarP(&g.cfgFile, "config", "c", "", "config file (default is .release-it.json, .release-it.yaml, ...)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug output")

	addReleaseFlags(root, r, g, tasks)

	root.AddCommand(newChangelogCmd(r, g))
	root.AddCommand(newCheckCmd(r, g))
	root.AddCommand(newInitCmd(r, g))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newCICDCmd(r))
	root.AddCommand(newCompletionCmd())
	return root
}

func setLogLevel(g *globalOptions) {
	switch {
	case g.debug:
		log.SetLevel(log.DebugLevel)
	case g.verbose:
		log.SetLevel(log.InfoLevel)
	default:
		log.SetLevel(log.WarnLevel)
	}
}

// workDir returns the directory commands operate on.
func (r *Releaser) workDir() (string, error) {
	if r.dir != "" {
		return r.dir, nil
	}
	return os.Getwd()
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && prompt.IsTerminal(f)
}
