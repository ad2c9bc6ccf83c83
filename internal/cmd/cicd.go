package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oarkflow/releaseit/internal/cicd"
)

func newCICDCmd(r *Releaser) *cobra.Command {
	opts := cicd.DefaultOptions()
	var noRelease bool

	cicdCmd := &cobra.Command{
		Use:     "cicd",
		Aliases: []string{"ci"},
		Short:   "Generate CI/CD pipelines that run release-it",
		Long: `Generate a CI/CD pipeline that runs release-it unattended.

Supported platforms:
  - github    GitHub Actions (manual workflow with an increment input)
  - gitlab    GitLab CI (manual job on the release branch)
`,
	}

	generateCmd := &cobra.Command{
		Use:   "generate [platform]",
		Short: "Generate CI/CD configuration",
		Long: `Generate a CI/CD configuration file for the specified platform.

Examples:
  release-it cicd generate github
  release-it cicd generate gitlab --branch master --test "make test"
`,
		ValidArgs: []string{string(cicd.PlatformGitHubActions), string(cicd.PlatformGitLabCI)},
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := r.workDir()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}

			opts.Platform = cicd.Platform(strings.ToLower(args[0]))
			opts.Hosted = !noRelease
			path, err := cicd.NewGenerator(opts).Generate(dir)
			if err != nil {
				return fmt.Errorf("failed to generate %s pipeline: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
			return nil
		},
	}
	generateCmd.Flags().StringVar(&opts.PublishBranch, "branch", opts.PublishBranch, "branch releases are made from")
	generateCmd.Flags().StringVar(&opts.TestCommand, "test", "", "command to run before releasing")
	generateCmd.Flags().StringVar(&opts.NodeVersion, "node-version", "", "set up this Node.js version (GitHub Actions)")
	generateCmd.Flags().StringVar(&opts.ProjectName, "name", "", "project name shown in the job")
	generateCmd.Flags().BoolVar(&noRelease, "no-release", false, "do not create a GitHub or GitLab release")
	generateCmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite an existing pipeline")

	cicdCmd.AddCommand(generateCmd)
	return cicdCmd
}
