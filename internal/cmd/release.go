package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oarkflow/releaseit/internal/parallel"
	"github.com/oarkflow/releaseit/internal/pipeline"
	"github.com/oarkflow/releaseit/internal/prompt"
)

type releaseOptions struct {
	ci             bool
	dryRun         bool
	increment      string
	preReleaseID   string
	noIncrement    bool
	onlyVersion    bool
	releaseVersion bool
	changelog      bool
	noCommit       bool
	noTag          bool
	noPush         bool
	githubRelease  bool
	gitlabRelease  bool
	noAnnounce     bool
}

// addReleaseFlags makes root run the release pipeline.
func addReleaseFlags(root *cobra.Command, r *Releaser, g *globalOptions, tasks parallel.Spawner) {
	o := &releaseOptions{}

	fs := root.Flags()
	fs.SortFlags = false
	fs.BoolVar(&o.ci, "ci", false, "no prompts, accept every step (default when CI=true)")
	fs.BoolVarP(&o.dryRun, "dry-run", "d", false, "show what would happen without writing anything")
	fs.StringVarP(&o.increment, "increment", "i", "", "increment (major, minor, patch, pre*) or explicit version")
	fs.StringVar(&o.preReleaseID, "preRelease", "", "pre-release identifier (alpha, beta, rc)")
	fs.BoolVar(&o.noIncrement, "no-increment", false, "release the latest version again")
	fs.BoolVar(&o.onlyVersion, "only-version", false, "prompt for the version only")
	fs.BoolVar(&o.releaseVersion, "release-version", false, "print the next version and exit")
	fs.BoolVar(&o.changelog, "changelog", false, "print the changelog since the latest release and exit")
	fs.BoolVar(&o.noCommit, "no-git.commit", false, "do not commit")
	fs.BoolVar(&o.noTag, "no-git.tag", false, "do not tag")
	fs.BoolVar(&o.noPush, "no-git.push", false, "do not push")
	fs.BoolVar(&o.githubRelease, "github.release", false, "create a GitHub release")
	fs.BoolVar(&o.gitlabRelease, "gitlab.release", false, "create a GitLab release")
	fs.BoolVar(&o.noAnnounce, "no-announce", false, "do not send announcements")

	root.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dir, err := r.workDir()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		if len(args) > 0 {
			o.increment = args[0]
		}

		ci := o.ci || isCI()
		opts := pipeline.ReleaseOptions{
			ConfigFile:     g.cfgFile,
			Dir:            dir,
			CI:             ci,
			DryRun:         o.dryRun,
			Increment:      o.increment,
			PreReleaseID:   o.preReleaseID,
			NoIncrement:    o.noIncrement,
			OnlyVersion:    o.onlyVersion,
			ReleaseVersion: o.releaseVersion,
			Changelog:      o.changelog,
			NoCommit:       o.noCommit,
			NoTag:          o.noTag,
			NoPush:         o.noPush,
			GitHubRelease:  changed(fs, "github.release", o.githubRelease),
			GitLabRelease:  changed(fs, "gitlab.release", o.gitlabRelease),
			NoAnnounce:     o.noAnnounce,
			Stdout:         cmd.OutOrStdout(),
			Stderr:         cmd.ErrOrStderr(),
			Prompter:       r.prompterFor(ci),
			Tasks:          tasks,
			PublishOptions: r.publishOptions,
		}

		p, err := pipeline.New(ctx, opts)
		if err != nil {
			return err
		}
		if err := p.Run(ctx); err != nil {
			return fmt.Errorf("release failed: %w", err)
		}
		return nil
	}
}

// changed returns &v when the flag was set on the command line.
func changed(fs *pflag.FlagSet, name string, v bool) *bool {
	if !fs.Changed(name) {
		return nil
	}
	return &v
}

// prompterFor picks terminal prompts when both stdin and stdout are
// terminals. Otherwise every question takes its default answer.
func (r *Releaser) prompterFor(ci bool) prompt.Prompter {
	switch {
	case r.prompter != nil:
		return r.prompter
	case ci:
		return nil
	case isTerminal(r.stdin) && isTerminal(r.stdout):
		return prompt.New(r.stdin, r.stdout)
	}
	return nil
}

func isCI() bool {
	ci, _ := strconv.ParseBool(os.Getenv("CI"))
	return ci
}
