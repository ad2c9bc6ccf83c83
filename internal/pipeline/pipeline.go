/*
Package pipeline orchestrates a release: version selection, changelog,
lifecycle hooks, git commit/tag/push, hosted releases and announcements.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/oarkflow/releaseit/internal/announce"
	"github.com/oarkflow/releaseit/internal/changelog"
	"github.com/oarkflow/releaseit/internal/config"
	"github.com/oarkflow/releaseit/internal/git"
	"github.com/oarkflow/releaseit/internal/hook"
	"github.com/oarkflow/releaseit/internal/parallel"
	"github.com/oarkflow/releaseit/internal/prompt"
	"github.com/oarkflow/releaseit/internal/publish"
	"github.com/oarkflow/releaseit/internal/tmpl"
)

// ReleaseOptions contains options for the release pipeline
type ReleaseOptions struct {
	ConfigFile string
	Dir        string

	CI     bool
	DryRun bool

	Increment    string
	PreReleaseID string
	NoIncrement  bool

	// OnlyVersion prompts for the version only and accepts every other step.
	OnlyVersion bool

	// ReleaseVersion prints the next version and stops.
	ReleaseVersion bool

	// Changelog prints the changelog and stops.
	Changelog bool

	NoCommit      bool
	NoTag         bool
	NoPush        bool
	GitHubRelease *bool
	GitLabRelease *bool
	NoAnnounce    bool

	Stdout   io.Writer
	Stderr   io.Writer
	Prompter prompt.Prompter

	// Tasks receives background work. When nil the pipeline supervises its
	// own group and waits for it before returning.
	Tasks parallel.Spawner

	PublishOptions []publish.Option
}

// Pipeline orchestrates the release process
type Pipeline struct {
	config  *config.Config
	options ReleaseOptions
	repo    *git.Repository
	gitInfo *git.Info
	tmplCtx *tmpl.Context
	hooks   *hook.Runner
	prompt  prompt.Prompter

	latestVersion *semver.Version
	latestTag     string
	nextVersion   *semver.Version
	tag           string
	commits       []git.Commit
	notes         string
	written       []string
	releaseURLs   []string

	startTime time.Time
}

// New loads configuration and inspects the repository.
func New(ctx context.Context, opts ReleaseOptions) (*Pipeline, error) {
	if opts.Dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		opts.Dir = cwd
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	repo, err := git.Open(opts.Dir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Resolve(opts.ConfigFile, repo.Dir())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if p := cfg.Path(); p != "" {
		log.Debug("Loaded configuration", "path", p)
	}

	gitInfo, err := repo.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get git info: %w", err)
	}

	tmplCtx := tmpl.New(cfg.Name, gitInfo, cfg.Variables)

	prompter := opts.Prompter
	if prompter == nil || opts.CI {
		prompter = prompt.Defaults()
	}

	return &Pipeline{
		config:    cfg,
		options:   opts,
		repo:      repo,
		gitInfo:   gitInfo,
		tmplCtx:   tmplCtx,
		hooks:     hook.NewRunner(cfg.Hooks, tmplCtx, repo.Dir(), hook.WithDryRun(opts.DryRun), hook.WithOutput(opts.Stdout, opts.Stderr)),
		prompt:    prompter,
		startTime: time.Now(),
	}, nil
}

// applyOverrides folds command line flags into the configuration.
func applyOverrides(cfg *config.Config, opts ReleaseOptions) {
	if opts.Increment != "" {
		cfg.Increment = opts.Increment
	}
	if opts.PreReleaseID != "" {
		cfg.PreReleaseID = opts.PreReleaseID
	}
	if opts.NoCommit {
		cfg.Git.Commit = config.Bool(false)
	}
	if opts.NoTag {
		cfg.Git.Tag = config.Bool(false)
	}
	if opts.NoPush {
		cfg.Git.Push = config.Bool(false)
	}
	if opts.GitHubRelease != nil {
		cfg.GitHub.Release = *opts.GitHubRelease
	}
	if opts.GitLabRelease != nil {
		cfg.GitLab.Release = *opts.GitLabRelease
	}
	if opts.NoAnnounce {
		cfg.Announce = config.Announce{}
	}
}

// Config returns the effective configuration.
func (p *Pipeline) Config() *config.Config {
	return p.config
}

// Run executes the full release pipeline
func (p *Pipeline) Run(ctx context.Context) (err error) {
	tasks := p.options.Tasks
	if tasks == nil {
		group := parallel.NewGroup(ctx)
		tasks = group
		defer func() {
			err = errors.Join(err, group.Wait())
		}()
	}

	if p.options.DryRun {
		log.Warn("Dry run: no files, commits, tags or releases will be written")
	}

	if err := p.hooks.RunStage(ctx, config.BeforeInit); err != nil {
		return err
	}
	if err := p.init(ctx); err != nil {
		return err
	}
	if err := p.hooks.RunStage(ctx, config.AfterInit); err != nil {
		return err
	}

	if p.options.Changelog {
		notes, err := p.renderNotes(p.latestVersion.String(), p.latestTag)
		if err != nil {
			return err
		}
		_, err = io.WriteString(p.options.Stdout, notes)
		return err
	}

	if err := p.resolveNextVersion(); err != nil {
		return err
	}
	if p.options.ReleaseVersion {
		_, err := fmt.Fprintln(p.options.Stdout, p.nextVersion.String())
		return err
	}

	log.Info("Releasing", "name", p.tmplCtx.Get(tmpl.Name), "from", p.latestVersion, "to", p.nextVersion, "tag", p.tag)

	notes, err := p.renderNotes(p.nextVersion.String(), p.tag)
	if err != nil {
		return err
	}
	p.notes = notes
	p.tmplCtx.Set(tmpl.Changelog, notes)
	if notes != "" {
		log.Info("Changelog", "entries", len(p.commits))
		log.Debug(notes)
	}

	if err := p.hooks.RunStage(ctx, config.BeforeBump); err != nil {
		return err
	}
	if err := p.bump(); err != nil {
		return err
	}
	if err := p.hooks.RunStage(ctx, config.AfterBump); err != nil {
		return err
	}

	if err := p.hooks.RunStage(ctx, config.BeforeRelease); err != nil {
		return err
	}
	if err := p.gitRelease(ctx); err != nil {
		return err
	}
	if err := p.publish(ctx); err != nil {
		return err
	}
	p.announce(tasks)
	if err := p.hooks.RunStage(ctx, config.AfterRelease); err != nil {
		return err
	}

	elapsed := time.Since(p.startTime)
	log.Info("Release completed successfully", "version", p.nextVersion, "tag", p.tag, "duration", elapsed.Round(time.Millisecond))
	for _, u := range p.releaseURLs {
		log.Info("Release published", "url", u)
	}
	return nil
}

// init checks git prerequisites and resolves the latest released version.
func (p *Pipeline) init(ctx context.Context) error {
	g := p.config.Git

	if g.RequireBranch != "" {
		re := regexp.MustCompile(g.RequireBranch)
		if !re.MatchString(p.gitInfo.Branch) {
			return fmt.Errorf("must be on a branch matching %q to release (current: %q)", g.RequireBranch, p.gitInfo.Branch)
		}
	}

	if config.Enabled(g.RequireCleanWorkingDir) {
		clean, err := p.repo.IsClean()
		if err != nil {
			return err
		}
		if !clean {
			return errors.New("working dir must be clean, commit or stash your changes first")
		}
	}

	if config.Enabled(g.RequireUpstream) {
		if _, err := p.repo.Upstream(ctx); err != nil {
			return fmt.Errorf("no upstream configured for branch %q, push it first or disable git.requireUpstream", p.gitInfo.Branch)
		}
	}

	if err := p.resolveLatestVersion(); err != nil {
		return err
	}

	commits, err := p.repo.CommitsSince(ctx, p.latestTag)
	if err != nil {
		return fmt.Errorf("failed to get commits: %w", err)
	}
	p.commits = commits

	if config.Enabled(g.RequireCommits) && len(commits) == 0 {
		return fmt.Errorf("there are no commits since the latest tag %s", p.latestTag)
	}

	log.Debug("Latest version", "version", p.latestVersion, "tag", p.latestTag, "commits", len(commits))
	return nil
}

// renderNotes renders the Markdown changelog of the pending commits.
func (p *Pipeline) renderNotes(ver, tag string) (string, error) {
	gen := changelog.New(p.config.Changelog, p.tmplCtx)
	notes := gen.Notes(p.commits, changelog.Release{
		Version: ver,
		Tag:     tag,
		Date:    time.Now().Format("2006-01-02"),
	})
	return gen.Markdown(notes, false)
}

// Changelog renders the commits since ref, or since the latest release tag
// when ref is empty, in format. No prerequisites are checked.
func (p *Pipeline) Changelog(ctx context.Context, ref, format string) (string, error) {
	if err := p.resolveLatestVersion(); err != nil {
		return "", err
	}
	if ref == "" {
		ref = p.latestTag
	}

	commits, err := p.repo.CommitsSince(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to get commits: %w", err)
	}

	gen := changelog.New(p.config.Changelog, p.tmplCtx)
	return gen.Generate(commits, changelog.Release{
		Version: "Unreleased",
		Tag:     p.gitInfo.Branch,
		Date:    time.Now().Format("2006-01-02"),
	}, format)
}

// confirm asks before a release step. CI and --only-version accept every step.
func (p *Pipeline) confirm(title string) (bool, error) {
	if p.options.CI || p.options.OnlyVersion {
		return true, nil
	}
	return p.prompt.Confirm(title, true)
}

func (p *Pipeline) announce(tasks parallel.Spawner) {
	a := announce.NewAnnouncer(p.config.Announce, p.tmplCtx, announce.WithDryRun(p.options.DryRun))
	if len(a.Channels()) == 0 {
		return
	}
	log.Info("Sending release announcements", "channels", a.Channels())
	a.Spawn(tasks)
}

// Version returns the version being released, nil before it is resolved.
func (p *Pipeline) Version() *semver.Version {
	return p.nextVersion
}

// Tag returns the tag being released.
func (p *Pipeline) Tag() string {
	return p.tag
}

// ReleaseURLs returns the URLs of the hosted releases created.
func (p *Pipeline) ReleaseURLs() []string {
	return p.releaseURLs
}
