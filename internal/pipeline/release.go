package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/oarkflow/releaseit/internal/config"
	"github.com/oarkflow/releaseit/internal/git"
	"github.com/oarkflow/releaseit/internal/publish"
	"github.com/oarkflow/releaseit/internal/tmpl"
)

// gitRelease commits, tags and pushes, asking before each step.
func (p *Pipeline) gitRelease(ctx context.Context) error {
	g := p.config.Git

	if config.Enabled(g.Commit) {
		if err := p.commit(); err != nil {
			return err
		}
	}

	if config.Enabled(g.Tag) {
		if err := p.createTag(); err != nil {
			return err
		}
	}

	if config.Enabled(g.Push) {
		if err := p.push(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) commit() error {
	message, err := p.tmplCtx.Apply(p.config.Git.CommitMessage)
	if err != nil {
		return fmt.Errorf("failed to render git.commitMessage: %w", err)
	}

	ok, err := p.confirm(fmt.Sprintf("Commit (%s)?", message))
	if err != nil || !ok {
		return err
	}
	if p.options.DryRun {
		log.Info("Skipping commit (dry run)", "message", message)
		return nil
	}

	if err := p.repo.Stage(p.written, config.Enabled(p.config.Git.AddUntrackedFiles)); err != nil {
		return err
	}
	hash, err := p.repo.Commit(message)
	if errors.Is(err, git.ErrNothingToCommit) {
		log.Warn("No changes to commit")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("Committed", "message", message, "commit", hash[:8])
	return nil
}

func (p *Pipeline) createTag() error {
	tags, err := p.repo.Tags()
	if err != nil {
		return err
	}
	if slices.ContainsFunc(tags, func(t git.Tag) bool { return t.Name == p.tag }) {
		if p.options.NoIncrement {
			log.Info("Tag already exists, not tagging", "tag", p.tag)
			return nil
		}
		return fmt.Errorf("tag %s already exists", p.tag)
	}

	annotation, err := p.tmplCtx.Apply(p.config.Git.TagAnnotation)
	if err != nil {
		return fmt.Errorf("failed to render git.tagAnnotation: %w", err)
	}

	ok, err := p.confirm(fmt.Sprintf("Tag (%s)?", p.tag))
	if err != nil || !ok {
		return err
	}
	if p.options.DryRun {
		log.Info("Skipping tag (dry run)", "tag", p.tag)
		return nil
	}

	if err := p.repo.CreateTag(p.tag, annotation); err != nil {
		return err
	}
	log.Info("Tagged", "tag", p.tag)
	return nil
}

// pushArgs returns the git push arguments. A branch without upstream is
// pushed to origin with --set-upstream.
func (p *Pipeline) pushArgs(ctx context.Context) []string {
	g := p.config.Git
	args := slices.Clone(g.PushArgs)
	switch {
	case g.PushRepo != "":
		args = append(args, g.PushRepo)
	case p.gitInfo.Branch != "":
		if _, err := p.repo.Upstream(ctx); err != nil {
			args = append(args, "--set-upstream", "origin", p.gitInfo.Branch)
		}
	}
	return args
}

func (p *Pipeline) push(ctx context.Context) error {
	args := p.pushArgs(ctx)

	ok, err := p.confirm("Push?")
	if err != nil || !ok {
		return err
	}
	if p.options.DryRun {
		log.Info("Skipping push (dry run)", "args", args)
		return nil
	}

	if err := p.repo.Push(ctx, args...); err != nil {
		return err
	}
	log.Info("Pushed", "args", args)
	return nil
}

// publish creates the enabled GitHub and GitLab releases.
func (p *Pipeline) publish(ctx context.Context) error {
	targets := []struct {
		name    string
		label   string
		cfg     config.ReleaseTarget
		factory func(config.ReleaseTarget, git.RemoteInfo, ...publish.Option) (publish.Publisher, error)
	}{
		{"github", "GitHub", p.config.GitHub, newGitHub},
		{"gitlab", "GitLab", p.config.GitLab, newGitLab},
	}

	for _, t := range targets {
		if !t.cfg.Release {
			continue
		}

		rel, err := p.hostedRelease(t.cfg)
		if err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}

		ok, err := p.confirm(fmt.Sprintf("Create a release on %s (%s)?", t.label, rel.Name))
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if p.options.DryRun {
			log.Info("Skipping release (dry run)", "target", t.name, "tag", rel.Tag, "assets", len(rel.Assets))
			continue
		}

		pub, err := t.factory(t.cfg, p.gitInfo.Remote, p.options.PublishOptions...)
		if err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
		url, err := pub.Publish(ctx, rel)
		if err != nil {
			return fmt.Errorf("%s release failed: %w", t.label, err)
		}
		p.releaseURLs = append(p.releaseURLs, url)
		p.tmplCtx.Set(tmpl.ReleaseURL, url)
	}
	return nil
}

func (p *Pipeline) hostedRelease(cfg config.ReleaseTarget) (publish.Release, error) {
	name, err := p.tmplCtx.Apply(cfg.ReleaseName)
	if err != nil {
		return publish.Release{}, fmt.Errorf("failed to render releaseName: %w", err)
	}
	assets, err := publish.ResolveAssets(p.repo.Dir(), cfg.Assets)
	if err != nil {
		return publish.Release{}, err
	}

	pre := p.nextVersion.Prerelease() != ""
	if cfg.PreRelease != nil {
		pre = *cfg.PreRelease
	}

	return publish.Release{
		Tag:        p.tag,
		Name:       name,
		Notes:      p.notes,
		Version:    p.nextVersion.String(),
		Draft:      cfg.Draft,
		PreRelease: pre,
		Assets:     assets,
	}, nil
}

func newGitHub(cfg config.ReleaseTarget, remote git.RemoteInfo, opts ...publish.Option) (publish.Publisher, error) {
	return publish.NewGitHubPublisher(cfg, remote, opts...)
}

func newGitLab(cfg config.ReleaseTarget, remote git.RemoteInfo, opts ...publish.Option) (publish.Publisher, error) {
	return publish.NewGitLabPublisher(cfg, remote, opts...)
}
