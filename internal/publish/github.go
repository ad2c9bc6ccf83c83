package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/oarkflow/releaseit/internal/config"
	"github.com/oarkflow/releaseit/internal/git"
)

// GitHubPublisher publishes to GitHub Releases
type GitHubPublisher struct {
	*client
	owner string
	repo  string
}

type githubRelease struct {
	ID      int64  `json:"id"`
	HTMLURL string `json:"html_url"`
}

// NewGitHubPublisher creates a GitHub publisher. Owner and repository default
// to the origin remote.
func NewGitHubPublisher(cfg config.ReleaseTarget, remote git.RemoteInfo, opts ...Option) (*GitHubPublisher, error) {
	c := newClient(cfg, nil)

	host := cfg.Host
	if host == "" {
		host = remote.Host
	}
	if host == "" || host == "github.com" {
		c.apiURL = "https://api.github.com"
		c.uploadURL = "https://uploads.github.com"
	} else {
		c.apiURL = "https://" + host + "/api/v3"
		c.uploadURL = "https://" + host + "/api/uploads"
	}
	for _, opt := range opts {
		opt(c)
	}
	c.header = func(req *http.Request, token string) {
		req.Header.Set("Authorization", "token "+token)
		req.Header.Set("Accept", "application/vnd.github+json")
	}

	p := &GitHubPublisher{client: c, owner: cfg.Owner, repo: cfg.Repo}
	if p.owner == "" {
		p.owner = remote.Owner
	}
	if p.repo == "" {
		p.repo = remote.Repo
	}

	if c.token == "" {
		return nil, fmt.Errorf("environment variable %s is required for GitHub releases", cfg.TokenRef)
	}
	if p.owner == "" || p.repo == "" {
		return nil, errors.New("GitHub owner and repo are required")
	}
	return p, nil
}

// Name implements Publisher.
func (p *GitHubPublisher) Name() string { return "github" }

// Publish creates the release, or reuses an existing one for the tag, and
// uploads assets.
func (p *GitHubPublisher) Publish(ctx context.Context, rel Release) (string, error) {
	log.Info("Publishing to GitHub Releases", "owner", p.owner, "repo", p.repo, "tag", rel.Tag)

	release, err := p.getOrCreateRelease(ctx, rel)
	if err != nil {
		return "", err
	}

	for _, path := range rel.Assets {
		if err := p.uploadAsset(ctx, release.ID, path); err != nil {
			return "", fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
		}
	}

	log.Info("Published to GitHub Releases", "url", release.HTMLURL)
	return release.HTMLURL, nil
}

// getOrCreateRelease gets or creates a GitHub release
func (p *GitHubPublisher) getOrCreateRelease(ctx context.Context, rel Release) (*githubRelease, error) {
	var release githubRelease

	u := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", p.apiURL, p.owner, p.repo, url.PathEscape(rel.Tag))
	status, err := p.doJSON(ctx, http.MethodGet, u, nil, &release)
	if err == nil {
		log.Debug("Found existing GitHub release", "tag", rel.Tag, "id", release.ID)
		return &release, nil
	}
	if status != http.StatusNotFound {
		return nil, fmt.Errorf("failed to look up release: %w", err)
	}

	name := rel.Name
	if name == "" {
		name = rel.Tag
	}
	body := map[string]any{
		"tag_name":   rel.Tag,
		"name":       name,
		"body":       rel.Notes,
		"draft":      rel.Draft,
		"prerelease": rel.PreRelease,
	}

	u = fmt.Sprintf("%s/repos/%s/%s/releases", p.apiURL, p.owner, p.repo)
	if _, err := p.doJSON(ctx, http.MethodPost, u, body, &release); err != nil {
		return nil, fmt.Errorf("failed to create release: %w", err)
	}

	log.Info("Created GitHub release", "tag", rel.Tag, "id", release.ID)
	return &release, nil
}

// uploadAsset uploads an asset to a GitHub release
func (p *GitHubPublisher) uploadAsset(ctx context.Context, releaseID int64, path string) error {
	name := filepath.Base(path)
	log.Debug("Uploading asset", "name", name)

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	u := fmt.Sprintf("%s/repos/%s/%s/releases/%d/assets?name=%s",
		p.uploadURL, p.owner, p.repo, releaseID, url.QueryEscape(name))

	_, err = p.do(ctx, http.MethodPost, u, file, contentType(path), nil)
	return err
}
