package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/oarkflow/releaseit/internal/config"
	"github.com/oarkflow/releaseit/internal/git"
)

// GitLabPublisher publishes to GitLab Releases
type GitLabPublisher struct {
	*client
	project string
}

type gitlabRelease struct {
	Links struct {
		Self string `json:"self"`
	} `json:"_links"`
}

// NewGitLabPublisher creates a GitLab publisher. The project path defaults to
// the origin remote, including subgroups.
func NewGitLabPublisher(cfg config.ReleaseTarget, remote git.RemoteInfo, opts ...Option) (*GitLabPublisher, error) {
	c := newClient(cfg, nil)

	host := cfg.Host
	if host == "" {
		host = remote.Host
	}
	if host == "" {
		host = "gitlab.com"
	}
	c.apiURL = "https://" + host + "/api/v4"
	for _, opt := range opts {
		opt(c)
	}
	c.header = func(req *http.Request, token string) {
		req.Header.Set("PRIVATE-TOKEN", token)
	}

	owner, repo := cfg.Owner, cfg.Repo
	if owner == "" {
		owner = remote.Owner
	}
	if repo == "" {
		repo = remote.Repo
	}

	if c.token == "" {
		return nil, fmt.Errorf("environment variable %s is required for GitLab releases", cfg.TokenRef)
	}
	if owner == "" || repo == "" {
		return nil, errors.New("GitLab owner and repo are required")
	}
	return &GitLabPublisher{client: c, project: url.PathEscape(owner + "/" + repo)}, nil
}

// Name implements Publisher.
func (p *GitLabPublisher) Name() string { return "gitlab" }

// Publish creates the release and attaches assets as generic packages.
func (p *GitLabPublisher) Publish(ctx context.Context, rel Release) (string, error) {
	log.Info("Publishing to GitLab Releases", "project", p.project, "tag", rel.Tag)

	releaseURL, err := p.getOrCreateRelease(ctx, rel)
	if err != nil {
		return "", err
	}

	for _, path := range rel.Assets {
		if err := p.uploadAndLinkAsset(ctx, rel, path); err != nil {
			return "", fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
		}
	}

	log.Info("Published to GitLab Releases", "url", releaseURL)
	return releaseURL, nil
}

// getOrCreateRelease gets or creates a GitLab release
func (p *GitLabPublisher) getOrCreateRelease(ctx context.Context, rel Release) (string, error) {
	var release gitlabRelease

	u := fmt.Sprintf("%s/projects/%s/releases/%s", p.apiURL, p.project, url.PathEscape(rel.Tag))
	status, err := p.doJSON(ctx, http.MethodGet, u, nil, &release)
	if err == nil {
		log.Debug("Found existing GitLab release", "tag", rel.Tag)
		return release.Links.Self, nil
	}
	if status != http.StatusNotFound {
		return "", fmt.Errorf("failed to look up release: %w", err)
	}

	name := rel.Name
	if name == "" {
		name = rel.Tag
	}
	description := rel.Notes
	if description == "" {
		description = fmt.Sprintf("Release %s", rel.Tag)
	}

	body := map[string]any{
		"tag_name":    rel.Tag,
		"name":        name,
		"description": description,
	}

	u = fmt.Sprintf("%s/projects/%s/releases", p.apiURL, p.project)
	if _, err := p.doJSON(ctx, http.MethodPost, u, body, &release); err != nil {
		return "", fmt.Errorf("failed to create release: %w", err)
	}

	log.Info("Created GitLab release", "tag", rel.Tag)
	return release.Links.Self, nil
}

// uploadAndLinkAsset uploads an asset to the generic package registry and
// links it to the release.
func (p *GitLabPublisher) uploadAndLinkAsset(ctx context.Context, rel Release, path string) error {
	name := filepath.Base(path)
	log.Debug("Uploading asset to GitLab", "name", name)

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	version := rel.Version
	if version == "" {
		version = strings.TrimPrefix(rel.Tag, "v")
	}
	packageURL := fmt.Sprintf("%s/projects/%s/packages/generic/release/%s/%s",
		p.apiURL, p.project, url.PathEscape(version), url.PathEscape(name))

	if _, err := p.do(ctx, http.MethodPut, packageURL, file, "application/octet-stream", nil); err != nil {
		return fmt.Errorf("failed to upload package: %w", err)
	}

	linkURL := fmt.Sprintf("%s/projects/%s/releases/%s/assets/links", p.apiURL, p.project, url.PathEscape(rel.Tag))
	link := map[string]any{
		"name":      name,
		"url":       packageURL,
		"link_type": linkType(name),
	}
	if _, err := p.doJSON(ctx, http.MethodPost, linkURL, link, nil); err != nil {
		// Re-publishing an existing release links the same asset again
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to link asset: %w", err)
		}
	}

	log.Debug("Asset uploaded and linked", "name", name)
	return nil
}

// linkType returns the GitLab link type for an asset
func linkType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".deb", ".rpm", ".apk", ".msi", ".exe", ".dmg", ".pkg":
		return "package"
	default:
		return "other"
	}
}
