// Package cicd generates CI pipelines that run release-it.
package cicd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// Platform represents a CI/CD platform
type Platform string

const (
	PlatformGitHubActions Platform = "github"
	PlatformGitLabCI      Platform = "gitlab"
)

// Options for CI/CD template generation
type Options struct {
	Platform      Platform
	ProjectName   string
	NodeVersion   string
	PublishBranch string
	TestCommand   string

	// Hosted enables the GitHub or GitLab release of the platform.
	Hosted bool

	// Force overwrites an existing pipeline file.
	Force bool
}

// DefaultOptions returns default options
func DefaultOptions() Options {
	return Options{
		Platform:      PlatformGitHubActions,
		PublishBranch: "main",
		Hosted:        true,
	}
}

// Generator generates CI/CD pipeline configurations
type Generator struct {
	opts Options
}

// NewGenerator creates a new CI/CD generator
func NewGenerator(opts Options) *Generator {
	return &Generator{opts: opts}
}

// Path returns the pipeline file below dir for the platform.
func (g *Generator) Path(dir string) (string, error) {
	switch g.opts.Platform {
	case PlatformGitHubActions:
		return filepath.Join(dir, ".github", "workflows", "release.yml"), nil
	case PlatformGitLabCI:
		return filepath.Join(dir, ".gitlab-ci.yml"), nil
	}
	return "", fmt.Errorf("unsupported platform: %s (valid: %s, %s)", g.opts.Platform, PlatformGitHubActions, PlatformGitLabCI)
}

// Render returns the pipeline definition.
func (g *Generator) Render() ([]byte, error) {
	var text string
	switch g.opts.Platform {
	case PlatformGitHubActions:
		text = githubActions
	case PlatformGitLabCI:
		text = gitlabCI
	default:
		_, err := g.Path("")
		return nil, err
	}

	t, err := template.New(string(g.opts.Platform)).Delims("[[", "]]").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, g.opts); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate writes the pipeline file below outputDir and returns its path.
func (g *Generator) Generate(outputDir string) (string, error) {
	path, err := g.Path(outputDir)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil && !g.opts.Force {
		return "", fmt.Errorf("%s already exists", path)
	}

	data, err := g.Render()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// GetSupportedPlatforms returns all supported platforms
func GetSupportedPlatforms() []Platform {
	return []Platform{PlatformGitHubActions, PlatformGitLabCI}
}

// The templates use [[ ]] delimiters so the CI expressions stay literal.

const githubActions = `name: Release

on:
  workflow_dispatch:
    inputs:
      increment:
        description: 'major, minor, patch, pre* or an explicit version'
        required: true
        default: patch

permissions:
  contents: write

jobs:
  release:
    runs-on: ubuntu-latest
    if: github.ref == 'refs/heads/[[ .PublishBranch ]]'
    steps:
      - uses: actions/checkout@v4
        with:
          fetch-depth: 0
[[- if .NodeVersion ]]

      - uses: actions/setup-node@v4
        with:
          node-version: '[[ .NodeVersion ]]'
[[- end ]]

      - name: Configure git
        run: |
          git config user.name "${{ github.actor }}"
          git config user.email "${{ github.actor }}@users.noreply.github.com"
[[- if .TestCommand ]]

      - name: Test
        run: [[ .TestCommand ]]
[[- end ]]

      - name: Release[[ if .ProjectName ]] [[ .ProjectName ]][[ end ]]
        run: release-it ${{ inputs.increment }} --ci[[ if .Hosted ]] --github.release[[ end ]]
        env:
          GITHUB_TOKEN: ${{ secrets.GITHUB_TOKEN }}
`

const gitlabCI = `stages:
  - release

release:
  stage: release
  image: alpine/git:latest
  rules:
    - if: $CI_COMMIT_BRANCH == "[[ .PublishBranch ]]"
      when: manual
  variables:
    GIT_DEPTH: "0"
    INCREMENT: patch
  before_script:
    - git config user.name "$GITLAB_USER_NAME"
    - git config user.email "$GITLAB_USER_EMAIL"
    - git checkout -B "$CI_COMMIT_BRANCH"
[[- if .TestCommand ]]
    - [[ .TestCommand ]]
[[- end ]]
  script:
    - release-it "$INCREMENT" --ci[[ if .Hosted ]] --gitlab.release[[ end ]]
`
