/*
Package config provides configuration loading and validation for release-it.
*/
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"dario.cat/mergo"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/releaseit/internal/tmpl"
	"github.com/oarkflow/releaseit/internal/version"
)

// ErrNotFound is returned when no configuration file exists.
var ErrNotFound = errors.New("config file not found")

// Candidates are the configuration file names looked up in a directory, in
// order of preference.
var Candidates = []string{
	".release-it.json",
	".release-it.jsonc",
	".release-it.yaml",
	".release-it.yml",
}

// Config represents the complete release-it configuration
type Config struct {
	// Extends lists configuration files merged under this one
	Extends []string `yaml:"extends,omitempty" json:"extends,omitempty"`

	// Name of the project, defaults to the repository name
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Increment is the default increment or an explicit version
	Increment string `yaml:"increment,omitempty" json:"increment,omitempty"`

	// PreReleaseID is the identifier used for pre-release versions (beta, rc)
	PreReleaseID string `yaml:"preReleaseId,omitempty" json:"preReleaseId,omitempty"`

	// Custom template variables
	Variables map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`

	// Hooks keyed by lifecycle name (before:init, after:release, ...)
	Hooks map[string]HookList `yaml:"hooks,omitempty" json:"hooks,omitempty"`

	Git       Git           `yaml:"git,omitempty" json:"git,omitempty"`
	GitHub    ReleaseTarget `yaml:"github,omitempty" json:"github,omitempty"`
	GitLab    ReleaseTarget `yaml:"gitlab,omitempty" json:"gitlab,omitempty"`
	Changelog Changelog     `yaml:"changelog,omitempty" json:"changelog,omitempty"`
	Bump      Bump          `yaml:"bump,omitempty" json:"bump,omitempty"`
	Announce  Announce      `yaml:"announce,omitempty" json:"announce,omitempty"`

	// path is the file the configuration was loaded from
	path string
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Git: Git{
			RequireCleanWorkingDir: Bool(true),
			RequireUpstream:        Bool(true),
			RequireCommits:         Bool(false),
			AddUntrackedFiles:      Bool(false),
			Commit:                 Bool(true),
			CommitMessage:          "Release {{ .Version }}",
			Tag:                    Bool(true),
			TagName:                "v{{ .Version }}",
			TagAnnotation:          "Release {{ .Version }}",
			Push:                   Bool(true),
			PushArgs:               []string{"--follow-tags"},
		},
		GitHub: ReleaseTarget{
			ReleaseName: "Release {{ .Version }}",
			TokenRef:    "GITHUB_TOKEN",
		},
		GitLab: ReleaseTarget{
			ReleaseName: "Release {{ .Version }}",
			TokenRef:    "GITLAB_TOKEN",
		},
		Changelog: Changelog{
			Sort: "desc",
			Filters: ChangelogFilters{
				Exclude: []string{`^Release \d+\.\d+\.\d+`},
			},
		},
	}
}

// Find returns the first configuration candidate that exists in dir.
func Find(dir string) (string, error) {
	for _, c := range Candidates {
		p := filepath.Join(dir, c)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", ErrNotFound
}

// Resolve loads the configuration at path, or the first candidate in dir when
// path is empty. A missing file yields the defaults.
func Resolve(path, dir string) (*Config, error) {
	if path == "" {
		found, err := Find(dir)
		if errors.Is(err, ErrNotFound) {
			return Defaults(), nil
		}
		path = found
	}
	return Load(path)
}

// Load loads configuration from a file and fills unset values with defaults.
func Load(path string) (*Config, error) {
	cfg, err := load(path, map[string]bool{})
	if err != nil {
		return nil, err
	}

	if err := mergo.Merge(cfg, Defaults(), mergo.WithoutDereference); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

func load(path string, seen map[string]bool) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if seen[abs] {
		return nil, fmt.Errorf("config %s extends itself", path)
	}
	seen[abs] = true

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	cfg.path = path

	// Process extends
	baseDir := filepath.Dir(path)
	for _, include := range cfg.Extends {
		includePath := include
		if !filepath.IsAbs(includePath) {
			includePath = filepath.Join(baseDir, include)
		}

		// Support glob patterns
		matches, err := filepath.Glob(includePath)
		if err != nil {
			return nil, fmt.Errorf("invalid extends pattern %s: %w", include, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, includePath)
		}

		for _, match := range matches {
			base, err := load(match, seen)
			if err != nil {
				return nil, fmt.Errorf("failed to load extends %s: %w", match, err)
			}

			if err := mergo.Merge(cfg, base, mergo.WithAppendSlice, mergo.WithoutDereference); err != nil {
				return nil, fmt.Errorf("failed to merge extends %s: %w", match, err)
			}
		}
	}

	return cfg, nil
}

// envRefRe matches explicit ${VAR} references.
var envRefRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Parse decodes configuration data. The format is chosen by the file
// extension: .json and .jsonc accept comments and trailing commas.
//
// ${VAR} references are replaced with environment values everywhere except
// in hooks, which are shell commands and keep $1, $@ or ${VAR} for the shell.
func Parse(name string, data []byte) (*Config, error) {
	cfg, err := decode(name, expandEnv(data))
	if err != nil {
		return nil, err
	}
	if envRefRe.Match(data) {
		raw, err := decode(name, data)
		if err != nil {
			return nil, err
		}
		cfg.Hooks = raw.Hooks
	}
	return cfg, nil
}

func expandEnv(data []byte) []byte {
	return envRefRe.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(envRefRe.FindSubmatch(ref)[1])))
	})
}

func decode(name string, data []byte) (*Config, error) {
	var cfg Config
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", name, err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", name, err)
		}
	}
	return &cfg, nil
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Increment != "" && !slices.Contains(version.Increments, c.Increment) && !version.IsVersion(c.Increment) {
		errs = append(errs, fmt.Errorf("increment must be one of %s or a version, got %q", strings.Join(version.Increments, ", "), c.Increment))
	}

	for name := range c.Hooks {
		if !slices.Contains(HookNames, name) {
			errs = append(errs, fmt.Errorf("unknown hook %q (valid: %s)", name, strings.Join(HookNames, ", ")))
		}
	}

	if c.Git.RequireBranch != "" {
		if _, err := regexp.Compile(c.Git.RequireBranch); err != nil {
			errs = append(errs, fmt.Errorf("git.requireBranch: %w", err))
		}
	}

	switch c.Changelog.Sort {
	case "", "asc", "desc":
	default:
		errs = append(errs, fmt.Errorf("changelog.sort must be asc or desc, got %q", c.Changelog.Sort))
	}

	for i, g := range c.Changelog.Groups {
		if _, err := regexp.Compile(g.Regexp); err != nil {
			errs = append(errs, fmt.Errorf("changelog.groups[%d].regexp: %w", i, err))
		}
	}
	for _, pattern := range slices.Concat(c.Changelog.Filters.Include, c.Changelog.Filters.Exclude) {
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, fmt.Errorf("changelog.filters: %w", err))
		}
	}

	if c.Git.TagName != "" && !strings.Contains(c.Git.TagName, ".Version") {
		errs = append(errs, fmt.Errorf("git.tagName must reference .Version, got %q", c.Git.TagName))
	}

	if err := c.validateTemplates(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// validateTemplates validates all template strings in the configuration
func (c *Config) validateTemplates() error {
	templateRe := regexp.MustCompile(`\{\{.*?\}\}`)

	// Helper to validate a template string
	validateTemplate := func(name, text string) error {
		if !templateRe.MatchString(text) {
			return nil
		}
		_, err := tmpl.Parse(name, text)
		if err != nil {
			return fmt.Errorf("invalid template in %s: %w", name, err)
		}
		return nil
	}

	fields := map[string]string{
		"git.commitMessage":  c.Git.CommitMessage,
		"git.tagName":        c.Git.TagName,
		"git.tagAnnotation":  c.Git.TagAnnotation,
		"github.releaseName": c.GitHub.ReleaseName,
		"gitlab.releaseName": c.GitLab.ReleaseName,
		"changelog.header":   c.Changelog.Header,
		"changelog.footer":   c.Changelog.Footer,
		"announce.slack":     c.Announce.Slack.MessageTemplate,
		"announce.discord":   c.Announce.Discord.MessageTemplate,
		"announce.webhook":   c.Announce.Webhook.MessageTemplate,
	}
	for name, text := range fields {
		if err := validateTemplate(name, text); err != nil {
			return err
		}
	}

	for name, hooks := range c.Hooks {
		for i, h := range hooks {
			if err := validateTemplate(fmt.Sprintf("hooks[%s][%d]", name, i), h.Cmd); err != nil {
				return err
			}
		}
	}

	return nil
}

// DefaultTemplate returns the default configuration template
func DefaultTemplate() string {
	return `# release-it configuration file

# increment: patch
# preReleaseId: beta

git:
  requireCleanWorkingDir: true
  requireUpstream: true
  # requireBranch: "^main$"
  commitMessage: "Release {{ .Version }}"
  tagName: "v{{ .Version }}"
  tagAnnotation: "Release {{ .Version }}"
  push: true
  pushArgs:
    - --follow-tags

github:
  release: false
  releaseName: "Release {{ .Version }}"
  # assets:
  #   - dist/*.tar.gz

changelog:
  file: CHANGELOG.md
  sort: desc
  filters:
    exclude:
      - "^docs:"
      - "^test:"
      - "^chore:"
  groups:
    - title: Features
      regexp: "^feat(\\(.+\\))?:"
      order: 0
    - title: Bug Fixes
      regexp: "^fix(\\(.+\\))?:"
      order: 1

# bump:
#   files:
#     - VERSION

hooks:
  before:init:
    - go vet ./...
  after:release: echo "Released {{ .Name }} {{ .Version }}"
`
}
