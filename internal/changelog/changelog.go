/*
Package changelog renders release notes from commits.
*/
package changelog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oarkflow/releaseit/internal/config"
	"github.com/oarkflow/releaseit/internal/git"
)

// Supported output formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatMarkdown, FormatJSON, FormatYAML}

// Release identifies the version the notes describe.
type Release struct {
	Version string
	Tag     string
	Date    string
}

// Notes are the filtered and grouped commits of one release.
type Notes struct {
	Version string  `json:"version" yaml:"version"`
	Tag     string  `json:"tag,omitempty" yaml:"tag,omitempty"`
	Date    string  `json:"date" yaml:"date"`
	Groups  []Group `json:"groups" yaml:"groups"`
}

// Group is a titled set of entries. The title is empty when no groups are configured.
type Group struct {
	Title   string  `json:"title,omitempty" yaml:"title,omitempty"`
	Entries []Entry `json:"entries" yaml:"entries"`
}

// Entry is a single changelog line.
type Entry struct {
	Hash    string `json:"hash" yaml:"hash"`
	Subject string `json:"subject" yaml:"subject"`
	Author  string `json:"author" yaml:"author"`
	Date    string `json:"date" yaml:"date"`
}

// Empty reports whether the notes contain no entries.
func (n Notes) Empty() bool {
	for _, g := range n.Groups {
		if len(g.Entries) > 0 {
			return false
		}
	}
	return true
}

// Renderer expands header and footer templates.
type Renderer interface {
	Apply(tmpl string) (string, error)
}

// Generator generates changelogs
type Generator struct {
	config   config.Changelog
	renderer Renderer
}

// New creates a new changelog generator. renderer may be nil, in which case
// header and footer are written verbatim.
func New(cfg config.Changelog, renderer Renderer) *Generator {
	return &Generator{config: cfg, renderer: renderer}
}

// Notes filters, groups and sorts commits into release notes.
func (g *Generator) Notes(commits []git.Commit, rel Release) Notes {
	if len(g.config.Filters.Exclude) > 0 || len(g.config.Filters.Include) > 0 {
		commits = git.FilterCommits(commits, g.config.Filters.Include, g.config.Filters.Exclude)
	}

	var groups []git.CommitGroup
	for _, gr := range g.config.Groups {
		groups = append(groups, git.CommitGroup{
			Title:  gr.Title,
			Regexp: gr.Regexp,
			Order:  gr.Order,
		})
	}
	grouped := git.GroupCommits(commits, groups)

	// Sort groups by order
	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].Order < grouped[j].Order
	})

	notes := Notes{Version: rel.Version, Tag: rel.Tag, Date: rel.Date}
	for _, gc := range grouped {
		cs := gc.Commits
		switch g.config.Sort {
		case "asc":
			sort.SliceStable(cs, func(i, j int) bool { return cs[i].Date.Before(cs[j].Date) })
		case "desc":
			sort.SliceStable(cs, func(i, j int) bool { return cs[i].Date.After(cs[j].Date) })
		}

		group := Group{Title: gc.Title}
		for _, c := range cs {
			subject := c.Subject
			if gc.Title != "" {
				subject = cleanSubject(subject)
			}
			group.Entries = append(group.Entries, Entry{
				Hash:    shortHash(c.Hash),
				Subject: subject,
				Author:  c.AuthorName,
				Date:    c.Date.Format("2006-01-02"),
			})
		}
		notes.Groups = append(notes.Groups, group)
	}

	return notes
}

// Generate builds notes from commits and renders them in format.
func (g *Generator) Generate(commits []git.Commit, rel Release, format string) (string, error) {
	notes := g.Notes(commits, rel)
	switch format {
	case FormatJSON:
		return formatJSON(notes)
	case FormatYAML:
		return formatYAML(notes)
	case FormatMarkdown, "":
		return g.Markdown(notes, false)
	default:
		return "", fmt.Errorf("unsupported changelog format %q (valid: %s)", format, strings.Join(Formats, ", "))
	}
}

// Markdown renders notes as a Markdown list. heading prefixes a version
// heading, as used when writing to the changelog file.
func (g *Generator) Markdown(notes Notes, heading bool) (string, error) {
	var buf bytes.Buffer

	if g.config.Header != "" {
		header, err := g.apply(g.config.Header)
		if err != nil {
			return "", err
		}
		buf.WriteString(header)
		buf.WriteString("\n\n")
	}

	if heading {
		version := notes.Version
		if version == "" {
			version = "Unreleased"
		}
		if notes.Date != "" {
			fmt.Fprintf(&buf, "## %s (%s)\n\n", version, notes.Date)
		} else {
			fmt.Fprintf(&buf, "## %s\n\n", version)
		}
	}

	for _, group := range notes.Groups {
		if len(group.Entries) == 0 {
			continue
		}

		if group.Title != "" {
			fmt.Fprintf(&buf, "### %s\n\n", group.Title)
		}
		for _, e := range group.Entries {
			fmt.Fprintf(&buf, "* %s (%s)\n", e.Subject, e.Hash)
		}
		buf.WriteString("\n")

		// Add divider if configured
		if g.config.Divider != "" {
			buf.WriteString(g.config.Divider)
			buf.WriteString("\n\n")
		}
	}

	if g.config.Footer != "" {
		footer, err := g.apply(g.config.Footer)
		if err != nil {
			return "", err
		}
		buf.WriteString(footer)
		buf.WriteString("\n")
	}

	out := strings.TrimRight(buf.String(), "\n")
	if out == "" {
		return "", nil
	}
	return out + "\n", nil
}

func (g *Generator) apply(text string) (string, error) {
	if g.renderer == nil {
		return text, nil
	}
	return g.renderer.Apply(text)
}

// formatJSON formats the changelog as JSON
func formatJSON(notes Notes) (string, error) {
	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode changelog: %w", err)
	}
	return string(data) + "\n", nil
}

// formatYAML formats the changelog as YAML
func formatYAML(notes Notes) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(notes); err != nil {
		return "", fmt.Errorf("failed to encode changelog: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode changelog: %w", err)
	}
	return buf.String(), nil
}

// titleRe matches a leading top-level heading such as "# Changelog".
var titleRe = regexp.MustCompile(`\A# [^\n]*\n+`)

// Prepend writes entry at the top of the changelog file at path, below its
// title heading if it has one. The file is created when missing.
func Prepend(path, entry string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	entry = strings.TrimRight(entry, "\n") + "\n"

	var buf bytes.Buffer
	rest := existing
	if loc := titleRe.FindIndex(existing); loc != nil {
		buf.Write(bytes.TrimRight(existing[:loc[1]], "\n"))
		buf.WriteString("\n\n")
		rest = existing[loc[1]:]
	}
	buf.WriteString(entry)
	if len(bytes.TrimSpace(rest)) > 0 {
		buf.WriteString("\n")
		buf.Write(rest)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

var conventionalRe = regexp.MustCompile(`^(feat|fix|docs|style|refactor|perf|test|chore|build|ci)(\(.+\))?!?:\s*`)

// cleanSubject cleans up a commit subject
func cleanSubject(subject string) string {
	// Remove conventional commit prefixes for display
	subject = conventionalRe.ReplaceAllString(subject, "")

	// Capitalize first letter
	if len(subject) > 0 {
		subject = strings.ToUpper(subject[:1]) + subject[1:]
	}

	return subject
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
