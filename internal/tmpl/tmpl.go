/*
Package tmpl provides template processing for release-it.

Every configurable string (commit message, tag name, release name, hook
commands, announcement messages) is rendered through a Context.
*/
package tmpl

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/oarkflow/releaseit/internal/git"
)

// Keys of the values set while a release progresses.
const (
	Name          = "Name"
	Version       = "Version"
	LatestVersion = "LatestVersion"
	Tag           = "Tag"
	LatestTag     = "LatestTag"
	Changelog     = "Changelog"
	ReleaseURL    = "ReleaseURL"
)

// Context provides template context and rendering
type Context struct {
	data map[string]any
}

// New creates a template context seeded with repository information and
// custom variables.
func New(name string, info *git.Info, vars map[string]string) *Context {
	ctx := &Context{data: make(map[string]any)}
	ctx.init(name, info, vars)
	return ctx
}

func (c *Context) init(name string, info *git.Info, vars map[string]string) {
	now := time.Now()

	c.data[Name] = name
	c.data[Version] = ""
	c.data[LatestVersion] = ""
	c.data[Tag] = ""
	c.data[LatestTag] = ""
	c.data[Changelog] = ""
	c.data[ReleaseURL] = ""

	if info != nil {
		c.data["Branch"] = info.Branch
		c.data["Commit"] = info.Commit
		c.data["ShortCommit"] = info.ShortCommit
		c.data["CommitDate"] = info.CommitDate
		c.data["GitURL"] = info.URL
		c.data["RepoHost"] = info.Remote.Host
		c.data["RepoOwner"] = info.Remote.Owner
		c.data["RepoName"] = info.Remote.Repo
		if name == "" {
			c.data[Name] = info.Remote.Repo
		}
	}

	c.data["Date"] = now.Format("2006-01-02")
	c.data["Now"] = now

	env := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}
	c.data["Env"] = env

	// Custom variables from config
	for k, v := range vars {
		c.data[k] = v
	}
}

// Apply applies the template to a string
func (c *Context) Apply(tmpl string) (string, error) {
	t, err := Parse("", tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, c.data); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", tmpl, err)
	}

	return buf.String(), nil
}

// Set sets a value in the context
func (c *Context) Set(key string, value any) {
	c.data[key] = value
}

// Get gets a value from the context
func (c *Context) Get(key string) string {
	if val, ok := c.data[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// Data returns a copy of the template data
func (c *Context) Data() map[string]any {
	return maps.Clone(c.data)
}

// Parse parses tmpl with the shared function map and errors on missing keys.
func Parse(name, tmpl string) (*template.Template, error) {
	t, err := template.New(name).Funcs(Funcs()).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", tmpl, err)
	}
	return t, nil
}

// Funcs returns the template function map
func Funcs() template.FuncMap {
	return template.FuncMap{
		// String functions
		"replace":    strings.ReplaceAll,
		"tolower":    strings.ToLower,
		"toupper":    strings.ToUpper,
		"trim":       strings.TrimSpace,
		"trimprefix": strings.TrimPrefix,
		"trimsuffix": strings.TrimSuffix,
		"split":      strings.Split,
		"join":       strings.Join,
		"contains":   strings.Contains,
		"hasprefix":  strings.HasPrefix,
		"hassuffix":  strings.HasSuffix,
		"fields":     strings.Fields,

		// Environment
		"env":       os.Getenv,
		"expandenv": os.ExpandEnv,

		// Default value
		"default": func(def, val any) any {
			if val == nil || val == "" {
				return def
			}
			return val
		},

		// Date formatting
		"time": func(t time.Time, format string) string {
			return t.Format(format)
		},
		"now": time.Now,

		// Markdown helpers
		"mdlink": func(text, url string) string {
			return "[" + text + "](" + url + ")"
		},
		"mdcode": func(code string) string {
			return "`" + code + "`"
		},
	}
}
