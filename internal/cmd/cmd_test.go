package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/releaseit/internal/git/gittest"
	"github.com/oarkflow/releaseit/internal/parallel"
)

// execute runs args against a fresh command tree rooted at dir.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	r := NewReleaser(WithDir(dir), WithIO(strings.NewReader(""), &out, &out))

	tasks := parallel.NewGroup(context.Background())
	err := r.Release(context.Background(), args, tasks)
	require.NoError(t, tasks.Wait())
	return out.String(), err
}

func fixture(t *testing.T) *gittest.Repo {
	t.Helper()
	r := gittest.New(t)
	r.Commit("Initial commit", "VERSION", "1.0.0\n")
	r.Tag("v1.0.0")
	r.Commit("feat: add widget", "widget.go", "package widget\n")
	r.Write(".release-it.yaml", "git:\n  requireUpstream: false\n  push: false\nbump:\n  files: [VERSION]\n")
	return r
}

func TestRelease(t *testing.T) {
	r := fixture(t)

	out, err := execute(t, r.Dir, "patch", "--ci", "--no-git.tag")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(filepath.Join(r.Dir, "VERSION"))
	require.NoError(t, err)
	assert.Equal(t, "1.0.1\n", string(data))

	head, err := r.Repo.Head()
	require.NoError(t, err)
	commit, err := r.Repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "Release 1.0.1", strings.TrimSpace(commit.Message))

	_, err = r.Repo.Tag("v1.0.1")
	assert.Error(t, err, "tagging was disabled")
}

func TestReleaseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr string
	}{
		{name: "positional increment", args: []string{"major"}, want: "2.0.0\n"},
		{name: "increment flag", args: []string{"-i", "minor"}, want: "1.1.0\n"},
		{name: "positional wins", args: []string{"minor", "--increment", "major"}, want: "1.1.0\n"},
		{name: "pre-release", args: []string{"--preRelease", "rc"}, want: "1.0.1-rc.0\n"},
		{name: "explicit version", args: []string{"4.0.0"}, want: "4.0.0\n"},
		{name: "invalid increment", args: []string{"sideways"}, wantErr: "increment must be one of"},
		{name: "too many args", args: []string{"major", "minor"}, wantErr: "accepts at most 1 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fixture(t)
			args := append([]string{"--ci", "--release-version"}, tt.args...)
			out, err := execute(t, r.Dir, args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestReleaseGitHubFlagOverridesConfig(t *testing.T) {
	r := fixture(t)
	t.Setenv("GITHUB_TOKEN", "")

	_, err := execute(t, r.Dir, "--ci", "--no-git.commit", "--no-git.tag", "--github.release")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment variable GITHUB_TOKEN is required for GitHub releases")
}

func TestChangelogCommand(t *testing.T) {
	r := fixture(t)

	out, err := execute(t, r.Dir, "changelog")
	require.NoError(t, err)
	assert.Contains(t, out, "* feat: add widget (")
	assert.NotContains(t, out, "Initial commit")

	out, err = execute(t, r.Dir, "changelog", "--format", "json")
	require.NoError(t, err)
	var notes map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &notes))
	assert.Equal(t, "Unreleased", notes["version"])

	file := filepath.Join(t.TempDir(), "NOTES.md")
	out, err = execute(t, r.Dir, "changelog", "-o", file)
	require.NoError(t, err)
	assert.Empty(t, out)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "feat: add widget")

	_, err = execute(t, r.Dir, "changelog", "--since", "v9")
	assert.ErrorContains(t, err, "failed to resolve v9")
}

func TestCheckCommand(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		want    string
		wantErr string
	}{
		{name: "no config", want: "No configuration file found"},
		{name: "valid", config: "git:\n  tagName: \"release-{{ .Version }}\"\n", want: "is valid"},
		{name: "unknown key", config: "gitt:\n  tag: true\n", wantErr: "gitt: unknown property"},
		{name: "bad template", config: "git:\n  commitMessage: \"{{ .Version | shout }}\"\n", wantErr: "invalid template in git.commitMessage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.config != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, ".release-it.yml"), []byte(tt.config), 0o644))
			}

			out, err := execute(t, dir, "check")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created")

	path := filepath.Join(dir, ".release-it.yaml")
	require.FileExists(t, path)

	out, err = execute(t, dir, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	_, err = execute(t, dir, "init")
	assert.ErrorContains(t, err, "config file already exists")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "release-it "), out)
}

func TestSchemaCommand(t *testing.T) {
	out, err := execute(t, t.TempDir(), "schema", "generate")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "properties")

	dir := t.TempDir()
	good := filepath.Join(dir, ".release-it.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"git": {"push": false}}`), 0o644))
	out, err = execute(t, dir, "schema", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "matches the schema")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"git": {"push": "no"}}`), 0o644))
	_, err = execute(t, dir, "schema", "validate", bad)
	assert.ErrorContains(t, err, "git.push: expected type boolean, got string")
}

func TestCompletion(t *testing.T) {
	out, err := execute(t, t.TempDir(), "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "release-it")

	_, err = execute(t, t.TempDir(), "completion", "tcsh")
	assert.Error(t, err)

	home := t.TempDir()
	path, err := installCompletion(newRootCmd(NewReleaser(), parallel.NewGroup(context.Background())), "fish", home)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config/fish/completions/release-it.fish"), path)
	assert.FileExists(t, path)
}

func TestCICDCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "ci", "generate", "gitlab", "--branch", "trunk")
	require.NoError(t, err)
	assert.Contains(t, out, ".gitlab-ci.yml")

	data, err := os.ReadFile(filepath.Join(dir, ".gitlab-ci.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `$CI_COMMIT_BRANCH == "trunk"`)

	_, err = execute(t, dir, "ci", "generate", "gitlab")
	assert.ErrorContains(t, err, "already exists")
}
