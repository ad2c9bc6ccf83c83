package tmpl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/releaseit/internal/git"
)

func testContext(t *testing.T) *Context {
	t.Helper()
	t.Setenv("RELEASE_CHANNEL", "stable")

	info := &git.Info{
		Commit:      "0123456789abcdef0123456789abcdef01234567",
		ShortCommit: "01234567",
		Branch:      "main",
		CommitDate:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		URL:         "git@github.com:acme/widget.git",
		Remote:      git.RemoteInfo{Host: "github.com", Owner: "acme", Repo: "widget"},
	}
	ctx := New("", info, map[string]string{"Team": "platform"})
	ctx.Set(Version, "1.2.0")
	ctx.Set(LatestVersion, "1.1.4")
	return ctx
}

func TestApply(t *testing.T) {
	ctx := testContext(t)

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{name: "version", tmpl: "Release {{ .Version }}", want: "Release 1.2.0"},
		{name: "latest", tmpl: "{{ .LatestVersion }}..{{ .Version }}", want: "1.1.4..1.2.0"},
		{name: "repo", tmpl: "{{ .RepoOwner }}/{{ .RepoName }}@{{ .Branch }}", want: "acme/widget@main"},
		{name: "name from remote", tmpl: "{{ .Name }}", want: "widget"},
		{name: "variables", tmpl: "{{ .Team }}", want: "platform"},
		{name: "env map", tmpl: "{{ .Env.RELEASE_CHANNEL }}", want: "stable"},
		{name: "env func", tmpl: `{{ env "RELEASE_CHANNEL" | toupper }}`, want: "STABLE"},
		{name: "default", tmpl: `{{ default "none" .Changelog }}`, want: "none"},
		{name: "commit date", tmpl: `{{ time .CommitDate "2006-01-02" }}`, want: "2024-05-01"},
		{name: "mdlink", tmpl: `{{ mdlink .Version "https://example.com" }}`, want: "[1.2.0](https://example.com)"},
		{name: "plain text", tmpl: "no templating", want: "no templating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ctx.Apply(tt.tmpl)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyErrors(t *testing.T) {
	ctx := testContext(t)

	_, err := ctx.Apply("{{ .Version ")
	assert.Error(t, err)

	_, err = ctx.Apply("{{ .Missing }}")
	assert.Error(t, err)
}

func TestSetGet(t *testing.T) {
	ctx := New("widget", nil, nil)
	assert.Equal(t, "widget", ctx.Get(Name))
	assert.Empty(t, ctx.Get(Tag))

	ctx.Set(Tag, "v2.0.0")
	ctx.Set("Count", 3)
	assert.Equal(t, "v2.0.0", ctx.Get(Tag))
	assert.Empty(t, ctx.Get("Count"))

	data := ctx.Data()
	data[Tag] = "changed"
	assert.Equal(t, "v2.0.0", ctx.Get(Tag))
}
