package git

import (
	"context"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/releaseit/internal/git/gittest"
)

func TestOpenNotRepository(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestInfo(t *testing.T) {
	fx := gittest.New(t)
	hash := fx.Commit("feat: initial", "README.md", "hello\n")

	repo, err := Open(fx.Dir)
	require.NoError(t, err)

	info, err := repo.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash, info.Commit)
	assert.Equal(t, hash[:8], info.ShortCommit)
	assert.Equal(t, "master", info.Branch)
	assert.Equal(t, "clean", info.TreeState)
	assert.Equal(t, "git@github.com:acme/widget.git", info.URL)
	assert.Equal(t, RemoteInfo{Host: "github.com", Owner: "acme", Repo: "widget"}, info.Remote)

	fx.Write("README.md", "changed\n")
	info, err = repo.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dirty", info.TreeState)
}

func TestIsCleanIgnoresUntracked(t *testing.T) {
	fx := gittest.New(t)
	fx.Commit("initial", "README.md", "hello\n")
	fx.Write("notes.txt", "scratch\n")

	repo, err := Open(fx.Dir)
	require.NoError(t, err)

	clean, err := repo.IsClean()
	require.NoError(t, err)
	assert.True(t, clean)
}

func TestTagsAndCommitsSince(t *testing.T) {
	fx := gittest.New(t)
	fx.Commit("feat: first", "a.txt", "1")
	fx.Tag("v1.0.0")
	fx.Commit("fix: second", "a.txt", "2")
	fx.LightweightTag("v1.0.1")
	third := fx.Commit("feat: third\n\nWith a body.", "a.txt", "3")

	repo, err := Open(fx.Dir)
	require.NoError(t, err)

	tags, err := repo.Tags()
	require.NoError(t, err)
	names := make([]string, 0, len(tags))
	for _, tg := range tags {
		names = append(names, tg.Name)
		assert.Len(t, tg.Commit, 40)
	}
	assert.ElementsMatch(t, []string{"v1.0.0", "v1.0.1"}, names)

	commits, err := repo.CommitsSince(context.Background(), "v1.0.0")
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, third, commits[0].Hash)
	assert.Equal(t, "feat: third", commits[0].Subject)
	assert.Equal(t, "With a body.", commits[0].Body)
	assert.Equal(t, "fix: second", commits[1].Subject)

	commits, err = repo.CommitsSince(context.Background(), "v1.0.1")
	require.NoError(t, err)
	assert.Len(t, commits, 1)

	all, err := repo.CommitsSince(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byHash, err := repo.CommitsSince(context.Background(), all[1].Hash)
	require.NoError(t, err)
	require.Len(t, byHash, 1)
	assert.Equal(t, third, byHash[0].Hash)

	_, err = repo.CommitsSince(context.Background(), "v9.9.9")
	assert.Error(t, err)
}

func TestCommitsSinceIncludesMergedBranches(t *testing.T) {
	fx := gittest.New(t)
	fx.Commit("feat: first", "a.txt", "1")
	fx.Tag("v1.0.0")

	fx.Branch("feature")
	feature := fx.Commit("feat: feature work", "feature.txt", "feature")
	fx.Checkout("master")
	mainWork := fx.Commit("fix: main work", "a.txt", "2")
	merge := fx.Merge("Merge feature", "feature", map[string]string{"feature.txt": "feature"})

	repo, err := Open(fx.Dir)
	require.NoError(t, err)

	commits, err := repo.CommitsSince(context.Background(), "v1.0.0")
	require.NoError(t, err)

	hashes := make([]string, 0, len(commits))
	for _, c := range commits {
		hashes = append(hashes, c.Hash)
	}
	assert.Equal(t, []string{merge, mainWork, feature}, hashes)

	all, err := repo.CommitsSince(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	fromFeature, err := repo.CommitsSince(context.Background(), "feature")
	require.NoError(t, err)
	require.Len(t, fromFeature, 2)
	assert.Equal(t, merge, fromFeature[0].Hash)
	assert.Equal(t, mainWork, fromFeature[1].Hash)
}

func TestStageCommitAndTag(t *testing.T) {
	fx := gittest.New(t)
	fx.Commit("initial", "VERSION", "1.0.0\n")

	repo, err := Open(fx.Dir)
	require.NoError(t, err)

	_, err = repo.Commit("Release 1.0.0")
	assert.ErrorIs(t, err, ErrNothingToCommit)

	fx.Write("VERSION", "1.1.0\n")
	fx.Write("CHANGELOG.md", "## 1.1.0\n")
	fx.Write("scratch.txt", "ignored\n")
	require.NoError(t, repo.Stage([]string{"CHANGELOG.md"}, false))

	hash, err := repo.Commit("Release 1.1.0")
	require.NoError(t, err)
	require.NoError(t, repo.CreateTag("v1.1.0", "Release 1.1.0"))

	tags, err := repo.Tags()
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, Tag{Name: "v1.1.0", Commit: hash}, tags[0])

	commit, err := fx.Repo.CommitObject(plumbingHash(t, hash))
	require.NoError(t, err)
	files, err := commit.Stats()
	require.NoError(t, err)
	var changed []string
	for _, f := range files {
		changed = append(changed, f.Name)
	}
	assert.ElementsMatch(t, []string{"VERSION", "CHANGELOG.md"}, changed)
}

func TestFilterCommits(t *testing.T) {
	commits := []Commit{
		{Hash: "1", Subject: "feat: add api"},
		{Hash: "2", Subject: "docs: readme"},
		{Hash: "3", Subject: "fix: crash"},
		{Hash: "4", Subject: "chore: deps"},
	}

	got := FilterCommits(commits, nil, []string{"^docs:", "^chore:"})
	assert.Equal(t, []Commit{commits[0], commits[2]}, got)

	got = FilterCommits(commits, []string{"^fix:"}, nil)
	assert.Equal(t, []Commit{commits[2]}, got)
}

func TestGroupCommits(t *testing.T) {
	commits := []Commit{
		{Hash: "1", Subject: "feat: add api"},
		{Hash: "2", Subject: "fix: crash"},
		{Hash: "3", Subject: "refactor: split"},
		{Hash: "4", Subject: "feat(cli): flag"},
	}

	groups := GroupCommits(commits, []CommitGroup{
		{Title: "Features", Regexp: `^feat(\(.+\))?:`, Order: 0},
		{Title: "Bug Fixes", Regexp: `^fix:`, Order: 1},
		{Title: "Docs", Regexp: `^docs:`, Order: 2},
	})

	require.Len(t, groups, 3)
	assert.Equal(t, "Features", groups[0].Title)
	assert.Len(t, groups[0].Commits, 2)
	assert.Equal(t, "Bug Fixes", groups[1].Title)
	assert.Equal(t, "Other", groups[2].Title)
	assert.Equal(t, "3", groups[2].Commits[0].Hash)

	ungrouped := GroupCommits(commits, nil)
	require.Len(t, ungrouped, 1)
	assert.Empty(t, ungrouped[0].Title)
	assert.Len(t, ungrouped[0].Commits, 4)
}

func plumbingHash(t *testing.T, s string) plumbing.Hash {
	t.Helper()
	h := plumbing.NewHash(s)
	require.False(t, h.IsZero())
	return h
}
