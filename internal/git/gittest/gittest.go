// Package gittest builds throwaway git repositories for tests.
package gittest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repo is a repository rooted in a temporary directory.
type Repo struct {
	t    testing.TB
	Dir  string
	Repo *git.Repository
	now  time.Time
}

// New initialises an empty repository with an origin remote.
func New(t testing.TB) *Repo {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repository: %v", err)
	}
	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@github.com:acme/widget.git"},
	})
	if err != nil {
		t.Fatalf("create remote: %v", err)
	}

	return &Repo{t: t, Dir: dir, Repo: repo, now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// Write writes a file relative to the work tree.
func (r *Repo) Write(name, content string) {
	r.t.Helper()
	p := filepath.Join(r.Dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		r.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		r.t.Fatalf("write %s: %v", name, err)
	}
}

// Commit writes name with content, stages it and commits with message.
func (r *Repo) Commit(message, name, content string) string {
	r.t.Helper()
	r.Write(name, content)

	wt, err := r.Repo.Worktree()
	if err != nil {
		r.t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		r.t.Fatalf("add %s: %v", name, err)
	}

	r.now = r.now.Add(time.Minute)
	hash, err := wt.Commit(message, &git.CommitOptions{Author: r.signature()})
	if err != nil {
		r.t.Fatalf("commit: %v", err)
	}
	return hash.String()
}

// Branch creates branch name at HEAD and checks it out.
func (r *Repo) Branch(name string) {
	r.t.Helper()
	r.checkout(name, true)
}

// Checkout switches the work tree to an existing branch.
func (r *Repo) Checkout(name string) {
	r.t.Helper()
	r.checkout(name, false)
}

func (r *Repo) checkout(name string, create bool) {
	r.t.Helper()
	wt, err := r.Repo.Worktree()
	if err != nil {
		r.t.Fatalf("worktree: %v", err)
	}
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: create,
	})
	if err != nil {
		r.t.Fatalf("checkout %s: %v", name, err)
	}
}

// Merge records a merge commit of branch into HEAD. The files branch changed
// must be passed in files so the merged tree contains them.
func (r *Repo) Merge(message, branch string, files map[string]string) string {
	r.t.Helper()
	head, err := r.Repo.Head()
	if err != nil {
		r.t.Fatalf("head: %v", err)
	}
	other, err := r.Repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		r.t.Fatalf("branch %s: %v", branch, err)
	}

	wt, err := r.Repo.Worktree()
	if err != nil {
		r.t.Fatalf("worktree: %v", err)
	}
	for name, content := range files {
		r.Write(name, content)
		if _, err := wt.Add(name); err != nil {
			r.t.Fatalf("add %s: %v", name, err)
		}
	}

	r.now = r.now.Add(time.Minute)
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:  r.signature(),
		Parents: []plumbing.Hash{head.Hash(), other.Hash()},
	})
	if err != nil {
		r.t.Fatalf("merge %s: %v", branch, err)
	}
	return hash.String()
}

// Origin replaces the origin remote with a bare repository on disk and
// returns it.
func (r *Repo) Origin() *git.Repository {
	r.t.Helper()
	dir := filepath.Join(r.t.TempDir(), "origin.git")
	bare, err := git.PlainInit(dir, true)
	if err != nil {
		r.t.Fatalf("init origin: %v", err)
	}
	if err := r.Repo.DeleteRemote("origin"); err != nil {
		r.t.Fatalf("delete remote: %v", err)
	}
	_, err = r.Repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{dir}})
	if err != nil {
		r.t.Fatalf("create remote: %v", err)
	}
	return bare
}

// Tag creates an annotated tag on HEAD.
func (r *Repo) Tag(name string) {
	r.t.Helper()
	head, err := r.Repo.Head()
	if err != nil {
		r.t.Fatalf("head: %v", err)
	}
	_, err = r.Repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Tagger:  r.signature(),
		Message: "Release " + name,
	})
	if err != nil {
		r.t.Fatalf("tag %s: %v", name, err)
	}
}

// LightweightTag creates a tag reference without a tag object.
func (r *Repo) LightweightTag(name string) {
	r.t.Helper()
	head, err := r.Repo.Head()
	if err != nil {
		r.t.Fatalf("head: %v", err)
	}
	if _, err := r.Repo.CreateTag(name, head.Hash(), nil); err != nil {
		r.t.Fatalf("tag %s: %v", name, err)
	}
}

func (r *Repo) signature() *object.Signature {
	return &object.Signature{Name: "Test", Email: "test@example.com", When: r.now}
}
