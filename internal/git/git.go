/*
Package git provides git repository access for release-it.

Inspection, committing and tagging go through go-git. Pushing and upstream
lookups shell out to the git binary so credential helpers and SSH agents
configured for the user keep working.
*/
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	// ErrNotRepository is returned when the directory is not inside a git work tree.
	ErrNotRepository = errors.New("not a git repository")

	// ErrNothingToCommit is returned by Commit when nothing is staged.
	ErrNothingToCommit = errors.New("nothing to commit")
)

// Info contains git repository information
type Info struct {
	// Commit is the current commit hash
	Commit string

	// ShortCommit is the short commit hash
	ShortCommit string

	// Branch is the current branch, empty when HEAD is detached
	Branch string

	// TreeState indicates if the tree is clean or dirty
	TreeState string

	// CommitDate is the commit date
	CommitDate time.Time

	// URL is the repository URL
	URL string

	// Remote identifies the hosting repository parsed from URL
	Remote RemoteInfo
}

// Commit represents a git commit
type Commit struct {
	Hash        string
	Subject     string
	Body        string
	AuthorName  string
	AuthorEmail string
	Date        time.Time
}

// Tag is a tag reference resolved to the commit it points at.
type Tag struct {
	Name   string
	Commit string
}

// Repository wraps a git work tree.
type Repository struct {
	repo *git.Repository
	dir  string
}

// Open opens the repository containing dir.
func Open(dir string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, dir)
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	root := dir
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}

	return &Repository{repo: repo, dir: root}, nil
}

// Dir returns the work tree root.
func (r *Repository) Dir() string {
	return r.dir
}

// Info extracts information about HEAD and the origin remote.
func (r *Repository) Info(ctx context.Context) (*Info, error) {
	info := &Info{}

	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	info.Commit = head.Hash().String()
	info.ShortCommit = info.Commit[:8]
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}

	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", info.ShortCommit, err)
	}
	info.CommitDate = commit.Committer.When

	clean, err := r.IsClean()
	if err != nil {
		return nil, err
	}
	info.TreeState = "dirty"
	if clean {
		info.TreeState = "clean"
	}

	if remote, err := r.repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
		info.URL = remote.Config().URLs[0]
		info.Remote, _ = ParseRemoteURL(info.URL)
	}

	return info, nil
}

// Tags returns every tag with the commit it points at.
func (r *Repository) Tags() ([]Tag, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	var tags []Tag
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		hash, err := r.peel(ref.Hash())
		if err != nil {
			return err
		}
		tags = append(tags, Tag{Name: ref.Name().Short(), Commit: hash.String()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tags: %w", err)
	}
	return tags, nil
}

// peel resolves an annotated tag object to its commit.
func (r *Repository) peel(hash plumbing.Hash) (plumbing.Hash, error) {
	tag, err := r.repo.TagObject(hash)
	switch {
	case errors.Is(err, plumbing.ErrObjectNotFound):
		return hash, nil
	case err != nil:
		return plumbing.ZeroHash, err
	}
	commit, err := tag.Commit()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return commit.Hash, nil
}

// CommitsSince returns commits reachable from HEAD but not from ref, newest
// first. ref is a tag name or any revision; an empty ref returns the full
// history. Commits merged in from side branches after ref are included.
func (r *Repository) CommitsSince(ctx context.Context, ref string) ([]Commit, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	released := map[plumbing.Hash]bool{}
	if ref != "" {
		stop, err := r.resolve(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", ref, err)
		}
		if released, err = r.ancestors(ctx, stop); err != nil {
			return nil, err
		}
	}

	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if released[c.Hash] {
			return nil
		}
		subject, body, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
		commits = append(commits, Commit{
			Hash:        c.Hash.String(),
			Subject:     strings.TrimSpace(subject),
			Body:        strings.TrimSpace(body),
			AuthorName:  c.Author.Name,
			AuthorEmail: c.Author.Email,
			Date:        c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return commits, nil
}

// ancestors returns from and every commit reachable from it.
func (r *Repository) ancestors(ctx context.Context, from plumbing.Hash) (map[plumbing.Hash]bool, error) {
	iter, err := r.repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return nil, fmt.Errorf("failed to read log of %s: %w", from, err)
	}
	defer iter.Close()

	seen := map[plumbing.Hash]bool{}
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seen, nil
}

// resolve returns the commit a tag or revision points at.
func (r *Repository) resolve(ref string) (plumbing.Hash, error) {
	if tag, err := r.repo.Tag(ref); err == nil {
		return r.peel(tag.Hash())
	}
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return *hash, nil
}

// IsClean reports whether tracked files have no staged or unstaged changes.
// Untracked files are ignored.
func (r *Repository) IsClean() (bool, error) {
	status, err := r.status()
	if err != nil {
		return false, err
	}
	for _, s := range status {
		if s.Staging == git.Untracked && s.Worktree == git.Untracked {
			continue
		}
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			return false, nil
		}
	}
	return true, nil
}

func (r *Repository) status() (git.Status, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return status, nil
}

// Stage adds the given paths plus every modified or deleted tracked file.
// Untracked files other than paths are staged only when untracked is true.
func (r *Repository) Stage(paths []string, untracked bool) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	for _, p := range paths {
		if _, err := wt.Add(p); err != nil {
			return fmt.Errorf("failed to stage %s: %w", p, err)
		}
	}

	for path, s := range status {
		switch {
		case s.Worktree == git.Deleted:
			if _, err := wt.Remove(path); err != nil {
				return fmt.Errorf("failed to stage removal of %s: %w", path, err)
			}
		case s.Worktree == git.Untracked:
			if !untracked {
				continue
			}
			if _, err := wt.Add(path); err != nil {
				return fmt.Errorf("failed to stage %s: %w", path, err)
			}
		case s.Worktree != git.Unmodified:
			if _, err := wt.Add(path); err != nil {
				return fmt.Errorf("failed to stage %s: %w", path, err)
			}
		}
	}
	return nil
}

// Commit records the staged changes and returns the new commit hash.
func (r *Repository) Commit(message string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: r.signature()})
	if errors.Is(err, git.ErrEmptyCommit) {
		return "", ErrNothingToCommit
	}
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return hash.String(), nil
}

// CreateTag tags HEAD. A non-empty annotation creates an annotated tag.
func (r *Repository) CreateTag(name, annotation string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	var opts *git.CreateTagOptions
	if annotation != "" {
		opts = &git.CreateTagOptions{Tagger: r.signature(), Message: annotation}
	}
	if _, err := r.repo.CreateTag(name, head.Hash(), opts); err != nil {
		return fmt.Errorf("failed to create tag %s: %w", name, err)
	}
	return nil
}

// signature resolves the author from the environment, then git config.
func (r *Repository) signature() *object.Signature {
	sig := &object.Signature{
		Name:  os.Getenv("GIT_AUTHOR_NAME"),
		Email: os.Getenv("GIT_AUTHOR_EMAIL"),
		When:  time.Now(),
	}
	if cfg, err := r.repo.ConfigScoped(gitconfig.GlobalScope); err == nil {
		if sig.Name == "" {
			sig.Name = cfg.User.Name
		}
		if sig.Email == "" {
			sig.Email = cfg.User.Email
		}
	}
	if sig.Name == "" {
		sig.Name = "release-it"
	}
	if sig.Email == "" {
		sig.Email = "release-it@localhost"
	}
	return sig
}

// Upstream returns the upstream of the current branch, e.g. origin/main.
func (r *Repository) Upstream(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil {
		return "", fmt.Errorf("no upstream configured for the current branch: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Push runs git push with args, e.g. --follow-tags origin main.
func (r *Repository) Push(ctx context.Context, args ...string) error {
	if _, err := r.run(ctx, append([]string{"push"}, args...)...); err != nil {
		return fmt.Errorf("failed to push: %w", err)
	}
	return nil
}

// run executes a git command in the work tree and returns the output
func (r *Repository) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %s", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// FilterCommits filters commits based on patterns
func FilterCommits(commits []Commit, include, exclude []string) []Commit {
	var result []Commit

	for _, c := range commits {
		// Check exclude patterns
		excluded := false
		for _, pattern := range exclude {
			re, err := regexp.Compile(pattern)
			if err != nil {
				continue
			}
			if re.MatchString(c.Subject) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		// Check include patterns (if any)
		if len(include) > 0 {
			included := false
			for _, pattern := range include {
				re, err := regexp.Compile(pattern)
				if err != nil {
					continue
				}
				if re.MatchString(c.Subject) {
					included = true
					break
				}
			}
			if !included {
				continue
			}
		}

		result = append(result, c)
	}

	return result
}

// GroupCommits groups commits by pattern
func GroupCommits(commits []Commit, groups []CommitGroup) []GroupedCommits {
	var result []GroupedCommits
	used := make(map[string]bool)

	for _, group := range groups {
		gc := GroupedCommits{
			Title: group.Title,
			Order: group.Order,
		}

		re, err := regexp.Compile(group.Regexp)
		if err != nil {
			continue
		}

		for _, c := range commits {
			if used[c.Hash] {
				continue
			}
			if re.MatchString(c.Subject) {
				gc.Commits = append(gc.Commits, c)
				used[c.Hash] = true
			}
		}

		if len(gc.Commits) > 0 {
			result = append(result, gc)
		}
	}

	// Add ungrouped commits
	var ungrouped []Commit
	for _, c := range commits {
		if !used[c.Hash] {
			ungrouped = append(ungrouped, c)
		}
	}
	if len(ungrouped) > 0 {
		title := "Other"
		if len(groups) == 0 {
			title = ""
		}
		result = append(result, GroupedCommits{
			Title:   title,
			Commits: ungrouped,
			Order:   999,
		})
	}

	return result
}

// CommitGroup defines a commit group pattern
type CommitGroup struct {
	Title  string
	Regexp string
	Order  int
}

// GroupedCommits represents commits in a group
type GroupedCommits struct {
	Title   string
	Commits []Commit
	Order   int
}
