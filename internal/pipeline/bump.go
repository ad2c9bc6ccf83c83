package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/oarkflow/releaseit/internal/changelog"
	"github.com/oarkflow/releaseit/internal/version"
)

// bump writes the new version into bump.files and prepends the changelog
// file.
func (p *Pipeline) bump() error {
	if p.options.NoIncrement {
		log.Info("Skipping version bump (no increment)")
	} else {
		for _, f := range p.config.Bump.Files {
			if err := p.bumpFile(f); err != nil {
				return err
			}
		}
	}

	file := p.config.Changelog.File
	if file == "" || p.notes == "" {
		return nil
	}
	path := p.path(file)
	if p.options.DryRun {
		log.Info("Skipping changelog update (dry run)", "file", file)
		return nil
	}

	entry := fmt.Sprintf("## %s (%s)\n\n%s", p.nextVersion, time.Now().Format("2006-01-02"), p.notes)
	if err := changelog.Prepend(path, entry); err != nil {
		return err
	}
	p.track(path)
	log.Info("Updated changelog", "file", file)
	return nil
}

// bumpFile replaces the latest version with the next one in file. A file
// holding nothing but a version, or a missing file, is rewritten with the
// new version.
func (p *Pipeline) bumpFile(file string) error {
	path := p.path(file)
	next := p.nextVersion.String()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	var out []byte
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || version.IsVersion(string(trimmed)):
		out = []byte(next + "\n")
	default:
		old := p.latestVersion.String()
		var n int
		out, n = replaceVersion(data, old, next)
		if n == 0 {
			log.Warn("Version not found in file", "file", file, "version", old)
			return nil
		}
	}

	if p.options.DryRun {
		log.Info("Skipping version bump (dry run)", "file", file, "version", next)
		return nil
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	p.track(path)
	log.Info("Bumped version", "file", file, "version", next)
	return nil
}

// replaceVersion replaces standalone occurrences of old, so 1.2.3 does not
// match inside 11.2.3 or 1.2.30.
func replaceVersion(data []byte, old, next string) ([]byte, int) {
	var (
		out   bytes.Buffer
		count int
	)
	rest := data
	for {
		i := bytes.Index(rest, []byte(old))
		if i < 0 {
			out.Write(rest)
			return out.Bytes(), count
		}
		end := i + len(old)
		consumed := len(data) - len(rest)
		before := byte(0)
		if consumed+i > 0 {
			before = data[consumed+i-1]
		}
		after := byte(0)
		if end < len(rest) {
			after = rest[end]
		}
		if isDigit(before) || before == '.' || isDigit(after) {
			out.Write(rest[:end])
		} else {
			out.Write(rest[:i])
			out.WriteString(next)
			count++
		}
		rest = rest[end:]
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func (p *Pipeline) path(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(p.repo.Dir(), file)
}

// track records a written file for staging, relative to the work tree.
func (p *Pipeline) track(path string) {
	rel, err := filepath.Rel(p.repo.Dir(), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		log.Warn("File is outside the repository and will not be committed", "path", path)
		return
	}
	p.written = append(p.written, filepath.ToSlash(rel))
}
