// Package hook provides lifecycle hook execution.
package hook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/oarkflow/releaseit/internal/config"
)

// Renderer expands templates in hook commands, conditions and environment.
type Renderer interface {
	Apply(tmpl string) (string, error)
}

// Runner executes lifecycle hooks.
type Runner struct {
	hooks   map[string]config.HookList
	tmpl    Renderer
	workDir string
	dryRun  bool
	stdout  io.Writer
	stderr  io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithDryRun logs hooks instead of running them.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) { r.dryRun = dryRun }
}

// WithOutput sets where hooks with output enabled write.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// NewRunner creates a new hook runner.
func NewRunner(hooks map[string]config.HookList, tmpl Renderer, workDir string, opts ...Option) *Runner {
	r := &Runner{
		hooks:   hooks,
		tmpl:    tmpl,
		workDir: workDir,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunStage executes every hook registered for the lifecycle stage name.
func (r *Runner) RunStage(ctx context.Context, name string) error {
	hooks := r.hooks[name]
	if len(hooks) == 0 {
		return nil
	}
	log.Debug("Running hooks", "stage", name, "count", len(hooks))
	for _, h := range hooks {
		if err := r.Run(ctx, h); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Run executes a hook.
func (r *Runner) Run(ctx context.Context, hook config.Hook) error {
	// Check condition
	if hook.If != "" {
		condition, err := r.tmpl.Apply(hook.If)
		if err != nil {
			return fmt.Errorf("failed to evaluate condition: %w", err)
		}
		condition = strings.TrimSpace(condition)
		if condition != "true" && condition != "1" {
			log.Debug("Skipping hook due to condition", "condition", hook.If)
			return nil
		}
	}

	cmd := hook.Cmd
	if strings.TrimSpace(cmd) == "" {
		return nil
	}

	cmd, err := r.tmpl.Apply(cmd)
	if err != nil {
		return fmt.Errorf("failed to apply template to command: %w", err)
	}

	if r.dryRun {
		log.Info("Skipping hook (dry run)", "cmd", cmd)
		return nil
	}

	log.Info("Running hook", "cmd", cmd)

	var c *exec.Cmd
	if hook.Shell {
		if runtime.GOOS == "windows" {
			c = exec.CommandContext(ctx, "powershell.exe", "-Command", cmd)
		} else {
			c = exec.CommandContext(ctx, "/bin/sh", "-c", cmd)
		}
	} else {
		// Parse command into args
		parts := strings.Fields(cmd)
		if len(parts) == 0 {
			return nil
		}
		c = exec.CommandContext(ctx, parts[0], parts[1:]...)
	}

	c.Dir = r.workDir
	if hook.Dir != "" {
		c.Dir = hook.Dir
		if !filepath.IsAbs(hook.Dir) {
			c.Dir = filepath.Join(r.workDir, hook.Dir)
		}
	}

	c.Env = os.Environ()
	for key, value := range hook.Env {
		expanded, err := r.tmpl.Apply(value)
		if err != nil {
			return fmt.Errorf("failed to apply template to env %s: %w", key, err)
		}
		c.Env = append(c.Env, key+"="+expanded)
	}

	// Captured output is surfaced in the error when the hook fails
	var captured bytes.Buffer
	if hook.Output == "true" || hook.Output == "1" {
		c.Stdout = r.stdout
		c.Stderr = r.stderr
	} else {
		c.Stdout = &captured
		c.Stderr = &captured
	}

	if err := c.Run(); err != nil {
		if out := strings.TrimSpace(captured.String()); out != "" {
			err = fmt.Errorf("%w: %s", err, out)
		}
		if hook.FailFast {
			return fmt.Errorf("hook %q failed: %w", cmd, err)
		}
		log.Warn("Hook failed but continuing", "cmd", cmd, "error", err)
	}

	return nil
}
