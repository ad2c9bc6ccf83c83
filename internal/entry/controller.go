// Package entry translates a command invocation into a process exit code.
//
// The Controller runs the release routine once, owns the resulting status and
// decides how a failure is reported: a single diagnostic line by default, or
// a re-raised error handed to the last-resort hook when --debug is present.
package entry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/oarkflow/releaseit/internal/parallel"
)

// DebugFlag is the token that switches diagnostics to debug mode.
const DebugFlag = "--debug"

// DefaultStrayGrace bounds how long Guard waits for stray tasks to be logged.
const DefaultStrayGrace = 2 * time.Second

// Exit codes reported by the controller.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Releaser is the release routine invoked by the controller. Background work
// must be started through tasks so its outcome is part of the result.
type Releaser interface {
	Release(ctx context.Context, args []string, tasks parallel.Spawner) error
}

// ReleaserFunc adapts a function to Releaser.
type ReleaserFunc func(ctx context.Context, args []string, tasks parallel.Spawner) error

// Release calls f.
func (f ReleaserFunc) Release(ctx context.Context, args []string, tasks parallel.Spawner) error {
	return f(ctx, args, tasks)
}

// Controller runs a Releaser and tracks the exit status.
type Controller struct {
	releaser Releaser
	stderr   io.Writer
	logger   *log.Logger
	grace    time.Duration
	tasks    atomic.Pointer[parallel.Group]
	debug    atomic.Bool
	status   atomic.Int32
}

// Option configures a Controller
type Option func(*Controller)

// WithStderr sets the diagnostic stream.
func WithStderr(w io.Writer) Option {
	return func(c *Controller) {
		if w != nil {
			c.stderr = w
		}
	}
}

// WithStrayGrace sets how long Guard waits for tasks spawned after the
// release settled.
func WithStrayGrace(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.grace = d
		}
	}
}

// New creates a controller for r.
func New(r Releaser, opts ...Option) *Controller {
	c := &Controller{
		releaser: r,
		stderr:   os.Stderr,
		grace:    DefaultStrayGrace,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.NewWithOptions(c.stderr, log.Options{
		Prefix: "release-it",
		Level:  log.DebugLevel,
	})
	return c
}

// HasDebugFlag reports whether the literal --debug token is present.
func HasDebugFlag(args []string) bool {
	return slices.Contains(args, DebugFlag)
}

// Run invokes the releaser with args unchanged. A failure sets the status to
// ExitFailure. Outside debug mode the failure is printed as one line and Run
// returns nil; in debug mode the failure is returned to the caller instead.
func (c *Controller) Run(ctx context.Context, args []string) error {
	c.debug.Store(HasDebugFlag(args))

	tasks := parallel.NewGroup(ctx, parallel.WithStrayHandler(c.stray))
	c.tasks.Store(tasks)
	err := c.invoke(ctx, args, tasks)
	if taskErr := tasks.Wait(); taskErr != nil {
		err = errors.Join(err, taskErr)
	}

	if err == nil {
		return nil
	}

	c.status.Store(ExitFailure)
	if c.Debug() {
		return err
	}
	_, _ = fmt.Fprintln(c.stderr, oneLine(err))
	return nil
}

// Debug reports whether the last Run saw --debug.
func (c *Controller) Debug() bool {
	return c.debug.Load()
}

// Status returns the exit code to terminate with.
func (c *Controller) Status() int {
	return int(c.status.Load())
}

// Unhandled is the last-resort hook for failures that escaped Run, including
// errors re-raised in debug mode. Errors are printed in debug mode only; any
// other value is a defect and is always logged.
func (c *Controller) Unhandled(v any) {
	if v == nil {
		return
	}
	if err, ok := v.(error); ok {
		if c.Debug() {
			c.logger.Error("Release failed", "error", err)
			for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
				c.logger.Debug("Caused by", "error", cause)
			}
		}
		return
	}
	c.logger.Error("Unexpected value escaped the release", "value", fmt.Sprintf("%v", v))
}

// Guard re-asserts the controller status into *code when the calling
// function returns. It must be deferred. A panic unwinding through the
// caller is recovered, reported and turned into ExitFailure. Tasks spawned
// after the release settled get up to the stray grace period to be logged.
func (c *Controller) Guard(code *int) {
	if r := recover(); r != nil {
		c.status.Store(ExitFailure)
		c.Unhandled(r)
	}
	if tasks := c.tasks.Load(); tasks != nil && !tasks.Drain(c.grace) {
		c.logger.Error("Tasks still running at exit", "grace", c.grace)
	}
	*code = c.Status()
}

func (c *Controller) invoke(ctx context.Context, args []string, tasks parallel.Spawner) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("release panicked: %w", e)
				return
			}
			err = fmt.Errorf("release panicked: %v", r)
		}
	}()
	return c.releaser.Release(ctx, args, tasks)
}

func (c *Controller) stray(r parallel.Result) {
	if r.Error != nil {
		c.logger.Error("Task reported after the release settled", "task", r.Name, "error", r.Error)
		return
	}
	c.logger.Error("Task finished after the release settled", "task", r.Name)
}

func oneLine(err error) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(err.Error(), "\n", "; ")), " ")
}
