// Package parallel supervises asynchronous work spawned during a release.
//
// Every task started through a Group reports its outcome on a single results
// channel. Outcomes are folded into the error returned by Wait. Once Wait has
// returned the group is sealed, and anything spawned afterwards is treated as
// a defect and handed to the stray handler. Drain gives those handlers a
// bounded chance to finish before the process exits.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Spawner starts supervised background work.
type Spawner interface {
	Go(name string, fn func(ctx context.Context) error)
}

// Result represents the outcome of a task execution
type Result struct {
	Name  string
	Error error
}

// StrayFunc receives results that arrived after the group was sealed.
type StrayFunc func(Result)

// Group runs tasks concurrently and collects their results.
type Group struct {
	ctx     context.Context
	eg      errgroup.Group
	results chan Result
	done    chan struct{}
	errs    []error
	onStray StrayFunc

	mu     sync.Mutex
	sealed bool
	strays []chan struct{}
}

// GroupOption configures a Group
type GroupOption func(*Group)

// WithStrayHandler sets the handler for results delivered after Wait.
func WithStrayHandler(fn StrayFunc) GroupOption {
	return func(g *Group) {
		if fn != nil {
			g.onStray = fn
		}
	}
}

// NewGroup creates a group whose tasks receive ctx.
func NewGroup(ctx context.Context, opts ...GroupOption) *Group {
	g := &Group{
		ctx:     ctx,
		results: make(chan Result),
		done:    make(chan struct{}),
		onStray: logStray,
	}
	for _, opt := range opts {
		opt(g)
	}
	go g.collect()
	return g
}

// Go starts fn in its own goroutine.
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sealed {
		done := make(chan struct{})
		g.strays = append(g.strays, done)
		go func() {
			defer close(done)
			g.onStray(Result{Name: name, Error: call(g.ctx, name, fn)})
		}()
		return
	}

	g.eg.Go(func() error {
		g.results <- Result{Name: name, Error: call(g.ctx, name, fn)}
		return nil
	})
}

// Wait blocks until every task has reported, seals the group and returns
// the joined task failures.
func (g *Group) Wait() error {
	_ = g.eg.Wait()

	g.mu.Lock()
	g.sealed = true
	g.mu.Unlock()

	// Tasks spawned between the first Wait and sealing.
	_ = g.eg.Wait()

	close(g.results)
	<-g.done
	return errors.Join(g.errs...)
}

// Sealed reports whether Wait has completed.
func (g *Group) Sealed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sealed
}

// Drain waits up to timeout for tasks spawned after sealing to be handed to
// the stray handler. It reports whether all of them were.
func (g *Group) Drain(timeout time.Duration) bool {
	g.mu.Lock()
	pending := slices.Clone(g.strays)
	g.mu.Unlock()

	if len(pending) == 0 {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for _, done := range pending {
		select {
		case <-done:
		case <-timer.C:
			return false
		}
	}
	return true
}

func (g *Group) collect() {
	defer close(g.done)

	for r := range g.results {
		if r.Error != nil {
			log.Debug("Task failed", "task", r.Name, "error", r.Error)
			g.errs = append(g.errs, fmt.Errorf("%s: %w", r.Name, r.Error))
			continue
		}
		log.Debug("Task completed", "task", r.Name)
	}
}

func call(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: name, Value: r}
		}
	}()
	return fn(ctx)
}

func logStray(r Result) {
	if r.Error != nil {
		log.Error("Task reported after its group was sealed", "task", r.Name, "error", r.Error)
		return
	}
	log.Error("Task finished after its group was sealed", "task", r.Name)
}

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Task  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.Task, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
