package entry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/releaseit/internal/parallel"
)

func succeed() Releaser {
	return ReleaserFunc(func(ctx context.Context, args []string, tasks parallel.Spawner) error {
		return nil
	})
}

func fail(msg string) Releaser {
	return ReleaserFunc(func(ctx context.Context, args []string, tasks parallel.Spawner) error {
		return errors.New(msg)
	})
}

func TestHasDebugFlag(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "nil args", args: nil, want: false},
		{name: "only debug", args: []string{"--debug"}, want: true},
		{name: "debug last", args: []string{"minor", "--ci", "--debug"}, want: true},
		{name: "debug first", args: []string{"--debug", "patch"}, want: true},
		{name: "debug with value is not the literal token", args: []string{"--debug=true"}, want: false},
		{name: "short flag", args: []string{"-d"}, want: false},
		{name: "other flags", args: []string{"--foo", "--verbose"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasDebugFlag(tt.args))
		})
	}
}

func TestRunSuccess(t *testing.T) {
	var stderr bytes.Buffer
	c := New(succeed(), WithStderr(&stderr))

	err := c.Run(context.Background(), []string{})
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, c.Status())
	assert.Empty(t, stderr.String())
}

func TestRunFailurePrintsOneLine(t *testing.T) {
	var stderr bytes.Buffer
	c := New(fail("Y"), WithStderr(&stderr))

	err := c.Run(context.Background(), []string{"--foo"})
	require.NoError(t, err)
	assert.Equal(t, ExitFailure, c.Status())
	assert.Equal(t, "Y\n", stderr.String())
	assert.False(t, c.Debug())
}

func TestRunFailureMultilineErrorStaysOneLine(t *testing.T) {
	var stderr bytes.Buffer
	c := New(ReleaserFunc(func(ctx context.Context, args []string, tasks parallel.Spawner) error {
		return errors.Join(errors.New("push rejected"), errors.New("remote hung up"))
	}), WithStderr(&stderr))

	require.NoError(t, c.Run(context.Background(), nil))
	assert.Equal(t, 1, strings.Count(stderr.String(), "\n"))
	assert.Equal(t, "push rejected; remote hung up\n", stderr.String())
}

func TestRunFailureInDebugReraises(t *testing.T) {
	var stderr bytes.Buffer
	c := New(fail("X"), WithStderr(&stderr))

	err := c.Run(context.Background(), []string{"--debug"})
	require.EqualError(t, err, "X")
	assert.Equal(t, ExitFailure, c.Status())
	assert.True(t, c.Debug())
	assert.Empty(t, stderr.String(), "the standard path must not print in debug mode")

	c.Unhandled(err)
	assert.Contains(t, stderr.String(), "X")
}

func TestRunForwardsArgumentsUnchanged(t *testing.T) {
	var got []string
	c := New(ReleaserFunc(func(ctx context.Context, args []string, tasks parallel.Spawner) error {
		got = args
		return nil
	}), WithStderr(&bytes.Buffer{}))

	args := []string{"minor", "--debug", "--ci"}
	require.NoError(t, c.Run(context.Background(), args))
	assert.Equal(t, args, got)
}

func TestRunSupervisedTaskFailure(t *testing.T) {
	var stderr bytes.Buffer
	c := New(ReleaserFunc(func(ctx context.Context, args []string, tasks parallel.Spawner) error {
		tasks.Go("announce", func(ctx context.Context) error {
			return errors.New("webhook returned status 502")
		})
		return nil
	}), WithStderr(&stderr))

	require.NoError(t, c.Run(context.Background(), nil))
	assert.Equal(t, ExitFailure, c.Status())
	assert.Equal(t, "announce: webhook returned status 502\n", stderr.String())
}

func TestRunRecoversReleaserPanic(t *testing.T) {
	var stderr bytes.Buffer
	c := New(ReleaserFunc(func(ctx context.Context, args []string, tasks parallel.Spawner) error {
		panic("nil config")
	}), WithStderr(&stderr))

	require.NoError(t, c.Run(context.Background(), nil))
	assert.Equal(t, ExitFailure, c.Status())
	assert.Equal(t, "release panicked: nil config\n", stderr.String())
}

func TestUnhandledIgnoresErrorsOutsideDebug(t *testing.T) {
	var stderr bytes.Buffer
	c := New(succeed(), WithStderr(&stderr))
	require.NoError(t, c.Run(context.Background(), nil))

	c.Unhandled(errors.New("background failure"))
	assert.Empty(t, stderr.String())
}

func TestUnhandledAlwaysLogsNonErrors(t *testing.T) {
	var stderr bytes.Buffer
	c := New(succeed(), WithStderr(&stderr))
	require.NoError(t, c.Run(context.Background(), nil))

	c.Unhandled("lost result")
	assert.Contains(t, stderr.String(), "lost result")
}

func TestGuard(t *testing.T) {
	t.Run("success leaves code untouched", func(t *testing.T) {
		c := New(succeed(), WithStderr(&bytes.Buffer{}))
		code := func() (code int) {
			defer c.Guard(&code)
			_ = c.Run(context.Background(), nil)
			return c.Status()
		}()
		assert.Equal(t, ExitSuccess, code)
	})

	t.Run("reasserts failure status", func(t *testing.T) {
		c := New(fail("Y"), WithStderr(&bytes.Buffer{}))
		code := func() (code int) {
			defer c.Guard(&code)
			_ = c.Run(context.Background(), nil)
			return ExitSuccess
		}()
		assert.Equal(t, ExitFailure, code)
	})

	t.Run("recovers panic", func(t *testing.T) {
		var stderr bytes.Buffer
		c := New(succeed(), WithStderr(&stderr))
		code := func() (code int) {
			defer c.Guard(&code)
			panic("exit path broke")
		}()
		assert.Equal(t, ExitFailure, code)
		assert.Contains(t, stderr.String(), "exit path broke")
	})
}

func TestGuardWaitsForStrayTasks(t *testing.T) {
	spawn := make(chan struct{})
	spawned := make(chan struct{})
	late := ReleaserFunc(func(ctx context.Context, args []string, tasks parallel.Spawner) error {
		go func() {
			defer close(spawned)
			<-spawn
			tasks.Go("late announce", func(ctx context.Context) error {
				time.Sleep(20 * time.Millisecond)
				return errors.New("webhook timed out")
			})
		}()
		return nil
	})

	var stderr bytes.Buffer
	c := New(late, WithStderr(&stderr), WithStrayGrace(5*time.Second))
	code := func() (code int) {
		defer c.Guard(&code)
		require.NoError(t, c.Run(context.Background(), nil))
		close(spawn)
		<-spawned
		return c.Status()
	}()

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stderr.String(), "late announce")
	assert.Contains(t, stderr.String(), "webhook timed out")
}

func TestGuardGivesUpOnHungStrayTasks(t *testing.T) {
	spawned := make(chan struct{})
	hang := make(chan struct{})
	defer close(hang)
	late := ReleaserFunc(func(ctx context.Context, args []string, tasks parallel.Spawner) error {
		go func() {
			for !tasks.(*parallel.Group).Sealed() {
				time.Sleep(time.Millisecond)
			}
			tasks.Go("stuck", func(ctx context.Context) error {
				<-hang
				return nil
			})
			close(spawned)
		}()
		return nil
	})

	var stderr bytes.Buffer
	c := New(late, WithStderr(&stderr), WithStrayGrace(10*time.Millisecond))
	code := func() (code int) {
		defer c.Guard(&code)
		require.NoError(t, c.Run(context.Background(), nil))
		<-spawned
		return c.Status()
	}()

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stderr.String(), "Tasks still running at exit")
}
