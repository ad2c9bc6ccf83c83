/*
Package main provides the CLI entry point for release-it.
*/
package main

import (
	"context"
	"io"
	"os"

	"github.com/oarkflow/releaseit/internal/cmd"
	"github.com/oarkflow/releaseit/internal/entry"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr, cmd.NewReleaser()))
}

// run releases once and returns the exit code.
func run(args []string, stderr io.Writer, r entry.Releaser) (code int) {
	ctrl := entry.New(r, entry.WithStderr(stderr))
	defer ctrl.Guard(&code)

	if err := ctrl.Run(context.Background(), args); err != nil {
		ctrl.Unhandled(err)
	}
	return ctrl.Status()
}
