// Package main is the hark entrypoint: a speech-command listener and the
// client commands a game engine uses to drive it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/hark/internal/app"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run cancels the command context on SIGINT or SIGTERM so listen can release
// its recognizer and control socket before the process exits.
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Execute(ctx, args, os.Stdout, os.Stderr)
}
