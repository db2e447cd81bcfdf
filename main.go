// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lightshow/cmd"
	applog "lightshow/internal/log"
	"lightshow/internal/show"
	"lightshow/pkg/build"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1 // Usage, configuration or input errors.
	exitStage = 2 // A pipeline stage failed while running.
)

// main wires build information and signal handling around the CLI.
//
// The show runs on the main goroutine until the audio ends, the user
// interrupts it, or a pipeline stage fails. The first interrupt stops the
// session between ticks; the transport is closed on the way out.
func main() {
	if err := build.Initialize(); err != nil {
		applog.Fatalf("build: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx, os.Args[1:])
	stop()

	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var se *show.StageError
	if errors.As(err, &se) {
		applog.Errorf("%v", err)
		return exitStage
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitError
}
