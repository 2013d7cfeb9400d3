// Command stepindex lists, checks and serves the godog step definitions of
// the glue packages linked into it.
//
// Glue packages register themselves from init, so a project builds its own
// stepindex by adding blank imports of its glue below.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomatool/stepindex/command"
	_ "github.com/tomatool/stepindex/examples/godogs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
