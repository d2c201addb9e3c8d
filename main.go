// The main package for the homepage-tone executable.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/JakeFAU/homepage-tone/cmd"
)

// main defers all execution to the Cobra CLI. SIGINT and SIGTERM cancel the
// running stage, which still writes its summary line before exiting.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cmd.Execute(ctx)
	stop()
	os.Exit(code)
}
