// provguard rebuilds a release toolchain and checks its artifacts for
// leaked build provenance.
//
// Usage:
//
//	provguard [--suite file] [--policy file] [--dir dir] [--format text|json]
//	provguard validate [--suite file] [--policy file]
//	provguard history --history runs.db
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/provguard/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "provguard: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
