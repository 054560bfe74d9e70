// Command regtree reads and writes registry-style keys by path.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/jacentio/regtree/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
