// hcd - teamserver listener registry and protocol dispatch core.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hcd/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "hcd: %v\n", err)
		os.Exit(1)
	}
}
