package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/cli"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if overridePath := os.Getenv("FORESTPIPE_CONFIG"); overridePath != "" {
		if err := config.ApplyYAMLOverrides(overridePath); err != nil {
			fmt.Fprintf(os.Stderr, "forestpipe: loading %s: %v\n", overridePath, err)
			os.Exit(1)
		}
	}

	if err := cli.Execute(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
