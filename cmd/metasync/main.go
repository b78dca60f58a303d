// Package main provides the entry point for the metasync CLI tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/opendatabs/metasync/cmd/metasync/cmd"
	"github.com/opendatabs/metasync/pkg/logging"
)

// Version information populated at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, version, commit, date); err != nil {
		logging.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}
