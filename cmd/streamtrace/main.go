// Command streamtrace traces streamlines through a volume mesh, extracts
// its boundary surface and writes both for inspection.
//
// Usage:
//
//	streamtrace [-config run.toml] [-technique SINGLE_VOXEL] [-out dir] ...
//
// Without a mesh file a structured fixture mesh with a synthetic field
// is generated.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
)

func main() {
	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	} else if err != nil {
		fmt.Fprintln(os.Stderr, "streamtrace:", err)
		os.Exit(2)
	}
	level, err := cfg.logLevel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "streamtrace:", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if _, err := run(ctx, cfg, logger); err != nil {
		logger.Error("run failed", slog.String("err", err.Error()))
		stop()
		os.Exit(1)
	}
}
