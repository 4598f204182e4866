// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianCrosstab/pkg/ux"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/storage/badger"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/telemetry"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		f           calcFlags
		metricsAddr string
		debounce    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the calculation whenever the definitions or data file changes",
		Long: `watch runs once, then re-runs every time the breaks file (and the
--data file, when given) is saved. A failing run is reported and the
watcher keeps going, so definitions can be fixed in place.

With --db the store stays open for the lifetime of the watcher, with
value log GC running in the background, and only the breaks file is
watched.

With --metrics-addr a Prometheus /metrics and /healthz endpoint is served
for the lifetime of the watcher.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(f.format); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, cmd, &f, metricsAddr, debounce)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultOptions().Debounce, "quiet period before re-running")
	return cmd
}

func (a *app) watch(ctx context.Context, cmd *cobra.Command, f *calcFlags, metricsAddr string, debounce time.Duration) error {
	logger := a.slogger()

	paths := []string{f.breaks}
	if f.data != "" {
		paths = append(paths, f.data)
	}

	rerun := make(chan []watch.Change, 1)
	w, err := watch.New(paths, func(changes []watch.Change) {
		select {
		case rerun <- changes:
		default:
		}
	}, &watch.Options{Debounce: debounce, Logger: logger})
	if err != nil {
		return err
	}
	defer w.Stop()
	if err := w.Start(ctx); err != nil {
		return err
	}

	req := f.request(cmd)
	if f.db != "" {
		store, err := a.openStore(f.db, badger.DefaultConfig(f.db).GCInterval)
		if err != nil {
			return err
		}
		defer store.Close()
		req.src.store = store
	}

	var ln net.Listener
	if metricsAddr != "" {
		if ln, err = net.Listen("tcp", metricsAddr); err != nil {
			return fmt.Errorf("listen %s: %w", metricsAddr, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	if ln != nil {
		g.Go(func() error {
			return telemetry.Serve(ctx, ln, telemetry.MetricsRouter("crosstab"), logger)
		})
	}

	out := cmd.OutOrStdout()
	ux.Info(out, fmt.Sprintf("watching %d files, press Ctrl+C to stop", len(paths)))
	g.Go(func() error {
		a.runOnce(ctx, req, f.format, out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case changes := <-rerun:
				for _, c := range changes {
					logger.Info("input changed", slog.String("path", c.Path), slog.String("op", c.Op.String()))
				}
				a.runOnce(ctx, req, f.format, out)
			}
		}
	})

	return g.Wait()
}

// runOnce reports a calculation failure instead of returning it.
func (a *app) runOnce(ctx context.Context, req calcRequest, format string, out io.Writer) {
	res, err := a.calculate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.slogger().Error("calculation failed", slog.String("error", err.Error()))
		ux.Error(out, err.Error())
		return
	}
	if err := writeResult(out, res, format); err != nil {
		a.slogger().Error("write result failed", slog.String("error", err.Error()))
	}
}
