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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCrosstab/pkg/logging"
	"github.com/AleutianAI/AleutianCrosstab/pkg/ux"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/calc"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/config"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/respondent"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/storage/badger"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/telemetry"
)

// app holds state shared by every subcommand for one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer

	logLevel      string
	logDir        string
	logFormat     string
	outputMode    string
	traceExporter string
	metricExport  string

	logger            *logging.Logger
	shutdownTelemetry func(context.Context) error
}

// execute builds the command tree, runs it with args and releases
// everything setup acquired, even when the command fails.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "crosstab",
		Short: "Compute survey crosstab breaks over respondent data",
		Long: `crosstab evaluates a hierarchy of breaks against respondent data and
reports per-bucket counts, weights and shares.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&a.logDir, "log-dir", "", "also write JSON logs to this directory")
	pf.StringVar(&a.logFormat, "log-format", string(logging.FormatAuto), "console log format: auto, text, json")
	pf.StringVar(&a.outputMode, "output", "", "result styling: styled, plain, machine (default: detect terminal)")
	pf.StringVar(&a.traceExporter, "trace-exporter", "", "trace exporter: otlp, stdout, none (default: $OTEL_TRACES_EXPORTER or none)")
	pf.StringVar(&a.metricExport, "metric-exporter", "", "metric exporter: prometheus, stdout, none (default: $OTEL_METRICS_EXPORTER or prometheus)")

	root.AddCommand(
		newRunCmd(a),
		newImportCmd(a),
		newValidateCmd(a),
		newWatchCmd(a),
	)
	return root
}

// setup runs before every subcommand.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		LogDir:  a.logDir,
		Service: "crosstab",
		Format:  logging.Format(a.logFormat),
		Output:  a.errOut,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	a.logger = logger
	if path := logger.FilePath(); path != "" {
		logger.Debug("logging to file", slog.String("path", path))
	}

	if a.outputMode != "" {
		ux.SetMode(ux.ParseMode(a.outputMode))
	} else {
		ux.InitMode()
	}

	tcfg, err := telemetry.FromFlags(a.traceExporter, a.metricExport)
	if err != nil {
		return err
	}
	tcfg.Output = a.errOut
	shutdown, err := telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdownTelemetry = shutdown

	a.logger.Debug("command starting",
		slog.String("command", cmd.Name()),
		slog.String("trace_exporter", string(tcfg.Traces)),
		slog.String("metric_exporter", string(tcfg.Metrics)),
	)
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.shutdownTelemetry != nil {
		if err := a.shutdownTelemetry(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) slogger() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger.Slog()
}

// source names where respondents come from. Exactly one of data and db is
// set. store, when non-nil, is an already open store for db.
type source struct {
	data  string
	db    string
	store *respondent.Store
}

func (s source) String() string {
	if s.data != "" {
		return s.data
	}
	return s.db
}

// loadRepository reads respondents from a YAML file or a badger store.
func (a *app) loadRepository(ctx context.Context, src source) (*respondent.Repository, error) {
	if src.data != "" {
		return respondent.LoadFile(src.data)
	}
	if src.store != nil {
		return src.store.LoadAll(ctx)
	}

	store, err := a.openStore(src.db, 0)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.LoadAll(ctx)
}

// openStore opens the respondent store at path. A zero gcInterval disables
// value log GC, which suits stores closed within one command.
func (a *app) openStore(path string, gcInterval time.Duration) (*respondent.Store, error) {
	cfg := badger.DefaultConfig(path)
	cfg.Logger = a.slogger()
	cfg.GCInterval = gcInterval

	store, err := respondent.OpenStore(cfg, a.slogger())
	if err != nil {
		return nil, fmt.Errorf("open respondent store %s: %w", path, err)
	}
	return store, nil
}

// calcRequest is everything one calculation needs.
type calcRequest struct {
	breaksPath string
	src        source
	workers    int
	weighted   *bool
}

// calculate loads breaks and respondents and runs one calculation.
func (a *app) calculate(ctx context.Context, req calcRequest) (*calc.Result, error) {
	defs, err := config.LoadFile(req.breaksPath)
	if err != nil {
		return nil, err
	}
	h, err := config.Build(defs)
	if err != nil {
		return nil, err
	}

	settings := defs.Settings
	if req.workers > 0 {
		settings.Workers = req.workers
	}
	if req.weighted != nil {
		settings.Weighted = *req.weighted
	}

	repo, err := a.loadRepository(ctx, req.src)
	if err != nil {
		return nil, err
	}

	c, err := calc.New(h, calc.Options{
		Workers:       settings.Workers,
		Weighted:      settings.Weighted,
		ProgressEvery: settings.ProgressEvery,
		Logger:        a.slogger().With(slog.String("breaks", req.breaksPath), slog.String("source", req.src.String())),
	})
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, repo)
}
