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
	"github.com/spf13/cobra"
)

// calcFlags are shared by run and watch.
type calcFlags struct {
	breaks   string
	data     string
	db       string
	workers  int
	weighted bool
	format   string
}

func (f *calcFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.breaks, "breaks", "", "break definitions YAML file")
	fl.StringVar(&f.data, "data", "", "respondent YAML file")
	fl.StringVar(&f.db, "db", "", "respondent store directory (see import)")
	fl.IntVar(&f.workers, "workers", 0, "concurrent partitions (default: settings.workers)")
	fl.BoolVar(&f.weighted, "weighted", true, "compute shares from respondent weights (default: settings.weighted)")
	fl.StringVarP(&f.format, "format", "f", formatTable, "result format: table or json")

	_ = cmd.MarkFlagRequired("breaks")
	cmd.MarkFlagsOneRequired("data", "db")
	cmd.MarkFlagsMutuallyExclusive("data", "db")
}

// request converts flags to a calcRequest. weighted only overrides the
// definitions file when the flag was given.
func (f *calcFlags) request(cmd *cobra.Command) calcRequest {
	req := calcRequest{
		breaksPath: f.breaks,
		src:        source{data: f.data, db: f.db},
		workers:    f.workers,
	}
	if cmd.Flags().Changed("weighted") {
		w := f.weighted
		req.weighted = &w
	}
	return req
}

func newRunCmd(a *app) *cobra.Command {
	var f calcFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate breaks over respondents once and print the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(f.format); err != nil {
				return err
			}
			res, err := a.calculate(cmd.Context(), f.request(cmd))
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), res, f.format)
		},
	}
	f.register(cmd)
	return cmd
}
