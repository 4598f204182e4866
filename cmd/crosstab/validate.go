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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCrosstab/pkg/ux"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/config"
)

func newValidateCmd(a *app) *cobra.Command {
	var breaksPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a break definitions file and print its result layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defs, err := config.LoadFile(breaksPath)
			if err != nil {
				return err
			}
			h, err := config.Build(defs)
			if err != nil {
				return err
			}

			a.logger.Debug("definitions valid",
				slog.String("path", breaksPath),
				slog.Int("roots", len(h.Roots())),
				slog.Int("breaks", h.Len()),
				slog.Int("slots", h.ResultSize()),
			)

			out := cmd.OutOrStdout()
			if err := layoutTable(h).Fprint(out); err != nil {
				return err
			}
			ux.Success(out, fmt.Sprintf("%s: %d top-level, %d breaks, %d result slots",
				breaksPath, len(h.Roots()), h.Len(), h.ResultSize()))
			return nil
		},
	}
	cmd.Flags().StringVar(&breaksPath, "breaks", "", "break definitions YAML file")
	_ = cmd.MarkFlagRequired("breaks")
	return cmd
}
