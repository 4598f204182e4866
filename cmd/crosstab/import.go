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
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/respondent"
)

func newImportCmd(a *app) *cobra.Command {
	var data, db string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy respondents from a YAML file into a respondent store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := respondent.LoadFile(data)
			if err != nil {
				return err
			}

			store, err := a.openStore(db, 0)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.PutAll(cmd.Context(), repo.All())
			if err != nil {
				return err
			}
			a.logger.Info("respondents imported",
				slog.Int("count", n),
				slog.String("source", data),
				slog.String("db", db),
			)
			ux.Success(cmd.OutOrStdout(), fmt.Sprintf("imported %d respondents into %s", n, db))
			return nil
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "respondent YAML file")
	cmd.Flags().StringVar(&db, "db", "", "respondent store directory")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}
