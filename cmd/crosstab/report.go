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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianCrosstab/pkg/ux"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/breaks"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/calc"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

var errUnknownFormat = errors.New("unknown result format")

const shareBarWidth = 20

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON:
		return nil
	default:
		return fmt.Errorf("%w: %q (want %s or %s)", errUnknownFormat, format, formatTable, formatJSON)
	}
}

// writeResult prints res as one table per break or as a JSON document.
func writeResult(w io.Writer, res *calc.Result, format string) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	for _, br := range res.Breaks {
		if err := breakTable(br).Fprint(w); err != nil {
			return err
		}
	}

	ux.Success(w, fmt.Sprintf("%d respondents across %d breaks in %s",
		res.Respondents, len(res.Breaks), res.Duration.Round(time.Microsecond)))
	ux.Info(w, "run "+res.RunID)
	if res.Stats.UnmappedValues > 0 {
		ux.Warning(w, fmt.Sprintf("%d values matched no bucket", res.Stats.UnmappedValues))
	}
	return nil
}

func breakTable(br calc.BreakResult) ux.Table {
	rows := make([][]string, 0, len(br.Buckets))
	for _, b := range br.Buckets {
		rows = append(rows, []string{
			b.Label,
			strconv.Itoa(b.Instance),
			strconv.FormatInt(b.Count, 10),
			strconv.FormatFloat(b.Weight, 'f', 2, 64),
			ux.ProgressBar(b.Share, shareBarWidth),
		})
	}
	return ux.Table{
		Title:   strings.Repeat("  ", br.Depth) + br.Path,
		Caption: fmt.Sprintf("base %d (weight %.2f)", br.Base, br.BaseWeight),
		Headers: []string{"bucket", "instance", "count", "weight", "share"},
		Rows:    rows,
	}
}

// layoutTable describes where each break writes in the result space.
func layoutTable(h *breaks.Hierarchy) ux.Table {
	rows := make([][]string, 0, h.Len())
	for i, n := range h.Nodes() {
		b := n.Break
		rows = append(rows, []string{
			h.Path(i, " / "),
			b.Strategy().String(),
			fmt.Sprintf("%d-%d", b.ResultStartIndex(), b.ResultStartIndex()+b.Width()-1),
			strconv.Itoa(b.Width()),
			joinInts(b.BaseInstances()),
		})
	}
	return ux.Table{
		Title:   "Result layout",
		Caption: fmt.Sprintf("%d slots", h.ResultSize()),
		Headers: []string{"break", "strategy", "slots", "buckets", "base instances"},
		Rows:    rows,
	}
}

// joinInts renders values comma-separated, or "-" when there are none.
func joinInts(values []int) string {
	if len(values) == 0 {
		return "-"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
