// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table is a titled grid of string cells.
type Table struct {
	Title   string
	Caption string
	Headers []string
	Rows    [][]string
}

// Render formats t for the current mode.
//
// Styled and plain modes draw a bordered table with the title above it and
// the caption below. Machine mode writes the title as a "# " comment line
// followed by tab-separated headers and rows.
func (t Table) Render() string {
	if CurrentMode() == ModeMachine {
		return t.renderTSV()
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(t.Headers...).
		Rows(t.Rows...)

	if CurrentMode() == ModeStyled {
		tbl = tbl.
			BorderStyle(Styles.Border).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return Styles.Header
				}
				return Styles.Cell
			})
	} else {
		tbl = tbl.StyleFunc(func(int, int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString(render(Styles.Title, t.Title))
		b.WriteByte('\n')
	}
	b.WriteString(tbl.String())
	b.WriteByte('\n')
	if t.Caption != "" {
		b.WriteString(render(Styles.Muted, t.Caption))
		b.WriteByte('\n')
	}
	return b.String()
}

func (t Table) renderTSV() string {
	var b strings.Builder
	if t.Title != "" {
		fmt.Fprintf(&b, "# %s\n", t.Title)
	}
	if len(t.Headers) > 0 {
		b.WriteString(strings.Join(t.Headers, "\t"))
		b.WriteByte('\n')
	}
	for _, row := range t.Rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}

// Fprint writes the rendered table to w.
func (t Table) Fprint(w io.Writer) error {
	_, err := io.WriteString(w, t.Render())
	return err
}
