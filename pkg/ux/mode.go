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
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Mode controls how rich CLI output is.
type Mode string

const (
	// ModeStyled uses colors, icons and bordered tables.
	ModeStyled Mode = "styled"

	// ModePlain keeps the layout but drops colors.
	ModePlain Mode = "plain"

	// ModeMachine prints tab-separated rows with no decoration.
	ModeMachine Mode = "machine"
)

var (
	currentMode = ModeStyled
	modeMu      sync.RWMutex
)

// CurrentMode returns the active output mode.
func CurrentMode() Mode {
	modeMu.RLock()
	defer modeMu.RUnlock()
	return currentMode
}

// SetMode changes the active output mode.
func SetMode(m Mode) {
	modeMu.Lock()
	defer modeMu.Unlock()
	currentMode = m
}

// ParseMode converts a flag value to a Mode. Unknown values map to
// ModeStyled.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "p", "no-color":
		return ModePlain
	case "machine", "tsv", "quiet", "q":
		return ModeMachine
	default:
		return ModeStyled
	}
}

// InitMode picks the output mode from CROSSTAB_OUTPUT, NO_COLOR and
// whether stdout is a terminal, in that order.
func InitMode() {
	if env := os.Getenv("CROSSTAB_OUTPUT"); env != "" {
		SetMode(ParseMode(env))
		return
	}
	if !stdoutIsTerminal() {
		SetMode(ModeMachine)
		return
	}
	if os.Getenv("NO_COLOR") != "" {
		SetMode(ModePlain)
		return
	}
	SetMode(ModeStyled)
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
