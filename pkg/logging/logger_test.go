// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.String())
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelDebug.toSlogLevel())
	assert.Equal(t, slog.LevelWarn, LevelWarn.toSlogLevel())
	assert.Equal(t, slog.LevelInfo, Level(-1).toSlogLevel(), "unknown defaults to info")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{" warn ", LevelWarn},
		{"warning", LevelWarn},
		{"Error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

// =============================================================================
// Logger Tests
// =============================================================================

func decodeLines(t *testing.T, s string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNew_ConsoleJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: LevelInfo, Service: "crosstab-test", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)
	defer l.Close()

	l.Debug("hidden")
	l.Info("calculation complete", "respondents", 10)
	l.With("run_id", "abc").Warn("slow partition")

	lines := decodeLines(t, buf.String())
	require.Len(t, lines, 2)
	assert.Equal(t, "calculation complete", lines[0]["msg"])
	assert.Equal(t, "crosstab-test", lines[0]["service"])
	assert.EqualValues(t, 10, lines[0]["respondents"])
	assert.Equal(t, "abc", lines[1]["run_id"])
	assert.Equal(t, "WARN", lines[1]["level"])
}

func TestNew_ConsoleText(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: LevelDebug, Format: FormatText, Output: &buf})
	require.NoError(t, err)

	l.Debug("partition done", "partition", 2)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "partition=2")
}

func TestNew_AutoFormatOnPipe(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Output: &buf})
	require.NoError(t, err)

	l.Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), "non-terminal output is JSON: %q", buf.String())
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New(Config{Format: "yaml", Output: &bytes.Buffer{}})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestNew_FileLogging(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := New(Config{Level: LevelInfo, LogDir: dir, Service: "crosstab", Quiet: true})
	require.NoError(t, err)

	want := filepath.Join(dir, "crosstab_"+time.Now().Format("2006-01-02")+".log")
	assert.Equal(t, want, l.FilePath())

	l.Info("written to file", "slot", 4)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "close is idempotent")

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	lines := decodeLines(t, string(data))
	require.Len(t, lines, 1)
	assert.Equal(t, "written to file", lines[0]["msg"])
}

func TestNew_ConsoleAndFile(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: LevelWarn, LogDir: t.TempDir(), Format: FormatText, Output: &buf})
	require.NoError(t, err)
	defer l.Close()

	_, ok := l.Slog().Handler().(*multiHandler)
	assert.True(t, ok)

	l.Info("dropped")
	l.Error("run failed")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "run failed")

	data, err := os.ReadFile(l.FilePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"run failed"`)
}

func TestNew_QuietWithoutFileDiscards(t *testing.T) {
	l, err := New(Config{Quiet: true})
	require.NoError(t, err)
	l.Error("nowhere")
	assert.Empty(t, l.FilePath())
	assert.NoError(t, l.Close())
}

func TestNew_BadLogDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := New(Config{LogDir: filepath.Join(blocker, "logs"), Quiet: true})
	assert.Error(t, err)
}

func TestWith_ChildCloseKeepsFile(t *testing.T) {
	l, err := New(Config{LogDir: t.TempDir(), Quiet: true})
	require.NoError(t, err)

	path := l.FilePath()

	child := l.With("run_id", "x")
	require.NoError(t, child.Close())
	child.Info("still open")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "still open")
}

func TestWith_ChildAfterRootClose(t *testing.T) {
	var console bytes.Buffer
	l, err := New(Config{LogDir: t.TempDir(), Format: FormatJSON, Output: &console})
	require.NoError(t, err)

	child := l.With("run_id", "x")
	child.Info("before close")
	require.NoError(t, l.Close())
	assert.Equal(t, l.FilePath(), child.FilePath())

	assert.NotPanics(t, func() { child.Info("after close") })
	assert.Contains(t, console.String(), "after close", "console keeps logging")

	data, err := os.ReadFile(l.FilePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "before close")
	assert.NotContains(t, string(data), "after close", "file records after close are dropped")
}

func TestLogger_Concurrent(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	w := writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	})
	l, err := New(Config{Format: FormatJSON, Output: w})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.With("worker", i).Info("tick")
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, decodeLines(t, buf.String()), 8)
}

func TestMultiHandler_WithGroup(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	}}
	slog.New(h.WithGroup("calc")).Info("x", "n", 1)

	assert.Contains(t, a.String(), `"calc":{"n":1}`)
	assert.Contains(t, b.String(), `"calc":{"n":1}`)
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs"), expandPath("~/logs"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
	assert.Equal(t, "rel", expandPath("rel"))
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
