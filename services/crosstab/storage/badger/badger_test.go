// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		db, err := Open(InMemoryConfig())
		require.NoError(t, err)
		defer db.Close()
		assert.True(t, db.Opts().InMemory)
	})

	t.Run("persistent requires path", func(t *testing.T) {
		_, err := Open(Config{})
		assert.ErrorIs(t, err, ErrPathRequired)
	})

	t.Run("persistent creates directory and runs GC loop", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "db")
		cfg := DefaultConfig(dir)
		cfg.GCInterval = 10 * time.Millisecond
		cfg.SyncWrites = false

		db, err := Open(cfg)
		require.NoError(t, err)
		assert.False(t, db.Opts().InMemory)

		time.Sleep(30 * time.Millisecond)
		require.NoError(t, db.Close())
		// Second close is a no-op.
		require.NoError(t, db.Close())
	})
}

func TestDB_ReadTxn(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	t.Run("reads committed data", func(t *testing.T) {
		err := db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte("k"), []byte("v"))
		})
		require.NoError(t, err)

		var got []byte
		err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
			item, err := txn.Get([]byte("k"))
			if err != nil {
				return err
			}
			got, err = item.ValueCopy(nil)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
	})

	t.Run("fn error is returned", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.WithReadTxn(ctx, func(txn *badger.Txn) error {
			if _, err := txn.Get([]byte("missing")); !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := db.WithReadTxn(cctx, func(txn *badger.Txn) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
