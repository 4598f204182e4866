// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package respondent

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"

	dgbadger "github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianCrosstab/pkg/validation"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/storage/badger"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/telemetry"
)

const keyPrefix = "respondent:"

var storeTracer = otel.Tracer("crosstab.respondent")

// Store persists respondents in BadgerDB.
//
// Description:
//
//	Respondents are gob-encoded and keyed by an order-preserving encoding
//	of their ID, so LoadAll returns them sorted by ID.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	owned  bool
}

// NewStore wraps an already open database. The caller keeps ownership.
func NewStore(db *badger.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// OpenStore opens a database with cfg and returns a store that owns it.
func OpenStore(cfg badger.Config, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(cfg)
	if err != nil {
		return nil, err
	}
	s := NewStore(db, logger)
	s.owned = true
	return s, nil
}

// Close closes the underlying database if the store opened it.
func (s *Store) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

// respondentKey encodes id so that byte order matches numeric order.
func respondentKey(id int) []byte {
	return []byte(fmt.Sprintf("%s%016x", keyPrefix, uint64(id)^(1<<63)))
}

func encodeRespondent(r *Respondent) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRespondent(data []byte) (*Respondent, error) {
	var r Respondent
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// PutAll writes respondents, replacing any existing entries with the same ID.
//
// Description:
//
//	Uses a BadgerDB write batch so arbitrarily large repositories can be
//	imported without hitting transaction size limits.
//
// Inputs:
//
//	ctx - Context for cancellation, checked between respondents.
//	respondents - Respondents to write. Nil entries are rejected.
//
// Outputs:
//
//	int - Number of respondents written.
//	error - Non-nil on encoding, validation or write failure.
func (s *Store) PutAll(ctx context.Context, respondents []*Respondent) (int, error) {
	ctx, span := storeTracer.Start(ctx, "Store.PutAll",
		trace.WithAttributes(attribute.Int("respondent.count", len(respondents))),
	)
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, s.logger)

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	written := 0
	for _, r := range respondents {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return written, fmt.Errorf("import cancelled: %w", err)
		}
		if r == nil || r.Weight < 0 {
			err := fmt.Errorf("%w: cannot store", ErrInvalidRespondent)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return written, err
		}
		if err := validation.ValidateIdentifiers(r.FieldNames()); err != nil {
			err = fmt.Errorf("%w: respondent %d: %w", ErrInvalidRespondent, r.ID, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid field name")
			return written, err
		}
		data, err := encodeRespondent(r)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "encode failed")
			return written, fmt.Errorf("encode respondent %d: %w", r.ID, err)
		}
		if err := wb.Set(respondentKey(r.ID), data); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write failed")
			return written, fmt.Errorf("write respondent %d: %w", r.ID, err)
		}
		written++
	}

	if err := wb.Flush(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "flush failed")
		return 0, fmt.Errorf("flush respondents: %w", err)
	}

	span.SetAttributes(attribute.Int("respondent.written", written))
	logger.Debug("respondents stored", slog.Int("count", written))
	return written, nil
}

// LoadAll reads every stored respondent into a Repository ordered by ID.
func (s *Store) LoadAll(ctx context.Context) (*Repository, error) {
	ctx, span := storeTracer.Start(ctx, "Store.LoadAll")
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, s.logger)

	repo := NewRepository()
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("load cancelled: %w", err)
			}
			var resp *Respondent
			err := it.Item().Value(func(val []byte) error {
				var derr error
				resp, derr = decodeRespondent(val)
				return derr
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if err := repo.Add(resp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("respondent.count", repo.Len()))
	logger.Debug("respondents loaded", slog.Int("count", repo.Len()))
	return repo, nil
}
