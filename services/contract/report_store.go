// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contract

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DefaultReportTTL is the lifetime of a stored report when none is
// configured.
const DefaultReportTTL = 7 * 24 * time.Hour

// reportKeyPrefix versions the key layout.
const reportKeyPrefix = "contract/report/v1/"

var errReportMiss = errors.New("report miss")

// =============================================================================
// ReportStore Interface
// =============================================================================

// ReportStore persists whole-catalog reports across restarts.
//
// Description:
//
//	Reports are keyed by catalog hash and inherit mode. A changed catalog
//	hashes differently, so stale reports are never read and expire by TTL.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use.
type ReportStore interface {
	// LoadReport returns (nil, nil) on a miss.
	LoadReport(ctx context.Context, hash string, inherit bool) (*Report, error)

	// SaveReport stores rep under hash and inherit.
	SaveReport(ctx context.Context, hash string, inherit bool, rep *Report) error
}

// =============================================================================
// BadgerReportStore
// =============================================================================

// OpenReportDB opens the BadgerDB at path, or an in-memory DB when path is
// empty. The caller closes it.
func OpenReportDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}
	return db, nil
}

// BadgerReportStore implements ReportStore over BadgerDB. Reports are
// stored as gzip-compressed JSON.
//
// Thread Safety:
//
//	Safe for concurrent use.
type BadgerReportStore struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerReportStore creates a store over db, which the caller owns.
//
// Inputs:
//
//	db - An opened BadgerDB. Must not be nil.
//	ttl - Entry lifetime. Zero or negative uses DefaultReportTTL.
//	logger - May be nil.
//
// Errors:
//
//	Returns an error if db is nil.
func NewBadgerReportStore(db *badger.DB, ttl time.Duration, logger *slog.Logger) (*BadgerReportStore, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultReportTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerReportStore{db: db, ttl: ttl, logger: logger}, nil
}

// LoadReport implements ReportStore.
func (s *BadgerReportStore) LoadReport(ctx context.Context, hash string, inherit bool) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := reportKey(hash, inherit)

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errReportMiss
		}
		if err != nil {
			return fmt.Errorf("get report key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, errReportMiss) {
		s.logger.Debug("report store: miss", slog.String("hash", shortHash(hash)), slog.Bool("inherit", inherit))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("report store load: %w", err)
	}

	rep, err := decodeReport(raw)
	if err != nil {
		return nil, fmt.Errorf("report store decode: %w", err)
	}
	s.logger.Debug("report store: hit", slog.String("hash", shortHash(hash)), slog.Bool("inherit", inherit))
	return rep, nil
}

// SaveReport implements ReportStore.
func (s *BadgerReportStore) SaveReport(ctx context.Context, hash string, inherit bool, rep *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeReport(rep)
	if err != nil {
		return fmt.Errorf("report store encode: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(reportKey(hash, inherit), raw).WithTTL(s.ttl))
	})
	if err != nil {
		return fmt.Errorf("report store save: %w", err)
	}
	s.logger.Debug("report store: saved",
		slog.String("hash", shortHash(hash)),
		slog.Int("bytes", len(raw)),
		slog.Duration("ttl", s.ttl),
	)
	return nil
}

func reportKey(hash string, inherit bool) []byte {
	mode := "declared"
	if inherit {
		mode = "inherit"
	}
	return []byte(reportKeyPrefix + hash + "/" + mode)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func encodeReport(rep *Report) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(rep); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeReport(raw []byte) (*Report, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, err
	}
	if rep.Entries == nil {
		rep.Entries = make([]MemberAnalysis, 0)
	}
	return &rep, nil
}
