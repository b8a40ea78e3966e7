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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReportDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := OpenReportDB("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewBadgerReportStore(t *testing.T) {
	_, err := NewBadgerReportStore(nil, 0, nil)
	assert.Error(t, err)

	store, err := NewBadgerReportStore(newTestReportDB(t), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultReportTTL, store.ttl)
}

func TestBadgerReportStore_RoundTrip(t *testing.T) {
	store, err := NewBadgerReportStore(newTestReportDB(t), time.Hour, nil)
	require.NoError(t, err)
	ctx := context.Background()

	rep, err := store.LoadReport(ctx, "abc", true)
	require.NoError(t, err)
	assert.Nil(t, rep, "miss")

	want := &Report{Types: 2, Members: 7, Contracts: 3, Invalid: 1, Entries: []MemberAnalysis{{
		Member: "Armory.Sword::Sharpen(int)",
		Kind:   "method",
	}}}
	require.NoError(t, store.SaveReport(ctx, "abc", true, want))

	got, err := store.LoadReport(ctx, "abc", true)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	other, err := store.LoadReport(ctx, "abc", false)
	require.NoError(t, err)
	assert.Nil(t, other, "inherit mode is part of the key")
}

func TestBadgerReportStore_Cancelled(t *testing.T) {
	store, err := NewBadgerReportStore(newTestReportDB(t), 0, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.LoadReport(ctx, "abc", true)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.SaveReport(ctx, "abc", true, &Report{}), context.Canceled)
}

// countingStore wraps a ReportStore and counts calls.
type countingStore struct {
	ReportStore
	mu          sync.Mutex
	loads, hits int
	saves       int
	failLoad    bool
}

func (c *countingStore) LoadReport(ctx context.Context, hash string, inherit bool) (*Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	if c.failLoad {
		return nil, errors.New("disk on fire")
	}
	rep, err := c.ReportStore.LoadReport(ctx, hash, inherit)
	if rep != nil {
		c.hits++
	}
	return rep, err
}

func (c *countingStore) SaveReport(ctx context.Context, hash string, inherit bool, rep *Report) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.ReportStore.SaveReport(ctx, hash, inherit, rep)
}

func TestService_ReportStore(t *testing.T) {
	inner, err := NewBadgerReportStore(newTestReportDB(t), 0, nil)
	require.NoError(t, err)
	store := &countingStore{ReportStore: inner}
	svc, _ := newTestService(t, WithReportStore(store))
	ctx := context.Background()

	first, err := svc.Report(ctx, true)
	require.NoError(t, err)
	second, err := svc.Report(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, store.loads)
	assert.Equal(t, 1, store.hits)
	assert.Equal(t, 1, store.saves)

	// A new catalog hashes differently.
	_, err = svc.Load(ctx, []byte("types:\n  - name: Shield\n"))
	require.NoError(t, err)
	third, err := svc.Report(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Types)
	assert.Equal(t, 1, store.hits)
}

func TestService_ReportStoreFailureFallsBack(t *testing.T) {
	inner, err := NewBadgerReportStore(newTestReportDB(t), 0, nil)
	require.NoError(t, err)
	store := &countingStore{ReportStore: inner, failLoad: true}
	svc, _ := newTestService(t, WithReportStore(store))

	rep, err := svc.Report(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Invalid)
}

func TestService_ReportStoreSkippedWhenDropping(t *testing.T) {
	inner, err := NewBadgerReportStore(newTestReportDB(t), 0, nil)
	require.NoError(t, err)
	store := &countingStore{ReportStore: inner}
	svc, _ := newTestService(t, WithReportStore(store))
	svc.Config().Analyzer.DropInapplicable = true

	_, err = svc.Report(context.Background(), true)
	require.NoError(t, err)
	assert.Zero(t, store.loads)
	assert.Zero(t, store.saves)
}
