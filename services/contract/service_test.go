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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/contracts/services/contract/analysis"
	"github.com/AleutianAI/contracts/services/contract/config"
	"github.com/AleutianAI/contracts/services/contract/meta"
)

// newTestService copies the armory catalog into a temporary directory and
// loads it.
func newTestService(t *testing.T, opts ...ServiceOption) (*Service, string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "armory.yaml"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "armory.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := config.Default(context.Background())
	require.NoError(t, err)
	cfg.Catalog.Path = path
	cfg.Catalog.Debounce = 20 * time.Millisecond

	svc, err := NewService(cfg, opts...)
	require.NoError(t, err)
	changed, err := svc.Reload(context.Background())
	require.NoError(t, err)
	require.True(t, changed)
	return svc, path
}

func TestNewService_NilConfig(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}

func TestService_NotLoaded(t *testing.T) {
	cfg, err := config.Default(context.Background())
	require.NoError(t, err)
	cfg.Catalog.Path = ""
	svc, err := NewService(cfg)
	require.NoError(t, err)

	assert.False(t, svc.Status().Loaded)
	_, err = svc.Types()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = svc.Analyze(context.Background(), "Sword", "Inspect", true)
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = svc.Report(context.Background(), true)
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = svc.Reload(context.Background())
	assert.ErrorIs(t, err, ErrNoCatalogPath)
}

func TestService_Reload(t *testing.T) {
	svc, path := newTestService(t)
	first := svc.Status()
	require.True(t, first.Loaded)
	assert.Equal(t, 2, first.Types)
	assert.Equal(t, 1, first.ByKind["interface"])

	changed, err := svc.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, changed, "unchanged content is not reinstalled")

	require.NoError(t, os.WriteFile(path, []byte("types: [{name: Shield}]\n"), 0o600))
	changed, err = svc.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, svc.Status().Types)
	assert.NotEqual(t, first.Hash, svc.Status().Hash)
}

func TestService_ReloadKeepsPreviousOnError(t *testing.T) {
	svc, path := newTestService(t)
	before := svc.Status().Hash

	require.NoError(t, os.WriteFile(path, []byte("types: [{name: X, base: Missing}]\n"), 0o600))
	_, err := svc.Reload(context.Background())
	assert.ErrorIs(t, err, meta.ErrInvalidCatalog)
	assert.Equal(t, before, svc.Status().Hash)

	require.NoError(t, os.Remove(path))
	_, err = svc.Reload(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, before, svc.Status().Hash)
}

func TestService_Analyze(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("overloads", func(t *testing.T) {
		results, err := svc.Analyze(ctx, "Sword", "OnMethodParameter", true)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, "Armory.Sword::OnMethodParameter(string)", results[0].Member)
		require.Len(t, results[0].Analysis.Parameters, 1)
		assert.Equal(t, "ISword", results[0].Analysis.Parameters[0].TypeName)
		assert.Equal(t, "NotNull", results[0].Analysis.Parameters[0].Annotation)

		assert.Equal(t, "Armory.Sword::OnMethodParameter(int)", results[1].Member)
		require.Len(t, results[1].Analysis.Parameters, 1)
		assert.Equal(t, "NotDefault", results[1].Analysis.Parameters[0].Annotation)
		assert.True(t, results[1].Verdict.Valid)
	})

	t.Run("without inheritance", func(t *testing.T) {
		results, err := svc.Analyze(ctx, "Sword", "OnMethodParameter", false)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Empty(t, results[0].Analysis.Parameters)
	})

	t.Run("misapplied annotation", func(t *testing.T) {
		results, err := svc.Analyze(ctx, "Armory.Sword", "Sharpen", true)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, analysis.Verdict{
			Valid:  false,
			Errors: []string{"NotNullOrBlank cannot be applied to Sword(Sharpen) because it does not satisfy type constraints."},
		}, results[0].Verdict)
	})

	t.Run("property", func(t *testing.T) {
		results, err := svc.Analyze(ctx, "Sword", "OnProperty", true)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "Armory.Sword::get_OnProperty()", results[0].Member)
		require.Len(t, results[0].Analysis.ReturnValues, 1)
		assert.Equal(t, "OnProperty", results[0].Analysis.ReturnValues[0].MethodName)
		assert.Equal(t, "Armory.Sword::set_OnProperty(string)", results[1].Member)
		require.Len(t, results[1].Analysis.Parameters, 1)
		assert.Equal(t, "value", results[1].Analysis.Parameters[0].Parameter)
	})

	t.Run("constructor", func(t *testing.T) {
		results, err := svc.Analyze(ctx, "Sword", meta.ConstructorName, false)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "constructor", results[0].Kind)
		require.Len(t, results[0].Analysis.Parameters, 1)
		assert.Equal(t, "NotBlank", results[0].Analysis.Parameters[0].Annotation)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := svc.Analyze(ctx, "Shield", "Block", true)
		assert.ErrorIs(t, err, meta.ErrUnknownType)
	})

	t.Run("unknown member", func(t *testing.T) {
		_, err := svc.Analyze(ctx, "Sword", "Block", true)
		assert.ErrorIs(t, err, ErrUnknownMember)
	})
}

func TestService_Report(t *testing.T) {
	svc, _ := newTestService(t)
	rep, err := svc.Report(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Types)
	assert.Equal(t, 0, rep.Failed)
	assert.Equal(t, 1, rep.Invalid)
	assert.Equal(t, len(rep.Entries), rep.Contracts)
	assert.GreaterOrEqual(t, rep.Members, rep.Contracts)

	var sharpen *MemberAnalysis
	for i := range rep.Entries {
		if rep.Entries[i].Member == "Armory.Sword::Sharpen(int)" {
			sharpen = &rep.Entries[i]
		}
	}
	require.NotNil(t, sharpen)
	assert.False(t, sharpen.Verdict.Valid)
}

func TestService_DropInapplicable(t *testing.T) {
	var diags []analysis.Diagnostic
	sink := analysis.DiagnosticFunc(func(_ context.Context, d analysis.Diagnostic) {
		diags = append(diags, d)
	})
	svc, _ := newTestService(t, WithDiagnosticSink(sink))
	svc.cfg.Analyzer.DropInapplicable = true
	_, err := svc.Load(context.Background(), []byte("types:\n  - name: Anvil\n    methods:\n      - name: Strike\n        params:\n          - {name: n, type: int, annotations: [NotEmpty]}\n"))
	require.NoError(t, err)

	results, err := svc.Analyze(context.Background(), "Anvil", "Strike", true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Analysis.Parameters)
	assert.True(t, results[0].Verdict.Valid)
	require.Len(t, diags, 1)
	assert.Equal(t, analysis.DiagnosticParameterMisuse, diags[0].Code)
	assert.Equal(t, "Anvil::Strike", diags[0].Location)
}

func TestService_Watch(t *testing.T) {
	svc, path := newTestService(t)
	before := svc.Status().Hash

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("types: [{name: Shield}]\n"), 0o600))

	assert.Eventually(t, func() bool {
		return svc.Status().Hash != before
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, svc.Status().Types)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestService_Subscribe(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	events, cancel := svc.Subscribe()
	_, err := svc.Load(ctx, []byte("types:\n  - name: Shield\n"))
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, svc.Status().Hash, ev.Hash)
		assert.Equal(t, 1, ev.Types)
	case <-time.After(time.Second):
		t.Fatal("no reload event")
	}

	// Unchanged content publishes nothing.
	_, err = svc.Load(ctx, []byte("types:\n  - name: Shield\n"))
	require.NoError(t, err)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}

	cancel()
	cancel()
	_, ok := <-events
	assert.False(t, ok, "cancel closes the channel")

	_, err = svc.Load(ctx, []byte("types:\n  - name: Helm\n"))
	require.NoError(t, err, "publishing after cancel must not panic")
}

func TestService_SubscribeSlowConsumer(t *testing.T) {
	svc, _ := newTestService(t)
	events, cancel := svc.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+4; i++ {
		doc := "types:\n  - name: T" + string(rune('a'+i)) + "\n"
		_, err := svc.Load(context.Background(), []byte(doc))
		require.NoError(t, err)
	}
	assert.Len(t, events, subscriberBuffer, "excess events are dropped, not blocked on")
}
