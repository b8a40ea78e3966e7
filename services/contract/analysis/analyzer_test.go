// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/AleutianAI/contracts/services/contract/meta"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func spanAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestAnalyzer_CachesPerMemberAndInherit(t *testing.T) {
	s := newSwords(t)
	a := newTestAnalyzer(t, s.cat)
	m := method(s.derivedBlade, "Parry")

	first := analyze(t, a, m, false)
	second := analyze(t, a, m, false)
	assert.Same(t, first, second)
	assert.Equal(t, 1, a.CacheLen())

	inherited := analyze(t, a, m, true)
	assert.NotSame(t, first, inherited)
	assert.Equal(t, 2, a.CacheLen())
	assert.Greater(t, len(inherited.Parameters()), len(first.Parameters()))
}

func TestAnalyzer_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := newSwords(t)
	a := newTestAnalyzer(t, s.cat)
	members := []*meta.Method{
		method(s.annotatedSword, "Multi"),
		method(s.annotatedSword, "OnMethodReturnValue"),
		method(s.strictSword, "OnMethodParameter"),
		method(s.derivedBlade, "Parry"),
	}

	const workers = 16
	results := make([][]*Analysis, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for _, m := range members {
				res, err := a.Analyze(context.Background(), m, true)
				if err != nil {
					t.Errorf("Analyze(%s): %v", m.Name, err)
					return
				}
				results[w] = append(results[w], res)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, len(members), a.CacheLen())
	for w := 1; w < workers; w++ {
		require.Len(t, results[w], len(members))
		for i := range members {
			assert.Same(t, results[0][i], results[w][i], "worker %d member %d", w, i)
		}
	}
}

func TestAnalyzer_Tracing(t *testing.T) {
	exporter := setupTestTracer(t)
	s := newSwords(t)
	a := newTestAnalyzer(t, s.cat)
	m := method(s.annotatedSword, "Multi")

	analyze(t, a, m, false)
	analyze(t, a, m, false)
	a.Validate(context.Background(), analyze(t, a, m, false))

	spans := exporter.GetSpans()
	var analyzeSpans []tracetest.SpanStub
	var validateSpans int
	for _, sp := range spans {
		switch sp.Name {
		case "analysis.Analyzer.Analyze":
			analyzeSpans = append(analyzeSpans, sp)
		case "analysis.Analyzer.Validate":
			validateSpans++
		}
	}
	require.Len(t, analyzeSpans, 3)
	assert.Equal(t, 1, validateSpans)

	member, ok := spanAttr(analyzeSpans[0].Attributes, "contract.member")
	require.True(t, ok)
	assert.Equal(t, "AnnotatedSword::Multi(int,string)", member.AsString())

	cache, _ := spanAttr(analyzeSpans[0].Attributes, "contract.cache")
	assert.Equal(t, "miss", cache.AsString())
	cache, _ = spanAttr(analyzeSpans[1].Attributes, "contract.cache")
	assert.Equal(t, "hit", cache.AsString())

	records, ok := spanAttr(analyzeSpans[0].Attributes, "contract.parameter_records")
	require.True(t, ok)
	assert.Equal(t, int64(len(analyze(t, a, m, false).Parameters())), records.AsInt64())
}

func TestAnalyzer_TracingRecordsErrors(t *testing.T) {
	exporter := setupTestTracer(t)
	s := newSwords(t)
	a := newTestAnalyzer(t, s.cat)

	orphan := &meta.Method{Name: "Orphan", Params: []*meta.Parameter{param("x", meta.Int, alwaysFails{})}}
	_, err := a.Analyze(context.Background(), orphan, false)
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.NotEmpty(t, spans)
	assert.Equal(t, "Error", spans[len(spans)-1].Status.Code.String())
}
