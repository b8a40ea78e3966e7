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
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/contracts/services/contract/meta"
)

// AnalyzerOptions configures an Analyzer.
type AnalyzerOptions struct {
	// Logger receives debug output. Default: slog.Default()
	Logger *slog.Logger

	// Diagnostics receives the warnings of FilterApplicable when
	// DropInapplicable is set. May be nil.
	Diagnostics DiagnosticSink

	// DropInapplicable removes misapplied annotations from every analysis
	// before it is cached. Default: false
	DropInapplicable bool
}

// AnalyzerOption is a functional option for configuring an Analyzer.
type AnalyzerOption func(*AnalyzerOptions)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AnalyzerOption {
	return func(o *AnalyzerOptions) {
		o.Logger = logger
	}
}

// WithDiagnostics sets the sink for misapplied annotation warnings.
func WithDiagnostics(sink DiagnosticSink) AnalyzerOption {
	return func(o *AnalyzerOptions) {
		o.Diagnostics = sink
	}
}

// WithDropInapplicable makes the analyzer filter every analysis through
// FilterApplicable.
func WithDropInapplicable(drop bool) AnalyzerOption {
	return func(o *AnalyzerOptions) {
		o.DropInapplicable = drop
	}
}

type cacheKey struct {
	member  string
	inherit bool
}

func (k cacheKey) String() string {
	return k.member + "|inherit=" + strconv.FormatBool(k.inherit)
}

// Analyzer computes and caches the contracts of members.
//
// Description:
//
//	An Analyzer is created once per catalog, at host startup or after a
//	catalog reload, and lives until the catalog is replaced. It owns a
//	cache mapping (member identity, inherit) to the Analysis computed for
//	it. Failed analyses are not cached.
//
// Thread Safety:
//
//	Safe for concurrent use. Cache reads share a read lock; concurrent
//	misses for the same member collapse into a single computation.
type Analyzer struct {
	md      meta.Metadata
	x       *extractor
	options AnalyzerOptions
	tracer  trace.Tracer

	mu    sync.RWMutex
	cache map[cacheKey]*Analysis
	group singleflight.Group
}

// NewAnalyzer creates an analyzer reading from md.
//
// Inputs:
//
//	md - The metadata to analyze. Must not be nil.
//	opts - Functional options.
//
// Outputs:
//
//	*Analyzer - The analyzer, with an empty cache.
//	error - Non-nil if md is nil.
func NewAnalyzer(md meta.Metadata, opts ...AnalyzerOption) (*Analyzer, error) {
	if md == nil {
		return nil, fmt.Errorf("NewAnalyzer: metadata must not be nil")
	}
	options := AnalyzerOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Analyzer{
		md:      md,
		x:       &extractor{md: md},
		options: options,
		tracer:  otel.Tracer(tracerName),
		cache:   make(map[cacheKey]*Analysis),
	}, nil
}

// Metadata returns the metadata the analyzer reads.
func (a *Analyzer) Metadata() meta.Metadata {
	return a.md
}

// CacheLen returns the number of cached analyses.
func (a *Analyzer) CacheLen() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cache)
}

// Analyze returns the contracts of a method, accessor or constructor.
//
// Description:
//
//	Collects the parameter preconditions of m's parameters and the return
//	value preconditions of its return slot and of m itself. For a setter
//	the property's annotations apply to the value parameter; for a
//	getter they apply to the result; both are attributed to the property
//	name. With inherit set, annotations of overridden base declarations
//	and of the interface members m implements are added. Structurally
//	equal contributions appear once.
//
//	Results are cached per (member, inherit); repeated calls return the
//	same *Analysis.
//
// Inputs:
//
//	ctx - Context for tracing.
//	m - The member to analyze. Must not be nil.
//	inherit - Whether to include inherited declarations.
//
// Outputs:
//
//	*Analysis - The contracts of m. Never nil on success.
//	error - Non-nil if m is nil or a type cannot be resolved.
//
// Errors:
//
//	ErrNilMember - m is nil
//	ErrResolution - a parameter or return type could not be determined
//
// Thread Safety: Safe for concurrent use.
func (a *Analyzer) Analyze(ctx context.Context, m meta.MethodBase, inherit bool) (*Analysis, error) {
	if isNilMember(m) {
		return nil, ErrNilMember
	}
	key := cacheKey{member: meta.MemberKey(m), inherit: inherit}

	ctx, span := a.tracer.Start(ctx, "analysis.Analyzer.Analyze",
		trace.WithAttributes(
			attribute.String("contract.member", key.member),
			attribute.Bool("contract.inherit", inherit),
		),
	)
	defer span.End()

	if res, ok := a.lookup(key); ok {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		span.SetAttributes(attribute.String("contract.cache", "hit"))
		return res, nil
	}

	v, err, shared := a.group.Do(key.String(), func() (any, error) {
		if res, ok := a.lookup(key); ok {
			return res, nil
		}
		res, err := a.compute(ctx, m, inherit)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.cache[key] = res
		a.mu.Unlock()
		return res, nil
	})

	result := "miss"
	if shared {
		result = "shared"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
	span.SetAttributes(attribute.String("contract.cache", result))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("analyze %s: %w", key.member, err)
	}
	res := v.(*Analysis)
	span.SetAttributes(
		attribute.Int("contract.parameter_records", len(res.params)),
		attribute.Int("contract.return_value_records", len(res.returns)),
	)
	return res, nil
}

func (a *Analyzer) lookup(key cacheKey) (*Analysis, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	res, ok := a.cache[key]
	return res, ok
}

func (a *Analyzer) compute(ctx context.Context, m meta.MethodBase, inherit bool) (*Analysis, error) {
	start := time.Now()
	res, err := a.x.extract(m, inherit)
	analysisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		analysesTotal.WithLabelValues("error").Inc()
		a.options.Logger.DebugContext(ctx, "contract analysis failed",
			slog.String("member", meta.QualifiedName(m)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	analysesTotal.WithLabelValues("success").Inc()

	if a.options.DropInapplicable {
		res = FilterApplicable(ctx, res, a.options.Diagnostics)
	}
	a.options.Logger.DebugContext(ctx, "contract analysis computed",
		slog.String("member", meta.QualifiedName(m)),
		slog.Bool("inherit", inherit),
		slog.Int("parameter_records", len(res.params)),
		slog.Int("return_value_records", len(res.returns)),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// Validate checks res with the package level Validate and records the
// outcome.
func (a *Analyzer) Validate(ctx context.Context, res *Analysis) Verdict {
	_, span := a.tracer.Start(ctx, "analysis.Analyzer.Validate")
	defer span.End()

	v := Validate(res)
	verdictsTotal.WithLabelValues(strconv.FormatBool(v.Valid)).Inc()
	span.SetAttributes(
		attribute.Bool("contract.valid", v.Valid),
		attribute.Int("contract.errors", len(v.Errors)),
	)
	return v
}

func isNilMember(m meta.MethodBase) bool {
	switch v := m.(type) {
	case nil:
		return true
	case *meta.Method:
		return v == nil
	case *meta.Constructor:
		return v == nil
	default:
		return false
	}
}
