// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package contract is the long-lived contract analysis service.
//
// A Service owns the current catalog and the Analyzer built over it. A
// reload builds a new catalog and a new Analyzer and swaps both at once,
// so callers never observe an analyzer paired with the wrong catalog.
package contract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/contracts/services/contract/analysis"
	"github.com/AleutianAI/contracts/services/contract/annotations"
	"github.com/AleutianAI/contracts/services/contract/config"
	"github.com/AleutianAI/contracts/services/contract/meta"
)

var (
	// ErrNotLoaded is returned while no catalog has been loaded.
	ErrNotLoaded = errors.New("contract: catalog not loaded")

	// ErrNoCatalogPath is returned by Reload when no catalog path is
	// configured.
	ErrNoCatalogPath = errors.New("contract: no catalog path configured")

	// ErrUnknownMember is returned when a type has no member of the
	// requested name.
	ErrUnknownMember = errors.New("contract: unknown member")
)

var tracer = otel.Tracer("contract.service")

// =============================================================================
// Options
// =============================================================================

// ServiceOptions configure a Service.
type ServiceOptions struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Factory builds the annotations named in catalog documents. Defaults
	// to annotations.Default().
	Factory meta.AnnotationFactory

	// Diagnostics receives misapplied annotation warnings when the
	// analyzer drops them. Defaults to a sink logging to Logger.
	Diagnostics analysis.DiagnosticSink

	// Reports persists whole-catalog reports. Nil disables persistence.
	Reports ReportStore
}

// ServiceOption is a functional option for NewService.
type ServiceOption func(*ServiceOptions)

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(o *ServiceOptions) {
		o.Logger = logger
	}
}

// WithAnnotationFactory sets the annotation factory.
func WithAnnotationFactory(f meta.AnnotationFactory) ServiceOption {
	return func(o *ServiceOptions) {
		o.Factory = f
	}
}

// WithDiagnosticSink sets the diagnostic sink.
func WithDiagnosticSink(sink analysis.DiagnosticSink) ServiceOption {
	return func(o *ServiceOptions) {
		o.Diagnostics = sink
	}
}

// WithReportStore sets the report store.
func WithReportStore(store ReportStore) ServiceOption {
	return func(o *ServiceOptions) {
		o.Reports = store
	}
}

// =============================================================================
// Service
// =============================================================================

// snapshot is one loaded catalog and its analyzer.
type snapshot struct {
	catalog  *meta.Catalog
	analyzer *analysis.Analyzer
	hash     string
	loadedAt time.Time
}

// Service serves contract analyses over a reloadable catalog.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	cfg     *config.Config
	options ServiceOptions

	mu      sync.RWMutex
	current *snapshot

	// reloadMu serializes Load.
	reloadMu sync.Mutex

	subMu sync.Mutex
	subs  map[chan ReloadEvent]struct{}
}

// NewService creates a service. No catalog is loaded until Reload or Load
// succeeds.
//
// Inputs:
//
//	cfg - The configuration. Must not be nil.
//	opts - Functional options.
func NewService(cfg *config.Config, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("NewService: config must not be nil")
	}
	options := ServiceOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Factory == nil {
		options.Factory = annotations.Default()
	}
	if options.Diagnostics == nil {
		options.Diagnostics = analysis.NewLogSink(options.Logger)
	}
	return &Service{cfg: cfg, options: options, subs: make(map[chan ReloadEvent]struct{})}, nil
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Reload reads the configured catalog file and installs it.
//
// Description:
//
//	On failure the previous catalog stays in service. Reloading unchanged
//	content is a no-op that reports changed=false.
//
// Outputs:
//
//	bool - Whether a new catalog was installed.
//	error - Non-nil if the file cannot be read or the catalog is invalid.
//
// Errors:
//
//	ErrNoCatalogPath - catalog.path is empty
//	meta.ErrInvalidCatalog - the document is invalid
func (s *Service) Reload(ctx context.Context) (bool, error) {
	path := s.cfg.Catalog.Path
	if path == "" {
		return false, ErrNoCatalogPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("Reload: %w", err)
	}
	return s.Load(ctx, data)
}

// Load installs the catalog described by data. See Reload.
func (s *Service) Load(ctx context.Context, data []byte) (bool, error) {
	ctx, span := tracer.Start(ctx, "contract.Service.Load",
		trace.WithAttributes(attribute.Int("catalog.bytes", len(data))),
	)
	defer span.End()

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if cur := s.snapshot(); cur != nil && cur.hash == hash {
		reloadsTotal.WithLabelValues("unchanged").Inc()
		span.SetAttributes(attribute.Bool("catalog.changed", false))
		return false, nil
	}

	cat, err := meta.LoadCatalog(ctx, data, s.options.Factory, meta.WithMaxTypes(s.cfg.Catalog.MaxTypes))
	if err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.options.Logger.ErrorContext(ctx, "catalog load failed",
			slog.String("path", s.cfg.Catalog.Path),
			slog.String("error", err.Error()),
		)
		return false, err
	}
	analyzer, err := analysis.NewAnalyzer(cat,
		analysis.WithLogger(s.options.Logger),
		analysis.WithDiagnostics(s.options.Diagnostics),
		analysis.WithDropInapplicable(s.cfg.Analyzer.DropInapplicable),
	)
	if err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		return false, err
	}

	next := &snapshot{catalog: cat, analyzer: analyzer, hash: hash, loadedAt: time.Now()}
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	stats := cat.Stats()
	reloadsTotal.WithLabelValues("success").Inc()
	catalogTypes.Set(float64(stats.Types))
	span.SetAttributes(
		attribute.Bool("catalog.changed", true),
		attribute.Int("catalog.types", stats.Types),
	)
	s.options.Logger.InfoContext(ctx, "catalog loaded",
		slog.String("path", s.cfg.Catalog.Path),
		slog.Int("types", stats.Types),
		slog.Int("methods", stats.Methods),
		slog.Int("properties", stats.Properties),
		slog.String("hash", shortHash(hash)),
	)
	s.publish(ReloadEvent{Hash: hash, Types: stats.Types, LoadedAt: next.loadedAt})
	return true, nil
}

func (s *Service) snapshot() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Status describes the loaded catalog.
type Status struct {
	Loaded     bool           `json:"loaded"`
	Hash       string         `json:"hash,omitempty"`
	LoadedAt   *time.Time     `json:"loaded_at,omitempty"`
	Types      int            `json:"types"`
	ByKind     map[string]int `json:"by_kind,omitempty"`
	Methods    int            `json:"methods"`
	Properties int            `json:"properties"`
	Cached     int            `json:"cached_analyses"`
}

// Status returns the state of the current catalog.
func (s *Service) Status() Status {
	cur := s.snapshot()
	if cur == nil {
		return Status{}
	}
	stats := cur.catalog.Stats()
	byKind := make(map[string]int, len(stats.ByKind))
	for k, n := range stats.ByKind {
		byKind[k.String()] = n
	}
	loadedAt := cur.loadedAt
	return Status{
		Loaded:     true,
		Hash:       cur.hash,
		LoadedAt:   &loadedAt,
		Types:      stats.Types,
		ByKind:     byKind,
		Methods:    stats.Methods,
		Properties: stats.Properties,
		Cached:     cur.analyzer.CacheLen(),
	}
}

// Types returns the declared types of the current catalog.
func (s *Service) Types() ([]*meta.Type, error) {
	cur := s.snapshot()
	if cur == nil {
		return nil, ErrNotLoaded
	}
	return cur.catalog.Types(), nil
}

// =============================================================================
// Analysis
// =============================================================================

// MemberAnalysis is the analysis of one member with its verdict.
type MemberAnalysis struct {
	Member   string           `json:"member"`
	Kind     string           `json:"kind"`
	Analysis analysis.Summary `json:"analysis"`
	Verdict  analysis.Verdict `json:"verdict"`
}

// Analyze analyzes every member of a type matching member.
//
// Description:
//
//	member names a method (every overload is analyzed), an accessor such
//	as get_Name, a property (its accessors are analyzed) or ".ctor" (every
//	constructor). Results follow declaration order.
//
// Inputs:
//
//	ctx - Context for tracing.
//	typeName - A name accepted by meta.Catalog.Lookup.
//	member - The member name.
//	inherit - Whether to include inherited declarations.
//
// Errors:
//
//	ErrNotLoaded - no catalog is loaded
//	meta.ErrUnknownType - typeName does not resolve
//	ErrUnknownMember - the type has no such member
//	analysis.ErrResolution - a member could not be analyzed
func (s *Service) Analyze(ctx context.Context, typeName, member string, inherit bool) ([]MemberAnalysis, error) {
	cur := s.snapshot()
	if cur == nil {
		return nil, ErrNotLoaded
	}
	defer recordDuration(ctx, "analyze", time.Now())
	t, ok := cur.catalog.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", meta.ErrUnknownType, typeName)
	}
	targets := membersNamed(t, member)
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %s::%s", ErrUnknownMember, t.Name, member)
	}

	out := make([]MemberAnalysis, 0, len(targets))
	for _, m := range targets {
		res, err := cur.analyzer.Analyze(ctx, m, inherit)
		if err != nil {
			return nil, err
		}
		out = append(out, MemberAnalysis{
			Member:   meta.MemberKey(m),
			Kind:     m.MemberKind().String(),
			Analysis: res.Summary(),
			Verdict:  cur.analyzer.Validate(ctx, res),
		})
	}
	return out, nil
}

// membersNamed returns the analyzable members of t called name.
func membersNamed(t *meta.Type, name string) []meta.MethodBase {
	var out []meta.MethodBase
	if name == meta.ConstructorName {
		for _, c := range t.Constructors {
			out = append(out, c)
		}
		return out
	}
	for _, m := range t.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, p := range t.Properties {
		if p.Name != name {
			continue
		}
		if p.Getter != nil {
			out = append(out, p.Getter)
		}
		if p.Setter != nil {
			out = append(out, p.Setter)
		}
	}
	return out
}

// =============================================================================
// Report
// =============================================================================

// Report summarizes the contracts of a whole catalog.
type Report struct {
	Types     int              `json:"types"`
	Members   int              `json:"members"`
	Contracts int              `json:"contracts"`
	Invalid   int              `json:"invalid"`
	Failed    int              `json:"failed"`
	Entries   []MemberAnalysis `json:"entries"`
	Errors    []string         `json:"errors,omitempty"`
}

// Report analyzes every method and constructor of every declared type and
// lists the members that carry a contract.
//
// Description:
//
//	A member that fails to analyze is counted in Failed and its error is
//	listed; the report continues with the next member.
func (s *Service) Report(ctx context.Context, inherit bool) (*Report, error) {
	cur := s.snapshot()
	if cur == nil {
		return nil, ErrNotLoaded
	}
	ctx, span := tracer.Start(ctx, "contract.Service.Report",
		trace.WithAttributes(attribute.Bool("contract.inherit", inherit)),
	)
	defer span.End()
	defer recordDuration(ctx, "report", time.Now())

	// Dropping analyzers report diagnostics while analyzing, which a stored
	// report would skip.
	store := s.options.Reports
	if s.cfg.Analyzer.DropInapplicable {
		store = nil
	}
	if store != nil {
		rep, err := store.LoadReport(ctx, cur.hash, inherit)
		switch {
		case err != nil:
			reportStoreTotal.WithLabelValues("error").Inc()
			s.options.Logger.WarnContext(ctx, "report store load failed", slog.String("error", err.Error()))
		case rep != nil:
			reportStoreTotal.WithLabelValues("hit").Inc()
			span.SetAttributes(attribute.Bool("report.stored", true))
			return rep, nil
		default:
			reportStoreTotal.WithLabelValues("miss").Inc()
		}
	}

	rep := &Report{Entries: make([]MemberAnalysis, 0)}
	for _, t := range cur.catalog.Types() {
		rep.Types++
		members := make([]meta.MethodBase, 0, len(t.Constructors)+len(t.Methods))
		for _, c := range t.Constructors {
			members = append(members, c)
		}
		for _, m := range t.Methods {
			members = append(members, m)
		}
		for _, m := range members {
			rep.Members++
			res, err := cur.analyzer.Analyze(ctx, m, inherit)
			if err != nil {
				rep.Failed++
				rep.Errors = append(rep.Errors, err.Error())
				continue
			}
			if !res.HasContract() {
				continue
			}
			v := cur.analyzer.Validate(ctx, res)
			rep.Contracts++
			if !v.Valid {
				rep.Invalid++
			}
			rep.Entries = append(rep.Entries, MemberAnalysis{
				Member:   meta.MemberKey(m),
				Kind:     m.MemberKind().String(),
				Analysis: res.Summary(),
				Verdict:  v,
			})
		}
	}
	span.SetAttributes(
		attribute.Int("report.members", rep.Members),
		attribute.Int("report.contracts", rep.Contracts),
		attribute.Int("report.invalid", rep.Invalid),
	)
	if store != nil {
		if err := store.SaveReport(ctx, cur.hash, inherit, rep); err != nil {
			reportStoreTotal.WithLabelValues("error").Inc()
			s.options.Logger.WarnContext(ctx, "report store save failed", slog.String("error", err.Error()))
		}
	}
	return rep, nil
}

// recordDuration records the time since start for op.
func recordDuration(ctx context.Context, op string, start time.Time) {
	operationDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("operation", op)))
}

// =============================================================================
// Reload Events
// =============================================================================

// ReloadEvent announces a newly installed catalog.
type ReloadEvent struct {
	Hash     string    `json:"hash"`
	Types    int       `json:"types"`
	LoadedAt time.Time `json:"loaded_at"`
}

// subscriberBuffer bounds undelivered events per subscriber. A subscriber
// that falls further behind misses events.
const subscriberBuffer = 8

// Subscribe returns a channel of reload events and a function that ends
// the subscription and closes the channel.
//
// Thread Safety: Safe for concurrent use. cancel may be called more than
// once.
func (s *Service) Subscribe() (<-chan ReloadEvent, func()) {
	ch := make(chan ReloadEvent, subscriberBuffer)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Service) publish(ev ReloadEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.options.Logger.Warn("reload event dropped for slow subscriber", slog.String("hash", shortHash(ev.Hash)))
		}
	}
}
