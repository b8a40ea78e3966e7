// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package guard applies an analysis to live values.
//
// A Guard is the explicit form of call interception: the host calls Enter
// with the arguments before running a method and Exit with its result
// afterwards.
//
//	g := guard.New(res)
//	if err := g.Enter(name, age); err != nil {
//	    return err
//	}
package guard

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/contracts/services/contract/analysis"
)

// ErrArity is returned when fewer arguments are supplied than a parameter
// record's position requires.
var ErrArity = errors.New("guard: missing argument")

// violationsTotal counts rejected values.
//
// Labels:
//   - kind: parameter or return_value
var violationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "contract",
	Subsystem: "guard",
	Name:      "violations_total",
	Help:      "Contract violations detected at call time.",
}, []string{"kind"})

// Options configure a Guard.
type Options struct {
	// Logger receives a debug entry per violation. Defaults to slog.Default().
	Logger *slog.Logger
}

// Option is a functional option for New.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Guard checks arguments and results against one analysis.
//
// Thread Safety: Safe for concurrent use; it holds no mutable state.
type Guard struct {
	params  []analysis.ParameterRecord
	returns []analysis.ReturnValueRecord
	logger  *slog.Logger
}

// New creates a guard for res. A nil analysis yields a guard that accepts
// everything.
func New(res *analysis.Analysis, opts ...Option) *Guard {
	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Guard{
		params:  res.Parameters(),
		returns: res.ReturnValues(),
		logger:  options.Logger,
	}
}

// Enter checks args against the parameter preconditions.
//
// Description:
//
//	Each record is checked against args[record.Position] in record order.
//	The first violation is returned.
//
// Errors:
//
//	ErrArity - a record refers to a position beyond len(args)
//	*annotations.ParameterViolation or the annotation's own error
func (g *Guard) Enter(args ...any) error {
	for _, rec := range g.params {
		if rec.Position < 0 || rec.Position >= len(args) {
			return fmt.Errorf("%w: %s::%s needs argument %d (%s), got %d",
				ErrArity, rec.TypeName, rec.MethodName, rec.Position, rec.Name, len(args))
		}
		if err := rec.Annotation.CheckParameter(rec, args[rec.Position]); err != nil {
			g.violation("parameter", rec.TypeName, rec.MethodName, err)
			return err
		}
	}
	return nil
}

// Exit checks ret against the return value preconditions and returns the
// first violation.
func (g *Guard) Exit(ret any) error {
	for _, rec := range g.returns {
		if err := rec.Annotation.CheckReturnValue(rec, ret); err != nil {
			g.violation("return_value", rec.TypeName, rec.MethodName, err)
			return err
		}
	}
	return nil
}

func (g *Guard) violation(kind, typeName, methodName string, err error) {
	violationsTotal.WithLabelValues(kind).Inc()
	g.logger.Debug("contract violation",
		slog.String("kind", kind),
		slog.String("member", typeName+"::"+methodName),
		slog.String("error", err.Error()),
	)
}

// Call runs fn between Enter(args...) and Exit(result).
//
// Outputs:
//
//	R - fn's result, or the zero value if the arguments were rejected.
//	error - The first violation, or fn's own error. A result is not
//	        checked when fn fails.
func Call[R any](g *Guard, fn func() (R, error), args ...any) (R, error) {
	var zero R
	if err := g.Enter(args...); err != nil {
		return zero, err
	}
	ret, err := fn()
	if err != nil {
		return ret, err
	}
	if err := g.Exit(ret); err != nil {
		return ret, err
	}
	return ret, nil
}
