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

	"github.com/AleutianAI/contracts/services/contract/meta"
)

// Verdict reports whether the annotations of an Analysis are legally
// applied.
type Verdict struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// application describes one annotation applied to one target type.
type application struct {
	annotation any
	typeName   string
	memberName string
	target     *meta.Type
	constraint Applicability
}

func parameterApplication(r ParameterRecord) application {
	return application{
		annotation: r.Annotation,
		typeName:   r.TypeName,
		memberName: r.MethodName,
		target:     r.ParameterType,
		constraint: applicabilityOf(r.Annotation),
	}
}

func returnValueApplication(r ReturnValueRecord) application {
	return application{
		annotation: r.Annotation,
		typeName:   r.TypeName,
		memberName: r.MethodName,
		target:     r.ReturnType,
		constraint: applicabilityOf(r.Annotation),
	}
}

// check returns the reason an application is invalid, or ok. Targets whose
// type is not known until a call site binds it are always valid.
func (app application) check() (reason string, ok bool) {
	if app.target == nil || app.target.ContainsTypeParameters() {
		return "", true
	}
	c := app.constraint
	if c.ReferenceTypesOnly && app.target.IsValueType() {
		return "it is a value type", false
	}
	if len(c.Types) == 0 {
		return "", true
	}
	for _, permitted := range c.Types {
		if Satisfies(app.target, permitted, c.AllowAssignable) {
			return "", true
		}
	}
	return "it does not satisfy type constraints", false
}

func (app application) message(reason string) string {
	return fmt.Sprintf("%s cannot be applied to %s(%s) because %s.",
		AnnotationName(app.annotation), app.typeName, app.memberName, reason)
}

// Validate checks every record of an Analysis against the applicability
// constraints of its annotation.
//
// Description:
//
//	Each record is checked on its own. The verdict is valid, with no
//	errors, when there are no records or when at least one record is
//	valid. Only when every record is invalid is the verdict invalid, and
//	then it lists one message per record:
//
//	  "<Annotation> cannot be applied to <Type>(<Member>) because it is a value type."
//	  "<Annotation> cannot be applied to <Type>(<Member>) because it does not satisfy type constraints."
//
//	Hosts that must not enforce misapplied annotations use
//	FilterApplicable, which judges records individually.
//
// Thread Safety: Pure function; safe for concurrent use.
func Validate(a *Analysis) Verdict {
	var (
		apps     []application
		errs     []string
		anyValid bool
	)
	for _, r := range a.Parameters() {
		apps = append(apps, parameterApplication(r))
	}
	for _, r := range a.ReturnValues() {
		apps = append(apps, returnValueApplication(r))
	}
	if len(apps) == 0 {
		return Verdict{Valid: true}
	}

	for _, app := range apps {
		reason, ok := app.check()
		if ok {
			anyValid = true
			continue
		}
		errs = append(errs, app.message(reason))
	}
	if anyValid {
		return Verdict{Valid: true}
	}
	return Verdict{Valid: false, Errors: errs}
}

// =============================================================================
// Diagnostics
// =============================================================================

// Diagnostic codes reported by FilterApplicable.
const (
	// DiagnosticParameterMisuse marks a parameter annotation that was dropped.
	DiagnosticParameterMisuse = "DB01"

	// DiagnosticReturnValueMisuse marks a return value annotation that was dropped.
	DiagnosticReturnValueMisuse = "DB02"
)

// Diagnostic is a warning about a misapplied annotation.
type Diagnostic struct {
	Code     string `json:"code"`
	Location string `json:"location"`
	Message  string `json:"message"`
}

// DiagnosticSink receives diagnostics. Implementations must be safe for
// concurrent use.
type DiagnosticSink interface {
	Report(ctx context.Context, d Diagnostic)
}

// DiagnosticFunc adapts a function to DiagnosticSink.
type DiagnosticFunc func(ctx context.Context, d Diagnostic)

// Report implements DiagnosticSink.
func (f DiagnosticFunc) Report(ctx context.Context, d Diagnostic) {
	f(ctx, d)
}

// NewLogSink returns a sink that logs each diagnostic as a warning.
// A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) DiagnosticSink {
	if logger == nil {
		logger = slog.Default()
	}
	return DiagnosticFunc(func(ctx context.Context, d Diagnostic) {
		logger.WarnContext(ctx, d.Message,
			slog.String("code", d.Code),
			slog.String("location", d.Location),
		)
	})
}

// FilterApplicable returns a copy of a without the records whose annotation
// is misapplied.
//
// Description:
//
//	Unlike Validate, every record is judged on its own. Each dropped
//	record is reported to sink as DB01 (parameter) or DB02 (return
//	value). Records whose target type is unresolved are kept.
//
// Inputs:
//
//	ctx - Passed to the sink.
//	a - The analysis to filter. Not modified.
//	sink - Receives diagnostics. May be nil.
//
// Outputs:
//
//	*Analysis - The filtered analysis; a itself when nothing was dropped.
func FilterApplicable(ctx context.Context, a *Analysis, sink DiagnosticSink) *Analysis {
	if !a.HasContract() {
		return a
	}
	report := func(code string, app application, reason string) {
		inapplicableTotal.WithLabelValues(code).Inc()
		if sink == nil {
			return
		}
		sink.Report(ctx, Diagnostic{
			Code:     code,
			Location: app.typeName + "::" + app.memberName,
			Message:  "annotation is used incorrectly and will be ignored: " + app.message(reason),
		})
	}

	dropped := false
	params := make([]ParameterRecord, 0, len(a.params))
	for _, r := range a.params {
		app := parameterApplication(r)
		if reason, ok := app.check(); !ok {
			report(DiagnosticParameterMisuse, app, reason)
			dropped = true
			continue
		}
		params = append(params, r)
	}
	returns := make([]ReturnValueRecord, 0, len(a.returns))
	for _, r := range a.returns {
		app := returnValueApplication(r)
		if reason, ok := app.check(); !ok {
			report(DiagnosticReturnValueMisuse, app, reason)
			dropped = true
			continue
		}
		returns = append(returns, r)
	}
	if !dropped {
		return a
	}
	return &Analysis{params: params, returns: returns}
}
