// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package annotations provides the built-in contract annotations.
//
// Each annotation implements analysis.ParameterPrecondition and
// analysis.ReturnValuePrecondition. Annotations that only make sense on some
// types also implement analysis.Constrained so that misuse is reported
// during analysis instead of at call time.
//
// A nil value, in the sense used here, is a nil interface or a nil pointer,
// map, slice, channel, function or interface held in an interface.
package annotations

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/AleutianAI/contracts/services/contract/analysis"
	"github.com/AleutianAI/contracts/services/contract/meta"
)

// check inspects a value and returns the reason it is rejected.
type check func(value any) (reason string, ok bool)

func (c check) parameter(rec analysis.ParameterRecord, value any) error {
	if reason, ok := c(value); !ok {
		return parameterViolation(rec, reason)
	}
	return nil
}

func (c check) returnValue(rec analysis.ReturnValueRecord, value any) error {
	if reason, ok := c(value); !ok {
		return returnValueViolation(rec, reason)
	}
	return nil
}

// all runs checks in order and stops at the first rejection.
func all(checks ...check) check {
	return func(value any) (string, bool) {
		for _, c := range checks {
			if reason, ok := c(value); !ok {
				return reason, false
			}
		}
		return "", true
	}
}

// =============================================================================
// Checks
// =============================================================================

// IsNil reports whether v is nil or holds a nil reference.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}

func notNull(v any) (string, bool) {
	if IsNil(v) {
		return "cannot be null", false
	}
	return "", true
}

func notBlank(v any) (string, bool) {
	s, ok := v.(string)
	if ok && strings.TrimFunc(s, unicode.IsSpace) == "" {
		return "cannot be blank or consist entirely of whitespace", false
	}
	return "", true
}

func notEmpty(v any) (string, bool) {
	if IsNil(v) {
		return "", true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		if rv.Len() == 0 {
			return "cannot be an empty enumeration", false
		}
	}
	return "", true
}

func notDefault(v any) (string, bool) {
	if IsNil(v) || (isValueKind(v) && reflect.ValueOf(v).IsZero()) {
		return "cannot have the default value", false
	}
	return "", true
}

// isValueKind reports whether v is copied on assignment. Strings are
// immutable references here: only nil is their default.
func isValueKind(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.Array, reflect.Struct:
		return true
	default:
		return false
	}
}

// =============================================================================
// Annotations
// =============================================================================

// NotNull rejects nil values.
type NotNull struct{}

// CheckParameter implements analysis.ParameterPrecondition.
func (NotNull) CheckParameter(rec analysis.ParameterRecord, value any) error {
	return check(notNull).parameter(rec, value)
}

// CheckReturnValue implements analysis.ReturnValuePrecondition.
func (NotNull) CheckReturnValue(rec analysis.ReturnValueRecord, value any) error {
	return check(notNull).returnValue(rec, value)
}

// NotBlank rejects strings that are empty or only whitespace. Nil and
// non-string values pass.
type NotBlank struct{}

// CheckParameter implements analysis.ParameterPrecondition.
func (NotBlank) CheckParameter(rec analysis.ParameterRecord, value any) error {
	return check(notBlank).parameter(rec, value)
}

// CheckReturnValue implements analysis.ReturnValuePrecondition.
func (NotBlank) CheckReturnValue(rec analysis.ReturnValueRecord, value any) error {
	return check(notBlank).returnValue(rec, value)
}

// NotEmpty rejects empty strings and empty sequences. Nil passes.
type NotEmpty struct{}

// CheckParameter implements analysis.ParameterPrecondition.
func (NotEmpty) CheckParameter(rec analysis.ParameterRecord, value any) error {
	return check(notEmpty).parameter(rec, value)
}

// CheckReturnValue implements analysis.ReturnValuePrecondition.
func (NotEmpty) CheckReturnValue(rec analysis.ReturnValueRecord, value any) error {
	return check(notEmpty).returnValue(rec, value)
}

// Applicability restricts NotEmpty to strings and sequences.
func (NotEmpty) Applicability() analysis.Applicability {
	return sequenceApplicability()
}

// NotDefault rejects nil and the zero value of value kinds: numbers,
// bools, arrays and structs. Empty strings and empty non-nil slices or maps
// pass.
type NotDefault struct{}

// CheckParameter implements analysis.ParameterPrecondition.
func (NotDefault) CheckParameter(rec analysis.ParameterRecord, value any) error {
	return check(notDefault).parameter(rec, value)
}

// CheckReturnValue implements analysis.ReturnValuePrecondition.
func (NotDefault) CheckReturnValue(rec analysis.ReturnValueRecord, value any) error {
	return check(notDefault).returnValue(rec, value)
}

// NotNullOrBlank combines NotNull and NotBlank.
type NotNullOrBlank struct{}

// CheckParameter implements analysis.ParameterPrecondition.
func (NotNullOrBlank) CheckParameter(rec analysis.ParameterRecord, value any) error {
	return all(notNull, notBlank).parameter(rec, value)
}

// CheckReturnValue implements analysis.ReturnValuePrecondition.
func (NotNullOrBlank) CheckReturnValue(rec analysis.ReturnValueRecord, value any) error {
	return all(notNull, notBlank).returnValue(rec, value)
}

// Applicability restricts NotNullOrBlank to strings.
func (NotNullOrBlank) Applicability() analysis.Applicability {
	return analysis.Applicability{Types: []*meta.Type{meta.String}}
}

// NotNullOrEmpty combines NotNull and NotEmpty.
type NotNullOrEmpty struct{}

// CheckParameter implements analysis.ParameterPrecondition.
func (NotNullOrEmpty) CheckParameter(rec analysis.ParameterRecord, value any) error {
	return all(notNull, notEmpty).parameter(rec, value)
}

// CheckReturnValue implements analysis.ReturnValuePrecondition.
func (NotNullOrEmpty) CheckReturnValue(rec analysis.ReturnValueRecord, value any) error {
	return all(notNull, notEmpty).returnValue(rec, value)
}

// Applicability restricts NotNullOrEmpty to strings and sequences.
func (NotNullOrEmpty) Applicability() analysis.Applicability {
	return sequenceApplicability()
}

func sequenceApplicability() analysis.Applicability {
	return analysis.Applicability{
		Types:           []*meta.Type{meta.String, meta.Enumerable},
		AllowAssignable: true,
	}
}

// HasType requires the value to be assignable to one of Types. Interface
// types are satisfied by their implementations. Nil passes.
//
// Example:
//
//	a := annotations.HasType{Types: []reflect.Type{
//	    reflect.TypeFor[string](),
//	    reflect.TypeFor[reflect.Type](),
//	}}
type HasType struct {
	Types []reflect.Type
}

// CheckParameter implements analysis.ParameterPrecondition.
func (h HasType) CheckParameter(rec analysis.ParameterRecord, value any) error {
	return check(h.accepts).parameter(rec, value)
}

// CheckReturnValue implements analysis.ReturnValuePrecondition.
func (h HasType) CheckReturnValue(rec analysis.ReturnValueRecord, value any) error {
	return check(h.accepts).returnValue(rec, value)
}

func (h HasType) accepts(v any) (string, bool) {
	if v == nil {
		return "", true
	}
	actual := reflect.TypeOf(v)
	for _, t := range h.Types {
		if t != nil && actual.AssignableTo(t) {
			return "", true
		}
	}
	names := make([]string, len(h.Types))
	for i, t := range h.Types {
		names[i] = typeName(t)
	}
	return "must implement one of [" + strings.Join(names, ", ") + "] (actually implements " + actual.String() + ")", false
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
