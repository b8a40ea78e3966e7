// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis computes the contracts that apply to a member.
//
// Given a method, accessor or constructor, the Analyzer collects the
// contract annotations declared on it, on the interface members it
// implements and on the properties it accesses, deduplicates them and
// returns an immutable Analysis. Validate reports whether each annotation
// is legally applied to the type it guards.
package analysis

import (
	"errors"
	"reflect"

	"github.com/AleutianAI/contracts/services/contract/meta"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrResolution is returned when a member's parameter or return type
	// cannot be determined. It aborts the analysis of that member only.
	ErrResolution = errors.New("analysis: resolution failure")

	// ErrNilMember is returned when Analyze is called without a member.
	ErrNilMember = errors.New("analysis: member is nil")
)

// =============================================================================
// Annotation Capabilities
// =============================================================================

// ParameterPrecondition is implemented by annotations that check the value
// passed to a parameter.
type ParameterPrecondition interface {
	// CheckParameter returns a non-nil error when value violates the
	// contract described by rec.
	CheckParameter(rec ParameterRecord, value any) error
}

// ReturnValuePrecondition is implemented by annotations that check the
// value a member returns.
type ReturnValuePrecondition interface {
	// CheckReturnValue returns a non-nil error when value violates the
	// contract described by rec.
	CheckReturnValue(rec ReturnValueRecord, value any) error
}

// Constrained is implemented by annotations that may only be applied to
// certain types. Annotations that do not implement it apply to any type.
type Constrained interface {
	Applicability() Applicability
}

// Applicability describes which target types an annotation may guard.
type Applicability struct {
	// Types lists the permitted types. Empty means any type. An open
	// generic definition admits every construction of it.
	Types []*meta.Type

	// ReferenceTypesOnly rejects value types.
	ReferenceTypesOnly bool

	// AllowAssignable also admits types assignable to a permitted type,
	// such as a class implementing a permitted interface.
	AllowAssignable bool
}

// applicabilityOf returns the constraints declared by an annotation.
func applicabilityOf(a any) Applicability {
	if c, ok := a.(Constrained); ok {
		return c.Applicability()
	}
	return Applicability{}
}

// AnnotationName returns the name of an annotation's type, or the name it
// reports through an AnnotationName method.
func AnnotationName(a any) string {
	if n, ok := a.(interface{ AnnotationName() string }); ok {
		return n.AnnotationName()
	}
	t := reflect.TypeOf(a)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}

func sameAnnotation(a, b any) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b) && reflect.DeepEqual(a, b)
}

// =============================================================================
// Records
// =============================================================================

// ParameterRecord binds one parameter precondition to one parameter.
//
// A parameter carrying three annotations yields three records. For a
// property setter MethodName is the property name and Name is the
// setter's value parameter.
type ParameterRecord struct {
	TypeName      string
	MethodName    string
	Name          string
	Position      int
	ParameterType *meta.Type
	Annotation    ParameterPrecondition
}

// Equal reports whether two records describe the same contribution.
func (r ParameterRecord) Equal(o ParameterRecord) bool {
	return r.TypeName == o.TypeName &&
		r.MethodName == o.MethodName &&
		r.Name == o.Name &&
		r.Position == o.Position &&
		r.ParameterType.Equal(o.ParameterType) &&
		sameAnnotation(r.Annotation, o.Annotation)
}

// ReturnValueRecord binds one return value precondition to one member.
// For a property getter MethodName is the property name.
type ReturnValueRecord struct {
	TypeName   string
	MethodName string
	ReturnType *meta.Type
	Annotation ReturnValuePrecondition
}

// Equal reports whether two records describe the same contribution.
func (r ReturnValueRecord) Equal(o ReturnValueRecord) bool {
	return r.TypeName == o.TypeName &&
		r.MethodName == o.MethodName &&
		r.ReturnType.Equal(o.ReturnType) &&
		sameAnnotation(r.Annotation, o.Annotation)
}

func unionParameters(dst []ParameterRecord, src ...ParameterRecord) []ParameterRecord {
next:
	for _, r := range src {
		for _, have := range dst {
			if have.Equal(r) {
				continue next
			}
		}
		dst = append(dst, r)
	}
	return dst
}

func unionReturnValues(dst []ReturnValueRecord, src ...ReturnValueRecord) []ReturnValueRecord {
next:
	for _, r := range src {
		for _, have := range dst {
			if have.Equal(r) {
				continue next
			}
		}
		dst = append(dst, r)
	}
	return dst
}
