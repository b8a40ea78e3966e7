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
	"strconv"
	"strings"
)

// Analysis is the result of analyzing one member: the parameter and return
// value preconditions to enforce, in a stable order.
//
// Thread Safety:
//
//	Immutable. Accessors return copies and an Analysis may be shared
//	freely between goroutines.
type Analysis struct {
	params  []ParameterRecord
	returns []ReturnValueRecord
}

// NewAnalysis builds an Analysis from records. Records without an
// annotation are discarded; the slices are copied.
func NewAnalysis(params []ParameterRecord, returns []ReturnValueRecord) *Analysis {
	a := &Analysis{}
	for _, r := range params {
		if r.Annotation != nil {
			a.params = append(a.params, r)
		}
	}
	for _, r := range returns {
		if r.Annotation != nil {
			a.returns = append(a.returns, r)
		}
	}
	return a
}

// Parameters returns the parameter records.
func (a *Analysis) Parameters() []ParameterRecord {
	if a == nil {
		return nil
	}
	return append([]ParameterRecord(nil), a.params...)
}

// ReturnValues returns the return value records.
func (a *Analysis) ReturnValues() []ReturnValueRecord {
	if a == nil {
		return nil
	}
	return append([]ReturnValueRecord(nil), a.returns...)
}

// HasContract reports whether any record exists.
func (a *Analysis) HasContract() bool {
	return a != nil && (len(a.params) > 0 || len(a.returns) > 0)
}

// Equal reports whether both analyses hold equal records in the same order.
func (a *Analysis) Equal(o *Analysis) bool {
	ap, op := a.Parameters(), o.Parameters()
	ar, or := a.ReturnValues(), o.ReturnValues()
	if len(ap) != len(op) || len(ar) != len(or) {
		return false
	}
	for i := range ap {
		if !ap[i].Equal(op[i]) {
			return false
		}
	}
	for i := range ar {
		if !ar[i].Equal(or[i]) {
			return false
		}
	}
	return true
}

// String renders every record for logs and test failures:
//
//	Analysis: { HasContract=true, ParameterPreconditions=[{TypeName='Sword', MethodName='OnProperty', Parameter='value', Position=0, Annotation=AlwaysFails}], ReturnValuePreconditions=[] }
func (a *Analysis) String() string {
	var sb strings.Builder
	sb.WriteString("Analysis: { HasContract=")
	sb.WriteString(strconv.FormatBool(a.HasContract()))
	sb.WriteString(", ParameterPreconditions=[")
	for i, r := range a.Parameters() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("{TypeName='" + r.TypeName + "', MethodName='" + r.MethodName +
			"', Parameter='" + r.Name + "', Position=" + strconv.Itoa(r.Position) +
			", Annotation=" + AnnotationName(r.Annotation) + "}")
	}
	sb.WriteString("], ReturnValuePreconditions=[")
	for i, r := range a.ReturnValues() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("{TypeName='" + r.TypeName + "', MethodName='" + r.MethodName +
			"', Parameter='return value', Annotation=" + AnnotationName(r.Annotation) + "}")
	}
	sb.WriteString("] }")
	return sb.String()
}

// =============================================================================
// Summary DTOs
// =============================================================================

// Summary is the JSON form of an Analysis used by diagnostics endpoints.
type Summary struct {
	HasContract  bool                 `json:"has_contract"`
	Parameters   []ParameterSummary   `json:"parameters"`
	ReturnValues []ReturnValueSummary `json:"return_values"`
}

// ParameterSummary is the JSON form of a ParameterRecord.
type ParameterSummary struct {
	TypeName      string `json:"type_name"`
	MethodName    string `json:"method_name"`
	Parameter     string `json:"parameter"`
	Position      int    `json:"position"`
	ParameterType string `json:"parameter_type"`
	Annotation    string `json:"annotation"`
}

// ReturnValueSummary is the JSON form of a ReturnValueRecord.
type ReturnValueSummary struct {
	TypeName   string `json:"type_name"`
	MethodName string `json:"method_name"`
	ReturnType string `json:"return_type"`
	Annotation string `json:"annotation"`
}

// Summary converts the analysis to its JSON form. The slices are never
// nil so that they encode as [].
func (a *Analysis) Summary() Summary {
	s := Summary{
		HasContract:  a.HasContract(),
		Parameters:   make([]ParameterSummary, 0, len(a.Parameters())),
		ReturnValues: make([]ReturnValueSummary, 0, len(a.ReturnValues())),
	}
	for _, r := range a.Parameters() {
		s.Parameters = append(s.Parameters, ParameterSummary{
			TypeName:      r.TypeName,
			MethodName:    r.MethodName,
			Parameter:     r.Name,
			Position:      r.Position,
			ParameterType: r.ParameterType.String(),
			Annotation:    AnnotationName(r.Annotation),
		})
	}
	for _, r := range a.ReturnValues() {
		s.ReturnValues = append(s.ReturnValues, ReturnValueSummary{
			TypeName:   r.TypeName,
			MethodName: r.MethodName,
			ReturnType: r.ReturnType.String(),
			Annotation: AnnotationName(r.Annotation),
		})
	}
	return s
}
