// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package annotations

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/contracts/services/contract/analysis"
)

type contract interface {
	analysis.ParameterPrecondition
	analysis.ReturnValuePrecondition
}

var (
	paramRec  = analysis.ParameterRecord{TypeName: "Sword", MethodName: "OnParameter", Name: "value"}
	returnRec = analysis.ReturnValueRecord{TypeName: "Sword", MethodName: "OnReturnValue"}
)

type point struct{ X, Y int }

// assertContract checks that both precondition kinds agree on value.
func assertContract(t *testing.T, c contract, value any, wantReason string) {
	t.Helper()
	perr := c.CheckParameter(paramRec, value)
	rerr := c.CheckReturnValue(returnRec, value)
	if wantReason == "" {
		assert.NoError(t, perr)
		assert.NoError(t, rerr)
		return
	}

	var pv *ParameterViolation
	require.ErrorAs(t, perr, &pv)
	assert.Equal(t, wantReason, pv.Reason)
	assert.Equal(t, "Contract violation on parameter 'value' of method 'Sword::OnParameter': "+wantReason, perr.Error())

	var rv *ReturnValueViolation
	require.ErrorAs(t, rerr, &rv)
	assert.Equal(t, wantReason, rv.Reason)
	assert.Equal(t, "Contract violation on return value of method 'Sword::OnReturnValue': "+wantReason, rerr.Error())

	assert.True(t, errors.Is(perr, ErrContractViolation))
	assert.True(t, errors.Is(rerr, ErrContractViolation))
}

func TestNotNull(t *testing.T) {
	var nilPtr *point
	var nilMap map[string]int
	tests := []struct {
		name   string
		value  any
		reason string
	}{
		{"string", "a valid value", ""},
		{"empty string", "", ""},
		{"zero int", 0, ""},
		{"nil", nil, "cannot be null"},
		{"typed nil pointer", nilPtr, "cannot be null"},
		{"nil map", nilMap, "cannot be null"},
		{"pointer", &point{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertContract(t, NotNull{}, tt.value, tt.reason)
		})
	}
}

func TestNotBlank(t *testing.T) {
	const reason = "cannot be blank or consist entirely of whitespace"
	tests := []struct {
		name   string
		value  any
		reason string
	}{
		{"text", "a valid value", ""},
		{"padded text", "  x  ", ""},
		{"nil", nil, ""},
		{"empty", "", reason},
		{"whitespace", " \t\r\n", reason},
		{"non-string", 42, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertContract(t, NotBlank{}, tt.value, tt.reason)
		})
	}
}

func TestNotEmpty(t *testing.T) {
	const reason = "cannot be an empty enumeration"
	tests := []struct {
		name   string
		value  any
		reason string
	}{
		{"text", "a valid value", ""},
		{"whitespace", " ", ""},
		{"nil", nil, ""},
		{"nil slice", []int(nil), ""},
		{"empty string", "", reason},
		{"empty slice", []int{}, reason},
		{"empty map", map[string]int{}, reason},
		{"slice", []string{"a"}, ""},
		{"array", [1]int{}, ""},
		{"non-sequence", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertContract(t, NotEmpty{}, tt.value, tt.reason)
		})
	}
}

func TestNotDefault(t *testing.T) {
	const reason = "cannot have the default value"
	tests := []struct {
		name   string
		value  any
		reason string
	}{
		{"nil", nil, reason},
		{"zero int", 0, reason},
		{"zero struct", point{}, reason},
		{"false", false, reason},
		{"zero float", 0.0, reason},
		{"zero array", [2]int{}, reason},
		{"nil pointer", (*point)(nil), reason},
		{"empty string", "", ""},
		{"int", 42, ""},
		{"struct", point{X: 1}, ""},
		{"pointer to zero struct", &point{}, ""},
		{"empty non-nil slice", []int{}, ""},
		{"empty non-nil map", map[string]int{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertContract(t, NotDefault{}, tt.value, tt.reason)
		})
	}
}

func TestNotNullOrBlank(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		reason string
	}{
		{"text", "a valid value", ""},
		{"nil", nil, "cannot be null"},
		{"empty", "", "cannot be blank or consist entirely of whitespace"},
		{"whitespace", "   ", "cannot be blank or consist entirely of whitespace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertContract(t, NotNullOrBlank{}, tt.value, tt.reason)
		})
	}
}

func TestNotNullOrEmpty(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		reason string
	}{
		{"text", "a valid value", ""},
		{"whitespace", " ", ""},
		{"nil", nil, "cannot be null"},
		{"nil slice", []string(nil), "cannot be null"},
		{"empty", "", "cannot be an empty enumeration"},
		{"empty slice", []string{}, "cannot be an empty enumeration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertContract(t, NotNullOrEmpty{}, tt.value, tt.reason)
		})
	}
}

func TestHasType(t *testing.T) {
	h := HasType{Types: []reflect.Type{reflect.TypeFor[string](), reflect.TypeFor[reflect.Type]()}}
	tests := []struct {
		name   string
		value  any
		reason string
	}{
		{"string", "a valid value", ""},
		{"type descriptor", reflect.TypeFor[int](), ""},
		{"nil", nil, ""},
		{"int", 42, "must implement one of [string, reflect.Type] (actually implements int)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertContract(t, h, tt.value, tt.reason)
		})
	}
}

func TestHasType_Interface(t *testing.T) {
	h := HasType{Types: []reflect.Type{reflect.TypeFor[error]()}}
	assertContract(t, h, errors.New("boom"), "")
	assertContract(t, h, point{}, "must implement one of [error] (actually implements annotations.point)")
}

func TestApplicability(t *testing.T) {
	tests := []struct {
		name        string
		annotation  any
		constrained bool
		types       int
	}{
		{"NotNull", NotNull{}, false, 0},
		{"NotBlank", NotBlank{}, false, 0},
		{"NotDefault", NotDefault{}, false, 0},
		{"HasType", HasType{}, false, 0},
		{"NotEmpty", NotEmpty{}, true, 2},
		{"NotNullOrBlank", NotNullOrBlank{}, true, 1},
		{"NotNullOrEmpty", NotNullOrEmpty{}, true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := tt.annotation.(analysis.Constrained)
			assert.Equal(t, tt.constrained, ok)
			if ok {
				assert.Len(t, c.Applicability().Types, tt.types)
			}
			assert.Equal(t, tt.name, analysis.AnnotationName(tt.annotation))
		})
	}
}
