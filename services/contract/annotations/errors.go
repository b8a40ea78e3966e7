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
	"fmt"

	"github.com/AleutianAI/contracts/services/contract/analysis"
)

// ErrContractViolation is matched by every violation error.
var ErrContractViolation = errors.New("annotations: contract violation")

// ParameterViolation is returned when an argument breaks a parameter
// precondition.
type ParameterViolation struct {
	TypeName   string
	MethodName string
	Parameter  string
	Reason     string
}

// Error implements error.
func (e *ParameterViolation) Error() string {
	return fmt.Sprintf("Contract violation on parameter '%s' of method '%s::%s': %s",
		e.Parameter, e.TypeName, e.MethodName, e.Reason)
}

// Unwrap returns ErrContractViolation.
func (e *ParameterViolation) Unwrap() error {
	return ErrContractViolation
}

// ReturnValueViolation is returned when a result breaks a return value
// precondition.
type ReturnValueViolation struct {
	TypeName   string
	MethodName string
	Reason     string
}

// Error implements error.
func (e *ReturnValueViolation) Error() string {
	return fmt.Sprintf("Contract violation on return value of method '%s::%s': %s",
		e.TypeName, e.MethodName, e.Reason)
}

// Unwrap returns ErrContractViolation.
func (e *ReturnValueViolation) Unwrap() error {
	return ErrContractViolation
}

func parameterViolation(rec analysis.ParameterRecord, reason string) error {
	return &ParameterViolation{
		TypeName:   rec.TypeName,
		MethodName: rec.MethodName,
		Parameter:  rec.Name,
		Reason:     reason,
	}
}

func returnValueViolation(rec analysis.ReturnValueRecord, reason string) error {
	return &ReturnValueViolation{
		TypeName:   rec.TypeName,
		MethodName: rec.MethodName,
		Reason:     reason,
	}
}
