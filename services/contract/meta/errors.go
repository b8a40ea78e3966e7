// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package meta

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrInvalidCatalog is returned when a catalog document cannot be decoded
	// or a set of types cannot be linked into a consistent catalog.
	ErrInvalidCatalog = errors.New("meta: invalid catalog")

	// ErrUnknownType is returned when a type expression names a type that is
	// neither built in nor declared in the catalog document.
	ErrUnknownType = errors.New("meta: unknown type")

	// ErrUnknownAnnotation is returned by an AnnotationFactory that has no
	// constructor registered for the requested annotation name.
	ErrUnknownAnnotation = errors.New("meta: unknown annotation")

	// ErrTypeExpression is returned when a type expression is malformed.
	ErrTypeExpression = errors.New("meta: malformed type expression")
)

// CatalogError collects every problem found while linking a catalog.
//
// All problems are reported at once so that a document author can fix a
// catalog in a single pass. errors.Is(err, ErrInvalidCatalog) holds for every
// CatalogError.
type CatalogError struct {
	Errors []error
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d catalog errors:", len(e.Errors))
	for _, err := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *CatalogError) Unwrap() []error {
	return e.Errors
}

// Is reports whether target is ErrInvalidCatalog, which every
// CatalogError matches.
func (e *CatalogError) Is(target error) bool {
	return target == ErrInvalidCatalog
}

func catalogErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidCatalog}, args...)...)
}
