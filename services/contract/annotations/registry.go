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
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/contracts/services/contract/meta"
)

// ErrInvalidArguments is returned when an annotation spec carries
// arguments its builder does not accept.
var ErrInvalidArguments = errors.New("annotations: invalid arguments")

// Builder creates an annotation from its arguments.
type Builder func(args []string) (meta.Annotation, error)

// Registry maps annotation names to builders. It implements
// meta.AnnotationFactory so catalog documents can name annotations.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Default returns a registry holding the built-in annotations: NotNull,
// NotBlank, NotEmpty, NotDefault, NotNullOrBlank, NotNullOrEmpty and
// HasType.
func Default() *Registry {
	r := NewRegistry()
	r.Register("NotNull", noArgs(NotNull{}))
	r.Register("NotBlank", noArgs(NotBlank{}))
	r.Register("NotEmpty", noArgs(NotEmpty{}))
	r.Register("NotDefault", noArgs(NotDefault{}))
	r.Register("NotNullOrBlank", noArgs(NotNullOrBlank{}))
	r.Register("NotNullOrEmpty", noArgs(NotNullOrEmpty{}))
	r.Register("HasType", buildHasType)
	return r
}

// Register adds a builder, replacing any existing one with the same name.
func (r *Registry) Register(name string, b Builder) {
	if name == "" || b == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = b
}

// Names returns the sorted names of all registered annotations.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build implements meta.AnnotationFactory.
//
// Errors:
//
//	meta.ErrUnknownAnnotation - nothing is registered under spec.Name
//	ErrInvalidArguments - the builder rejected spec.Args
func (r *Registry) Build(spec meta.AnnotationSpec) (meta.Annotation, error) {
	r.mu.RLock()
	b, ok := r.builders[spec.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", meta.ErrUnknownAnnotation, spec.Name)
	}
	a, err := b(spec.Args)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", spec, err)
	}
	return a, nil
}

func noArgs(a meta.Annotation) Builder {
	return func(args []string) (meta.Annotation, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf("%w: takes no arguments, got %d", ErrInvalidArguments, len(args))
		}
		return a, nil
	}
}

// goTypes are the type names HasType accepts in catalog documents.
var goTypes = map[string]reflect.Type{
	"string":       reflect.TypeFor[string](),
	"bool":         reflect.TypeFor[bool](),
	"int":          reflect.TypeFor[int](),
	"int64":        reflect.TypeFor[int64](),
	"float64":      reflect.TypeFor[float64](),
	"error":        reflect.TypeFor[error](),
	"reflect.Type": reflect.TypeFor[reflect.Type](),
	"any":          reflect.TypeFor[any](),
}

// GoType resolves a type name accepted by the HasType builder.
func GoType(name string) (reflect.Type, bool) {
	t, ok := goTypes[strings.TrimSpace(name)]
	return t, ok
}

func buildHasType(args []string) (meta.Annotation, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: HasType needs at least one type", ErrInvalidArguments)
	}
	types := make([]reflect.Type, 0, len(args))
	for _, name := range args {
		t, ok := GoType(name)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidArguments, name)
		}
		types = append(types, t)
	}
	return HasType{Types: types}, nil
}
