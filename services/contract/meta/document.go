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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

var tracer = otel.Tracer("contract.meta")

// MaxDocumentSize is the largest catalog document LoadCatalog accepts.
const MaxDocumentSize = 8 << 20

// SchemaMajor is the document schema major version LoadCatalog reads.
// Documents may declare any v1.x version, or none.
const SchemaMajor = "v1"

// =============================================================================
// Catalog Document Types
// =============================================================================

// Document is the YAML description of a catalog.
//
//	version: v1.0
//	types:
//	  - name: ISword
//	    kind: interface
//	    methods:
//	      - name: OnMethodParameter
//	        params:
//	          - {name: value, type: bool, annotations: [NotNull]}
type Document struct {
	// Version is the semantic version of the schema the document was
	// written for. The leading "v" is optional.
	Version string    `yaml:"version,omitempty"`
	Types   []TypeDoc `yaml:"types" validate:"required,dive"`
}

// TypeDoc declares one type.
type TypeDoc struct {
	Name       string   `yaml:"name" validate:"required"`
	Namespace  string   `yaml:"namespace,omitempty"`
	Kind       string   `yaml:"kind,omitempty" validate:"omitempty,oneof=class struct enum interface"`
	TypeParams []string `yaml:"type_params,omitempty" validate:"dive,required"`

	// Base and Interfaces are type expressions.
	Base       string   `yaml:"base,omitempty"`
	Interfaces []string `yaml:"interfaces,omitempty" validate:"dive,required"`

	Constructors []ConstructorDoc `yaml:"constructors,omitempty" validate:"dive"`
	Methods      []MethodDoc      `yaml:"methods,omitempty" validate:"dive"`
	Properties   []PropertyDoc    `yaml:"properties,omitempty" validate:"dive"`
	Fields       []FieldDoc       `yaml:"fields,omitempty" validate:"dive"`
}

// MethodDoc declares a method. An empty Returns means void.
type MethodDoc struct {
	Name              string           `yaml:"name" validate:"required"`
	TypeParams        []string         `yaml:"type_params,omitempty" validate:"dive,required"`
	Params            []ParamDoc       `yaml:"params,omitempty" validate:"dive"`
	Returns           string           `yaml:"returns,omitempty"`
	Static            bool             `yaml:"static,omitempty"`
	Override          bool             `yaml:"override,omitempty"`
	Annotations       []AnnotationSpec `yaml:"annotations,omitempty" validate:"dive"`
	ReturnAnnotations []AnnotationSpec `yaml:"return_annotations,omitempty" validate:"dive"`
}

// ConstructorDoc declares a constructor.
type ConstructorDoc struct {
	Params      []ParamDoc       `yaml:"params,omitempty" validate:"dive"`
	Annotations []AnnotationSpec `yaml:"annotations,omitempty" validate:"dive"`
}

// ParamDoc declares a parameter.
type ParamDoc struct {
	Name        string           `yaml:"name" validate:"required"`
	Type        string           `yaml:"type" validate:"required"`
	Annotations []AnnotationSpec `yaml:"annotations,omitempty" validate:"dive"`
}

// PropertyDoc declares a property. When neither Get nor Set is given the
// property is readable and writable.
type PropertyDoc struct {
	Name        string           `yaml:"name" validate:"required"`
	Type        string           `yaml:"type" validate:"required"`
	Get         bool             `yaml:"get,omitempty"`
	Set         bool             `yaml:"set,omitempty"`
	Index       []ParamDoc       `yaml:"index,omitempty" validate:"dive"`
	Static      bool             `yaml:"static,omitempty"`
	Override    bool             `yaml:"override,omitempty"`
	Annotations []AnnotationSpec `yaml:"annotations,omitempty" validate:"dive"`
}

// FieldDoc declares a field.
type FieldDoc struct {
	Name        string           `yaml:"name" validate:"required"`
	Type        string           `yaml:"type" validate:"required"`
	Static      bool             `yaml:"static,omitempty"`
	Annotations []AnnotationSpec `yaml:"annotations,omitempty" validate:"dive"`
}

// AnnotationSpec names an annotation and its arguments. In YAML it is
// either a bare name or a mapping:
//
//	annotations:
//	  - NotNull
//	  - {name: HasType, args: [string, int]}
type AnnotationSpec struct {
	Name string   `yaml:"name" validate:"required"`
	Args []string `yaml:"args,omitempty"`
}

// UnmarshalYAML accepts the scalar and mapping forms.
func (s *AnnotationSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = AnnotationSpec{Name: node.Value}
		return nil
	}
	type plain AnnotationSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = AnnotationSpec(p)
	return nil
}

// MarshalYAML writes the scalar form when there are no arguments.
func (s AnnotationSpec) MarshalYAML() (any, error) {
	if len(s.Args) == 0 {
		return s.Name, nil
	}
	type plain AnnotationSpec
	return plain(s), nil
}

// String renders the spec as Name or Name(arg, ...).
func (s AnnotationSpec) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	out := s.Name + "("
	for i, a := range s.Args {
		if i > 0 {
			out += ", "
		}
		out += a
	}
	return out + ")"
}

// AnnotationFactory turns annotation specs into annotation instances.
type AnnotationFactory interface {
	// Build returns the annotation named by spec.
	//
	// Errors:
	//
	//	ErrUnknownAnnotation - no annotation is registered under spec.Name
	Build(spec AnnotationSpec) (Annotation, error)
}

// =============================================================================
// Loading
// =============================================================================

// LoadCatalogFile reads path and loads it with LoadCatalog.
func LoadCatalogFile(ctx context.Context, path string, factory AnnotationFactory, opts ...CatalogOption) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadCatalogFile: %w", err)
	}
	cat, err := LoadCatalog(ctx, data, factory, opts...)
	if err != nil {
		return nil, fmt.Errorf("LoadCatalogFile %s: %w", path, err)
	}
	return cat, nil
}

// LoadCatalog parses a YAML catalog document and links it into a Catalog.
//
// Description:
//
//	Decodes the document strictly (unknown keys are errors), validates its
//	structure, resolves every type expression against the built-ins and
//	the document's own types, builds annotations through factory and
//	finally hands the types to NewCatalog.
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes.
//	factory - Builds annotation instances. May be nil when the document
//	          carries no annotations.
//	opts - Options forwarded to NewCatalog.
//
// Outputs:
//
//	*Catalog - The linked catalog.
//	error - Non-nil if decoding, validation, resolution or linking fails.
func LoadCatalog(ctx context.Context, data []byte, factory AnnotationFactory, opts ...CatalogOption) (*Catalog, error) {
	ctx, span := tracer.Start(ctx, "meta.LoadCatalog")
	defer span.End()
	start := time.Now()

	cat, doc, err := loadCatalog(data, factory, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	stats := cat.Stats()
	span.SetAttributes(
		attribute.Int("document.types", len(doc.Types)),
		attribute.Int("catalog.types", stats.Types),
		attribute.Int("catalog.methods", stats.Methods),
		attribute.Int("catalog.properties", stats.Properties),
	)
	slog.DebugContext(ctx, "catalog loaded",
		slog.Int("types", stats.Types),
		slog.Int("methods", stats.Methods),
		slog.Int("properties", stats.Properties),
		slog.Duration("duration", time.Since(start)),
	)
	return cat, nil
}

func loadCatalog(data []byte, factory AnnotationFactory, opts ...CatalogOption) (*Catalog, *Document, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("LoadCatalog: %w: empty YAML data", ErrInvalidCatalog)
	}
	if len(data) > MaxDocumentSize {
		return nil, nil, fmt.Errorf("LoadCatalog: %w: YAML data exceeds maximum size (%d > %d)", ErrInvalidCatalog, len(data), MaxDocumentSize)
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("LoadCatalog: %w: parsing YAML: %w", ErrInvalidCatalog, err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&doc); err != nil {
		return nil, nil, fmt.Errorf("LoadCatalog: %w: validation: %w", ErrInvalidCatalog, err)
	}

	if err := checkVersion(doc.Version); err != nil {
		return nil, nil, fmt.Errorf("LoadCatalog: %w: %w", ErrInvalidCatalog, err)
	}

	types, err := buildTypes(&doc, factory)
	if err != nil {
		return nil, nil, fmt.Errorf("LoadCatalog: %w", err)
	}
	cat, err := NewCatalog(types, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("LoadCatalog: %w", err)
	}
	return cat, &doc, nil
}

// docBuilder turns a validated Document into unlinked types.
type docBuilder struct {
	factory AnnotationFactory
	names   map[string]*Type
	errs    []error
}

func buildTypes(doc *Document, factory AnnotationFactory) ([]*Type, error) {
	b := &docBuilder{factory: factory, names: make(map[string]*Type)}
	for _, t := range Builtins() {
		b.name(t)
	}

	// Phase 1: shells, so that types may refer to each other in any order
	types := make([]*Type, len(doc.Types))
	for i, td := range doc.Types {
		kind, err := ParseTypeKind(td.Kind)
		if err != nil {
			b.errorf("types[%s]: %v", td.Name, err)
		}
		types[i] = &Type{
			Namespace:  td.Namespace,
			Name:       td.Name,
			Kind:       kind,
			TypeParams: append([]string(nil), td.TypeParams...),
		}
		b.name(types[i])
	}
	if len(b.errs) > 0 {
		return nil, &CatalogError{Errors: b.errs}
	}

	// Phase 2: references and members
	for i, td := range doc.Types {
		b.fill(types[i], &td)
	}
	if len(b.errs) > 0 {
		return nil, &CatalogError{Errors: b.errs}
	}
	return types, nil
}

func (b *docBuilder) name(t *Type) {
	suffix := ""
	if len(t.TypeParams) > 0 {
		suffix = "`" + strconv.Itoa(len(t.TypeParams))
	}
	b.names[t.FullName()+suffix] = t
	if _, taken := b.names[t.Name+suffix]; !taken {
		b.names[t.Name+suffix] = t
	}
}

func (b *docBuilder) lookup(name string) (*Type, bool) {
	t, ok := b.names[name]
	return t, ok
}

func (b *docBuilder) errorf(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidCatalog}, args...)...))
}

func (b *docBuilder) typeExpr(where, expr string, scope []*Type) *Type {
	t, err := ParseTypeExpr(expr, scopedResolver(b.lookup, scope))
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("%s: %w", where, err))
		return nil
	}
	return t
}

func (b *docBuilder) annotations(where string, specs []AnnotationSpec) []Annotation {
	if len(specs) == 0 {
		return nil
	}
	out := make([]Annotation, 0, len(specs))
	for _, spec := range specs {
		if b.factory == nil {
			b.errs = append(b.errs, fmt.Errorf("%s: %w: %s (no annotation factory)", where, ErrUnknownAnnotation, spec.Name))
			continue
		}
		a, err := b.factory.Build(spec)
		if err != nil {
			b.errs = append(b.errs, fmt.Errorf("%s: annotation %s: %w", where, spec, err))
			continue
		}
		out = append(out, a)
	}
	return out
}

func (b *docBuilder) params(where string, docs []ParamDoc, scope []*Type) []*Parameter {
	out := make([]*Parameter, len(docs))
	for i, pd := range docs {
		at := fmt.Sprintf("%s.params[%s]", where, pd.Name)
		out[i] = &Parameter{
			Name:        pd.Name,
			Type:        b.typeExpr(at, pd.Type, scope),
			Annotations: b.annotations(at, pd.Annotations),
		}
	}
	return out
}

func (b *docBuilder) fill(t *Type, td *TypeDoc) {
	where := "types[" + td.Name + "]"
	scope := make([]*Type, len(td.TypeParams))
	for i, p := range td.TypeParams {
		scope[i] = TypeParameter(p)
	}

	if td.Base != "" {
		t.Base = b.typeExpr(where+".base", td.Base, scope)
	}
	for _, expr := range td.Interfaces {
		if iface := b.typeExpr(where+".interfaces", expr, scope); iface != nil {
			t.Interfaces = append(t.Interfaces, iface)
		}
	}

	for i, cd := range td.Constructors {
		at := fmt.Sprintf("%s.constructors[%d]", where, i)
		t.Constructors = append(t.Constructors, &Constructor{
			Params:      b.params(at, cd.Params, scope),
			Annotations: b.annotations(at, cd.Annotations),
		})
	}

	for _, md := range td.Methods {
		at := where + ".methods[" + md.Name + "]"
		mscope := scope
		for _, p := range md.TypeParams {
			mscope = append(mscope[:len(mscope):len(mscope)], TypeParameter(p))
		}
		m := &Method{
			Name:              md.Name,
			TypeParams:        append([]string(nil), md.TypeParams...),
			Params:            b.params(at, md.Params, mscope),
			Static:            md.Static,
			Override:          md.Override,
			Annotations:       b.annotations(at, md.Annotations),
			ReturnAnnotations: b.annotations(at+".return", md.ReturnAnnotations),
		}
		if md.Returns != "" {
			m.Returns = b.typeExpr(at+".returns", md.Returns, mscope)
		}
		t.Methods = append(t.Methods, m)
	}

	for _, pd := range td.Properties {
		at := where + ".properties[" + pd.Name + "]"
		canRead, canWrite := pd.Get, pd.Set
		if !canRead && !canWrite {
			canRead, canWrite = true, true
		}
		t.Properties = append(t.Properties, &Property{
			Name:        pd.Name,
			Type:        b.typeExpr(at, pd.Type, scope),
			IndexParams: b.params(at, pd.Index, scope),
			CanRead:     canRead,
			CanWrite:    canWrite,
			Static:      pd.Static,
			Override:    pd.Override,
			Annotations: b.annotations(at, pd.Annotations),
		})
	}

	for _, fd := range td.Fields {
		at := where + ".fields[" + fd.Name + "]"
		t.Fields = append(t.Fields, &Field{
			Name:        fd.Name,
			Type:        b.typeExpr(at, fd.Type, scope),
			Static:      fd.Static,
			Annotations: b.annotations(at, fd.Annotations),
		})
	}
}

// checkVersion accepts an empty version or any valid semantic version
// whose major matches SchemaMajor.
func checkVersion(version string) error {
	if version == "" {
		return nil
	}
	v := version
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("version %q is not a semantic version", version)
	}
	if major := semver.Major(v); major != SchemaMajor {
		return fmt.Errorf("schema version %s is not supported (want %s.x)", version, SchemaMajor)
	}
	return nil
}
