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
	"errors"
	"testing"

	"github.com/AleutianAI/contracts/services/contract/meta"
)

// =============================================================================
// Test annotations
// =============================================================================

var errAlwaysFails = errors.New("always fails")

// alwaysFails rejects every value, as a parameter and as a return value.
type alwaysFails struct{}

func (alwaysFails) CheckParameter(ParameterRecord, any) error     { return errAlwaysFails }
func (alwaysFails) CheckReturnValue(ReturnValueRecord, any) error { return errAlwaysFails }

// marker is a parameter precondition distinguished by its label.
type marker struct {
	Label string
}

func (marker) CheckParameter(ParameterRecord, any) error { return nil }

// returnMarker is a return value precondition distinguished by its label.
type returnMarker struct {
	Label string
}

func (returnMarker) CheckReturnValue(ReturnValueRecord, any) error { return nil }

// restricted is an always-passing annotation with applicability
// constraints.
type restricted struct {
	Name string
	App  Applicability
}

func (restricted) CheckParameter(ParameterRecord, any) error     { return nil }
func (restricted) CheckReturnValue(ReturnValueRecord, any) error { return nil }
func (r restricted) Applicability() Applicability                { return r.App }
func (r restricted) AnnotationName() string                       { return r.Name }

var (
	stringOnly = restricted{Name: "StringContract", App: Applicability{Types: []*meta.Type{meta.String}}}
	intOnly    = restricted{Name: "IntContract", App: Applicability{Types: []*meta.Type{meta.Int}}}
	anySeq     = restricted{Name: "UntypedEnumerableContract", App: Applicability{Types: []*meta.Type{meta.EnumerableDef}}}
	intSeq     = restricted{Name: "IntEnumerableContract", App: Applicability{Types: []*meta.Type{meta.EnumerableOf(meta.Int)}}}
	refOnly    = restricted{Name: "ReferenceContract", App: Applicability{ReferenceTypesOnly: true}}
)

// =============================================================================
// Sword fixture
// =============================================================================

type swords struct {
	cat *meta.Catalog

	iSword         *meta.Type
	sword          *meta.Type // implements ISword, no local annotations
	strictSword    *meta.Type // implements ISword, repeats and adds annotations
	annotatedSword *meta.Type // annotated, implements nothing
	baseBlade      *meta.Type
	derivedBlade   *meta.Type // overrides and hides baseBlade members
}

func method(t *meta.Type, name string) *meta.Method {
	for _, m := range t.Methods {
		if m.Name == name {
			return m
		}
	}
	panic("no method " + name + " on " + t.Name)
}

func property(t *meta.Type, name string) *meta.Property {
	for _, p := range t.Properties {
		if p.Name == name {
			return p
		}
	}
	panic("no property " + name + " on " + t.Name)
}

func param(name string, typ *meta.Type, annotations ...meta.Annotation) *meta.Parameter {
	return &meta.Parameter{Name: name, Type: typ, Annotations: annotations}
}

func newSwords(t *testing.T) *swords {
	t.Helper()
	s := &swords{}

	s.iSword = &meta.Type{
		Name: "ISword",
		Kind: meta.TypeKindInterface,
		Methods: []*meta.Method{
			{Name: "OnMethodParameter", Params: []*meta.Parameter{param("value", meta.Bool, alwaysFails{})}},
			{Name: "OnMethodReturnValue", Returns: meta.String, ReturnAnnotations: []meta.Annotation{alwaysFails{}}},
		},
		Properties: []*meta.Property{
			{Name: "OnProperty", Type: meta.String, CanRead: true, CanWrite: true, Annotations: []meta.Annotation{alwaysFails{}}},
		},
	}

	s.sword = &meta.Type{
		Name:       "Sword",
		Base:       meta.Object,
		Interfaces: []*meta.Type{s.iSword},
		Methods: []*meta.Method{
			{Name: "OnMethodParameter", Params: []*meta.Parameter{param("value", meta.Bool)}},
			{Name: "OnMethodReturnValue", Returns: meta.String},
			{Name: "OnMethodParameter", Params: []*meta.Parameter{param("value", meta.Int)}},
		},
		Properties: []*meta.Property{
			{Name: "OnProperty", Type: meta.String, CanRead: true, CanWrite: true},
		},
	}

	s.strictSword = &meta.Type{
		Name:       "StrictSword",
		Base:       meta.Object,
		Interfaces: []*meta.Type{s.iSword},
		Methods: []*meta.Method{
			{Name: "OnMethodParameter", Params: []*meta.Parameter{param("flag", meta.Bool, alwaysFails{}, marker{"strict"})}},
			{Name: "OnMethodReturnValue", Returns: meta.String, Annotations: []meta.Annotation{returnMarker{"strict"}}},
		},
		Properties: []*meta.Property{
			{Name: "OnProperty", Type: meta.String, CanRead: true, CanWrite: true, Annotations: []meta.Annotation{marker{"strict"}}},
		},
	}

	s.annotatedSword = &meta.Type{
		Name: "AnnotatedSword",
		Base: meta.Object,
		Methods: []*meta.Method{
			{Name: "NoContract", Params: []*meta.Parameter{param("x", meta.Int)}, Returns: meta.Int},
			{Name: "OnMethodParameter", Params: []*meta.Parameter{param("value", meta.Bool, alwaysFails{})}},
			{Name: "OnMethodReturnValue", Returns: meta.String, ReturnAnnotations: []meta.Annotation{alwaysFails{}}},
			{Name: "OnMethodAndReturnSlot", Returns: meta.String,
				Annotations:       []meta.Annotation{alwaysFails{}, returnMarker{"method"}},
				ReturnAnnotations: []meta.Annotation{alwaysFails{}}},
			{Name: "Multi", Params: []*meta.Parameter{
				param("first", meta.Int),
				param("second", meta.String, alwaysFails{}, marker{"a"}, marker{"b"}, marker{"a"}),
			}},
			{Name: "VoidWithReturnAnnotation", ReturnAnnotations: []meta.Annotation{alwaysFails{}}},
			{Name: "Generic", TypeParams: []string{"T"}, Params: []*meta.Parameter{param("item", meta.TypeParameter("T"), stringOnly)}},
		},
		Properties: []*meta.Property{
			{Name: "OnProperty", Type: meta.String, CanRead: true, CanWrite: true, Annotations: []meta.Annotation{alwaysFails{}}},
			{Name: "ReadOnly", Type: meta.String, CanRead: true, Annotations: []meta.Annotation{alwaysFails{}}},
			{Name: "WriteOnly", Type: meta.String, CanWrite: true, Annotations: []meta.Annotation{alwaysFails{}}},
		},
		Constructors: []*meta.Constructor{
			{Params: []*meta.Parameter{param("name", meta.String, alwaysFails{})}},
		},
	}

	s.baseBlade = &meta.Type{
		Name: "BaseBlade",
		Base: meta.Object,
		Methods: []*meta.Method{
			{Name: "Parry", Params: []*meta.Parameter{param("force", meta.Int, alwaysFails{}, marker{"base"})}},
		},
		Properties: []*meta.Property{
			{Name: "Edge", Type: meta.Int, CanRead: true, CanWrite: true, Annotations: []meta.Annotation{marker{"base"}}},
			{Name: "Sharpness", Type: meta.Int, CanRead: true, CanWrite: true, Annotations: []meta.Annotation{alwaysFails{}}},
		},
	}

	s.derivedBlade = &meta.Type{
		Name: "DerivedBlade",
		Base: s.baseBlade,
		Methods: []*meta.Method{
			{Name: "Parry", Override: true, Params: []*meta.Parameter{param("strength", meta.Int, alwaysFails{}, marker{"derived"})}},
		},
		Properties: []*meta.Property{
			// Hides BaseBlade.Edge.
			{Name: "Edge", Type: meta.Int, CanRead: true, CanWrite: true, Annotations: []meta.Annotation{marker{"derived"}}},
			// Overrides BaseBlade.Sharpness.
			{Name: "Sharpness", Type: meta.Int, CanRead: true, CanWrite: true, Override: true},
		},
	}

	cat, err := meta.NewCatalog([]*meta.Type{
		s.iSword, s.sword, s.strictSword, s.annotatedSword, s.baseBlade, s.derivedBlade,
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	s.cat = cat
	return s
}

// =============================================================================
// Generic rack fixture
// =============================================================================

type racks struct {
	cat *meta.Catalog

	iRack      *meta.Type // IRack<T>
	stringRack *meta.Type // IRack<string>
	swordRack  *meta.Type // implements IRack<string>
	openRack   *meta.Type // Rack<U> implements IRack<U>
	iSheath    *meta.Type // Hold<T>(T)
	scabbard   *meta.Type // Hold<TBlade>(TBlade)
}

func newRacks(t *testing.T) *racks {
	t.Helper()
	r := &racks{}
	tp := meta.TypeParameter

	r.iRack = &meta.Type{
		Name:       "IRack",
		Kind:       meta.TypeKindInterface,
		TypeParams: []string{"T"},
		Methods: []*meta.Method{
			{Name: "Store", Params: []*meta.Parameter{param("item", tp("T"), alwaysFails{})}},
			{Name: "Take", Returns: tp("T"), ReturnAnnotations: []meta.Annotation{alwaysFails{}}},
		},
		Properties: []*meta.Property{
			{Name: "Label", Type: tp("T"), CanRead: true, CanWrite: true, Annotations: []meta.Annotation{marker{"label"}}},
		},
	}
	stringRack, err := meta.Construct(r.iRack, meta.String)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	r.stringRack = stringRack

	r.swordRack = &meta.Type{
		Name:       "SwordRack",
		Base:       meta.Object,
		Interfaces: []*meta.Type{r.stringRack},
		Methods: []*meta.Method{
			{Name: "Store", Params: []*meta.Parameter{param("sword", meta.String)}},
			{Name: "Store", Params: []*meta.Parameter{param("count", meta.Int)}},
			{Name: "Take", Returns: meta.String},
		},
		Properties: []*meta.Property{
			{Name: "Label", Type: meta.String, CanRead: true, CanWrite: true},
		},
	}

	openIface, err := meta.Construct(r.iRack, tp("U"))
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	r.openRack = &meta.Type{
		Name:       "Rack",
		Base:       meta.Object,
		TypeParams: []string{"U"},
		Interfaces: []*meta.Type{openIface},
		Methods: []*meta.Method{
			{Name: "Store", Params: []*meta.Parameter{param("item", tp("U"))}},
			{Name: "Take", Returns: tp("U")},
		},
		Properties: []*meta.Property{
			{Name: "Label", Type: tp("U"), CanRead: true, CanWrite: true},
		},
	}

	r.iSheath = &meta.Type{
		Name: "ISheath",
		Kind: meta.TypeKindInterface,
		Methods: []*meta.Method{
			{Name: "Hold", TypeParams: []string{"T"}, Params: []*meta.Parameter{param("item", tp("T"), alwaysFails{})}},
		},
	}
	r.scabbard = &meta.Type{
		Name:       "Scabbard",
		Base:       meta.Object,
		Interfaces: []*meta.Type{r.iSheath},
		Methods: []*meta.Method{
			{Name: "Hold", TypeParams: []string{"TBlade"}, Params: []*meta.Parameter{param("blade", tp("TBlade"))}},
			{Name: "Hold", Params: []*meta.Parameter{param("blade", meta.Object)}},
		},
	}

	cat, err := meta.NewCatalog([]*meta.Type{r.iRack, r.swordRack, r.openRack, r.iSheath, r.scabbard})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	r.cat = cat
	return r
}

func newTestAnalyzer(t *testing.T, md meta.Metadata, opts ...AnalyzerOption) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(md, opts...)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}
