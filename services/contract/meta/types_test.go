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
	"testing"
)

func TestType_Key(t *testing.T) {
	list := &Type{Namespace: "Collections", Name: "List", TypeParams: []string{"T"}}
	listOfInt, err := Construct(list, Int)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	tests := []struct {
		name string
		typ  *Type
		key  string
		str  string
	}{
		{"plain", Int, "int", "int"},
		{"namespaced", &Type{Namespace: "Game", Name: "Sword"}, "Game.Sword", "Sword"},
		{"definition", list, "Collections.List`1", "List<T>"},
		{"constructed", listOfInt, "Collections.List`1[int]", "List<int>"},
		{"type parameter", TypeParameter("T"), "!T", "T"},
		{"nil", nil, "", "<nil>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.Key(); got != tt.key {
				t.Errorf("Key() = %q, want %q", got, tt.key)
			}
			if got := tt.typ.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
		})
	}
}

func TestType_Equal_IsStructural(t *testing.T) {
	a := EnumerableOf(Int)
	b := EnumerableOf(Int)
	if a == b {
		t.Fatal("expected distinct pointers")
	}
	if !a.Equal(b) {
		t.Error("IEnumerable<int> should equal IEnumerable<int>")
	}
	if a.Equal(EnumerableOf(String)) {
		t.Error("IEnumerable<int> should not equal IEnumerable<string>")
	}
	if a.Equal(EnumerableDef) {
		t.Error("IEnumerable<int> should not equal IEnumerable<T>")
	}
	if !(*Type)(nil).Equal(nil) {
		t.Error("nil should equal nil")
	}
}

func TestType_GenericPredicates(t *testing.T) {
	closed := EnumerableOf(Int)
	open := EnumerableOf(TypeParameter("T"))

	if !EnumerableDef.IsGenericDefinition() || closed.IsGenericDefinition() {
		t.Error("IsGenericDefinition wrong")
	}
	if !closed.IsGeneric() || Int.IsGeneric() {
		t.Error("IsGeneric wrong")
	}
	if closed.GenericDefinition() != EnumerableDef {
		t.Errorf("GenericDefinition() = %v, want %v", closed.GenericDefinition(), EnumerableDef)
	}
	if Int.GenericDefinition() != nil {
		t.Error("non-generic type should have no definition")
	}
	if closed.ContainsTypeParameters() {
		t.Error("IEnumerable<int> has no type parameters")
	}
	if !open.ContainsTypeParameters() || !EnumerableDef.ContainsTypeParameters() {
		t.Error("IEnumerable<T> contains type parameters")
	}
}

func TestType_IsValueType(t *testing.T) {
	if !Int.IsValueType() || !(&Type{Kind: TypeKindEnum}).IsValueType() {
		t.Error("struct and enum are value types")
	}
	if String.IsValueType() || Enumerable.IsValueType() || (*Type)(nil).IsValueType() {
		t.Error("class, interface and nil are not value types")
	}
}

func TestType_AssignableTo(t *testing.T) {
	blade := &Type{Name: "IBlade", Kind: TypeKindInterface}
	sharp := &Type{Name: "ISharp", Kind: TypeKindInterface, Interfaces: []*Type{blade}}
	weapon := &Type{Name: "Weapon", Base: Object, Interfaces: []*Type{sharp}}
	sword := &Type{Name: "Sword", Base: weapon}

	tests := []struct {
		name   string
		from   *Type
		to     *Type
		expect bool
	}{
		{"identity", sword, sword, true},
		{"to object", Int, Object, true},
		{"to base", sword, weapon, true},
		{"base to derived", weapon, sword, false},
		{"inherited interface", sword, sharp, true},
		{"extended interface", sword, blade, true},
		{"string is enumerable", String, Enumerable, true},
		{"constructed to non-generic", EnumerableOf(Int), Enumerable, true},
		{"unrelated", Int, String, false},
		{"void", Void, Object, false},
		{"nil", nil, Object, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.AssignableTo(tt.to); got != tt.expect {
				t.Errorf("%v.AssignableTo(%v) = %v, want %v", tt.from, tt.to, got, tt.expect)
			}
		})
	}
}

func TestType_ConstructedSupertypesAreSubstituted(t *testing.T) {
	list := &Type{Name: "List", TypeParams: []string{"T"}, Base: Object}
	list.Interfaces = []*Type{EnumerableOf(TypeParameter("T"))}

	listOfString, err := Construct(list, String)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	ifaces := listOfString.DirectInterfaces()
	if len(ifaces) != 1 {
		t.Fatalf("len(DirectInterfaces()) = %d, want 1", len(ifaces))
	}
	if !ifaces[0].Equal(EnumerableOf(String)) {
		t.Errorf("DirectInterfaces()[0] = %v, want IEnumerable<string>", ifaces[0])
	}
	if !listOfString.AssignableTo(EnumerableOf(String)) {
		t.Error("List<string> should be assignable to IEnumerable<string>")
	}
	if listOfString.AssignableTo(EnumerableOf(Int)) {
		t.Error("List<string> should not be assignable to IEnumerable<int>")
	}
}

func TestConstruct_Errors(t *testing.T) {
	if _, err := Construct(Int, String); err == nil {
		t.Error("expected error constructing a non-generic type")
	}
	if _, err := Construct(EnumerableDef); err == nil {
		t.Error("expected arity error")
	}
	if _, err := Construct(EnumerableDef, nil); err == nil {
		t.Error("expected error for nil argument")
	}
}

func TestParseTypeKind(t *testing.T) {
	for _, k := range []TypeKind{TypeKindClass, TypeKindStruct, TypeKindEnum, TypeKindInterface} {
		got, err := ParseTypeKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseTypeKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if k, err := ParseTypeKind(""); err != nil || k != TypeKindClass {
		t.Errorf("ParseTypeKind(\"\") = %v, %v, want class", k, err)
	}
	if _, err := ParseTypeKind("record"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
