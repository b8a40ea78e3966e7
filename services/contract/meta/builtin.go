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

// Built-in types. Catalogs register them automatically so documents can
// refer to them by name.
var (
	// Object is the root of every class hierarchy.
	Object = &Type{Name: "object", Kind: TypeKindClass}

	// Void is the return type of methods that return nothing.
	Void = &Type{Name: "void", Kind: TypeKindVoid}

	// Enumerable is the non-generic sequence interface.
	Enumerable = &Type{Name: "IEnumerable", Kind: TypeKindInterface}

	// EnumerableDef is the open generic sequence interface IEnumerable<T>.
	EnumerableDef = &Type{
		Name:       "IEnumerable",
		Kind:       TypeKindInterface,
		TypeParams: []string{"T"},
		Interfaces: []*Type{Enumerable},
	}

	// Reflect is implemented by values that describe a type.
	Reflect = &Type{Name: "IReflect", Kind: TypeKindInterface}

	// TypeDescriptor is the class of values that describe a type.
	TypeDescriptor = &Type{Name: "Type", Kind: TypeKindClass, Base: Object, Interfaces: []*Type{Reflect}}

	// String is a reference type that is also a sequence of characters.
	String = &Type{Name: "string", Kind: TypeKindClass, Base: Object, Interfaces: []*Type{Enumerable}}

	Bool    = &Type{Name: "bool", Kind: TypeKindStruct}
	Int     = &Type{Name: "int", Kind: TypeKindStruct}
	Int64   = &Type{Name: "int64", Kind: TypeKindStruct}
	Float64 = &Type{Name: "float64", Kind: TypeKindStruct}
)

// Builtins returns the built-in types in registration order.
func Builtins() []*Type {
	return []*Type{Object, Void, Enumerable, EnumerableDef, Reflect, TypeDescriptor, String, Bool, Int, Int64, Float64}
}

// EnumerableOf returns IEnumerable<elem>.
func EnumerableOf(elem *Type) *Type {
	return construct(EnumerableDef, []*Type{elem})
}
