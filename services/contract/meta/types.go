// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package meta models the host metadata the contract analysis engine reads:
// types, their members, parameters and the annotations attached to them.
//
// The engine never inspects a live runtime. Everything it knows about a
// program arrives through the Metadata interface, and Catalog is the
// in-memory implementation used by the CLI, the service and the tests.
package meta

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeKind classifies a Type.
type TypeKind uint8

const (
	// TypeKindClass is a reference type with an optional base class.
	TypeKindClass TypeKind = iota

	// TypeKindStruct is a value type.
	TypeKindStruct

	// TypeKindEnum is a value type with named constants.
	TypeKindEnum

	// TypeKindInterface is a reference type that declares members only.
	TypeKindInterface

	// TypeKindTypeParameter is an unbound generic parameter such as T.
	// Its concrete type is only known at a call site.
	TypeKindTypeParameter

	// TypeKindVoid is the absence of a value.
	TypeKindVoid
)

var typeKindNames = [...]string{
	TypeKindClass:         "class",
	TypeKindStruct:        "struct",
	TypeKindEnum:          "enum",
	TypeKindInterface:     "interface",
	TypeKindTypeParameter: "type_parameter",
	TypeKindVoid:          "void",
}

// String returns the lower-case name used in catalog documents.
func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// ParseTypeKind parses the name produced by TypeKind.String.
// The empty string parses as TypeKindClass.
func ParseTypeKind(s string) (TypeKind, error) {
	if s == "" {
		return TypeKindClass, nil
	}
	for k, name := range typeKindNames {
		if name == s {
			return TypeKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown type kind %q", s)
}

// Type describes a declared, constructed or built-in type.
//
// Description:
//
//	A Type is one of three shapes:
//	  - plain: no TypeParams, no TypeArgs
//	  - generic definition: TypeParams set, Definition nil (IEnumerable<T>)
//	  - constructed: Definition and TypeArgs set (IEnumerable<int>)
//
//	Constructed types are lightweight shells. They carry no members and
//	their Base and Interfaces fields are empty; BaseType and
//	DirectInterfaces derive them from the definition by substituting the
//	type arguments.
//
// Identity:
//
//	Types are compared structurally with Equal, which compares Key. Two
//	constructions of the same definition with equal arguments are equal
//	even when they are distinct pointers.
//
// Thread Safety:
//
//	A Type must not be mutated once it has been handed to NewCatalog.
//	After that it is safe for concurrent reads.
type Type struct {
	Namespace  string
	Name       string
	Kind       TypeKind
	TypeParams []string
	TypeArgs   []*Type
	Definition *Type

	Base       *Type
	Interfaces []*Type

	Methods      []*Method
	Constructors []*Constructor
	Properties   []*Property
	Fields       []*Field
}

// FullName returns the namespace-qualified name without type arguments.
func (t *Type) FullName() string {
	if t == nil {
		return ""
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// Key returns the structural identity of the type.
//
// Plain types use their full name, generic definitions append their arity
// (IEnumerable`1) and constructed types append the keys of their arguments
// (IEnumerable`1[int]). Type parameters are prefixed with '!'.
func (t *Type) Key() string {
	switch {
	case t == nil:
		return ""
	case t.Kind == TypeKindTypeParameter:
		return "!" + t.Name
	case t.Definition != nil:
		args := make([]string, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			args[i] = a.Key()
		}
		return t.Definition.Key() + "[" + strings.Join(args, ",") + "]"
	case len(t.TypeParams) > 0:
		return t.FullName() + "`" + strconv.Itoa(len(t.TypeParams))
	default:
		return t.FullName()
	}
}

// String returns the name as a reader would write it: int, IEnumerable<T>,
// IEnumerable<string>.
func (t *Type) String() string {
	switch {
	case t == nil:
		return "<nil>"
	case t.Definition != nil:
		args := make([]string, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			args[i] = a.String()
		}
		return t.Name + "<" + strings.Join(args, ", ") + ">"
	case len(t.TypeParams) > 0:
		return t.Name + "<" + strings.Join(t.TypeParams, ", ") + ">"
	default:
		return t.Name
	}
}

// Equal reports whether t and other denote the same type. Two nil types are
// equal.
func (t *Type) Equal(other *Type) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil {
		return false
	}
	return t.Key() == other.Key()
}

// IsValueType reports whether values of the type are copied rather than
// referenced.
func (t *Type) IsValueType() bool {
	return t != nil && (t.Kind == TypeKindStruct || t.Kind == TypeKindEnum)
}

// IsGeneric reports whether the type is a generic definition or a
// construction of one.
func (t *Type) IsGeneric() bool {
	return t != nil && (t.Definition != nil || len(t.TypeParams) > 0)
}

// IsGenericDefinition reports whether the type is an open generic
// definition such as IEnumerable<T>.
func (t *Type) IsGenericDefinition() bool {
	return t != nil && t.Definition == nil && len(t.TypeParams) > 0
}

// GenericDefinition returns the definition a generic type was constructed
// from, the type itself for a definition, and nil for non-generic types.
func (t *Type) GenericDefinition() *Type {
	switch {
	case t == nil:
		return nil
	case t.Definition != nil:
		return t.Definition
	case len(t.TypeParams) > 0:
		return t
	default:
		return nil
	}
}

// ContainsTypeParameters reports whether the type cannot be fully resolved
// without binding a generic parameter.
func (t *Type) ContainsTypeParameters() bool {
	if t == nil {
		return false
	}
	if t.Kind == TypeKindTypeParameter || t.IsGenericDefinition() {
		return true
	}
	for _, a := range t.TypeArgs {
		if a.ContainsTypeParameters() {
			return true
		}
	}
	return false
}

// BaseType returns the base class with type arguments substituted.
func (t *Type) BaseType() *Type {
	if t == nil {
		return nil
	}
	if t.Definition != nil {
		return t.substitute(t.Definition.Base)
	}
	return t.Base
}

// DirectInterfaces returns the interfaces the type declares itself, with
// type arguments substituted. Inherited interfaces are not included.
func (t *Type) DirectInterfaces() []*Type {
	if t == nil {
		return nil
	}
	if t.Definition == nil {
		return append([]*Type(nil), t.Interfaces...)
	}
	out := make([]*Type, len(t.Definition.Interfaces))
	for i, iface := range t.Definition.Interfaces {
		out[i] = t.substitute(iface)
	}
	return out
}

// AllInterfaces returns every interface the type implements: its own, those
// inherited from base classes and those extended by other interfaces.
// The order is stable (declaration order, depth first) and free of
// duplicates.
func (t *Type) AllInterfaces() []*Type {
	var out []*Type
	seen := make(map[string]bool)
	var visit func(*Type)
	visit = func(iface *Type) {
		if iface == nil || seen[iface.Key()] {
			return
		}
		seen[iface.Key()] = true
		out = append(out, iface)
		for _, parent := range iface.DirectInterfaces() {
			visit(parent)
		}
	}
	for c := t; c != nil; c = c.BaseType() {
		for _, iface := range c.DirectInterfaces() {
			visit(iface)
		}
	}
	return out
}

// IsSubclassOf reports whether other appears in the base class chain of t.
// A type is not a subclass of itself.
func (t *Type) IsSubclassOf(other *Type) bool {
	if t == nil || other == nil {
		return false
	}
	for c := t.BaseType(); c != nil; c = c.BaseType() {
		if c.Equal(other) {
			return true
		}
	}
	return false
}

// AssignableTo reports whether a value of type t can be stored in a
// location of type target: identity, any non-void type to Object, a
// subclass to its base class, or an implementation to its interface.
func (t *Type) AssignableTo(target *Type) bool {
	if t == nil || target == nil {
		return false
	}
	if t.Equal(target) {
		return true
	}
	if t.Kind == TypeKindVoid || target.Kind == TypeKindVoid {
		return false
	}
	if target.Equal(Object) {
		return true
	}
	if t.IsSubclassOf(target) {
		return true
	}
	if target.Kind != TypeKindInterface {
		return false
	}
	for _, iface := range t.AllInterfaces() {
		if iface.Equal(target) {
			return true
		}
	}
	return false
}

// Substitute replaces the type parameters of t's generic definition in x
// with t's type arguments: IRack<string>.Substitute(T) is string. x is
// returned unchanged when t is not a constructed type.
func (t *Type) Substitute(x *Type) *Type {
	if t == nil {
		return x
	}
	return t.substitute(x)
}

// substitute replaces type parameters of t's definition in x with t's
// type arguments. Constructed results are shells, so this never recurses
// into supertypes.
func (t *Type) substitute(x *Type) *Type {
	if x == nil || t.Definition == nil {
		return x
	}
	switch {
	case x.Kind == TypeKindTypeParameter:
		for i, p := range t.Definition.TypeParams {
			if p == x.Name && i < len(t.TypeArgs) {
				return t.TypeArgs[i]
			}
		}
		return x
	case x.Definition != nil:
		args := make([]*Type, len(x.TypeArgs))
		for i, a := range x.TypeArgs {
			args[i] = t.substitute(a)
		}
		return construct(x.Definition, args)
	default:
		return x
	}
}

// Construct closes a generic definition over the given type arguments.
//
// Description:
//
//	Returns a constructed shell whose Definition is def. The argument count
//	must equal the number of type parameters of def.
//
// Errors:
//
//	ErrTypeExpression - def is not a generic definition or the arity differs
func Construct(def *Type, args ...*Type) (*Type, error) {
	if !def.IsGenericDefinition() {
		return nil, fmt.Errorf("%w: %s is not a generic definition", ErrTypeExpression, def)
	}
	if len(args) != len(def.TypeParams) {
		return nil, fmt.Errorf("%w: %s takes %d type arguments, got %d",
			ErrTypeExpression, def, len(def.TypeParams), len(args))
	}
	for i, a := range args {
		if a == nil {
			return nil, fmt.Errorf("%w: type argument %d of %s is nil", ErrTypeExpression, i, def)
		}
	}
	return construct(def, append([]*Type(nil), args...)), nil
}

func construct(def *Type, args []*Type) *Type {
	return &Type{
		Namespace:  def.Namespace,
		Name:       def.Name,
		Kind:       def.Kind,
		TypeArgs:   args,
		Definition: def,
	}
}

// TypeParameter returns an unbound generic parameter named name.
func TypeParameter(name string) *Type {
	return &Type{Name: name, Kind: TypeKindTypeParameter}
}
