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

import "strings"

// MemberKind classifies a Member.
type MemberKind uint8

const (
	MemberKindMethod MemberKind = iota
	MemberKindConstructor
	MemberKindProperty
	MemberKindField
)

// String returns the lower-case kind name.
func (k MemberKind) String() string {
	switch k {
	case MemberKindMethod:
		return "method"
	case MemberKindConstructor:
		return "constructor"
	case MemberKindProperty:
		return "property"
	case MemberKindField:
		return "field"
	default:
		return "unknown"
	}
}

// AccessorKind marks a method synthesized for a property.
type AccessorKind uint8

const (
	AccessorNone AccessorKind = iota
	AccessorGet
	AccessorSet
)

// Accessor name prefixes. A property P is read through get_P and written
// through set_P.
const (
	GetterPrefix = "get_"
	SetterPrefix = "set_"
)

// AnnotationTarget is anything annotations can be attached to: a member, a
// parameter or a method's return slot.
type AnnotationTarget interface {
	annotationTarget()
}

// Member is a declared method, constructor, property or field.
//
// Members are immutable once their catalog has been constructed and are
// compared by identity (MemberKey), never mutated through this interface.
type Member interface {
	AnnotationTarget

	// MemberKind reports which kind of member this is.
	MemberKind() MemberKind

	// MemberName returns the declared name. Accessors return their raw
	// get_/set_ name.
	MemberName() string

	// Owner returns the declaring type.
	Owner() *Type
}

// MethodBase is a Member that takes parameters: a Method or a Constructor.
type MethodBase interface {
	Member

	// Parameters returns the parameters in declaration order.
	Parameters() []*Parameter
}

// Method is a declared method or a property accessor.
type Method struct {
	Name    string
	Params  []*Parameter
	Returns *Type // nil means void

	// Annotations are attached to the method itself.
	Annotations []Annotation

	// ReturnAnnotations are attached to the return slot.
	ReturnAnnotations []Annotation

	// TypeParams lists method-level generic parameters.
	TypeParams []string

	Static   bool
	Override bool
	Accessor AccessorKind

	// DeclaredBy is set by NewCatalog.
	DeclaredBy *Type

	overrides *Method
}

func (*Method) annotationTarget() {}

// MemberKind implements Member.
func (*Method) MemberKind() MemberKind { return MemberKindMethod }

// MemberName implements Member.
func (m *Method) MemberName() string {
	if m == nil {
		return ""
	}
	return m.Name
}

// Owner implements Member.
func (m *Method) Owner() *Type {
	if m == nil {
		return nil
	}
	return m.DeclaredBy
}

// Parameters implements MethodBase.
func (m *Method) Parameters() []*Parameter {
	if m == nil {
		return nil
	}
	return append([]*Parameter(nil), m.Params...)
}

// ReturnType returns the declared return type, Void when there is none.
func (m *Method) ReturnType() *Type {
	if m == nil || m.Returns == nil {
		return Void
	}
	return m.Returns
}

// HasReturnValue reports whether the method returns a value.
func (m *Method) HasReturnValue() bool {
	return m.ReturnType().Kind != TypeKindVoid
}

// IsAccessor reports whether the method reads or writes a property.
func (m *Method) IsAccessor() bool {
	return m != nil && m.Accessor != AccessorNone
}

// Overrides returns the base class method this method overrides, if any.
func (m *Method) Overrides() *Method {
	if m == nil {
		return nil
	}
	return m.overrides
}

// Constructor is a declared constructor.
type Constructor struct {
	Params      []*Parameter
	Annotations []Annotation
	Static      bool

	// DeclaredBy is set by NewCatalog.
	DeclaredBy *Type
}

// ConstructorName is the member name shared by all constructors.
const ConstructorName = ".ctor"

func (*Constructor) annotationTarget() {}

// MemberKind implements Member.
func (*Constructor) MemberKind() MemberKind { return MemberKindConstructor }

// MemberName implements Member.
func (*Constructor) MemberName() string { return ConstructorName }

// Owner implements Member.
func (c *Constructor) Owner() *Type {
	if c == nil {
		return nil
	}
	return c.DeclaredBy
}

// Parameters implements MethodBase.
func (c *Constructor) Parameters() []*Parameter {
	if c == nil {
		return nil
	}
	return append([]*Parameter(nil), c.Params...)
}

// Property is a declared property. Its accessors are ordinary methods
// named get_<Name> and set_<Name>; NewCatalog synthesizes them when Getter
// or Setter is nil and the property can be read or written.
type Property struct {
	Name string
	Type *Type

	// IndexParams makes the property an indexer. They lead the parameter
	// lists of both accessors.
	IndexParams []*Parameter

	CanRead  bool
	CanWrite bool

	Annotations []Annotation

	Static   bool
	Override bool

	Getter *Method
	Setter *Method

	// DeclaredBy is set by NewCatalog.
	DeclaredBy *Type

	overrides *Property
}

func (*Property) annotationTarget() {}

// MemberKind implements Member.
func (*Property) MemberKind() MemberKind { return MemberKindProperty }

// MemberName implements Member.
func (p *Property) MemberName() string {
	if p == nil {
		return ""
	}
	return p.Name
}

// Owner implements Member.
func (p *Property) Owner() *Type {
	if p == nil {
		return nil
	}
	return p.DeclaredBy
}

// Overrides returns the base class property this property overrides, if any.
func (p *Property) Overrides() *Property {
	if p == nil {
		return nil
	}
	return p.overrides
}

// Field is a declared field.
type Field struct {
	Name        string
	Type        *Type
	Annotations []Annotation
	Static      bool

	// DeclaredBy is set by NewCatalog.
	DeclaredBy *Type
}

func (*Field) annotationTarget() {}

// MemberKind implements Member.
func (*Field) MemberKind() MemberKind { return MemberKindField }

// MemberName implements Member.
func (f *Field) MemberName() string {
	if f == nil {
		return ""
	}
	return f.Name
}

// Owner implements Member.
func (f *Field) Owner() *Type {
	if f == nil {
		return nil
	}
	return f.DeclaredBy
}

// Parameter is a declared parameter of a method, constructor or indexer.
type Parameter struct {
	Name        string
	Type        *Type
	Annotations []Annotation

	// Position and Member are set by NewCatalog.
	Position int
	Member   MethodBase
}

func (*Parameter) annotationTarget() {}

// ReturnSlot addresses the annotations attached to a method's return value
// rather than to the method itself.
type ReturnSlot struct {
	Method *Method
}

func (ReturnSlot) annotationTarget() {}

// Annotation is an annotation instance. meta treats annotations as opaque;
// the analysis package defines the capabilities they may implement.
type Annotation = any

// MemberKey returns the stable identity of a member: the declaring type key,
// the member name and, for methods and constructors, the parameter types.
//
//	Sword::OnMethodParameter(bool)
//	Repository`1::get_Item(int)
func MemberKey(m Member) string {
	if m == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(m.Owner().Key())
	sb.WriteString("::")
	sb.WriteString(m.MemberName())
	switch v := m.(type) {
	case MethodBase:
		sb.WriteByte('(')
		writeParamKeys(&sb, v.Parameters())
		sb.WriteByte(')')
	case *Property:
		if len(v.IndexParams) > 0 {
			sb.WriteByte('[')
			writeParamKeys(&sb, v.IndexParams)
			sb.WriteByte(']')
		}
	}
	return sb.String()
}

func writeParamKeys(sb *strings.Builder, params []*Parameter) {
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		if p != nil {
			sb.WriteString(p.Type.Key())
		}
	}
}

// QualifiedName returns "<Type>::<Member>" for messages.
func QualifiedName(m Member) string {
	if m == nil {
		return "<nil>"
	}
	return m.Owner().String() + "::" + m.MemberName()
}
