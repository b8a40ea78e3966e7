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
	"reflect"
	"strconv"
)

// DefaultMaxTypes is the default maximum number of declared types a
// catalog accepts.
const DefaultMaxTypes = 100_000

// CatalogOptions configures NewCatalog.
type CatalogOptions struct {
	// MaxTypes is the maximum number of declared types, built-ins excluded.
	// Default: 100,000
	MaxTypes int
}

// DefaultCatalogOptions returns the default options.
func DefaultCatalogOptions() CatalogOptions {
	return CatalogOptions{
		MaxTypes: DefaultMaxTypes,
	}
}

// CatalogOption is a functional option for configuring NewCatalog.
type CatalogOption func(*CatalogOptions)

// WithMaxTypes sets the maximum number of declared types.
func WithMaxTypes(max int) CatalogOption {
	return func(o *CatalogOptions) {
		o.MaxTypes = max
	}
}

// CatalogStats contains statistics about a catalog.
type CatalogStats struct {
	// Types is the number of declared types, built-ins excluded.
	Types int

	// ByKind maps each TypeKind to the number of declared types of that kind.
	ByKind map[TypeKind]int

	// Methods counts declared methods including synthesized accessors.
	Methods int

	// Properties counts declared properties.
	Properties int
}

// Catalog is an immutable, in-memory Metadata implementation.
//
// The catalog maintains:
//   - byKey: structural key → type, built-ins included
//   - byName: name, full name and name`arity → type
//   - interfaces, properties, ifaceMaps: precomputed Metadata answers
//
// Thread Safety:
//
//	Catalog is immutable after NewCatalog returns and safe for concurrent
//	use without locking.
//
// Ownership:
//
//	NewCatalog links the types it is given in place: it sets DeclaredBy,
//	parameter positions and owners, synthesizes accessors and resolves
//	overrides. The types MUST NOT be mutated afterwards.
type Catalog struct {
	declared []*Type

	byKey  map[string]*Type
	byName map[string]*Type

	interfaces map[string][]*Type
	properties map[string][]*Property
	ifaceMaps  map[string][]MethodSlot

	stats CatalogStats
}

// NewCatalog links types into a catalog.
//
// Description:
//
//	Registers the built-in types, then every type in types and every type
//	they reference. Members are linked to their declaring types, property
//	accessors are synthesized, overrides are resolved against the base
//	class chain and the interface maps are computed.
//
// Inputs:
//
//	types - The declared types. Order is preserved by Types().
//	opts - Functional options.
//
// Outputs:
//
//	*Catalog - The frozen catalog.
//	error - Non-nil if the model is inconsistent.
//
// Errors:
//
//	*CatalogError - Every problem found; errors.Is(err, ErrInvalidCatalog)
//
// Example:
//
//	sword := &meta.Type{Name: "Sword", Methods: []*meta.Method{...}}
//	cat, err := meta.NewCatalog([]*meta.Type{sword})
func NewCatalog(types []*Type, opts ...CatalogOption) (*Catalog, error) {
	options := DefaultCatalogOptions()
	for _, opt := range opts {
		opt(&options)
	}

	l := &linker{
		cat: &Catalog{
			byKey:      make(map[string]*Type),
			byName:     make(map[string]*Type),
			interfaces: make(map[string][]*Type),
			properties: make(map[string][]*Property),
			ifaceMaps:  make(map[string][]MethodSlot),
			stats:      CatalogStats{ByKind: make(map[TypeKind]int)},
		},
		ambiguous: make(map[string]bool),
	}

	// Phase 1: register built-ins, declared types and everything they reference
	for _, t := range Builtins() {
		l.register(t, true)
	}
	for i, t := range types {
		if t == nil {
			l.errorf("types[%d] is nil", i)
			continue
		}
		l.register(t, false)
	}
	if len(l.cat.declared) > options.MaxTypes {
		l.errorf("%d types exceed the maximum of %d", len(l.cat.declared), options.MaxTypes)
	}
	if len(l.errs) > 0 {
		return nil, &CatalogError{Errors: l.errs}
	}

	// Phase 2: check hierarchies, link members
	for _, t := range l.cat.declared {
		l.checkHierarchy(t)
	}
	if len(l.errs) > 0 {
		return nil, &CatalogError{Errors: l.errs}
	}
	for _, t := range l.cat.declared {
		l.linkMembers(t)
	}

	// Phase 3: resolve overrides once every accessor exists
	for _, t := range l.cat.declared {
		l.resolveOverrides(t)
	}
	if len(l.errs) > 0 {
		return nil, &CatalogError{Errors: l.errs}
	}

	// Phase 4: precompute the Metadata answers
	for _, t := range l.cat.byKey {
		l.cat.precompute(t)
	}
	return l.cat, nil
}

// Types returns the declared types in registration order, built-ins
// excluded.
func (c *Catalog) Types() []*Type {
	return append([]*Type(nil), c.declared...)
}

// Lookup finds a type by key, full name or simple name. Generic
// definitions are found as Name`N (IEnumerable`1). A simple name shared by
// types in different namespaces is not found.
func (c *Catalog) Lookup(name string) (*Type, bool) {
	if t, ok := c.byKey[name]; ok {
		return t, true
	}
	t, ok := c.byName[name]
	return t, ok
}

// Stats returns statistics about the catalog.
func (c *Catalog) Stats() CatalogStats {
	s := c.stats
	s.ByKind = make(map[TypeKind]int, len(c.stats.ByKind))
	for k, v := range c.stats.ByKind {
		s.ByKind[k] = v
	}
	return s
}

// Interfaces implements Metadata.
func (c *Catalog) Interfaces(t *Type) []*Type {
	if t == nil {
		return nil
	}
	if ifaces, ok := c.interfaces[t.Key()]; ok {
		return append([]*Type(nil), ifaces...)
	}
	return t.AllInterfaces()
}

// InterfaceMap implements Metadata.
func (c *Catalog) InterfaceMap(t, iface *Type) []MethodSlot {
	if t == nil || iface == nil {
		return nil
	}
	if slots, ok := c.ifaceMaps[t.Key()+"|"+iface.Key()]; ok {
		return append([]MethodSlot(nil), slots...)
	}
	if _, known := c.interfaces[t.Key()]; known {
		return nil
	}
	return interfaceMap(t, iface)
}

// Properties implements Metadata.
func (c *Catalog) Properties(t *Type) []*Property {
	if t == nil {
		return nil
	}
	if props, ok := c.properties[t.Key()]; ok {
		return append([]*Property(nil), props...)
	}
	return hierarchyProperties(t)
}

// Annotations implements Metadata.
func (c *Catalog) Annotations(target AnnotationTarget, inherit bool) []Annotation {
	var out []Annotation
	switch v := target.(type) {
	case *Method:
		if v == nil {
			return nil
		}
		out = append(out, v.Annotations...)
		if inherit {
			for b := v.overrides; b != nil; b = b.overrides {
				out = appendDistinct(out, b.Annotations...)
			}
		}
	case ReturnSlot:
		if v.Method == nil {
			return nil
		}
		out = append(out, v.Method.ReturnAnnotations...)
		if inherit {
			for b := v.Method.overrides; b != nil; b = b.overrides {
				out = appendDistinct(out, b.ReturnAnnotations...)
			}
		}
	case *Parameter:
		if v == nil {
			return nil
		}
		out = append(out, v.Annotations...)
		if m, ok := v.Member.(*Method); ok && inherit {
			for b := m.overrides; b != nil; b = b.overrides {
				if v.Position < len(b.Params) {
					out = appendDistinct(out, b.Params[v.Position].Annotations...)
				}
			}
		}
	case *Property:
		if v == nil {
			return nil
		}
		out = append(out, v.Annotations...)
		if inherit {
			for b := v.overrides; b != nil; b = b.overrides {
				out = appendDistinct(out, b.Annotations...)
			}
		}
	case *Constructor:
		if v != nil {
			out = append(out, v.Annotations...)
		}
	case *Field:
		if v != nil {
			out = append(out, v.Annotations...)
		}
	}
	return out
}

func appendDistinct(dst []Annotation, src ...Annotation) []Annotation {
next:
	for _, a := range src {
		for _, have := range dst {
			if reflect.TypeOf(a) == reflect.TypeOf(have) && reflect.DeepEqual(a, have) {
				continue next
			}
		}
		dst = append(dst, a)
	}
	return dst
}

// ParamTypesEqual reports whether two parameter lists have the same types
// in the same order. Names are ignored.
func ParamTypesEqual(a, b []*Parameter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] == nil || b[i] == nil {
			if a[i] != b[i] {
				return false
			}
			continue
		}
		if !a[i].Type.Equal(b[i].Type) {
			return false
		}
	}
	return true
}

// declaredMethods returns the methods visible on t with a substitution for
// the type arguments of a constructed type.
func declaredMethods(t *Type) ([]*Method, func(*Type) *Type) {
	if t.Definition != nil {
		return t.Definition.Methods, t.substitute
	}
	return t.Methods, nil
}

func interfaceMap(t, iface *Type) []MethodSlot {
	if t.Kind == TypeKindInterface {
		return nil
	}
	implemented := false
	for _, i := range t.AllInterfaces() {
		if i.Equal(iface) {
			implemented = true
			break
		}
	}
	if !implemented {
		return nil
	}

	imethods, isubst := declaredMethods(iface)
	slots := make([]MethodSlot, 0, len(imethods))
	for _, im := range imethods {
		if im == nil || im.Static {
			continue
		}
		isig := signatureOf(im, isubst)
		target, tsig := findImplementation(t, im, isig)
		slots = append(slots, MethodSlot{Interface: im, Target: target, InterfaceSignature: isig, TargetSignature: tsig})
	}
	return slots
}

// findImplementation searches t and its base classes, most derived first,
// for an instance method with the interface method's name, generic arity
// and signature isig.
func findImplementation(t *Type, im *Method, isig Signature) (*Method, Signature) {
	for c := t; c != nil; c = c.BaseType() {
		methods, csubst := declaredMethods(c)
		for _, m := range methods {
			if m == nil || m.Static || m.Name != im.Name || len(m.TypeParams) != len(im.TypeParams) {
				continue
			}
			if sig := signatureOf(m, csubst); sig.Equal(isig) {
				return m, sig
			}
		}
	}
	return nil, Signature{}
}

func hierarchyProperties(t *Type) []*Property {
	var out []*Property
	for c := t; c != nil; c = c.BaseType() {
		if c.Definition != nil {
			out = append(out, c.Definition.Properties...)
			continue
		}
		out = append(out, c.Properties...)
	}
	return out
}

func (c *Catalog) precompute(t *Type) {
	key := t.Key()
	ifaces := t.AllInterfaces()
	c.interfaces[key] = ifaces
	c.properties[key] = hierarchyProperties(t)
	for _, iface := range ifaces {
		if slots := interfaceMap(t, iface); len(slots) > 0 {
			c.ifaceMaps[key+"|"+iface.Key()] = slots
		}
	}
}

// =============================================================================
// Linking
// =============================================================================

type linker struct {
	cat       *Catalog
	ambiguous map[string]bool
	errs      []error
}

func (l *linker) errorf(format string, args ...any) {
	l.errs = append(l.errs, catalogErrorf(format, args...))
}

// register adds t and, recursively, the types it references.
func (l *linker) register(t *Type, builtin bool) {
	if t == nil {
		return
	}
	if t.Definition != nil {
		// Constructed types are never registered; their definitions and
		// arguments are.
		l.register(t.Definition, builtin)
		for _, a := range t.TypeArgs {
			l.register(a, builtin)
		}
		return
	}
	if t.Kind == TypeKindTypeParameter {
		return
	}
	if t.Name == "" {
		l.errorf("type with empty name in namespace %q", t.Namespace)
		return
	}

	key := t.Key()
	if existing, ok := l.cat.byKey[key]; ok {
		if existing != t {
			l.errorf("duplicate type %s", key)
		}
		return
	}
	l.cat.byKey[key] = t
	l.index(t.FullName(), t)
	if t.Namespace != "" {
		l.index(t.Name, t)
	}

	if !builtin {
		l.cat.declared = append(l.cat.declared, t)
		l.cat.stats.Types++
		l.cat.stats.ByKind[t.Kind]++
	}

	l.register(t.Base, builtin)
	for _, iface := range t.Interfaces {
		l.register(iface, builtin)
	}
}

func (l *linker) index(name string, t *Type) {
	if len(t.TypeParams) > 0 {
		name += "`" + strconv.Itoa(len(t.TypeParams))
	}
	if l.ambiguous[name] {
		return
	}
	if existing, ok := l.cat.byName[name]; ok && existing != t {
		delete(l.cat.byName, name)
		l.ambiguous[name] = true
		return
	}
	l.cat.byName[name] = t
}

func (l *linker) checkHierarchy(t *Type) {
	switch t.Kind {
	case TypeKindTypeParameter, TypeKindVoid:
		l.errorf("%s cannot be declared as %s", t.Key(), t.Kind)
		return
	case TypeKindInterface, TypeKindStruct, TypeKindEnum:
		if t.Base != nil {
			l.errorf("%s %s cannot have base type %s", t.Kind, t, t.Base)
		}
	}
	if t.Base != nil && t.Base.Kind != TypeKindClass {
		l.errorf("%s: base type %s is a %s, not a class", t, t.Base, t.Base.Kind)
	}
	for i, iface := range t.Interfaces {
		switch {
		case iface == nil:
			l.errorf("%s: interfaces[%d] is nil", t, i)
		case iface.Kind != TypeKindInterface:
			l.errorf("%s: %s is a %s, not an interface", t, iface, iface.Kind)
		}
	}

	seen := map[*Type]bool{t: true}
	for c := t.BaseType(); c != nil; c = c.BaseType() {
		def := c
		if c.Definition != nil {
			def = c.Definition
		}
		if seen[def] {
			l.errorf("%s: cyclic base type chain through %s", t, c)
			return
		}
		seen[def] = true
	}
}

func (l *linker) linkMembers(t *Type) {
	signatures := make(map[string]bool)
	addMethod := func(m *Method) {
		sig := m.Name
		if len(m.TypeParams) > 0 {
			sig += "`" + strconv.Itoa(len(m.TypeParams))
		}
		sig += "(" + paramKeyList(SignatureOf(m).Params) + ")"
		if signatures[sig] {
			l.errorf("%s: duplicate method %s", t, sig)
		}
		signatures[sig] = true
		l.cat.stats.Methods++
	}

	for i, m := range t.Methods {
		if m == nil {
			l.errorf("%s: methods[%d] is nil", t, i)
			continue
		}
		if m.Name == "" {
			l.errorf("%s: methods[%d] has no name", t, i)
		}
		m.DeclaredBy = t
		l.linkParams(t, m, m.Params)
		addMethod(m)
	}

	for i, ctor := range t.Constructors {
		if ctor == nil {
			l.errorf("%s: constructors[%d] is nil", t, i)
			continue
		}
		ctor.DeclaredBy = t
		l.linkParams(t, ctor, ctor.Params)
	}

props:
	for i, p := range t.Properties {
		switch {
		case p == nil:
			l.errorf("%s: properties[%d] is nil", t, i)
			continue
		case p.Name == "":
			l.errorf("%s: properties[%d] has no name", t, i)
			continue
		case p.Type == nil:
			l.errorf("%s.%s: property has no type", t, p.Name)
			continue
		}
		p.DeclaredBy = t
		l.cat.stats.Properties++
		for j, ip := range p.IndexParams {
			if ip == nil || ip.Type == nil {
				l.errorf("%s.%s: index parameter %d has no type", t, p.Name, j)
				continue props
			}
		}

		if p.Getter == nil && p.CanRead {
			p.Getter = &Method{
				Name:     GetterPrefix + p.Name,
				Params:   cloneParams(p.IndexParams),
				Returns:  p.Type,
				Static:   p.Static,
				Override: p.Override,
			}
			t.Methods = append(t.Methods, p.Getter)
			p.Getter.DeclaredBy = t
			l.linkParams(t, p.Getter, p.Getter.Params)
			addMethod(p.Getter)
		}
		if p.Getter != nil {
			p.CanRead = true
			p.Getter.Accessor = AccessorGet
		}

		if p.Setter == nil && p.CanWrite {
			params := append(cloneParams(p.IndexParams), &Parameter{Name: "value", Type: p.Type})
			p.Setter = &Method{
				Name:     SetterPrefix + p.Name,
				Params:   params,
				Static:   p.Static,
				Override: p.Override,
			}
			t.Methods = append(t.Methods, p.Setter)
			p.Setter.DeclaredBy = t
			l.linkParams(t, p.Setter, p.Setter.Params)
			addMethod(p.Setter)
		}
		if p.Setter != nil {
			p.CanWrite = true
			p.Setter.Accessor = AccessorSet
		}
	}

	for i, f := range t.Fields {
		switch {
		case f == nil:
			l.errorf("%s: fields[%d] is nil", t, i)
		case f.Type == nil:
			l.errorf("%s.%s: field has no type", t, f.Name)
		default:
			f.DeclaredBy = t
		}
	}
}

func (l *linker) linkParams(t *Type, owner MethodBase, params []*Parameter) {
	for i, p := range params {
		if p == nil {
			l.errorf("%s::%s: parameter %d is nil", t, owner.MemberName(), i)
			continue
		}
		if p.Type == nil {
			l.errorf("%s::%s: parameter %q has no type", t, owner.MemberName(), p.Name)
		}
		p.Position = i
		p.Member = owner
	}
}

func (l *linker) resolveOverrides(t *Type) {
	for _, m := range t.Methods {
		if m == nil || !m.Override {
			continue
		}
		m.overrides = nil
		sig := SignatureOf(m)
		for c := t.BaseType(); c != nil && m.overrides == nil; c = c.BaseType() {
			methods, subst := declaredMethods(c)
			for _, b := range methods {
				if b != nil && !b.Static && b.Name == m.Name && len(b.TypeParams) == len(m.TypeParams) &&
					signatureOf(b, subst).ParamsEqual(sig) {
					m.overrides = b
					break
				}
			}
		}
		if m.overrides == nil {
			l.errorf("%s::%s overrides nothing", t, m.Name)
		}
	}
	for _, p := range t.Properties {
		if p == nil || !p.Override {
			continue
		}
		p.overrides = nil
		for c := t.BaseType(); c != nil && p.overrides == nil; c = c.BaseType() {
			declared := c.Properties
			if c.Definition != nil {
				declared = c.Definition.Properties
			}
			for _, b := range declared {
				if b != nil && !b.Static && b.Name == p.Name {
					p.overrides = b
					break
				}
			}
		}
		if p.overrides == nil {
			l.errorf("%s.%s overrides nothing", t, p.Name)
		}
	}
}

func cloneParams(params []*Parameter) []*Parameter {
	out := make([]*Parameter, len(params))
	for i, p := range params {
		out[i] = &Parameter{
			Name:        p.Name,
			Type:        p.Type,
			Annotations: append([]Annotation(nil), p.Annotations...),
		}
	}
	return out
}

func paramKeyList(params []*Type) string {
	var s string
	for i, p := range params {
		if i > 0 {
			s += ","
		}
		if p != nil {
			s += p.Key()
		}
	}
	return s
}
