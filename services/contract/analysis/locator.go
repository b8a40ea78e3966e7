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

import "github.com/AleutianAI/contracts/services/contract/meta"

// PropertyOf returns the property an accessor reads or writes.
//
// Description:
//
//	Searches the properties of the accessor's declaring type and its base
//	classes. When a property hides a base property of the same name both
//	can match by name; the one declared on the most derived type wins.
//	Ambiguity is never an error.
//
// Outputs:
//
//	*meta.Property - The owning property, or nil when m is not an accessor
//	                 or no property claims it.
func PropertyOf(md meta.Metadata, m *meta.Method) *meta.Property {
	if md == nil || !m.IsAccessor() || m.DeclaredBy == nil {
		return nil
	}
	var best *meta.Property
	for _, p := range md.Properties(m.DeclaredBy) {
		if !accessorOf(p, m) {
			continue
		}
		if best == nil || p.DeclaredBy.IsSubclassOf(best.DeclaredBy) {
			best = p
		}
	}
	return best
}

func accessorOf(p *meta.Property, m *meta.Method) bool {
	if p == nil {
		return false
	}
	acc := p.Getter
	if m.Accessor == meta.AccessorSet {
		acc = p.Setter
	}
	switch {
	case acc == nil:
		return false
	case acc == m:
		return true
	default:
		return acc.Name == m.Name && acc.Static == m.Static && meta.ParamTypesEqual(acc.Params, m.Params)
	}
}

// InterfaceDefinitions returns the interface members that m implements.
//
// Description:
//
//	Walks every interface of m's declaring type, keeps the interface map
//	slots whose implementation is m (or one of its accessors when m is a
//	property) and confirms each with SlotSignatureEquals, which compares
//	the members with the interface's type arguments substituted.
//	Interface accessors are translated to their property so that property
//	level annotations are found. Duplicates are removed; order follows Metadata.Interfaces
//	and the interface map.
//
// Outputs:
//
//	[]meta.Member - The declarations found. Empty, not an error, when m
//	                implements nothing.
//
// Thread Safety: Safe for concurrent use when md is.
func InterfaceDefinitions(md meta.Metadata, m meta.Member) []meta.Member {
	defs := interfaceDefinitions(md, m)
	if len(defs) == 0 {
		return nil
	}
	out := make([]meta.Member, len(defs))
	for i, d := range defs {
		out[i] = d.member
	}
	return out
}

// inheritedDefinition is an interface member together with the interface
// type, possibly constructed, that the implementation is reached through.
type inheritedDefinition struct {
	member  meta.Member
	through *meta.Type
}

// resolve maps a type declared on the interface member to the type seen
// by the implementation: T of IRack<T> is string through IRack<string>.
func (d inheritedDefinition) resolve(t *meta.Type) *meta.Type {
	return d.through.Substitute(t)
}

func interfaceDefinitions(md meta.Metadata, m meta.Member) []inheritedDefinition {
	if md == nil || m == nil {
		return nil
	}
	owner := m.Owner()
	if owner == nil {
		return nil
	}

	var out []inheritedDefinition
	var seen []meta.Member
	for _, iface := range md.Interfaces(owner) {
		for _, slot := range md.InterfaceMap(owner, iface) {
			if slot.Interface == nil || slot.Target == nil || !implementedBy(slot.Target, m) {
				continue
			}
			if !SlotSignatureEquals(md, slot, m) {
				continue
			}
			var def meta.Member = slot.Interface
			if slot.Interface.IsAccessor() {
				if p := PropertyOf(md, slot.Interface); p != nil {
					def = p
				}
			}
			if !containsMember(seen, def) {
				seen = append(seen, def)
				out = append(out, inheritedDefinition{member: def, through: iface})
			}
		}
	}
	return out
}

func implementedBy(target *meta.Method, m meta.Member) bool {
	switch v := m.(type) {
	case *meta.Method:
		return sameMember(target, v)
	case *meta.Property:
		return (v.Getter != nil && sameMember(target, v.Getter)) ||
			(v.Setter != nil && sameMember(target, v.Setter))
	default:
		return false
	}
}

func sameMember(a, b meta.Member) bool {
	return a == b || meta.MemberKey(a) == meta.MemberKey(b)
}

func containsMember(list []meta.Member, m meta.Member) bool {
	for _, have := range list {
		if sameMember(have, m) {
			return true
		}
	}
	return false
}
