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
	"strings"

	"github.com/AleutianAI/contracts/services/contract/meta"
)

// SignatureEquals reports whether a and b denote the same logical member.
//
// Description:
//
//	Accessors are named after their property, so get_Edge matches the
//	property Edge. Names must then match exactly. The structural checks
//	are selective: each applies only when both members belong to its
//	category.
//	  - methods and constructors: parameter types, in order
//	  - methods: return type
//	  - fields: field type
//	  - properties: property type
//
//	Method type parameters compare by position, so Hold<T>(T) equals
//	Hold<TBlade>(TBlade). Types are compared as declared; use
//	SlotSignatureEquals for members reached through a constructed
//	interface.
//
// Inputs:
//
//	md - Metadata used to resolve accessors to properties.
//	a, b - The members to compare.
//
// Outputs:
//
//	bool - True when every applicable check passes. False if either
//	       member is nil.
func SignatureEquals(md meta.Metadata, a, b meta.Member) bool {
	if a == nil || b == nil {
		return false
	}
	if logicalName(md, a) != logicalName(md, b) {
		return false
	}

	if ma, ok := a.(meta.MethodBase); ok {
		if mb, ok := b.(meta.MethodBase); ok && !meta.SignatureOf(ma).ParamsEqual(meta.SignatureOf(mb)) {
			return false
		}
	}
	if ma, ok := a.(*meta.Method); ok {
		if mb, ok := b.(*meta.Method); ok && !meta.SignatureOf(ma).Return.Equal(meta.SignatureOf(mb).Return) {
			return false
		}
	}
	if fa, ok := a.(*meta.Field); ok {
		if fb, ok := b.(*meta.Field); ok && !fa.Type.Equal(fb.Type) {
			return false
		}
	}
	if pa, ok := a.(*meta.Property); ok {
		if pb, ok := b.(*meta.Property); ok && !pa.Type.Equal(pb.Type) {
			return false
		}
	}
	return true
}

// SlotSignatureEquals reports whether slot maps its interface member onto
// m. It is SignatureEquals applied to the members as seen through the
// constructed interface and the implementing class: IRack<T>.Store(T)
// implemented for IRack<string> matches Store(string).
//
// A slot without a target never matches.
func SlotSignatureEquals(md meta.Metadata, slot meta.MethodSlot, m meta.Member) bool {
	if slot.Interface == nil || slot.Target == nil || m == nil {
		return false
	}
	if logicalName(md, slot.Interface) != logicalName(md, m) {
		return false
	}
	if _, ok := m.(*meta.Method); ok {
		return slot.InterfaceSignature.Equal(slot.TargetSignature)
	}
	return true
}

// logicalName returns the owning property's name for accessors and the
// declared name otherwise.
func logicalName(md meta.Metadata, m meta.Member) string {
	method, ok := m.(*meta.Method)
	if !ok || !method.IsAccessor() {
		return m.MemberName()
	}
	if p := PropertyOf(md, method); p != nil {
		return p.Name
	}
	name := strings.TrimPrefix(method.Name, meta.GetterPrefix)
	return strings.TrimPrefix(name, meta.SetterPrefix)
}
