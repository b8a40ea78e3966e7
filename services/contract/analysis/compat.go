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

// CanApply reports whether a target of type actual satisfies a constraint
// type without any assignability rule.
//
// Description:
//
//	Exact identity always satisfies. An open generic definition such as
//	IEnumerable<> is satisfied by every construction of that definition,
//	whatever the type argument. A closed constraint such as
//	IEnumerable<int> requires an exact match, so IEnumerable<string> does
//	not satisfy it. Nothing else satisfies.
//
// Thread Safety: Pure function; safe for concurrent use.
func CanApply(actual, constraint *meta.Type) bool {
	if actual == nil || constraint == nil {
		return false
	}
	if actual.Equal(constraint) {
		return true
	}
	if constraint.IsGenericDefinition() && actual.IsGeneric() {
		return actual.GenericDefinition().Equal(constraint)
	}
	return false
}

// Satisfies extends CanApply with the assignability rule an annotation may
// opt into through Applicability.AllowAssignable: a subclass satisfies its
// base class, an implementation satisfies its interfaces, and a type
// implementing any construction of an open generic interface satisfies
// that definition.
func Satisfies(actual, constraint *meta.Type, allowAssignable bool) bool {
	if CanApply(actual, constraint) {
		return true
	}
	if !allowAssignable || actual == nil || constraint == nil {
		return false
	}
	if !constraint.IsGenericDefinition() {
		return actual.AssignableTo(constraint)
	}
	for c := actual.BaseType(); c != nil; c = c.BaseType() {
		if CanApply(c, constraint) {
			return true
		}
	}
	for _, iface := range actual.AllInterfaces() {
		if CanApply(iface, constraint) {
			return true
		}
	}
	return false
}
