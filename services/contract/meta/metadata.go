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

// Metadata is the reflection facility the analysis engine consumes.
//
// Description:
//
//	Hosts expose their type system through this interface so that the
//	engine never depends on a particular runtime's introspection API.
//	Catalog is the in-memory implementation; hosts with their own type
//	model (a compiler plugin, a schema registry) provide another.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use. The analyzer calls
//	them from many goroutines at once.
type Metadata interface {
	// Interfaces returns every interface t implements, including those
	// inherited from base classes and extended by other interfaces, in a
	// stable order and without duplicates.
	Interfaces(t *Type) []*Type

	// InterfaceMap returns one slot per method of iface, pairing it with
	// the method of t that implements it. Target is nil when t leaves the
	// slot unimplemented. The result is empty when t does not implement
	// iface or is itself an interface.
	InterfaceMap(t, iface *Type) []MethodSlot

	// Properties returns the properties declared by t followed by those of
	// its base classes, including properties hidden by a redeclaration.
	Properties(t *Type) []*Property

	// Annotations returns the annotations attached to target. With
	// inherit set, annotations of overridden base declarations are
	// appended, skipping any that are equal to one already collected.
	Annotations(target AnnotationTarget, inherit bool) []Annotation
}

// MethodSlot pairs an interface method with its implementation.
type MethodSlot struct {
	Interface *Method
	Target    *Method

	// InterfaceSignature is the signature of Interface seen through the
	// implemented interface, TargetSignature that of Target seen through
	// the class that declares it. They are equal when Target is set.
	InterfaceSignature Signature
	TargetSignature    Signature
}
