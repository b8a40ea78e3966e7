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
	"fmt"

	"github.com/AleutianAI/contracts/services/contract/meta"
)

// extractor collects contract records from metadata. It holds no state
// beyond the metadata and is safe for concurrent use.
type extractor struct {
	md meta.Metadata
}

// extract computes the records of one member.
//
// Order: the member's own parameter records (declaration order, then
// annotation order) followed by those inherited from interfaces; the
// return slot, the method and the interface declarations for return
// values; property contributions last.
func (x *extractor) extract(m meta.MethodBase, inherit bool) (*Analysis, error) {
	params, err := x.parameterPreconditions(m, inherit)
	if err != nil {
		return nil, err
	}
	returns, err := x.returnValuePreconditions(m, inherit)
	if err != nil {
		return nil, err
	}

	if method, ok := m.(*meta.Method); ok && method.IsAccessor() {
		if prop := PropertyOf(x.md, method); prop != nil {
			switch method.Accessor {
			case meta.AccessorSet:
				more, err := x.propertyParameterPreconditions(prop, inherit)
				if err != nil {
					return nil, err
				}
				params = unionParameters(params, more...)
			case meta.AccessorGet:
				more, err := x.propertyReturnValuePreconditions(prop, inherit)
				if err != nil {
					return nil, err
				}
				returns = unionReturnValues(returns, more...)
			}
		}
	}
	return &Analysis{params: params, returns: returns}, nil
}

func (x *extractor) parameterPreconditions(m meta.MethodBase, inherit bool) ([]ParameterRecord, error) {
	var records []ParameterRecord
	collect := func(params []*meta.Parameter, inheritAnnotations bool, from *inheritedDefinition) error {
		for _, p := range params {
			if p == nil {
				continue
			}
			for _, a := range x.md.Annotations(p, inheritAnnotations) {
				pre, ok := a.(ParameterPrecondition)
				if !ok || pre == nil {
					continue
				}
				rec, err := newParameterRecord(p, pre, "")
				if err != nil {
					return err
				}
				if from != nil {
					rec.ParameterType = from.resolve(rec.ParameterType)
					records = mergeInheritedParameters(records, rec)
				} else {
					records = unionParameters(records, rec)
				}
			}
		}
		return nil
	}

	if err := collect(m.Parameters(), inherit, nil); err != nil {
		return nil, err
	}
	if !inherit {
		return records, nil
	}
	for _, def := range interfaceDefinitions(x.md, m) {
		if im, ok := def.member.(*meta.Method); ok {
			if err := collect(im.Params, false, &def); err != nil {
				return nil, err
			}
		}
	}
	return records, nil
}

func (x *extractor) returnValuePreconditions(m meta.MethodBase, inherit bool) ([]ReturnValueRecord, error) {
	method, ok := m.(*meta.Method)
	if !ok || !method.HasReturnValue() {
		return nil, nil
	}

	var records []ReturnValueRecord
	collect := func(member *meta.Method, inheritAnnotations bool, from *inheritedDefinition) error {
		annotations := x.md.Annotations(meta.ReturnSlot{Method: member}, inheritAnnotations)
		annotations = append(annotations, x.md.Annotations(member, inheritAnnotations)...)
		for _, a := range annotations {
			pre, ok := a.(ReturnValuePrecondition)
			if !ok || pre == nil {
				continue
			}
			rec, err := newReturnValueRecord(member, pre)
			if err != nil {
				return err
			}
			if from != nil {
				rec.ReturnType = from.resolve(rec.ReturnType)
				records = mergeInheritedReturnValues(records, rec)
			} else {
				records = unionReturnValues(records, rec)
			}
		}
		return nil
	}

	if err := collect(method, inherit, nil); err != nil {
		return nil, err
	}
	if !inherit {
		return records, nil
	}
	for _, def := range interfaceDefinitions(x.md, method) {
		if im, ok := def.member.(*meta.Method); ok && im.HasReturnValue() {
			if err := collect(im, false, &def); err != nil {
				return nil, err
			}
		}
	}
	return records, nil
}

// propertyParameterPreconditions attributes property annotations to the
// setter's value parameter under the property's name.
func (x *extractor) propertyParameterPreconditions(prop *meta.Property, inherit bool) ([]ParameterRecord, error) {
	records, err := x.propertyAsParameter(prop, inherit)
	if err != nil || !inherit {
		return records, err
	}
	for _, def := range interfaceDefinitions(x.md, prop) {
		ip, ok := def.member.(*meta.Property)
		if !ok {
			continue
		}
		more, err := x.propertyAsParameter(ip, false)
		if err != nil {
			return nil, err
		}
		for i := range more {
			more[i].ParameterType = def.resolve(more[i].ParameterType)
		}
		records = mergeInheritedParameters(records, more...)
	}
	return records, nil
}

func (x *extractor) propertyAsParameter(prop *meta.Property, inherit bool) ([]ParameterRecord, error) {
	if prop.Setter == nil {
		return nil, nil
	}
	var records []ParameterRecord
	for _, a := range x.md.Annotations(prop, inherit) {
		pre, ok := a.(ParameterPrecondition)
		if !ok || pre == nil {
			continue
		}
		params := prop.Setter.Params
		if len(params) == 0 || params[len(params)-1] == nil {
			return nil, fmt.Errorf("%w: %s: setter has no value parameter", ErrResolution, meta.QualifiedName(prop))
		}
		rec, err := newParameterRecord(params[len(params)-1], pre, prop.Name)
		if err != nil {
			return nil, err
		}
		records = unionParameters(records, rec)
	}
	return records, nil
}

// propertyReturnValuePreconditions attributes property annotations to the
// getter's result under the property's name.
func (x *extractor) propertyReturnValuePreconditions(prop *meta.Property, inherit bool) ([]ReturnValueRecord, error) {
	records, err := x.propertyAsReturnValue(prop, inherit)
	if err != nil || !inherit {
		return records, err
	}
	for _, def := range interfaceDefinitions(x.md, prop) {
		target, ok := def.member.(meta.AnnotationTarget)
		if !ok {
			continue
		}
		for _, a := range x.md.Annotations(target, false) {
			pre, ok := a.(ReturnValuePrecondition)
			if !ok || pre == nil {
				continue
			}
			rec, err := newReturnValueRecord(def.member, pre)
			if err != nil {
				return nil, err
			}
			rec.ReturnType = def.resolve(rec.ReturnType)
			records = mergeInheritedReturnValues(records, rec)
		}
	}
	return records, nil
}

func (x *extractor) propertyAsReturnValue(prop *meta.Property, inherit bool) ([]ReturnValueRecord, error) {
	if prop.Getter == nil {
		return nil, nil
	}
	var records []ReturnValueRecord
	for _, a := range x.md.Annotations(prop, inherit) {
		pre, ok := a.(ReturnValuePrecondition)
		if !ok || pre == nil {
			continue
		}
		rec, err := newReturnValueRecord(prop, pre)
		if err != nil {
			return nil, err
		}
		records = unionReturnValues(records, rec)
	}
	return records, nil
}

func newParameterRecord(p *meta.Parameter, pre ParameterPrecondition, methodName string) (ParameterRecord, error) {
	if p.Member == nil || p.Member.Owner() == nil {
		return ParameterRecord{}, fmt.Errorf("%w: parameter %q has no declaring member", ErrResolution, p.Name)
	}
	if methodName == "" {
		methodName = p.Member.MemberName()
	}
	return ParameterRecord{
		TypeName:      p.Member.Owner().Name,
		MethodName:    methodName,
		Name:          p.Name,
		Position:      p.Position,
		ParameterType: p.Type,
		Annotation:    pre,
	}, nil
}

func newReturnValueRecord(m meta.Member, pre ReturnValuePrecondition) (ReturnValueRecord, error) {
	if m.Owner() == nil {
		return ReturnValueRecord{}, fmt.Errorf("%w: %s has no declaring type", ErrResolution, m.MemberName())
	}
	var returnType *meta.Type
	switch v := m.(type) {
	case *meta.Method:
		returnType = v.ReturnType()
	case *meta.Property:
		returnType = v.Type
	case *meta.Field:
		returnType = v.Type
	default:
		return ReturnValueRecord{}, fmt.Errorf("%w: cannot determine the return type of %s %s",
			ErrResolution, m.MemberKind(), meta.QualifiedName(m))
	}
	if returnType == nil {
		return ReturnValueRecord{}, fmt.Errorf("%w: %s has no type", ErrResolution, meta.QualifiedName(m))
	}
	return ReturnValueRecord{
		TypeName:   m.Owner().Name,
		MethodName: m.MemberName(),
		ReturnType: returnType,
		Annotation: pre,
	}, nil
}

// mergeInheritedParameters adds interface contributions, skipping any whose
// annotation is already applied at the same position. An implementation
// repeating its interface's annotation therefore yields one record, while
// different annotations on the same parameter are all kept.
func mergeInheritedParameters(dst []ParameterRecord, src ...ParameterRecord) []ParameterRecord {
next:
	for _, r := range src {
		for _, have := range dst {
			if have.Position == r.Position && sameAnnotation(have.Annotation, r.Annotation) {
				continue next
			}
		}
		dst = append(dst, r)
	}
	return dst
}

// mergeInheritedReturnValues is mergeInheritedParameters for return values.
func mergeInheritedReturnValues(dst []ReturnValueRecord, src ...ReturnValueRecord) []ReturnValueRecord {
next:
	for _, r := range src {
		for _, have := range dst {
			if sameAnnotation(have.Annotation, r.Annotation) {
				continue next
			}
		}
		dst = append(dst, r)
	}
	return dst
}
