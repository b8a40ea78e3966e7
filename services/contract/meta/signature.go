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

import "strconv"

// Signature is the parameter and return types of a method as seen from a
// particular type.
//
// Description:
//
//	Type parameters of a constructed declaring type are replaced by its
//	type arguments, so IRack<T>.Store(T) seen through IRack<string> has
//	the signature (string). Method-level type parameters are replaced by
//	positional placeholders keyed !!0, !!1, ..., so Hold<T>(T) and
//	Hold<TBlade>(TBlade) have equal signatures.
type Signature struct {
	Params []*Type
	Return *Type
}

// SignatureOf returns the signature of m as declared, with its method type
// parameters made positional. A constructor returns Void.
func SignatureOf(m MethodBase) Signature {
	return signatureOf(m, nil)
}

func signatureOf(m MethodBase, subst func(*Type) *Type) Signature {
	if m == nil {
		return Signature{}
	}
	var typeParams []string
	ret := Void
	if method, ok := m.(*Method); ok {
		if method == nil {
			return Signature{}
		}
		typeParams = method.TypeParams
		ret = method.ReturnType()
	}
	resolve := func(x *Type) *Type {
		x = positional(x, typeParams)
		if subst != nil {
			x = subst(x)
		}
		return x
	}
	params := m.Parameters()
	sig := Signature{Params: make([]*Type, len(params)), Return: resolve(ret)}
	for i, p := range params {
		if p != nil {
			sig.Params[i] = resolve(p.Type)
		}
	}
	return sig
}

// ParamsEqual reports whether both signatures take the same parameter
// types in the same order.
func (s Signature) ParamsEqual(o Signature) bool {
	if len(s.Params) != len(o.Params) {
		return false
	}
	for i := range s.Params {
		if !s.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether the parameter and return types agree.
func (s Signature) Equal(o Signature) bool {
	return s.ParamsEqual(o) && s.Return.Equal(o.Return)
}

// positional replaces the method type parameters named in typeParams by
// placeholders named after their position. The placeholder names cannot
// collide with declared names, which never start with '!'.
func positional(x *Type, typeParams []string) *Type {
	if x == nil || len(typeParams) == 0 {
		return x
	}
	switch {
	case x.Kind == TypeKindTypeParameter:
		for i, p := range typeParams {
			if p == x.Name {
				return TypeParameter("!" + strconv.Itoa(i))
			}
		}
		return x
	case x.Definition != nil:
		args := make([]*Type, len(x.TypeArgs))
		changed := false
		for i, a := range x.TypeArgs {
			args[i] = positional(a, typeParams)
			changed = changed || args[i] != a
		}
		if !changed {
			return x
		}
		return construct(x.Definition, args)
	default:
		return x
	}
}
