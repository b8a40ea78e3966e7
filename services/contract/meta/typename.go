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
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// TypeResolver resolves a type name with the given generic arity to a
// type. Arity zero asks for a non-generic type; a positive arity asks for
// a generic definition.
type TypeResolver func(name string, arity int) (*Type, error)

// ParseTypeExpr parses a type expression such as "int", "Sword",
// "IEnumerable<string>", "IEnumerable<>" or "Dictionary<,>".
//
// Description:
//
//	Names may be namespace qualified. An empty argument list names the
//	open generic definition itself. Whitespace around names and
//	punctuation is ignored.
//
// Errors:
//
//	ErrTypeExpression - the expression is malformed
//	Any error returned by resolve, wrapped
func ParseTypeExpr(expr string, resolve TypeResolver) (*Type, error) {
	p := &typeParser{src: expr, resolve: resolve}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

// ParseType parses a type expression against the catalog. Names in scope
// (typically generic parameters) take precedence over catalog types.
//
// Errors:
//
//	ErrTypeExpression - the expression is malformed
//	ErrUnknownType - a name is not in scope or in the catalog
func (c *Catalog) ParseType(expr string, scope ...*Type) (*Type, error) {
	return ParseTypeExpr(expr, scopedResolver(c.Lookup, scope))
}

func scopedResolver(lookup func(string) (*Type, bool), scope []*Type) TypeResolver {
	return func(name string, arity int) (*Type, error) {
		if arity == 0 {
			for _, t := range scope {
				if t.Name == name {
					return t, nil
				}
			}
		} else {
			name += "`" + strconv.Itoa(arity)
		}
		if t, ok := lookup(name); ok {
			return t, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
}

type typeParser struct {
	src     string
	pos     int
	resolve TypeResolver
}

func (p *typeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w %q at offset %d: %s", ErrTypeExpression, p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) accept(b byte) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == b {
		p.pos++
		return true
	}
	return false
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if r != '_' && r != '.' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		p.pos++
	}
	return strings.Trim(p.src[start:p.pos], ".")
}

func (p *typeParser) parse() (*Type, error) {
	name := p.ident()
	if name == "" {
		return nil, p.errorf("expected a type name")
	}
	if !p.accept('<') {
		return p.lookup(name, 0)
	}

	// Open definition: Name<> or Name<,,>
	commas := 0
	for p.accept(',') {
		commas++
	}
	if p.accept('>') {
		def, err := p.lookup(name, commas+1)
		if err != nil {
			return nil, err
		}
		return def, nil
	}
	if commas > 0 {
		return nil, p.errorf("mixed open and closed type arguments")
	}

	var args []*Type
	for {
		arg, err := p.parse()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.accept(',') {
			continue
		}
		if p.accept('>') {
			break
		}
		return nil, p.errorf("expected ',' or '>'")
	}

	def, err := p.lookup(name, len(args))
	if err != nil {
		return nil, err
	}
	return Construct(def, args...)
}

func (p *typeParser) lookup(name string, arity int) (*Type, error) {
	t, err := p.resolve(name, arity)
	if err != nil {
		return nil, fmt.Errorf("type expression %q: %w", p.src, err)
	}
	if arity > 0 && !t.IsGenericDefinition() {
		return nil, p.errorf("%s is not generic", name)
	}
	return t, nil
}
