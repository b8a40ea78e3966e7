// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/contracts/services/contract/meta"
)

// DocumentVersion is written to extracted documents.
const DocumentVersion = "v1.0"

// skippedDirs are build output and VCS directories.
var skippedDirs = map[string]bool{"bin": true, "obj": true, ".git": true, ".vs": true}

// Result is the outcome of extracting a source tree.
type Result struct {
	Document *meta.Document
	Files    int
	Warnings []string
}

// ExtractPaths parses every .cs file under paths and links the
// declarations into one document.
//
// Description:
//
//	Directories are walked recursively, skipping bin, obj and VCS
//	directories. Files are parsed concurrently and linked in path order,
//	so the output is deterministic.
//
// Errors:
//
//	Returns the first read or parse error. Syntax errors inside a file
//	are warnings, not errors.
func (e *Extractor) ExtractPaths(ctx context.Context, paths ...string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "extract.Extractor.ExtractPaths")
	defer span.End()

	files, err := sourceFiles(paths)
	if err != nil {
		return nil, err
	}

	parsed := make([]*File, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range files {
		g.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			f, err := e.Parse(gctx, content, path)
			if err != nil {
				return err
			}
			parsed[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc, warnings := e.Document(parsed)
	span.SetAttributes(
		attribute.Int("extract.files", len(files)),
		attribute.Int("extract.types", len(doc.Types)),
		attribute.Int("extract.warnings", len(warnings)),
	)
	return &Result{Document: doc, Files: len(files), Warnings: warnings}, nil
}

func sourceFiles(paths []string) ([]string, error) {
	var out []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		if !info.IsDir() {
			out = append(out, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && skippedDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.EqualFold(filepath.Ext(path), ".cs") {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("extract: walk %s: %w", root, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

// =============================================================================
// Linking
// =============================================================================

// builtinNames maps C# spellings to catalog built-in names.
var builtinNames = map[string]string{
	"string":   "string",
	"String":   "string",
	"bool":     "bool",
	"Boolean":  "bool",
	"int":      "int",
	"Int32":    "int",
	"long":     "int64",
	"Int64":    "int64",
	"double":   "float64",
	"Double":   "float64",
	"float":    "float64",
	"Single":   "float64",
	"decimal":  "float64",
	"Decimal":  "float64",
	"object":   "object",
	"Object":   "object",
	"Type":     "Type",
	"IReflect": "IReflect",
}

// linker maps source types onto catalog type expressions.
type linker struct {
	// declared indexes types by simple name and arity.
	declared map[string][]*typeDecl
	warned   map[string]bool
	warnings []string
}

func arityKey(name string, arity int) string {
	if arity == 0 {
		return name
	}
	return name + "`" + strconv.Itoa(arity)
}

// simpleName strips nesting prefixes: Outer.Inner is found as Inner.
func simpleName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

func (l *linker) warnOnce(key, format string, args ...any) {
	if l.warned[key] {
		return
	}
	l.warned[key] = true
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

// resolve returns the declaration r names, if exactly one matches.
func (l *linker) resolve(r typeRef) (*typeDecl, bool) {
	cands := l.declared[arityKey(r.name, len(r.args))]
	if len(cands) != 1 {
		if len(cands) > 1 {
			l.warnOnce("ambiguous:"+r.name, "type %s is declared more than once; using object", r.name)
		}
		return nil, false
	}
	return cands[0], true
}

// expr renders r as a catalog type expression.
func (l *linker) expr(r typeRef, scope []string) string {
	if r.array {
		return "IEnumerable<" + l.expr(r.args[0], scope) + ">"
	}
	if len(r.args) == 0 {
		for _, p := range scope {
			if p == r.name {
				return r.name
			}
		}
		if b, ok := builtinNames[r.name]; ok {
			return b
		}
	}
	if r.name == "IEnumerable" {
		switch len(r.args) {
		case 0:
			return "IEnumerable"
		case 1:
			return "IEnumerable<" + l.expr(r.args[0], scope) + ">"
		}
	}
	if d, ok := l.resolve(r); ok {
		if len(r.args) == 0 {
			return d.fullName()
		}
		args := make([]string, len(r.args))
		for i, a := range r.args {
			args[i] = l.expr(a, scope)
		}
		return d.fullName() + "<" + strings.Join(args, ", ") + ">"
	}
	l.warnOnce("unknown:"+arityKey(r.name, len(r.args)), "type %s is not declared; using object", r.name)
	return "object"
}

func (l *linker) params(ps []paramDecl, scope []string) []meta.ParamDoc {
	if len(ps) == 0 {
		return nil
	}
	out := make([]meta.ParamDoc, len(ps))
	for i, p := range ps {
		out[i] = meta.ParamDoc{Name: p.name, Type: l.expr(p.typ, scope), Annotations: p.specs}
	}
	return out
}

// Document links parsed files into a catalog document and returns it with
// the warnings of the files and of linking.
//
// Description:
//
//	Types keep file order. A type declared twice keeps its first
//	declaration. Base types that are neither declared nor built in are
//	dropped with a warning.
func (e *Extractor) Document(files []*File) (*meta.Document, []string) {
	l := &linker{declared: make(map[string][]*typeDecl), warned: make(map[string]bool)}

	var warnings []string
	var types []*typeDecl
	seen := make(map[string]*typeDecl)
	for _, f := range files {
		if f == nil {
			continue
		}
		warnings = append(warnings, f.Warnings...)
		for _, t := range f.types {
			key := arityKey(t.fullName(), len(t.typeParams))
			if first, dup := seen[key]; dup {
				warnings = append(warnings, fmt.Sprintf("%s: type %s already declared in %s; skipped", t.file, t.fullName(), first.file))
				continue
			}
			seen[key] = t
			types = append(types, t)
			sk := arityKey(simpleName(t.name), len(t.typeParams))
			l.declared[sk] = append(l.declared[sk], t)
		}
	}

	doc := &meta.Document{Version: DocumentVersion, Types: make([]meta.TypeDoc, 0, len(types))}
	for _, t := range types {
		doc.Types = append(doc.Types, l.typeDoc(t))
	}
	return doc, append(warnings, l.warnings...)
}

func (l *linker) typeDoc(t *typeDecl) meta.TypeDoc {
	td := meta.TypeDoc{
		Name:       t.name,
		Namespace:  t.namespace,
		Kind:       t.kind,
		TypeParams: t.typeParams,
	}
	scope := t.typeParams

	for _, b := range t.bases {
		if b.name == "IEnumerable" && len(b.args) <= 1 {
			td.Interfaces = append(td.Interfaces, l.expr(b, scope))
			continue
		}
		d, ok := l.resolve(b)
		if !ok {
			l.warnOnce("base:"+t.fullName()+":"+b.name, "%s: base type %s of %s is not declared; dropped", t.file, b.name, t.fullName())
			continue
		}
		expr := l.expr(b, scope)
		switch {
		case d.kind == "interface":
			td.Interfaces = append(td.Interfaces, expr)
		case t.kind == "class" && d.kind == "class" && td.Base == "":
			td.Base = expr
		default:
			l.warnOnce("base:"+t.fullName()+":"+b.name, "%s: %s cannot derive from %s %s; dropped", t.file, t.fullName(), d.kind, b.name)
		}
	}

	// An override needs a base in the catalog to link against.
	override := func(member string, set bool) bool {
		if set && td.Base == "" {
			l.warnOnce("override:"+t.fullName()+":"+member, "%s: %s::%s overrides a member outside the catalog; marked as new", t.file, t.fullName(), member)
			return false
		}
		return set
	}

	for _, c := range t.ctors {
		td.Constructors = append(td.Constructors, meta.ConstructorDoc{Params: l.params(c.params, scope)})
	}
	for _, m := range t.methods {
		mscope := append(append([]string(nil), scope...), m.typeParams...)
		md := meta.MethodDoc{
			Name:              m.name,
			TypeParams:        m.typeParams,
			Params:            l.params(m.params, mscope),
			Static:            m.static,
			Override:          override(m.name, m.override),
			ReturnAnnotations: m.returnSpecs,
		}
		if !m.returns.isVoid() {
			md.Returns = l.expr(m.returns, mscope)
		}
		td.Methods = append(td.Methods, md)
	}
	for _, p := range t.props {
		td.Properties = append(td.Properties, meta.PropertyDoc{
			Name:        p.name,
			Type:        l.expr(p.typ, scope),
			Get:         p.get,
			Set:         p.set,
			Index:       l.params(p.index, scope),
			Static:      p.static,
			Override:    override(p.name, p.override),
			Annotations: p.specs,
		})
	}
	for _, f := range t.fields {
		td.Fields = append(td.Fields, meta.FieldDoc{
			Name:        f.name,
			Type:        l.expr(f.typ, scope),
			Static:      f.static,
			Annotations: f.specs,
		})
	}
	return td
}
