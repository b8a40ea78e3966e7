// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract builds catalog documents from C# source.
//
// Declarations are read with tree-sitter. Attributes whose names match a
// registered annotation become annotation specs on the parameter, return
// value, property or field they decorate; other attributes are ignored.
// Types outside the extracted sources and the built-ins are mapped to
// object and reported as warnings, so the resulting document always loads.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/contracts/services/contract/meta"
)

var (
	// ErrFileTooLarge is returned for sources above Options.MaxFileSize.
	ErrFileTooLarge = errors.New("extract: file too large")

	// ErrInvalidContent is returned for sources that are not UTF-8.
	ErrInvalidContent = errors.New("extract: content is not valid UTF-8")
)

var tracer = otel.Tracer("contract.extract")

// =============================================================================
// Options
// =============================================================================

// Options configure an Extractor.
type Options struct {
	// MaxFileSize is the largest source file parsed. Default: 10MB.
	MaxFileSize int

	// Known reports whether an attribute name is a registered
	// annotation. Attributes it rejects are skipped. Default: accept all.
	Known func(name string) bool
}

// Option is a functional option for New.
type Option func(*Options)

// WithMaxFileSize sets the largest source file parsed.
func WithMaxFileSize(n int) Option {
	return func(o *Options) {
		o.MaxFileSize = n
	}
}

// WithKnownAnnotations limits extraction to the named annotations.
func WithKnownAnnotations(names []string) Option {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(o *Options) {
		o.Known = func(name string) bool { return set[name] }
	}
}

// Extractor reads C# declarations.
//
// Thread Safety: Safe for concurrent use; each parse uses its own
// tree-sitter parser.
type Extractor struct {
	options Options
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	options := Options{
		MaxFileSize: 10 * 1024 * 1024,
		Known:       func(string) bool { return true },
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Extractor{options: options}
}

// =============================================================================
// Parsing
// =============================================================================

// File is the declarations read from one source file.
type File struct {
	Path string
	Hash string

	// Warnings lists constructs that were skipped.
	Warnings []string

	types []*typeDecl
}

// TypeNames returns the full names of the types declared in the file.
func (f *File) TypeNames() []string {
	out := make([]string, len(f.types))
	for i, t := range f.types {
		out[i] = t.fullName()
	}
	return out
}

// Parse reads the type declarations of one C# source file.
//
// Description:
//
//	Classes, records, structs, interfaces and enums are read at any
//	namespace depth, including nested types. Syntax errors do not fail the
//	parse; declarations tree-sitter could still recognize are kept and a
//	warning is recorded.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	content - Raw source bytes.
//	filePath - Used in warnings.
//
// Errors:
//
//	ErrFileTooLarge - content exceeds MaxFileSize
//	ErrInvalidContent - content is not UTF-8
func (e *Extractor) Parse(ctx context.Context, content []byte, filePath string) (*File, error) {
	ctx, span := tracer.Start(ctx, "extract.Extractor.Parse",
		trace.WithAttributes(attribute.String("file.path", filePath), attribute.Int("file.bytes", len(content))),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse %s canceled: %w", filePath, err)
	}
	if len(content) > e.options.MaxFileSize {
		return nil, fmt.Errorf("%w: %s (%d > %d)", ErrFileTooLarge, filePath, len(content), e.options.MaxFileSize)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, filePath)
	}

	sum := sha256.Sum256(content)
	f := &File{Path: filePath, Hash: hex.EncodeToString(sum[:])}

	parser := sitter.NewParser()
	parser.SetLanguage(csharp.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse %s: %w", filePath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		f.Warnings = append(f.Warnings, fmt.Sprintf("%s: syntax errors; some declarations may be missing", filePath))
	}
	w := &walker{e: e, src: content, file: f}
	w.declarations(root, "", nil)

	span.SetAttributes(attribute.Int("extract.types", len(f.types)))
	return f, nil
}

// =============================================================================
// Declarations
// =============================================================================

// typeRef is a type as written in source.
type typeRef struct {
	name  string
	args  []typeRef
	array bool
}

func (r typeRef) isVoid() bool {
	return !r.array && (r.name == "" || r.name == "void")
}

type paramDecl struct {
	name  string
	typ   typeRef
	specs []meta.AnnotationSpec
}

type ctorDecl struct {
	params []paramDecl
}

type methodDecl struct {
	name        string
	typeParams  []string
	params      []paramDecl
	returns     typeRef
	static      bool
	override    bool
	returnSpecs []meta.AnnotationSpec
}

type propDecl struct {
	name     string
	typ      typeRef
	get, set bool
	index    []paramDecl
	static   bool
	override bool
	specs    []meta.AnnotationSpec
}

type fieldDecl struct {
	name   string
	typ    typeRef
	static bool
	specs  []meta.AnnotationSpec
}

type typeDecl struct {
	name       string
	namespace  string
	kind       string
	typeParams []string
	bases      []typeRef
	ctors      []ctorDecl
	methods    []methodDecl
	props      []propDecl
	fields     []fieldDecl
	file       string
}

func (t *typeDecl) fullName() string {
	if t.namespace == "" {
		return t.name
	}
	return t.namespace + "." + t.name
}

// =============================================================================
// Tree Walk
// =============================================================================

// C# grammar node types.
const (
	nodeNamespace           = "namespace_declaration"
	nodeFileScopedNamespace = "file_scoped_namespace_declaration"
	nodeDeclarationList     = "declaration_list"
	nodeClass               = "class_declaration"
	nodeRecord              = "record_declaration"
	nodeRecordStruct        = "record_struct_declaration"
	nodeStruct              = "struct_declaration"
	nodeInterface           = "interface_declaration"
	nodeEnum                = "enum_declaration"
	nodeMethod              = "method_declaration"
	nodeConstructor         = "constructor_declaration"
	nodeProperty            = "property_declaration"
	nodeIndexer             = "indexer_declaration"
	nodeField               = "field_declaration"
	nodeAttributeList       = "attribute_list"
	nodeAttribute           = "attribute"
	nodeAttributeTarget     = "attribute_target_specifier"
	nodeAttributeArgs       = "attribute_argument_list"
	nodeAttributeArg        = "attribute_argument"
	nodeTypeof              = "typeof_expression"
	nodeModifier            = "modifier"
	nodeParameterList       = "parameter_list"
	nodeBracketedParams     = "bracketed_parameter_list"
	nodeParameter           = "parameter"
	nodeTypeParameterList   = "type_parameter_list"
	nodeTypeParameter       = "type_parameter"
	nodeBaseList            = "base_list"
	nodeAccessorList        = "accessor_list"
	nodeAccessor            = "accessor_declaration"
	nodeArrowExpression     = "arrow_expression_clause"
	nodeVariableDeclaration = "variable_declaration"
	nodeVariableDeclarator  = "variable_declarator"
	nodeGenericName         = "generic_name"
	nodeQualifiedName       = "qualified_name"
	nodeTypeArgumentList    = "type_argument_list"
	nodeArrayType           = "array_type"
	nodeNullableType        = "nullable_type"
	nodeIdentifier          = "identifier"
)

type walker struct {
	e    *Extractor
	src  []byte
	file *File
}

func (w *walker) text(n *sitter.Node) string {
	return n.Content(w.src)
}

func (w *walker) warnf(n *sitter.Node, format string, args ...any) {
	line := int(n.StartPoint().Row) + 1
	w.file.Warnings = append(w.file.Warnings,
		fmt.Sprintf("%s:%d: %s", w.file.Path, line, fmt.Sprintf(format, args...)))
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

func childOfType(n *sitter.Node, types ...string) *sitter.Node {
	for _, c := range namedChildren(n) {
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

// typeNode returns the declared type of a member or parameter. Grammar
// versions name the method field either type or returns.
func typeNode(n *sitter.Node) *sitter.Node {
	if t := n.ChildByFieldName("type"); t != nil {
		return t
	}
	return n.ChildByFieldName("returns")
}

// nameOf returns the name field of n, or the last identifier child.
func (w *walker) nameOf(n *sitter.Node) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return w.text(name)
	}
	var last string
	for _, c := range namedChildren(n) {
		if c.Type() == nodeIdentifier {
			last = w.text(c)
		}
	}
	return last
}

func (w *walker) modifiers(n *sitter.Node) map[string]bool {
	out := make(map[string]bool)
	for _, c := range namedChildren(n) {
		if c.Type() == nodeModifier {
			out[strings.TrimSpace(w.text(c))] = true
		}
	}
	return out
}

// declarations walks a compilation unit, namespace body or type body for
// type declarations.
func (w *walker) declarations(n *sitter.Node, namespace string, outer *typeDecl) {
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case nodeNamespace:
			ns := joinName(namespace, w.nameOf(c))
			if body := c.ChildByFieldName("body"); body != nil {
				w.declarations(body, ns, nil)
			} else if body := childOfType(c, nodeDeclarationList); body != nil {
				w.declarations(body, ns, nil)
			}
		case nodeFileScopedNamespace:
			// Older grammars nest the members; newer ones make them
			// siblings, which the loop reaches with the namespace set.
			namespace = joinName(namespace, w.nameOf(c))
			w.declarations(c, namespace, nil)
		case nodeDeclarationList:
			w.declarations(c, namespace, outer)
		case nodeClass, nodeRecord, nodeRecordStruct, nodeStruct, nodeInterface, nodeEnum:
			w.typeDeclaration(c, namespace, outer)
		}
	}
}

func joinName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func (w *walker) typeDeclaration(n *sitter.Node, namespace string, outer *typeDecl) {
	t := &typeDecl{namespace: namespace, name: w.nameOf(n), file: w.file.Path}
	if outer != nil {
		// Nested types are named Outer.Inner within the outer namespace.
		t.name = outer.name + "." + t.name
	}
	switch n.Type() {
	case nodeStruct, nodeRecordStruct:
		t.kind = "struct"
	case nodeInterface:
		t.kind = "interface"
	case nodeEnum:
		t.kind = "enum"
	default:
		t.kind = "class"
		if n.Type() == nodeRecord {
			for i := 0; i < int(n.ChildCount()); i++ {
				if n.Child(i).Type() == "struct" {
					t.kind = "struct"
				}
			}
		}
	}
	if tp := childOfType(n, nodeTypeParameterList); tp != nil {
		t.typeParams = w.typeParams(tp)
	}
	if bl := childOfType(n, nodeBaseList); bl != nil {
		for _, c := range namedChildren(bl) {
			if r, ok := w.typeRef(c); ok {
				t.bases = append(t.bases, r)
			}
		}
	}
	w.file.types = append(w.file.types, t)

	body := n.ChildByFieldName("body")
	if body == nil {
		body = childOfType(n, nodeDeclarationList)
	}
	if body == nil || t.kind == "enum" {
		return
	}
	for _, m := range namedChildren(body) {
		w.member(t, m)
	}
	w.declarations(body, namespace, t)
}

func (w *walker) typeParams(n *sitter.Node) []string {
	var out []string
	for _, c := range namedChildren(n) {
		if c.Type() == nodeTypeParameter {
			out = append(out, w.nameOf(c))
		}
	}
	return out
}

func (w *walker) member(t *typeDecl, n *sitter.Node) {
	switch n.Type() {
	case nodeConstructor:
		t.ctors = append(t.ctors, ctorDecl{params: w.params(n)})

	case nodeMethod:
		mods := w.modifiers(n)
		m := methodDecl{
			name:     w.nameOf(n),
			params:   w.params(n),
			static:   mods["static"],
			override: mods["override"],
		}
		if tn := typeNode(n); tn != nil {
			m.returns, _ = w.typeRef(tn)
		}
		if tp := childOfType(n, nodeTypeParameterList); tp != nil {
			m.typeParams = w.typeParams(tp)
		}
		m.returnSpecs = w.attributes(n, "return")
		t.methods = append(t.methods, m)

	case nodeProperty, nodeIndexer:
		mods := w.modifiers(n)
		p := propDecl{
			name:     w.nameOf(n),
			static:   mods["static"],
			override: mods["override"],
			specs:    w.attributes(n, ""),
		}
		if tn := typeNode(n); tn != nil {
			p.typ, _ = w.typeRef(tn)
		}
		if n.Type() == nodeIndexer {
			p.name = "Item"
			if bp := childOfType(n, nodeBracketedParams); bp != nil {
				p.index = w.paramList(bp)
			}
		}
		p.get, p.set = w.accessors(n)
		t.props = append(t.props, p)

	case nodeField:
		mods := w.modifiers(n)
		specs := w.attributes(n, "")
		decl := childOfType(n, nodeVariableDeclaration)
		if decl == nil {
			return
		}
		var typ typeRef
		if tn := typeNode(decl); tn != nil {
			typ, _ = w.typeRef(tn)
		}
		for _, v := range namedChildren(decl) {
			if v.Type() == nodeVariableDeclarator {
				t.fields = append(t.fields, fieldDecl{name: w.nameOf(v), typ: typ, static: mods["static"], specs: specs})
			}
		}
	}
}

// accessors reports which accessors a property declares. Expression
// bodied properties are read-only.
func (w *walker) accessors(n *sitter.Node) (get, set bool) {
	list := childOfType(n, nodeAccessorList)
	if list == nil {
		return true, false
	}
	for _, a := range namedChildren(list) {
		if a.Type() != nodeAccessor {
			continue
		}
		kind := ""
		if name := a.ChildByFieldName("name"); name != nil {
			kind = w.text(name)
		} else {
			for i := 0; i < int(a.ChildCount()); i++ {
				switch c := a.Child(i); c.Type() {
				case "get", "set", "init":
					kind = c.Type()
				}
			}
		}
		switch kind {
		case "get":
			get = true
		case "set", "init":
			set = true
		}
	}
	return get, set
}

func (w *walker) params(n *sitter.Node) []paramDecl {
	list := n.ChildByFieldName("parameters")
	if list == nil {
		list = childOfType(n, nodeParameterList)
	}
	if list == nil {
		return nil
	}
	return w.paramList(list)
}

func (w *walker) paramList(list *sitter.Node) []paramDecl {
	var out []paramDecl
	for _, c := range namedChildren(list) {
		if c.Type() != nodeParameter {
			continue
		}
		p := paramDecl{name: w.nameOf(c), specs: w.attributes(c, "")}
		if tn := typeNode(c); tn != nil {
			p.typ, _ = w.typeRef(tn)
		} else {
			w.warnf(c, "parameter %s has no declared type; using object", p.name)
			p.typ = typeRef{name: "object"}
		}
		out = append(out, p)
	}
	return out
}

// typeRef reads a type node. It reports false for nodes that are not
// types.
func (w *walker) typeRef(n *sitter.Node) (typeRef, bool) {
	switch n.Type() {
	case nodeArrayType:
		elem := n.ChildByFieldName("type")
		if elem == nil {
			elem = n.NamedChild(0)
		}
		r, ok := w.typeRef(elem)
		if !ok {
			return typeRef{}, false
		}
		return typeRef{name: "", args: []typeRef{r}, array: true}, true
	case nodeNullableType:
		inner := n.ChildByFieldName("type")
		if inner == nil {
			inner = n.NamedChild(0)
		}
		return w.typeRef(inner)
	case nodeGenericName:
		r := typeRef{}
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case nodeIdentifier:
				r.name = w.text(c)
			case nodeTypeArgumentList:
				for _, a := range namedChildren(c) {
					if ar, ok := w.typeRef(a); ok {
						r.args = append(r.args, ar)
					}
				}
			}
		}
		return r, r.name != ""
	case nodeQualifiedName:
		// Keep only the last segment; namespaces are resolved by name.
		last := n.NamedChild(int(n.NamedChildCount()) - 1)
		if last == nil {
			return typeRef{}, false
		}
		if last.Type() == nodeGenericName {
			return w.typeRef(last)
		}
		return typeRef{name: w.text(last)}, true
	case "predefined_type", nodeIdentifier, "implicit_type":
		return typeRef{name: w.text(n)}, true
	case "primary_constructor_base_type":
		if t := n.NamedChild(0); t != nil {
			return w.typeRef(t)
		}
	}
	return typeRef{}, false
}

// attributes returns the annotation specs of n's attribute lists. target
// selects lists with that target specifier ("return"); an empty target
// selects lists without one.
func (w *walker) attributes(n *sitter.Node, target string) []meta.AnnotationSpec {
	var out []meta.AnnotationSpec
	for _, list := range namedChildren(n) {
		if list.Type() != nodeAttributeList {
			continue
		}
		listTarget := ""
		if ts := childOfType(list, nodeAttributeTarget); ts != nil {
			listTarget = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(w.text(ts)), ":"))
		}
		if listTarget != target {
			continue
		}
		for _, a := range namedChildren(list) {
			if a.Type() != nodeAttribute {
				continue
			}
			if spec, ok := w.attribute(a); ok {
				out = append(out, spec)
			}
		}
	}
	return out
}

func (w *walker) attribute(n *sitter.Node) (meta.AnnotationSpec, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		nameNode = n.NamedChild(0)
	}
	if nameNode == nil {
		return meta.AnnotationSpec{}, false
	}
	name := w.text(nameNode)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "Attribute")
	if !w.e.options.Known(name) {
		return meta.AnnotationSpec{}, false
	}

	spec := meta.AnnotationSpec{Name: name}
	if args := childOfType(n, nodeAttributeArgs); args != nil {
		for _, a := range namedChildren(args) {
			if a.Type() != nodeAttributeArg {
				continue
			}
			spec.Args = append(spec.Args, w.attributeArg(a))
		}
	}
	return spec, true
}

// attributeArg renders typeof(T) as the Go type name the annotation
// registry understands; other arguments are passed through as written.
func (w *walker) attributeArg(n *sitter.Node) string {
	if tof := childOfType(n, nodeTypeof); tof != nil {
		tn := tof.ChildByFieldName("type")
		if tn == nil {
			tn = tof.NamedChild(0)
		}
		if tn != nil {
			if r, ok := w.typeRef(tn); ok {
				if g, ok := goTypeNames[r.name]; ok && len(r.args) == 0 && !r.array {
					return g
				}
				return r.name
			}
		}
	}
	return strings.Trim(strings.TrimSpace(w.text(n)), `"`)
}

// goTypeNames maps C# type names in typeof arguments to annotation
// registry names.
var goTypeNames = map[string]string{
	"string":    "string",
	"String":    "string",
	"bool":      "bool",
	"Boolean":   "bool",
	"int":       "int",
	"Int32":     "int",
	"long":      "int64",
	"Int64":     "int64",
	"double":    "float64",
	"Double":    "float64",
	"float":     "float64",
	"Single":    "float64",
	"object":    "any",
	"Object":    "any",
	"Type":      "reflect.Type",
	"Exception": "error",
}
