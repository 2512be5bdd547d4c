package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/nishanttri/code-graph/internal/graph"
	"github.com/nishanttri/code-graph/internal/lang"
	"github.com/nishanttri/code-graph/internal/parser"
)

// ExtractTypeScript handles TypeScript and JavaScript files. Both share the
// same extraction; only the recorded language differs (.js/.jsx/.mjs/.cjs
// are javascript, everything else typescript).
func ExtractTypeScript(filePath string, content []byte) (*Result, error) {
	language := lang.TypeScript
	switch filepath.Ext(filePath) {
	case ".js", ".jsx", ".mjs", ".cjs":
		language = lang.JavaScript
	}

	tree, err := parser.Parse(language, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	defer tree.Close()

	r, fileNode := newResult(filePath, content, language)
	root := tree.RootNode()

	ex := &tsExtractor{r: r, filePath: filePath, source: content, language: language, fileID: fileNode.ID}
	ex.walkTopLevel(root)
	ex.applyLocalExports()
	return r, nil
}

type tsExtractor struct {
	r        *Result
	filePath string
	source   []byte
	language lang.Language
	fileID   string

	// localExports collects names from `export { a, b };` and
	// `export default x;` statements, applied once the whole file is walked
	// (the export may precede the declaration).
	localExports []string
}

// walkTopLevel visits program-level statements, descending into
// export_statement wrappers but not into declaration bodies.
func (ex *tsExtractor) walkTopLevel(root *tree_sitter.Node) {
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		ex.topLevelStatement(child, false)
	}
}

func (ex *tsExtractor) topLevelStatement(node *tree_sitter.Node, exported bool) {
	switch node.Kind() {
	case "import_statement":
		ex.importDecl(node)
	case "export_statement":
		if node.ChildByFieldName("source") != nil {
			ex.reExport(node)
			return
		}
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			ex.topLevelStatement(decl, true)
			return
		}
		// export { a, b } / export default x without source: the named
		// declarations live elsewhere in the file.
		ex.localExport(node)
	case "class_declaration", "abstract_class_declaration":
		ex.classDecl(node, exported)
	case "interface_declaration":
		ex.interfaceDecl(node, exported)
	case "function_declaration", "generator_function_declaration":
		ex.functionDecl(node, exported)
	case "lexical_declaration", "variable_declaration":
		ex.variableDecl(node, exported)
	}
}

// importDecl emits one import node per import statement.
func (ex *tsExtractor) importDecl(node *tree_sitter.Node) {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return
	}
	specifier := stripQuotes(parser.NodeText(sourceNode, ex.source))

	meta := map[string]any{"moduleSpecifier": specifier}
	var named []map[string]any
	if clause := parser.FindChildByKind(node, "import_clause"); clause != nil {
		for i := uint(0); i < clause.ChildCount(); i++ {
			c := clause.Child(i)
			if c == nil {
				continue
			}
			switch c.Kind() {
			case "identifier":
				meta["defaultImport"] = parser.NodeText(c, ex.source)
			case "namespace_import":
				if ident := parser.FindChildByKind(c, "identifier"); ident != nil {
					meta["namespaceImport"] = parser.NodeText(ident, ex.source)
				}
			case "named_imports":
				for j := uint(0); j < c.ChildCount(); j++ {
					spec := c.Child(j)
					if spec == nil || spec.Kind() != "import_specifier" {
						continue
					}
					entry := map[string]any{}
					if n := spec.ChildByFieldName("name"); n != nil {
						entry["name"] = parser.NodeText(n, ex.source)
					}
					if a := spec.ChildByFieldName("alias"); a != nil {
						entry["alias"] = parser.NodeText(a, ex.source)
					}
					named = append(named, entry)
				}
			}
		}
	}
	if len(named) > 0 {
		meta["namedImports"] = named
	}

	line := parser.Line(node.StartPosition().Row)
	imp := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeImport, specifier, line),
		Type:      graph.NodeImport,
		Name:      specifier,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(ex.language),
		Metadata:  meta,
	}
	ex.r.addNode(imp, ex.fileID)
}

// reExport emits an export node for `export ... from "m"` statements.
func (ex *tsExtractor) reExport(node *tree_sitter.Node) {
	sourceNode := node.ChildByFieldName("source")
	specifier := stripQuotes(parser.NodeText(sourceNode, ex.source))

	meta := map[string]any{"moduleSpecifier": specifier}
	var named []map[string]any
	if clause := parser.FindChildByKind(node, "export_clause"); clause != nil {
		for i := uint(0); i < clause.ChildCount(); i++ {
			spec := clause.Child(i)
			if spec == nil || spec.Kind() != "export_specifier" {
				continue
			}
			entry := map[string]any{}
			if n := spec.ChildByFieldName("name"); n != nil {
				entry["name"] = parser.NodeText(n, ex.source)
			}
			if a := spec.ChildByFieldName("alias"); a != nil {
				entry["alias"] = parser.NodeText(a, ex.source)
			}
			named = append(named, entry)
		}
	}
	if len(named) > 0 {
		meta["namedExports"] = named
	}

	line := parser.Line(node.StartPosition().Row)
	exp := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeExport, specifier, line),
		Type:      graph.NodeExport,
		Name:      specifier,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(ex.language),
		Metadata:  meta,
	}
	ex.r.addNode(exp, ex.fileID)
}

// localExport records the local names of an `export { a, b as c };` clause
// or an `export default x;` statement.
func (ex *tsExtractor) localExport(node *tree_sitter.Node) {
	if clause := parser.FindChildByKind(node, "export_clause"); clause != nil {
		for i := uint(0); i < clause.ChildCount(); i++ {
			spec := clause.Child(i)
			if spec == nil || spec.Kind() != "export_specifier" {
				continue
			}
			// The name field is the local binding; any alias is only the
			// exported-as name.
			if n := spec.ChildByFieldName("name"); n != nil {
				ex.localExports = append(ex.localExports, parser.NodeText(n, ex.source))
			}
		}
		return
	}
	if v := node.ChildByFieldName("value"); v != nil && v.Kind() == "identifier" {
		ex.localExports = append(ex.localExports, parser.NodeText(v, ex.source))
	}
}

// applyLocalExports flips isExported on the declarations named by deferred
// export statements.
func (ex *tsExtractor) applyLocalExports() {
	if len(ex.localExports) == 0 {
		return
	}
	exported := make(map[string]bool, len(ex.localExports))
	for _, name := range ex.localExports {
		exported[name] = true
	}
	for _, n := range ex.r.Nodes {
		if !exported[n.Name] {
			continue
		}
		switch n.Type {
		case graph.NodeFile, graph.NodeImport, graph.NodeExport:
			continue
		}
		if n.Metadata == nil {
			n.Metadata = map[string]any{}
		}
		n.Metadata["isExported"] = true
	}
}

// classDecl emits the class node, heritage edges, and member nodes.
func (ex *tsExtractor) classDecl(node *tree_sitter.Node, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.NodeText(nameNode, ex.source)
	line := parser.Line(node.StartPosition().Row)

	meta := map[string]any{
		"isExported": exported,
		"isAbstract": node.Kind() == "abstract_class_declaration",
	}
	if decorators := ex.decorators(node); len(decorators) > 0 {
		meta["decorators"] = decorators
	}

	classNode := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeClass, name, line),
		Type:      graph.NodeClass,
		Name:      name,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(ex.language),
		Metadata:  meta,
	}
	ex.r.addNode(classNode, ex.fileID)

	ex.heritage(node, classNode.ID)

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := uint(0); i < body.ChildCount(); i++ {
		member := body.Child(i)
		if member == nil {
			continue
		}
		switch member.Kind() {
		case "method_definition":
			ex.method(member, name, classNode.ID)
		case "public_field_definition", "field_definition":
			ex.classProperty(member, name, classNode.ID)
		}
	}
}

// heritage emits extends/implements edges. The TS grammar nests
// extends_clause/implements_clause under class_heritage; the JS grammar puts
// the extends expression directly in class_heritage.
func (ex *tsExtractor) heritage(node *tree_sitter.Node, classID string) {
	h := parser.FindChildByKind(node, "class_heritage")
	if h == nil {
		return
	}
	sawClause := false
	for i := uint(0); i < h.ChildCount(); i++ {
		c := h.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "extends_clause":
			sawClause = true
			for j := uint(0); j < c.ChildCount(); j++ {
				t := c.Child(j)
				if t == nil || !t.IsNamed() || t.Kind() == "type_arguments" {
					continue
				}
				base := stripGenerics(parser.NodeText(t, ex.source))
				if base != "" {
					ex.r.Edges = append(ex.r.Edges, graph.UnresolvedEdge(
						classID, graph.RefClass, base, graph.EdgeExtends, nil))
				}
			}
		case "implements_clause":
			sawClause = true
			for j := uint(0); j < c.ChildCount(); j++ {
				t := c.Child(j)
				if t == nil || !t.IsNamed() {
					continue
				}
				impl := stripGenerics(parser.NodeText(t, ex.source))
				if impl != "" {
					ex.r.Edges = append(ex.r.Edges, graph.UnresolvedEdge(
						classID, graph.RefInterface, impl, graph.EdgeImplements, nil))
				}
			}
		}
	}
	if sawClause {
		return
	}
	// JS form: class_heritage is "extends" followed by the expression.
	for i := uint(0); i < h.ChildCount(); i++ {
		c := h.Child(i)
		if c == nil || !c.IsNamed() {
			continue
		}
		base := stripGenerics(parser.NodeText(c, ex.source))
		if base != "" {
			ex.r.Edges = append(ex.r.Edges, graph.UnresolvedEdge(
				classID, graph.RefClass, base, graph.EdgeExtends, nil))
		}
	}
}

func (ex *tsExtractor) method(node *tree_sitter.Node, className, classID string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	methodName := parser.NodeText(nameNode, ex.source)
	qualified := className + "." + methodName
	line := parser.Line(node.StartPosition().Row)

	meta := map[string]any{
		"isStatic":   hasChildToken(node, "static"),
		"isAsync":    hasChildToken(node, "async"),
		"visibility": ex.visibility(node),
	}
	if params := ex.parameters(node.ChildByFieldName("parameters")); len(params) > 0 {
		meta["parameters"] = params
	}
	if rt := ex.returnType(node); rt != "" {
		meta["returnType"] = rt
	}
	if decorators := ex.decorators(node); len(decorators) > 0 {
		meta["decorators"] = decorators
	}

	methodNode := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeMethod, qualified, line),
		Type:      graph.NodeMethod,
		Name:      qualified,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(ex.language),
		Metadata:  meta,
	}
	ex.r.addNode(methodNode, classID)

	if body := node.ChildByFieldName("body"); body != nil {
		ex.collectCalls(body, methodNode.ID)
	}
}

func (ex *tsExtractor) classProperty(node *tree_sitter.Node, className, classID string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		nameNode = node.ChildByFieldName("property")
	}
	if nameNode == nil {
		return
	}
	propName := parser.NodeText(nameNode, ex.source)
	qualified := className + "." + propName
	line := parser.Line(node.StartPosition().Row)

	meta := map[string]any{
		"isStatic":   hasChildToken(node, "static"),
		"visibility": ex.visibility(node),
	}
	if t := node.ChildByFieldName("type"); t != nil {
		meta["type"] = trimTypeAnnotation(parser.NodeText(t, ex.source))
	}
	if decorators := ex.decorators(node); len(decorators) > 0 {
		meta["decorators"] = decorators
	}

	propNode := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeVariable, qualified, line),
		Type:      graph.NodeVariable,
		Name:      qualified,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(ex.language),
		Metadata:  meta,
	}
	ex.r.addNode(propNode, classID)
}

func (ex *tsExtractor) interfaceDecl(node *tree_sitter.Node, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.NodeText(nameNode, ex.source)
	line := parser.Line(node.StartPosition().Row)

	meta := map[string]any{"isExported": exported}
	var props, methods []string
	if body := node.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			m := body.Child(i)
			if m == nil {
				continue
			}
			switch m.Kind() {
			case "property_signature":
				if n := m.ChildByFieldName("name"); n != nil {
					props = append(props, parser.NodeText(n, ex.source))
				}
			case "method_signature":
				if n := m.ChildByFieldName("name"); n != nil {
					methods = append(methods, parser.NodeText(n, ex.source))
				}
			}
		}
	}
	if len(props) > 0 {
		meta["properties"] = props
	}
	if len(methods) > 0 {
		meta["methods"] = methods
	}

	ifaceNode := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeInterface, name, line),
		Type:      graph.NodeInterface,
		Name:      name,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(ex.language),
		Metadata:  meta,
	}
	ex.r.addNode(ifaceNode, ex.fileID)

	// Interface heritage: extends_type_clause in the TS grammar.
	for _, kind := range []string{"extends_type_clause", "extends_clause"} {
		clause := parser.FindChildByKind(node, kind)
		if clause == nil {
			continue
		}
		for j := uint(0); j < clause.ChildCount(); j++ {
			t := clause.Child(j)
			if t == nil || !t.IsNamed() || t.Kind() == "type_arguments" {
				continue
			}
			base := stripGenerics(parser.NodeText(t, ex.source))
			if base != "" {
				ex.r.Edges = append(ex.r.Edges, graph.UnresolvedEdge(
					ifaceNode.ID, graph.RefInterface, base, graph.EdgeExtends, nil))
			}
		}
	}
}

func (ex *tsExtractor) functionDecl(node *tree_sitter.Node, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.NodeText(nameNode, ex.source)
	line := parser.Line(node.StartPosition().Row)

	meta := map[string]any{
		"isExported": exported,
		"isAsync":    hasChildToken(node, "async"),
	}
	if params := ex.parameters(node.ChildByFieldName("parameters")); len(params) > 0 {
		meta["parameters"] = params
	}
	if rt := ex.returnType(node); rt != "" {
		meta["returnType"] = rt
	}

	fnNode := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeFunction, name, line),
		Type:      graph.NodeFunction,
		Name:      name,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(ex.language),
		Metadata:  meta,
	}
	ex.r.addNode(fnNode, ex.fileID)

	if body := node.ChildByFieldName("body"); body != nil {
		ex.collectCalls(body, fnNode.ID)
	}
}

// variableDecl promotes `const f = () => {}` and `const f = function () {}`
// to function nodes.
func (ex *tsExtractor) variableDecl(node *tree_sitter.Node, exported bool) {
	for i := uint(0); i < node.ChildCount(); i++ {
		decl := node.Child(i)
		if decl == nil || decl.Kind() != "variable_declarator" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		value := decl.ChildByFieldName("value")
		if nameNode == nil || value == nil {
			continue
		}
		switch value.Kind() {
		case "arrow_function", "function_expression", "function":
		default:
			continue
		}

		name := parser.NodeText(nameNode, ex.source)
		line := parser.Line(decl.StartPosition().Row)
		meta := map[string]any{
			"isExported":      exported,
			"isAsync":         hasChildToken(value, "async"),
			"isArrowFunction": value.Kind() == "arrow_function",
		}
		if params := ex.parameters(value.ChildByFieldName("parameters")); len(params) > 0 {
			meta["parameters"] = params
		}

		fnNode := &graph.Node{
			ID:        graph.NodeID(ex.filePath, graph.NodeFunction, name, line),
			Type:      graph.NodeFunction,
			Name:      name,
			FilePath:  ex.filePath,
			LineStart: line,
			LineEnd:   parser.Line(decl.EndPosition().Row),
			Language:  string(ex.language),
			Metadata:  meta,
		}
		ex.r.addNode(fnNode, ex.fileID)

		if body := value.ChildByFieldName("body"); body != nil {
			ex.collectCalls(body, fnNode.ID)
		}
	}
}

// collectCalls walks a function body and emits one calls edge per unique
// call name. The name is the bare identifier or the full dotted text of a
// property access, exactly as written at the call site.
func (ex *tsExtractor) collectCalls(body *tree_sitter.Node, ownerID string) {
	sink := newCallSink(ex.r, ownerID, graph.RefFunction, nil)
	parser.Walk(body, func(n *tree_sitter.Node) bool {
		if n.Kind() != "call_expression" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		if name := ex.callName(fn); name != "" {
			sink.add(name, parser.Line(n.StartPosition().Row))
		}
		return true
	})
}

// callName derives the dotted call name, or "" for receivers that are not a
// simple identifier chain (e.g. calls on call results).
func (ex *tsExtractor) callName(fn *tree_sitter.Node) string {
	switch fn.Kind() {
	case "identifier":
		return parser.NodeText(fn, ex.source)
	case "member_expression":
		obj := fn.ChildByFieldName("object")
		prop := fn.ChildByFieldName("property")
		if obj == nil || prop == nil {
			return ""
		}
		var objName string
		switch obj.Kind() {
		case "identifier", "this", "super":
			objName = parser.NodeText(obj, ex.source)
		case "member_expression":
			objName = ex.callName(obj)
		default:
			return ""
		}
		if objName == "" {
			return ""
		}
		return objName + "." + parser.NodeText(prop, ex.source)
	}
	return ""
}

func (ex *tsExtractor) decorators(node *tree_sitter.Node) []string {
	var out []string
	for i := uint(0); i < node.ChildCount(); i++ {
		c := node.Child(i)
		if c == nil || c.Kind() != "decorator" {
			continue
		}
		text := strings.TrimPrefix(parser.NodeText(c, ex.source), "@")
		if j := strings.IndexByte(text, '('); j >= 0 {
			text = text[:j]
		}
		out = append(out, text)
	}
	return out
}

func (ex *tsExtractor) visibility(node *tree_sitter.Node) string {
	if m := parser.FindChildByKind(node, "accessibility_modifier"); m != nil {
		return parser.NodeText(m, ex.source)
	}
	return "public"
}

func (ex *tsExtractor) parameters(params *tree_sitter.Node) []map[string]any {
	if params == nil {
		return nil
	}
	var out []map[string]any
	for i := uint(0); i < params.ChildCount(); i++ {
		p := params.Child(i)
		if p == nil {
			continue
		}
		switch p.Kind() {
		case "required_parameter", "optional_parameter":
			entry := map[string]any{}
			if pat := p.ChildByFieldName("pattern"); pat != nil {
				entry["name"] = parser.NodeText(pat, ex.source)
			}
			if t := p.ChildByFieldName("type"); t != nil {
				entry["type"] = trimTypeAnnotation(parser.NodeText(t, ex.source))
			}
			if len(entry) > 0 {
				out = append(out, entry)
			}
		case "identifier":
			// Plain JS parameter
			out = append(out, map[string]any{"name": parser.NodeText(p, ex.source)})
		}
	}
	return out
}

func (ex *tsExtractor) returnType(node *tree_sitter.Node) string {
	if rt := node.ChildByFieldName("return_type"); rt != nil {
		return trimTypeAnnotation(parser.NodeText(rt, ex.source))
	}
	return ""
}

// hasChildToken reports whether the node has a direct anonymous child with
// the given token text (e.g. "static", "async").
func hasChildToken(node *tree_sitter.Node, token string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		c := node.Child(i)
		if c != nil && c.Kind() == token {
			return true
		}
	}
	return false
}

func trimTypeAnnotation(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, ":")
	return strings.TrimSpace(s)
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
