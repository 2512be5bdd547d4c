package extract

import (
	"fmt"
	"regexp"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/nishanttri/code-graph/internal/graph"
	"github.com/nishanttri/code-graph/internal/lang"
	"github.com/nishanttri/code-graph/internal/parser"
)

// constantName matches module-level assignments promoted to variable nodes.
var constantName = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ExtractPython walks the Python CST and extracts imports, classes,
// functions, methods, module constants, and call edges.
func ExtractPython(filePath string, content []byte) (*Result, error) {
	tree, err := parser.Parse(lang.Python, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	defer tree.Close()

	r, fileNode := newResult(filePath, content, lang.Python)
	root := tree.RootNode()

	ex := &pyExtractor{r: r, filePath: filePath, source: content, fileID: fileNode.ID}
	ex.walkBlock(root, "", ex.fileID, nil)
	return r, nil
}

type pyExtractor struct {
	r        *Result
	filePath string
	source   []byte
	fileID   string
}

// walkBlock visits the statements of a module or class body. className is ""
// at module level. The last argument is unused: decorators are read from each
// statement's own decorated_definition wrapper.
func (ex *pyExtractor) walkBlock(block *tree_sitter.Node, className, parentID string, _ []string) {
	for i := uint(0); i < block.ChildCount(); i++ {
		stmt := block.Child(i)
		if stmt == nil {
			continue
		}
		ex.statement(stmt, className, parentID, nil)
	}
}

func (ex *pyExtractor) statement(stmt *tree_sitter.Node, className, parentID string, decorators []string) {
	switch stmt.Kind() {
	case "decorated_definition":
		decs := ex.decoratorNames(stmt)
		if def := stmt.ChildByFieldName("definition"); def != nil {
			ex.statement(def, className, parentID, decs)
		}
	case "import_statement":
		ex.importStmt(stmt)
	case "import_from_statement":
		ex.fromImportStmt(stmt)
	case "class_definition":
		ex.classDef(stmt, parentID, decorators)
	case "function_definition":
		ex.functionDef(stmt, className, parentID, decorators)
	case "expression_statement":
		if className == "" && parentID == ex.fileID {
			ex.moduleConstant(stmt)
		}
	}
}

// importStmt handles `import X [as Y]` — one import node per target.
func (ex *pyExtractor) importStmt(stmt *tree_sitter.Node) {
	line := parser.Line(stmt.StartPosition().Row)
	endLine := parser.Line(stmt.EndPosition().Row)

	for i := uint(0); i < stmt.NamedChildCount(); i++ {
		child := stmt.NamedChild(i)
		if child == nil {
			continue
		}
		var module, alias string
		switch child.Kind() {
		case "dotted_name":
			module = parser.NodeText(child, ex.source)
		case "aliased_import":
			if n := child.ChildByFieldName("name"); n != nil {
				module = parser.NodeText(n, ex.source)
			}
			if a := child.ChildByFieldName("alias"); a != nil {
				alias = parser.NodeText(a, ex.source)
			}
		default:
			continue
		}
		if module == "" {
			continue
		}
		meta := map[string]any{"type": "module"}
		if alias != "" {
			meta["alias"] = alias
		}
		imp := &graph.Node{
			ID:        graph.NodeID(ex.filePath, graph.NodeImport, module, line),
			Type:      graph.NodeImport,
			Name:      module,
			FilePath:  ex.filePath,
			LineStart: line,
			LineEnd:   endLine,
			Language:  string(lang.Python),
			Metadata:  meta,
		}
		ex.r.addNode(imp, ex.fileID)
	}
}

// fromImportStmt handles `from M import a, b as c, *` — one import node per
// statement. Named imports are deduplicated by (name, alias): the grammar can
// surface the same identifier through two tree shapes.
func (ex *pyExtractor) fromImportStmt(stmt *tree_sitter.Node) {
	module := "."
	isRelative := false
	if mn := stmt.ChildByFieldName("module_name"); mn != nil {
		text := parser.NodeText(mn, ex.source)
		if mn.Kind() == "relative_import" || strings.HasPrefix(text, ".") {
			isRelative = true
		}
		trimmed := strings.TrimLeft(text, ".")
		if trimmed != "" {
			module = trimmed
		}
	}

	var named []map[string]any
	seen := map[string]bool{}
	addNamed := func(name, alias string) {
		if name == "" {
			return
		}
		key := name + "\x00" + alias
		if seen[key] {
			return
		}
		seen[key] = true
		entry := map[string]any{"name": name}
		if alias != "" {
			entry["alias"] = alias
		}
		named = append(named, entry)
	}

	wildcard := false
	for i := uint(0); i < stmt.ChildCount(); i++ {
		child := stmt.Child(i)
		if child == nil {
			continue
		}
		mn := stmt.ChildByFieldName("module_name")
		if mn != nil && child.Id() == mn.Id() {
			continue
		}
		switch child.Kind() {
		case "dotted_name", "identifier":
			addNamed(parser.NodeText(child, ex.source), "")
		case "aliased_import":
			var name, alias string
			if n := child.ChildByFieldName("name"); n != nil {
				name = parser.NodeText(n, ex.source)
			}
			if a := child.ChildByFieldName("alias"); a != nil {
				alias = parser.NodeText(a, ex.source)
			}
			addNamed(name, alias)
		case "wildcard_import":
			wildcard = true
		}
	}

	meta := map[string]any{"type": "from", "isRelative": isRelative}
	if len(named) > 0 {
		meta["namedImports"] = named
	}
	if wildcard {
		meta["wildcard"] = true
	}

	line := parser.Line(stmt.StartPosition().Row)
	imp := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeImport, module, line),
		Type:      graph.NodeImport,
		Name:      module,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(stmt.EndPosition().Row),
		Language:  string(lang.Python),
		Metadata:  meta,
	}
	ex.r.addNode(imp, ex.fileID)
}

func (ex *pyExtractor) classDef(node *tree_sitter.Node, parentID string, decorators []string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.NodeText(nameNode, ex.source)
	line := parser.Line(node.StartPosition().Row)

	var bases []string
	if sup := node.ChildByFieldName("superclasses"); sup != nil {
		for i := uint(0); i < sup.NamedChildCount(); i++ {
			b := sup.NamedChild(i)
			if b == nil {
				continue
			}
			switch b.Kind() {
			case "identifier", "attribute":
				bases = append(bases, parser.NodeText(b, ex.source))
			case "keyword_argument":
				// metaclass=... — kept in bases (and so seen by the abstract
				// heuristic) but given no extends edge
				bases = append(bases, parser.NodeText(b, ex.source))
			}
		}
	}

	meta := map[string]any{}
	if len(bases) > 0 {
		meta["bases"] = bases
	}
	if len(decorators) > 0 {
		meta["decorators"] = decorators
	}
	meta["isAbstract"] = pyClassIsAbstract(bases, decorators)
	if doc := ex.docstring(node); doc != "" {
		meta["docstring"] = doc
	}

	classNode := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeClass, name, line),
		Type:      graph.NodeClass,
		Name:      name,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(lang.Python),
		Metadata:  meta,
	}
	ex.r.addNode(classNode, parentID)

	for _, base := range bases {
		if base == "object" || strings.Contains(base, "=") {
			continue
		}
		ex.r.Edges = append(ex.r.Edges, graph.UnresolvedEdge(
			classNode.ID, graph.RefClass, base, graph.EdgeExtends, nil))
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			stmt := body.Child(i)
			if stmt == nil {
				continue
			}
			ex.statement(stmt, name, classNode.ID, nil)
		}
	}
}

func (ex *pyExtractor) functionDef(node *tree_sitter.Node, className, parentID string, decorators []string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	baseName := parser.NodeText(nameNode, ex.source)
	line := parser.Line(node.StartPosition().Row)

	typ := graph.NodeFunction
	name := baseName
	if className != "" {
		typ = graph.NodeMethod
		name = className + "." + baseName
	}

	meta := map[string]any{
		"isAsync":       hasChildToken(node, "async"),
		"isStatic":      containsStr(decorators, "staticmethod"),
		"isClassMethod": containsStr(decorators, "classmethod"),
		"isProperty":    containsStr(decorators, "property"),
		"isAbstract":    containsStr(decorators, "abstractmethod"),
		"isDunder":      strings.HasPrefix(baseName, "__") && strings.HasSuffix(baseName, "__"),
		"isPrivate":     strings.HasPrefix(baseName, "_") && !strings.HasPrefix(baseName, "__"),
	}
	if len(decorators) > 0 {
		meta["decorators"] = decorators
	}
	if params := ex.pyParameters(node.ChildByFieldName("parameters")); len(params) > 0 {
		meta["parameters"] = params
	}
	if rt := node.ChildByFieldName("return_type"); rt != nil {
		meta["returnType"] = parser.NodeText(rt, ex.source)
	}
	if doc := ex.docstring(node); doc != "" {
		meta["docstring"] = doc
	}

	fnNode := &graph.Node{
		ID:        graph.NodeID(ex.filePath, typ, name, line),
		Type:      typ,
		Name:      name,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(lang.Python),
		Metadata:  meta,
	}
	ex.r.addNode(fnNode, parentID)

	if body := node.ChildByFieldName("body"); body != nil {
		ex.collectCalls(body, fnNode.ID)
	}
}

// moduleConstant promotes SCREAMING_CASE module assignments to variable nodes.
func (ex *pyExtractor) moduleConstant(stmt *tree_sitter.Node) {
	assign := parser.FindChildByKind(stmt, "assignment")
	if assign == nil {
		return
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Kind() != "identifier" {
		return
	}
	name := parser.NodeText(left, ex.source)
	if !constantName.MatchString(name) {
		return
	}

	meta := map[string]any{"isConstant": true}
	if t := assign.ChildByFieldName("type"); t != nil {
		meta["type"] = parser.NodeText(t, ex.source)
	}

	line := parser.Line(stmt.StartPosition().Row)
	varNode := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeVariable, name, line),
		Type:      graph.NodeVariable,
		Name:      name,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(stmt.EndPosition().Row),
		Language:  string(lang.Python),
		Metadata:  meta,
	}
	ex.r.addNode(varNode, ex.fileID)
}

// collectCalls walks a function body excluding nested def/class scopes and
// emits one calls edge per unique call name. Trivial builtins are skipped.
func (ex *pyExtractor) collectCalls(body *tree_sitter.Node, ownerID string) {
	sink := newCallSink(ex.r, ownerID, graph.RefFunction, pythonBuiltins)
	parser.Walk(body, func(n *tree_sitter.Node) bool {
		switch n.Kind() {
		case "function_definition", "class_definition":
			return false
		case "call":
			fn := n.ChildByFieldName("function")
			if fn != nil {
				if name := ex.pyCallName(fn); name != "" {
					sink.add(name, parser.Line(n.StartPosition().Row))
				}
			}
		}
		return true
	})
}

// pyCallName derives the dotted call name, or "" for non-simple receivers.
func (ex *pyExtractor) pyCallName(fn *tree_sitter.Node) string {
	switch fn.Kind() {
	case "identifier":
		return parser.NodeText(fn, ex.source)
	case "attribute":
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return ""
		}
		var objName string
		switch obj.Kind() {
		case "identifier":
			objName = parser.NodeText(obj, ex.source)
		case "attribute":
			objName = ex.pyCallName(obj)
		default:
			return ""
		}
		if objName == "" {
			return ""
		}
		return objName + "." + parser.NodeText(attr, ex.source)
	}
	return ""
}

// pyParameters extracts parameter metadata, filtering self/cls and
// prefixing splat parameters with * / **.
func (ex *pyExtractor) pyParameters(params *tree_sitter.Node) []map[string]any {
	if params == nil {
		return nil
	}
	var out []map[string]any
	add := func(name, typ, def string) {
		if name == "" || name == "self" || name == "cls" {
			return
		}
		entry := map[string]any{"name": name}
		if typ != "" {
			entry["type"] = typ
		}
		if def != "" {
			entry["default"] = def
		}
		out = append(out, entry)
	}

	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if p == nil {
			continue
		}
		switch p.Kind() {
		case "identifier":
			add(parser.NodeText(p, ex.source), "", "")
		case "typed_parameter":
			var name, typ string
			if ident := parser.FindChildByKind(p, "identifier"); ident != nil {
				name = parser.NodeText(ident, ex.source)
			}
			if t := p.ChildByFieldName("type"); t != nil {
				typ = parser.NodeText(t, ex.source)
			}
			add(name, typ, "")
		case "default_parameter", "typed_default_parameter":
			var name, typ, def string
			if n := p.ChildByFieldName("name"); n != nil {
				name = parser.NodeText(n, ex.source)
			}
			if t := p.ChildByFieldName("type"); t != nil {
				typ = parser.NodeText(t, ex.source)
			}
			if v := p.ChildByFieldName("value"); v != nil {
				def = parser.NodeText(v, ex.source)
			}
			add(name, typ, def)
		case "list_splat_pattern":
			if ident := parser.FindChildByKind(p, "identifier"); ident != nil {
				add("*"+parser.NodeText(ident, ex.source), "", "")
			}
		case "dictionary_splat_pattern":
			if ident := parser.FindChildByKind(p, "identifier"); ident != nil {
				add("**"+parser.NodeText(ident, ex.source), "", "")
			}
		}
	}
	return out
}

// decoratorNames extracts the trailing identifier of each decorator in a
// decorated_definition (attribute and call forms included).
func (ex *pyExtractor) decoratorNames(node *tree_sitter.Node) []string {
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
		if j := strings.LastIndexByte(text, '.'); j >= 0 {
			text = text[j+1:]
		}
		if text = strings.TrimSpace(text); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// docstring returns the leading string literal of a definition body.
func (ex *pyExtractor) docstring(def *tree_sitter.Node) string {
	body := def.ChildByFieldName("body")
	if body == nil {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" {
		return ""
	}
	str := parser.FindChildByKind(first, "string")
	if str == nil {
		return ""
	}
	text := parser.NodeText(str, ex.source)
	text = strings.Trim(text, "\"'")
	return strings.TrimSpace(text)
}

func pyClassIsAbstract(bases, decorators []string) bool {
	for _, b := range bases {
		if strings.Contains(b, "ABC") || strings.Contains(b, "ABCMeta") {
			return true
		}
	}
	for _, d := range decorators {
		if strings.Contains(d, "abstract") {
			return true
		}
	}
	return false
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
