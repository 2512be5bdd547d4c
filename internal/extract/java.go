package extract

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/nishanttri/code-graph/internal/graph"
	"github.com/nishanttri/code-graph/internal/lang"
	"github.com/nishanttri/code-graph/internal/parser"
)

// Spring stereotype annotations upgrade the class node type.
var stereotypes = map[string]graph.NodeType{
	"RestController": graph.NodeController,
	"Controller":     graph.NodeController,
	"Service":        graph.NodeService,
	"Repository":     graph.NodeRepository,
	"Component":      graph.NodeComponent,
}

// HTTP mapping annotations upgrade a method node to an endpoint.
var mappingMethods = map[string]string{
	"GetMapping":     "GET",
	"PostMapping":    "POST",
	"PutMapping":     "PUT",
	"DeleteMapping":  "DELETE",
	"PatchMapping":   "PATCH",
	"RequestMapping": "GET", // default unless a method attribute is present
}

// javaAnnotation is one parsed annotation with its extracted values.
type javaAnnotation struct {
	Name  string
	Value string            // single positional value, quotes stripped
	Attrs map[string]string // key = value attributes
}

// ExtractJava extracts packages, imports, classes with Spring stereotypes,
// endpoints, fields, injection edges, and call edges from a Java file.
func ExtractJava(filePath string, content []byte) (*Result, error) {
	tree, err := parser.Parse(lang.Java, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	defer tree.Close()

	r, fileNode := newResult(filePath, content, lang.Java)
	root := tree.RootNode()

	ex := &javaExtractor{r: r, filePath: filePath, source: content, fileID: fileNode.ID}
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "package_declaration":
			ex.packageDecl(child)
		case "import_declaration":
			ex.importDecl(child)
		case "class_declaration":
			ex.classDecl(child, ex.fileID)
		case "interface_declaration":
			ex.interfaceDecl(child, ex.fileID)
		case "enum_declaration":
			ex.enumDecl(child, ex.fileID)
		}
	}
	return r, nil
}

type javaExtractor struct {
	r        *Result
	filePath string
	source   []byte
	fileID   string
}

func (ex *javaExtractor) packageDecl(node *tree_sitter.Node) {
	var name string
	for i := uint(0); i < node.NamedChildCount(); i++ {
		c := node.NamedChild(i)
		if c != nil && (c.Kind() == "scoped_identifier" || c.Kind() == "identifier") {
			name = parser.NodeText(c, ex.source)
			break
		}
	}
	if name == "" {
		return
	}
	line := parser.Line(node.StartPosition().Row)
	mod := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeModule, name, line),
		Type:      graph.NodeModule,
		Name:      name,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(lang.Java),
		Metadata:  map[string]any{"package": name},
	}
	ex.r.addNode(mod, ex.fileID)
}

func (ex *javaExtractor) importDecl(node *tree_sitter.Node) {
	var path string
	for i := uint(0); i < node.NamedChildCount(); i++ {
		c := node.NamedChild(i)
		if c != nil && (c.Kind() == "scoped_identifier" || c.Kind() == "identifier") {
			path = parser.NodeText(c, ex.source)
			break
		}
	}
	if path == "" {
		return
	}
	meta := map[string]any{
		"isStatic":   hasChildToken(node, "static"),
		"isWildcard": parser.FindChildByKind(node, "asterisk") != nil,
	}
	line := parser.Line(node.StartPosition().Row)
	imp := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeImport, path, line),
		Type:      graph.NodeImport,
		Name:      path,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(lang.Java),
		Metadata:  meta,
	}
	ex.r.addNode(imp, ex.fileID)
}

func (ex *javaExtractor) classDecl(node *tree_sitter.Node, parentID string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.NodeText(nameNode, ex.source)
	line := parser.Line(node.StartPosition().Row)

	annotations, modifiers := ex.modifiers(node)

	typ := graph.NodeClass
	classMapping := ""
	for _, a := range annotations {
		if st, ok := stereotypes[a.Name]; ok && typ == graph.NodeClass {
			typ = st
		}
		if a.Name == "RequestMapping" {
			classMapping = annotationPath(a)
		}
	}

	meta := map[string]any{}
	if len(annotations) > 0 {
		meta["annotations"] = annotationMeta(annotations)
	}
	if len(modifiers) > 0 {
		meta["modifiers"] = modifiers
	}
	meta["isAbstract"] = containsStr(modifiers, "abstract")
	meta["isFinal"] = containsStr(modifiers, "final")
	if classMapping != "" {
		meta["requestMapping"] = classMapping
	}

	classNode := &graph.Node{
		ID:        graph.NodeID(ex.filePath, typ, name, line),
		Type:      typ,
		Name:      name,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(lang.Java),
		Metadata:  meta,
	}
	ex.r.addNode(classNode, parentID)

	if sup := node.ChildByFieldName("superclass"); sup != nil {
		for i := uint(0); i < sup.NamedChildCount(); i++ {
			t := sup.NamedChild(i)
			if t == nil {
				continue
			}
			base := stripGenerics(parser.NodeText(t, ex.source))
			if base != "" {
				ex.r.Edges = append(ex.r.Edges, graph.UnresolvedEdge(
					classNode.ID, graph.RefClass, base, graph.EdgeExtends, nil))
			}
		}
	}
	if ifaces := node.ChildByFieldName("interfaces"); ifaces != nil {
		ex.interfaceList(ifaces, classNode.ID, graph.EdgeImplements)
	}

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
		case "method_declaration":
			ex.methodDecl(member, name, classNode.ID, classMapping)
		case "constructor_declaration":
			ex.constructorDecl(member, name, classNode.ID)
		case "field_declaration":
			ex.fieldDecl(member, name, classNode.ID)
		case "class_declaration":
			ex.classDecl(member, classNode.ID)
		case "interface_declaration":
			ex.interfaceDecl(member, classNode.ID)
		}
	}
}

// interfaceList walks a super_interfaces/extends_interfaces node and emits
// one edge per listed type.
func (ex *javaExtractor) interfaceList(node *tree_sitter.Node, sourceID string, edgeType graph.EdgeType) {
	list := parser.FindChildByKind(node, "type_list")
	if list == nil {
		list = node
	}
	for i := uint(0); i < list.NamedChildCount(); i++ {
		t := list.NamedChild(i)
		if t == nil {
			continue
		}
		iface := stripGenerics(parser.NodeText(t, ex.source))
		if iface == "" {
			continue
		}
		ex.r.Edges = append(ex.r.Edges, graph.UnresolvedEdge(
			sourceID, graph.RefInterface, iface, edgeType, nil))
	}
}

func (ex *javaExtractor) interfaceDecl(node *tree_sitter.Node, parentID string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.NodeText(nameNode, ex.source)
	line := parser.Line(node.StartPosition().Row)

	annotations, modifiers := ex.modifiers(node)
	meta := map[string]any{}
	if len(annotations) > 0 {
		meta["annotations"] = annotationMeta(annotations)
	}
	if len(modifiers) > 0 {
		meta["modifiers"] = modifiers
	}

	ifaceNode := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeInterface, name, line),
		Type:      graph.NodeInterface,
		Name:      name,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(lang.Java),
		Metadata:  meta,
	}
	ex.r.addNode(ifaceNode, parentID)

	if ext := parser.FindChildByKind(node, "extends_interfaces"); ext != nil {
		ex.interfaceList(ext, ifaceNode.ID, graph.EdgeExtends)
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			member := body.Child(i)
			if member != nil && member.Kind() == "method_declaration" {
				ex.methodDecl(member, name, ifaceNode.ID, "")
			}
		}
	}
}

func (ex *javaExtractor) enumDecl(node *tree_sitter.Node, parentID string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.NodeText(nameNode, ex.source)
	line := parser.Line(node.StartPosition().Row)

	annotations, modifiers := ex.modifiers(node)
	meta := map[string]any{"isEnum": true}
	if len(annotations) > 0 {
		meta["annotations"] = annotationMeta(annotations)
	}
	if len(modifiers) > 0 {
		meta["modifiers"] = modifiers
	}

	enumNode := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeClass, name, line),
		Type:      graph.NodeClass,
		Name:      name,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(lang.Java),
		Metadata:  meta,
	}
	ex.r.addNode(enumNode, parentID)
}

func (ex *javaExtractor) methodDecl(node *tree_sitter.Node, className, classID, classMapping string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	methodName := parser.NodeText(nameNode, ex.source)
	qualified := className + "." + methodName
	line := parser.Line(node.StartPosition().Row)

	annotations, modifiers := ex.modifiers(node)

	typ := graph.NodeMethod
	meta := map[string]any{}
	if len(annotations) > 0 {
		meta["annotations"] = annotationMeta(annotations)
	}
	if len(modifiers) > 0 {
		meta["modifiers"] = modifiers
	}
	meta["isStatic"] = containsStr(modifiers, "static")
	if rt := node.ChildByFieldName("type"); rt != nil {
		meta["returnType"] = parser.NodeText(rt, ex.source)
	}

	for _, a := range annotations {
		httpMethod, ok := mappingMethods[a.Name]
		if !ok {
			continue
		}
		typ = graph.NodeEndpoint
		if a.Name == "RequestMapping" {
			if m, ok := a.Attrs["method"]; ok {
				if i := strings.LastIndexByte(m, '.'); i >= 0 {
					m = m[i+1:]
				}
				httpMethod = m
			}
		}
		path := annotationPath(a)
		meta["httpMethod"] = httpMethod
		meta["path"] = path
		meta["fullPath"] = joinRequestPath(classMapping, path)
		break
	}

	methodNode := &graph.Node{
		ID:        graph.NodeID(ex.filePath, typ, qualified, line),
		Type:      typ,
		Name:      qualified,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(lang.Java),
		Metadata:  meta,
	}
	ex.r.addNode(methodNode, classID)

	ex.parameterInjections(node, methodNode.ID, graph.EdgeAutowires, true)

	if body := node.ChildByFieldName("body"); body != nil {
		ex.collectCalls(body, methodNode.ID)
	}
}

func (ex *javaExtractor) constructorDecl(node *tree_sitter.Node, className, classID string) {
	qualified := className + ".<init>"
	line := parser.Line(node.StartPosition().Row)

	_, modifiers := ex.modifiers(node)
	meta := map[string]any{"isConstructor": true}
	if len(modifiers) > 0 {
		meta["modifiers"] = modifiers
	}

	ctorNode := &graph.Node{
		ID:        graph.NodeID(ex.filePath, graph.NodeMethod, qualified, line),
		Type:      graph.NodeMethod,
		Name:      qualified,
		FilePath:  ex.filePath,
		LineStart: line,
		LineEnd:   parser.Line(node.EndPosition().Row),
		Language:  string(lang.Java),
		Metadata:  meta,
	}
	ex.r.addNode(ctorNode, classID)

	// Constructor injection: every parameter type is an injection target.
	ex.parameterInjections(node, ctorNode.ID, graph.EdgeInjects, false)

	if body := node.ChildByFieldName("body"); body != nil {
		ex.collectCalls(body, ctorNode.ID)
	}
}

// parameterInjections emits injection edges for method/constructor
// parameters. When annotatedOnly is set, only parameters carrying
// @Autowired/@Inject produce edges (method injection); constructors inject
// every parameter.
func (ex *javaExtractor) parameterInjections(node *tree_sitter.Node, sourceID string, edgeType graph.EdgeType, annotatedOnly bool) {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if p == nil || (p.Kind() != "formal_parameter" && p.Kind() != "spread_parameter") {
			continue
		}
		if annotatedOnly {
			anns, _ := ex.modifiers(p)
			injected := false
			for _, a := range anns {
				if a.Name == "Autowired" || a.Name == "Inject" {
					injected = true
					break
				}
			}
			if !injected {
				continue
			}
		}
		t := p.ChildByFieldName("type")
		if t == nil {
			continue
		}
		paramType := stripGenerics(parser.NodeText(t, ex.source))
		if paramType == "" || (annotatedOnly && isJavaPrimitive(paramType)) {
			continue
		}
		ex.r.Edges = append(ex.r.Edges, graph.UnresolvedEdge(
			sourceID, graph.RefClass, paramType, edgeType, nil))
	}
}

func (ex *javaExtractor) fieldDecl(node *tree_sitter.Node, className, classID string) {
	annotations, modifiers := ex.modifiers(node)

	t := node.ChildByFieldName("type")
	fieldType := ""
	if t != nil {
		fieldType = parser.NodeText(t, ex.source)
	}

	injected := false
	valueProperty := ""
	for _, a := range annotations {
		switch a.Name {
		case "Autowired", "Inject", "Resource":
			injected = true
		case "Value":
			valueProperty = a.Value
		}
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		decl := node.NamedChild(i)
		if decl == nil || decl.Kind() != "variable_declarator" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		fieldName := parser.NodeText(nameNode, ex.source)
		qualified := className + "." + fieldName
		line := parser.Line(decl.StartPosition().Row)

		meta := map[string]any{
			"isStatic": containsStr(modifiers, "static"),
			"isFinal":  containsStr(modifiers, "final"),
		}
		if len(annotations) > 0 {
			meta["annotations"] = annotationMeta(annotations)
		}
		if len(modifiers) > 0 {
			meta["modifiers"] = modifiers
		}
		if fieldType != "" {
			meta["type"] = fieldType
		}
		if valueProperty != "" {
			meta["valueProperty"] = valueProperty
		}

		fieldNode := &graph.Node{
			ID:        graph.NodeID(ex.filePath, graph.NodeVariable, qualified, line),
			Type:      graph.NodeVariable,
			Name:      qualified,
			FilePath:  ex.filePath,
			LineStart: line,
			LineEnd:   parser.Line(decl.EndPosition().Row),
			Language:  string(lang.Java),
			Metadata:  meta,
		}
		ex.r.addNode(fieldNode, classID)

		if injected && fieldType != "" {
			target := stripGenerics(fieldType)
			if target != "" {
				ex.r.Edges = append(ex.r.Edges, graph.UnresolvedEdge(
					fieldNode.ID, graph.RefClass, target, graph.EdgeAutowires, nil))
			}
		}
	}
}

// collectCalls walks a method body and emits one calls edge per unique
// dotted invocation name.
func (ex *javaExtractor) collectCalls(body *tree_sitter.Node, ownerID string) {
	sink := newCallSink(ex.r, ownerID, graph.RefMethod, nil)
	parser.Walk(body, func(n *tree_sitter.Node) bool {
		if n.Kind() != "method_invocation" {
			return true
		}
		name := ex.invocationName(n)
		if name != "" {
			sink.add(name, parser.Line(n.StartPosition().Row))
		}
		return true
	})
}

// invocationName builds the dotted name of a method invocation:
// `repo.findAll()` → "repo.findAll", `save()` → "save".
func (ex *javaExtractor) invocationName(n *tree_sitter.Node) string {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name := parser.NodeText(nameNode, ex.source)
	obj := n.ChildByFieldName("object")
	if obj == nil {
		return name
	}
	switch obj.Kind() {
	case "identifier", "this", "super", "field_access":
		return parser.NodeText(obj, ex.source) + "." + name
	case "method_invocation":
		// Chained call: the receiver is a call result, not a name, so only
		// the method name is kept.
		return name
	}
	return name
}

// modifiers parses a declaration's modifiers child into its annotations and
// plain modifier keywords.
func (ex *javaExtractor) modifiers(node *tree_sitter.Node) ([]javaAnnotation, []string) {
	mods := parser.FindChildByKind(node, "modifiers")
	if mods == nil {
		return nil, nil
	}
	var annotations []javaAnnotation
	var keywords []string
	for i := uint(0); i < mods.ChildCount(); i++ {
		c := mods.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "marker_annotation":
			if n := c.ChildByFieldName("name"); n != nil {
				annotations = append(annotations, javaAnnotation{Name: parser.NodeText(n, ex.source)})
			}
		case "annotation":
			annotations = append(annotations, ex.parseAnnotation(c))
		default:
			if text := parser.NodeText(c, ex.source); text != "" && !strings.HasPrefix(text, "@") {
				keywords = append(keywords, text)
			}
		}
	}
	return annotations, keywords
}

func (ex *javaExtractor) parseAnnotation(node *tree_sitter.Node) javaAnnotation {
	a := javaAnnotation{Attrs: map[string]string{}}
	if n := node.ChildByFieldName("name"); n != nil {
		a.Name = parser.NodeText(n, ex.source)
	}
	args := node.ChildByFieldName("arguments")
	if args == nil {
		return a
	}
	for i := uint(0); i < args.NamedChildCount(); i++ {
		arg := args.NamedChild(i)
		if arg == nil {
			continue
		}
		if arg.Kind() == "element_value_pair" {
			key := ""
			if k := arg.ChildByFieldName("key"); k != nil {
				key = parser.NodeText(k, ex.source)
			}
			if v := arg.ChildByFieldName("value"); v != nil {
				a.Attrs[key] = annotationValue(parser.NodeText(v, ex.source))
			}
			continue
		}
		if a.Value == "" {
			a.Value = annotationValue(parser.NodeText(arg, ex.source))
		}
	}
	return a
}

// annotationValue normalises an annotation argument: quotes stripped, and
// for array initialisers the first element is taken.
func annotationValue(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") {
		inner := strings.Trim(text, "{}")
		if i := strings.IndexByte(inner, ','); i >= 0 {
			inner = inner[:i]
		}
		text = strings.TrimSpace(inner)
	}
	return stripQuotes(text)
}

// annotationPath extracts the request path from a mapping annotation:
// positional value, or the value/path attribute.
func annotationPath(a javaAnnotation) string {
	if a.Value != "" {
		return a.Value
	}
	if v, ok := a.Attrs["value"]; ok {
		return v
	}
	if v, ok := a.Attrs["path"]; ok {
		return v
	}
	return ""
}

// joinRequestPath joins a class-level @RequestMapping base with a method
// path so that exactly one slash separates them. Either side may be empty.
func joinRequestPath(base, path string) string {
	if base == "" {
		return path
	}
	if path == "" {
		return base
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func annotationMeta(annotations []javaAnnotation) []map[string]any {
	out := make([]map[string]any, 0, len(annotations))
	for _, a := range annotations {
		entry := map[string]any{"name": a.Name}
		if a.Value != "" {
			entry["value"] = a.Value
		}
		if len(a.Attrs) > 0 {
			attrs := map[string]any{}
			for k, v := range a.Attrs {
				attrs[k] = v
			}
			entry["attributes"] = attrs
		}
		out = append(out, entry)
	}
	return out
}

var javaPrimitives = map[string]bool{
	"int": true, "long": true, "short": true, "byte": true, "char": true,
	"boolean": true, "float": true, "double": true, "void": true,
	"String": true, "Integer": true, "Long": true, "Boolean": true,
	"Double": true, "Float": true, "Object": true,
}

func isJavaPrimitive(t string) bool {
	return javaPrimitives[t]
}
