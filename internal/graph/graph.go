// Package graph defines the node/edge model shared by the extractors,
// the store, and the resolver. Identities are content-derived: re-parsing
// the same file contents always yields the same ids.
package graph

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// NodeType classifies a graph node.
type NodeType string

const (
	NodeFile       NodeType = "file"
	NodeClass      NodeType = "class"
	NodeInterface  NodeType = "interface"
	NodeFunction   NodeType = "function"
	NodeMethod     NodeType = "method"
	NodeVariable   NodeType = "variable"
	NodeImport     NodeType = "import"
	NodeExport     NodeType = "export"
	NodeModule     NodeType = "module"
	NodeController NodeType = "controller"
	NodeService    NodeType = "service"
	NodeRepository NodeType = "repository"
	NodeComponent  NodeType = "component"
	NodeBean       NodeType = "bean"
	NodeEndpoint   NodeType = "endpoint"
)

// EdgeType classifies a graph edge.
type EdgeType string

const (
	EdgeContains    EdgeType = "contains"
	EdgeCalls       EdgeType = "calls"
	EdgeImports     EdgeType = "imports"
	EdgeExports     EdgeType = "exports"
	EdgeExtends     EdgeType = "extends"
	EdgeImplements  EdgeType = "implements"
	EdgeUses        EdgeType = "uses"
	EdgeInjects     EdgeType = "injects"
	EdgeReturns     EdgeType = "returns"
	EdgeParameterOf EdgeType = "parameter_of"
	EdgeMapsTo      EdgeType = "maps_to"
	EdgeAutowires   EdgeType = "autowires"
)

// Node is a uniquely identified symbolic entity in the project.
type Node struct {
	ID        string         `json:"id"`
	Type      NodeType       `json:"type"`
	Name      string         `json:"name"`
	FilePath  string         `json:"filePath"`
	LineStart int            `json:"lineStart"`
	LineEnd   int            `json:"lineEnd"`
	Language  string         `json:"language"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Edge is a typed directed relation between two node identities.
// TargetID may be a "ref:<kind>:<name>" placeholder until the resolver
// binds it to a concrete node.
type Edge struct {
	ID       string         `json:"id"`
	SourceID string         `json:"sourceId"`
	TargetID string         `json:"targetId"`
	Type     EdgeType       `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FileHash records the last-indexed content digest of a file.
type FileHash struct {
	Path         string `json:"path"`
	Hash         string `json:"hash"`
	LastModified int64  `json:"lastModified"`
}

const idLen = 16 // hex chars of the xxh3-128 digest; collision-tolerant prefix

// NodeID derives the stable identity for a node from its inputs.
func NodeID(filePath string, typ NodeType, name string, lineStart int) string {
	return hashID(filePath + "\x00" + string(typ) + "\x00" + name + "\x00" + strconv.Itoa(lineStart))
}

// EdgeID derives the stable identity for an edge.
func EdgeID(sourceID, targetID string, typ EdgeType) string {
	return hashID(sourceID + "\x00" + targetID + "\x00" + string(typ))
}

func hashID(s string) string {
	sum := xxh3.Hash128([]byte(s)).Bytes()
	return hex.EncodeToString(sum[:])[:idLen]
}

// RefKind categorises an unresolved reference placeholder.
type RefKind string

const (
	RefClass     RefKind = "class"
	RefInterface RefKind = "interface"
	RefFunction  RefKind = "function"
	RefMethod    RefKind = "method"
	RefModule    RefKind = "module"
)

const refPrefix = "ref:"

// Ref builds an unresolved-target placeholder id.
func Ref(kind RefKind, name string) string {
	return refPrefix + string(kind) + ":" + name
}

// IsRef reports whether id is an unresolved-target placeholder.
func IsRef(id string) bool {
	return strings.HasPrefix(id, refPrefix)
}

// ParseRef splits a placeholder into kind and name. ok is false when id is
// not a placeholder.
func ParseRef(id string) (kind RefKind, name string, ok bool) {
	if !IsRef(id) {
		return "", "", false
	}
	rest := id[len(refPrefix):]
	i := strings.IndexByte(rest, ':')
	if i < 0 {
		return "", "", false
	}
	return RefKind(rest[:i]), rest[i+1:], true
}

// NewEdge builds an edge with its derived id.
func NewEdge(sourceID, targetID string, typ EdgeType, metadata map[string]any) *Edge {
	return &Edge{
		ID:       EdgeID(sourceID, targetID, typ),
		SourceID: sourceID,
		TargetID: targetID,
		Type:     typ,
		Metadata: metadata,
	}
}

// UnresolvedEdge builds an edge targeting a ref: placeholder, carrying the
// verbatim target name for the resolver.
func UnresolvedEdge(sourceID string, kind RefKind, targetName string, typ EdgeType, metadata map[string]any) *Edge {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["unresolved"] = true
	metadata["targetName"] = targetName
	return NewEdge(sourceID, Ref(kind, targetName), typ, metadata)
}

// TargetName returns the metadata targetName annotation, if any.
func (e *Edge) TargetName() string {
	if e.Metadata == nil {
		return ""
	}
	s, _ := e.Metadata["targetName"].(string)
	return s
}

// Unresolved reports whether the edge still targets a placeholder or is
// marked unresolved in metadata.
func (e *Edge) Unresolved() bool {
	if IsRef(e.TargetID) {
		return true
	}
	if e.Metadata == nil {
		return false
	}
	b, _ := e.Metadata["unresolved"].(bool)
	return b
}

// MemberName returns the last dot-separated segment of a node name
// (e.g. "greet" for "A.greet").
func MemberName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// OwnerName returns the owner portion of a dotted member name, or "" for
// plain names.
func OwnerName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return ""
}
