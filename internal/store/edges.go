package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/nishanttri/code-graph/internal/graph"
)

const numEdgeCols = 5
const edgesBatchSize = 999 / numEdgeCols // = 199

// UpsertEdges inserts or replaces edges in batched multi-row INSERTs.
func (s *Store) UpsertEdges(edges []*graph.Edge) error {
	for i := 0; i < len(edges); i += edgesBatchSize {
		end := i + edgesBatchSize
		if end > len(edges) {
			end = len(edges)
		}
		if err := s.upsertEdgeChunk(edges[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertEdgeChunk(batch []*graph.Edge) error {
	if len(batch) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO edges (id, source_id, target_id, type, metadata) VALUES `)

	args := make([]any, 0, len(batch)*numEdgeCols)
	for i, e := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?)")
		args = append(args, e.ID, e.SourceID, e.TargetID, string(e.Type), marshalMeta(e.Metadata))
	}
	sb.WriteString(` ON CONFLICT(id) DO UPDATE SET
		source_id=excluded.source_id, target_id=excluded.target_id,
		type=excluded.type, metadata=excluded.metadata`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("upsert edges: %w", err)
	}
	return nil
}

const edgeCols = "id, source_id, target_id, type, metadata"

// GetEdge returns an edge by id, or nil when absent.
func (s *Store) GetEdge(id string) (*graph.Edge, error) {
	row := s.q.QueryRow("SELECT "+edgeCols+" FROM edges WHERE id=?", id)
	return scanEdge(row)
}

// EdgesBySource returns all edges from the given source node.
func (s *Store) EdgesBySource(sourceID string) ([]*graph.Edge, error) {
	rows, err := s.q.Query("SELECT "+edgeCols+" FROM edges WHERE source_id=?", sourceID)
	if err != nil {
		return nil, fmt.Errorf("edges by source: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// EdgesByTarget returns all edges to the given target node.
func (s *Store) EdgesByTarget(targetID string) ([]*graph.Edge, error) {
	rows, err := s.q.Query("SELECT "+edgeCols+" FROM edges WHERE target_id=?", targetID)
	if err != nil {
		return nil, fmt.Errorf("edges by target: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// AllEdges returns every edge in the store.
func (s *Store) AllEdges() ([]*graph.Edge, error) {
	rows, err := s.q.Query("SELECT " + edgeCols + " FROM edges")
	if err != nil {
		return nil, fmt.Errorf("all edges: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// GetUnresolvedEdges returns all edges whose target is still a ref:
// placeholder, plus any whose metadata marks them unresolved, ordered by id
// so resolver runs are deterministic.
func (s *Store) GetUnresolvedEdges() ([]*graph.Edge, error) {
	rows, err := s.q.Query(`SELECT ` + edgeCols + ` FROM edges
		WHERE target_id LIKE 'ref:%'
			OR json_extract(metadata, '$.unresolved') = 1
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("unresolved edges: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// UpdateEdgeTarget rewrites an edge's target. On successful resolution
// (stillUnresolved false) the prior target is recorded in
// metadata.resolvedFrom and the unresolved mark is cleared.
func (s *Store) UpdateEdgeTarget(id, newTargetID string, stillUnresolved bool) error {
	e, err := s.GetEdge(id)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("edge %s not found", id)
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	if !stillUnresolved {
		meta["resolvedFrom"] = e.TargetID
		meta["unresolved"] = false
	} else {
		meta["unresolved"] = true
	}
	_, err = s.q.Exec("UPDATE edges SET target_id=?, metadata=? WHERE id=?",
		newTargetID, marshalMeta(meta), id)
	if err != nil {
		return fmt.Errorf("update edge target: %w", err)
	}
	return nil
}

// UpdateEdgeMetadata replaces an edge's metadata document.
func (s *Store) UpdateEdgeMetadata(id string, metadata map[string]any) error {
	_, err := s.q.Exec("UPDATE edges SET metadata=? WHERE id=?", marshalMeta(metadata), id)
	if err != nil {
		return fmt.Errorf("update edge metadata: %w", err)
	}
	return nil
}

// ResolvedCallersOf returns the nodes with a resolved calls edge into id.
func (s *Store) ResolvedCallersOf(id string) ([]*graph.Node, error) {
	rows, err := s.q.Query(`
		SELECT n.id, n.type, n.name, n.file_path, n.line_start, n.line_end, n.language, n.metadata
		FROM edges e JOIN nodes n ON e.source_id = n.id
		WHERE e.type='calls' AND e.target_id=?
		ORDER BY n.file_path, n.line_start`, id)
	if err != nil {
		return nil, fmt.Errorf("callers of: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// ResolvedCalleesOf returns the nodes id has a resolved calls edge into.
// Unresolved placeholder targets are excluded by the join itself.
func (s *Store) ResolvedCalleesOf(id string) ([]*graph.Node, error) {
	rows, err := s.q.Query(`
		SELECT n.id, n.type, n.name, n.file_path, n.line_start, n.line_end, n.language, n.metadata
		FROM edges e JOIN nodes n ON e.target_id = n.id
		WHERE e.type='calls' AND e.source_id=? AND e.target_id NOT LIKE 'ref:%'
		ORDER BY n.file_path, n.line_start`, id)
	if err != nil {
		return nil, fmt.Errorf("callees of: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

func scanEdge(row scanner) (*graph.Edge, error) {
	var e graph.Edge
	var typ, meta string
	err := row.Scan(&e.ID, &e.SourceID, &e.TargetID, &typ, &meta)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	e.Type = graph.EdgeType(typ)
	e.Metadata = unmarshalMeta(meta)
	return &e, nil
}

func scanEdges(rows *sql.Rows) ([]*graph.Edge, error) {
	var result []*graph.Edge
	for rows.Next() {
		var e graph.Edge
		var typ, meta string
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &typ, &meta); err != nil {
			return nil, err
		}
		e.Type = graph.EdgeType(typ)
		e.Metadata = unmarshalMeta(meta)
		result = append(result, &e)
	}
	return result, rows.Err()
}
