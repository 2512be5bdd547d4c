package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/nishanttri/code-graph/internal/graph"
)

// Formula-derived batch size: SQLite has a 999 bind variable limit.
const numNodeCols = 8
const nodesBatchSize = 999 / numNodeCols // = 124

// UpsertNodes inserts or replaces nodes in batched multi-row INSERTs.
// The whole call is atomic when run inside WithTransaction.
func (s *Store) UpsertNodes(nodes []*graph.Node) error {
	for i := 0; i < len(nodes); i += nodesBatchSize {
		end := i + nodesBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		if err := s.upsertNodeChunk(nodes[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertNodeChunk(batch []*graph.Node) error {
	if len(batch) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO nodes (id, type, name, file_path, line_start, line_end, language, metadata) VALUES `)

	args := make([]any, 0, len(batch)*numNodeCols)
	for i, n := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?)")
		args = append(args, n.ID, string(n.Type), n.Name, n.FilePath, n.LineStart, n.LineEnd, n.Language, marshalMeta(n.Metadata))
	}
	sb.WriteString(` ON CONFLICT(id) DO UPDATE SET
		type=excluded.type, name=excluded.name, file_path=excluded.file_path,
		line_start=excluded.line_start, line_end=excluded.line_end,
		language=excluded.language, metadata=excluded.metadata`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("upsert nodes: %w", err)
	}
	return nil
}

const nodeCols = "id, type, name, file_path, line_start, line_end, language, metadata"

// GetNode returns a node by id, or nil when absent.
func (s *Store) GetNode(id string) (*graph.Node, error) {
	row := s.q.QueryRow("SELECT "+nodeCols+" FROM nodes WHERE id=?", id)
	return scanNode(row)
}

// GetByFile returns all nodes with the given file path.
func (s *Store) GetByFile(path string) ([]*graph.Node, error) {
	rows, err := s.q.Query("SELECT "+nodeCols+" FROM nodes WHERE file_path=? ORDER BY line_start, id", path)
	if err != nil {
		return nil, fmt.Errorf("nodes by file: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// GetByType returns all nodes of the given type.
func (s *Store) GetByType(typ graph.NodeType) ([]*graph.Node, error) {
	rows, err := s.q.Query("SELECT "+nodeCols+" FROM nodes WHERE type=? ORDER BY file_path, line_start", string(typ))
	if err != nil {
		return nil, fmt.Errorf("nodes by type: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// SearchByName returns nodes whose name contains the substring
// (case-preserving), ordered by name, capped at limit (default 100).
func (s *Store) SearchByName(substr string, limit int) ([]*graph.Node, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(
		"SELECT "+nodeCols+" FROM nodes WHERE instr(name, ?) > 0 ORDER BY name LIMIT ?",
		substr, limit)
	if err != nil {
		return nil, fmt.Errorf("search by name: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// AllNodes returns every node in the store.
func (s *Store) AllNodes() ([]*graph.Node, error) {
	rows, err := s.q.Query("SELECT " + nodeCols + " FROM nodes")
	if err != nil {
		return nil, fmt.Errorf("all nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// ListFiles returns the distinct file paths present in the node table.
func (s *Store) ListFiles() ([]string, error) {
	rows, err := s.q.Query("SELECT DISTINCT file_path FROM nodes ORDER BY file_path")
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteByFile removes all nodes with the given file path and every edge
// whose source is one of them. Inbound edges from surviving files are
// downgraded back to the ref: placeholder recorded in metadata.resolvedFrom
// (or deleted when no placeholder is known), so no edge is left with a
// dangling concrete target; the next resolve pass reclassifies them.
func (s *Store) DeleteByFile(path string) error {
	_, err := s.q.Exec(`
		DELETE FROM edges WHERE source_id IN (SELECT id FROM nodes WHERE file_path=?)`, path)
	if err != nil {
		return fmt.Errorf("delete edges for %s: %w", path, err)
	}
	if err := s.downgradeInboundEdges(path); err != nil {
		return err
	}
	if _, err := s.q.Exec("DELETE FROM nodes WHERE file_path=?", path); err != nil {
		return fmt.Errorf("delete nodes for %s: %w", path, err)
	}
	return nil
}

func (s *Store) downgradeInboundEdges(path string) error {
	rows, err := s.q.Query(`
		SELECT e.id, e.metadata FROM edges e
		JOIN nodes n ON e.target_id = n.id
		WHERE n.file_path=?`, path)
	if err != nil {
		return fmt.Errorf("inbound edges for %s: %w", path, err)
	}
	type inbound struct {
		id   string
		meta map[string]any
	}
	var edges []inbound
	for rows.Next() {
		var e inbound
		var meta string
		if err := rows.Scan(&e.id, &meta); err != nil {
			rows.Close()
			return err
		}
		e.meta = unmarshalMeta(meta)
		edges = append(edges, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, e := range edges {
		placeholder, _ := e.meta["resolvedFrom"].(string)
		if placeholder == "" {
			if _, err := s.q.Exec("DELETE FROM edges WHERE id=?", e.id); err != nil {
				return fmt.Errorf("delete inbound edge: %w", err)
			}
			continue
		}
		e.meta["unresolved"] = true
		delete(e.meta, "resolvedFrom")
		if _, err := s.q.Exec("UPDATE edges SET target_id=?, metadata=? WHERE id=?",
			placeholder, marshalMeta(e.meta), e.id); err != nil {
			return fmt.Errorf("downgrade inbound edge: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*graph.Node, error) {
	var n graph.Node
	var typ, meta string
	err := row.Scan(&n.ID, &typ, &n.Name, &n.FilePath, &n.LineStart, &n.LineEnd, &n.Language, &meta)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	n.Type = graph.NodeType(typ)
	n.Metadata = unmarshalMeta(meta)
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*graph.Node, error) {
	var result []*graph.Node
	for rows.Next() {
		var n graph.Node
		var typ, meta string
		if err := rows.Scan(&n.ID, &typ, &n.Name, &n.FilePath, &n.LineStart, &n.LineEnd, &n.Language, &meta); err != nil {
			return nil, err
		}
		n.Type = graph.NodeType(typ)
		n.Metadata = unmarshalMeta(meta)
		result = append(result, &n)
	}
	return result, rows.Err()
}
