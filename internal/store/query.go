package store

import (
	"fmt"

	"github.com/nishanttri/code-graph/internal/graph"
)

// FileContext is the cross-file view of a single file: its nodes plus the
// edges that cross the file boundary in either direction. Edges entirely
// within the file are excluded.
type FileContext struct {
	Nodes    []*graph.Node
	Incoming []*graph.Edge
	Outgoing []*graph.Edge
}

// GetFileContext returns the file's nodes and its cross-file edges.
func (s *Store) GetFileContext(path string) (*FileContext, error) {
	nodes, err := s.GetByFile(path)
	if err != nil {
		return nil, err
	}
	ctx := &FileContext{Nodes: nodes}

	inFile := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		inFile[n.ID] = true
	}

	for _, n := range nodes {
		out, err := s.EdgesBySource(n.ID)
		if err != nil {
			return nil, err
		}
		for _, e := range out {
			if !inFile[e.TargetID] {
				ctx.Outgoing = append(ctx.Outgoing, e)
			}
		}
		in, err := s.EdgesByTarget(n.ID)
		if err != nil {
			return nil, err
		}
		for _, e := range in {
			if !inFile[e.SourceID] {
				ctx.Incoming = append(ctx.Incoming, e)
			}
		}
	}
	return ctx, nil
}

// Stats summarises the graph: totals plus per-type and per-language counts.
type Stats struct {
	TotalNodes int            `json:"totalNodes"`
	TotalEdges int            `json:"totalEdges"`
	TotalFiles int            `json:"totalFiles"`
	ByType     map[string]int `json:"byType"`
	ByLanguage map[string]int `json:"byLanguage"`
	ByEdgeType map[string]int `json:"byEdgeType"`
}

// GetStats computes graph totals and breakdowns.
func (s *Store) GetStats() (*Stats, error) {
	st := &Stats{
		ByType:     map[string]int{},
		ByLanguage: map[string]int{},
		ByEdgeType: map[string]int{},
	}

	if err := s.q.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&st.TotalNodes); err != nil {
		return nil, fmt.Errorf("stats nodes: %w", err)
	}
	if err := s.q.QueryRow("SELECT COUNT(*) FROM edges").Scan(&st.TotalEdges); err != nil {
		return nil, fmt.Errorf("stats edges: %w", err)
	}
	if err := s.q.QueryRow("SELECT COUNT(DISTINCT file_path) FROM nodes").Scan(&st.TotalFiles); err != nil {
		return nil, fmt.Errorf("stats files: %w", err)
	}

	rows, err := s.q.Query("SELECT type, COUNT(*) FROM nodes GROUP BY type ORDER BY COUNT(*) DESC")
	if err != nil {
		return nil, fmt.Errorf("stats by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, err
		}
		st.ByType[typ] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows2, err := s.q.Query("SELECT language, COUNT(*) FROM nodes WHERE language != '' GROUP BY language")
	if err != nil {
		return nil, fmt.Errorf("stats by language: %w", err)
	}
	defer rows2.Close()
	for rows2.Next() {
		var l string
		var count int
		if err := rows2.Scan(&l, &count); err != nil {
			return nil, err
		}
		st.ByLanguage[l] = count
	}
	if err := rows2.Err(); err != nil {
		return nil, err
	}

	rows3, err := s.q.Query("SELECT type, COUNT(*) FROM edges GROUP BY type ORDER BY COUNT(*) DESC")
	if err != nil {
		return nil, fmt.Errorf("stats by edge type: %w", err)
	}
	defer rows3.Close()
	for rows3.Next() {
		var typ string
		var count int
		if err := rows3.Scan(&typ, &count); err != nil {
			return nil, err
		}
		st.ByEdgeType[typ] = count
	}
	return st, rows3.Err()
}

// ResolutionStats reports the placeholder-derived resolution metric:
// resolved = total − count(target_id LIKE 'ref:%').
type ResolutionStats struct {
	Total      int `json:"total"`
	Unresolved int `json:"unresolved"`
	Resolved   int `json:"resolved"`
}

// GetResolutionStats computes the resolution metric in O(1) queries.
func (s *Store) GetResolutionStats() (*ResolutionStats, error) {
	rs := &ResolutionStats{}
	if err := s.q.QueryRow("SELECT COUNT(*) FROM edges").Scan(&rs.Total); err != nil {
		return nil, fmt.Errorf("resolution total: %w", err)
	}
	if err := s.q.QueryRow("SELECT COUNT(*) FROM edges WHERE target_id LIKE 'ref:%'").Scan(&rs.Unresolved); err != nil {
		return nil, fmt.Errorf("resolution unresolved: %w", err)
	}
	rs.Resolved = rs.Total - rs.Unresolved
	return rs, nil
}
