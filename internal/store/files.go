package store

import (
	"database/sql"
	"fmt"

	"github.com/nishanttri/code-graph/internal/graph"
)

// GetFileHash returns the stored hash record for a path, or nil when absent.
func (s *Store) GetFileHash(path string) (*graph.FileHash, error) {
	row := s.q.QueryRow("SELECT path, hash, last_modified FROM file_hashes WHERE path=?", path)
	var fh graph.FileHash
	err := row.Scan(&fh.Path, &fh.Hash, &fh.LastModified)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &fh, nil
}

// AllFileHashes returns every stored hash keyed by path.
func (s *Store) AllFileHashes() (map[string]graph.FileHash, error) {
	rows, err := s.q.Query("SELECT path, hash, last_modified FROM file_hashes")
	if err != nil {
		return nil, fmt.Errorf("file hashes: %w", err)
	}
	defer rows.Close()
	out := map[string]graph.FileHash{}
	for rows.Next() {
		var fh graph.FileHash
		if err := rows.Scan(&fh.Path, &fh.Hash, &fh.LastModified); err != nil {
			return nil, err
		}
		out[fh.Path] = fh
	}
	return out, rows.Err()
}

// UpsertFileHash records the content digest for a path.
func (s *Store) UpsertFileHash(fh graph.FileHash) error {
	_, err := s.q.Exec(`
		INSERT INTO file_hashes (path, hash, last_modified) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET hash=excluded.hash, last_modified=excluded.last_modified`,
		fh.Path, fh.Hash, fh.LastModified)
	if err != nil {
		return fmt.Errorf("upsert file hash: %w", err)
	}
	return nil
}

// ClearFileHashes drops every stored hash, forcing the next sync to
// re-parse all files.
func (s *Store) ClearFileHashes() error {
	_, err := s.q.Exec("DELETE FROM file_hashes")
	return err
}

// DeleteFileHash removes the stored hash for a path.
func (s *Store) DeleteFileHash(path string) error {
	_, err := s.q.Exec("DELETE FROM file_hashes WHERE path=?", path)
	return err
}

// GetConfig returns the value stored under key, or "" when absent.
func (s *Store) GetConfig(key string) (string, error) {
	row := s.q.QueryRow("SELECT value FROM config WHERE key=?", key)
	var v string
	err := row.Scan(&v)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

// SetConfig stores a value under key.
func (s *Store) SetConfig(key, value string) error {
	_, err := s.q.Exec(`
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	return nil
}
