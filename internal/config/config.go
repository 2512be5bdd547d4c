// Package config manages the per-project .code-graph directory: the JSON
// project configuration and its .gitignore side file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Dir is the per-project state directory.
const Dir = ".code-graph"

// FileName is the project configuration file inside Dir.
const FileName = "config.json"

// ErrNotInitialised is returned when a project has no .code-graph/config.json.
var ErrNotInitialised = errors.New("project not initialised (run: code-graph init)")

// ProjectConfig is persisted alongside the graph.
type ProjectConfig struct {
	Languages []string `json:"languages"`
	Include   []string `json:"include"`
	Exclude   []string `json:"exclude"`
	AutoSync  bool     `json:"autoSync"`
}

// Default returns the configuration written by init.
func Default() *ProjectConfig {
	return &ProjectConfig{
		Languages: []string{"typescript", "javascript", "python", "java"},
		Include:   []string{"**/*"},
		Exclude: []string{
			"node_modules/**", "dist/**", "build/**", "target/**",
			"coverage/**", "__pycache__/**", ".git/**", ".code-graph/**",
			"venv/**", ".venv/**", "vendor/**", "out/**",
		},
		AutoSync: true,
	}
}

// Path returns the config file path for a project root.
func Path(projectPath string) string {
	return filepath.Join(projectPath, Dir, FileName)
}

// Load reads the project configuration. Returns ErrNotInitialised when the
// config file does not exist.
func Load(projectPath string) (*ProjectConfig, error) {
	data, err := os.ReadFile(Path(projectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInitialised
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg ProjectConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes the project configuration.
func Save(projectPath string, cfg *ProjectConfig) error {
	dir := filepath.Join(projectPath, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(Path(projectPath), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Init creates the .code-graph directory with a default config and a
// .gitignore that keeps the store out of version control. Fails when the
// project is already initialised unless force is set.
func Init(projectPath string, force bool) (*ProjectConfig, error) {
	if _, err := os.Stat(Path(projectPath)); err == nil && !force {
		return nil, fmt.Errorf("already initialised: %s", Path(projectPath))
	}
	cfg := Default()
	if err := Save(projectPath, cfg); err != nil {
		return nil, err
	}
	gitignore := filepath.Join(projectPath, Dir, ".gitignore")
	content := "graph.db\ngraph.db-wal\ngraph.db-shm\n"
	if err := os.WriteFile(gitignore, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write gitignore: %w", err)
	}
	return cfg, nil
}

// Initialised reports whether the project has a config file.
func Initialised(projectPath string) bool {
	_, err := os.Stat(Path(projectPath))
	return err == nil
}
