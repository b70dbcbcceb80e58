// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cfg holds Ize's two TOML-backed configuration documents: the
// global config (where projects live) and a per-project meta document.
// Both round-trip through pelletier/go-toml/v2, consistent with the
// ambient-stack choice recorded in SPEC_FULL.md §10.1.
package cfg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Global is ~/.config/ize/config.toml: the single recognized key per §6
// of SPEC_FULL.md.
type Global struct {
	CentralDir string `toml:"central-dir"`
}

// DefaultGlobalPath returns the default location of the global config
// file, honoring $HOME.
func DefaultGlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ize", "config.toml"), nil
}

// DefaultCentralDir returns the default projects root,
// ~/.local/share/ize/projects.
func DefaultCentralDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "ize", "projects"), nil
}

// LoadGlobal reads the global config from path, falling back to
// defaults (and no error) if the file does not exist.
func LoadGlobal(path string) (Global, error) {
	central, err := DefaultCentralDir()
	if err != nil {
		return Global{}, err
	}
	g := Global{CentralDir: central}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return g, nil
	}
	if err != nil {
		return g, fmt.Errorf("cfg: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, &g); err != nil {
		return g, fmt.Errorf("cfg: parse %s: %w", path, err)
	}
	return g, nil
}

// SaveGlobal writes g to path, creating parent directories as needed.
func SaveGlobal(path string, g Global) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := toml.Marshal(g)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// ProjectMeta is meta/project.toml, per §6 of SPEC_FULL.md.
type ProjectMeta struct {
	Name      string  `toml:"name"`
	MountPath *string `toml:"mount_path,omitempty"`
	Channel   string  `toml:"channel"`
}

// LoadProjectMeta reads a project's meta/project.toml.
func LoadProjectMeta(path string) (ProjectMeta, error) {
	var m ProjectMeta
	raw, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("cfg: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("cfg: parse %s: %w", path, err)
	}
	return m, nil
}

// SaveProjectMeta writes m to path.
func SaveProjectMeta(path string, m ProjectMeta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := toml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
