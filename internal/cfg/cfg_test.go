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

package cfg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGlobalMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	g, err := LoadGlobal(filepath.Join(dir, "nonexistent.toml"))
	require.NoError(t, err)
	assert.NotEmpty(t, g.CentralDir)
}

func TestSaveLoadGlobalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, SaveGlobal(path, Global{CentralDir: "/srv/ize/projects"}))

	g, err := LoadGlobal(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/ize/projects", g.CentralDir)
}

func TestSaveLoadProjectMetaRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta", "project.toml")
	mount := "/mnt/myproject"

	require.NoError(t, SaveProjectMeta(path, ProjectMeta{Name: "myproject", MountPath: &mount, Channel: "main"}))

	m, err := LoadProjectMeta(path)
	require.NoError(t, err)
	assert.Equal(t, "myproject", m.Name)
	require.NotNil(t, m.MountPath)
	assert.Equal(t, mount, *m.MountPath)
	assert.Equal(t, "main", m.Channel)
}
