/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *RebuildConfig {
	t.Helper()
	src := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	return &RebuildConfig{
		Watch:  []string{src},
		Output: filepath.Join(t.TempDir(), "out"),
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig(t).Validate())
}

func TestValidate_RequiresWatch(t *testing.T) {
	cfg := validConfig(t)
	cfg.Watch = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--watch")
}

func TestValidate_RequiresOutput(t *testing.T) {
	cfg := validConfig(t)
	cfg.Output = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output")
}

func TestValidate_WatchMustExist(t *testing.T) {
	cfg := validConfig(t)
	cfg.Watch = append(cfg.Watch, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, cfg.Validate())
}

func TestValidate_WatchMustBeDirectory(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	cfg.Watch = []string{file}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestValidate_OutputInsideWatchConflicts(t *testing.T) {
	cfg := validConfig(t)
	cfg.Output = filepath.Join(cfg.Watch[0], "out")
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inside watch")
}

func TestValidate_UsingRequiresTransform(t *testing.T) {
	cfg := validConfig(t)
	cfg.Using = "esbuild"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--transform")

	cfg.Transform = []string{"**/*.ts"}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_KillPortRange(t *testing.T) {
	cfg := validConfig(t)
	cfg.Kill = []int{0}
	assert.Error(t, cfg.Validate())
	cfg.Kill = []int{3000, 8080}
	assert.NoError(t, cfg.Validate())
}

func TestWaitDuration(t *testing.T) {
	cfg := &RebuildConfig{}
	assert.Equal(t, 3*time.Second, cfg.WaitDuration())
	cfg.Wait = 100
	assert.Equal(t, 100*time.Millisecond, cfg.WaitDuration())
}

func TestClone(t *testing.T) {
	cfg := validConfig(t)
	cfg.Fork = []string{"a"}
	clone := cfg.Clone()
	clone.Fork[0] = "b"
	assert.Equal(t, "a", cfg.Fork[0])
}
