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
package mirror

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/rebuild/deps"
)

type identityTransformer struct{}

func (identityTransformer) Transform(in, out string, contents []byte) ([]byte, error) {
	return contents, nil
}

type upperTransformer struct{}

func (upperTransformer) Transform(in, out string, contents []byte) ([]byte, error) {
	return bytes.ToUpper(contents), nil
}

type failingTransformer struct{}

func (failingTransformer) Transform(in, out string, contents []byte) ([]byte, error) {
	return nil, errors.New("boom")
}

type pipelineFixture struct {
	pipeline *Pipeline
	out      string
	notified int
	halted   bool
}

func newFixture(t *testing.T, patterns []string, transformer Transformer) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{out: "out"}
	gate, err := NewGate(patterns)
	require.NoError(t, err)
	f.pipeline = NewPipeline(f.out, gate, transformer,
		func() { f.notified++ },
		func() bool { return f.halted },
	)
	return f
}

func writeSource(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestPipeline_CopiesByteForByte(t *testing.T) {
	t.Chdir(t.TempDir())
	f := newFixture(t, nil, identityTransformer{})
	writeSource(t, "src/b/c.txt", "bye")

	require.NoError(t, f.pipeline.Process("src/b"))
	require.NoError(t, f.pipeline.Process("src/b/c.txt"))

	got, err := os.ReadFile(filepath.Join("out", "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bye", string(got))
	assert.Equal(t, 1, f.notified, "directory creation must not notify; the file write must")
}

func TestPipeline_TransformsGatedFiles(t *testing.T) {
	t.Chdir(t.TempDir())
	f := newFixture(t, []string{"src/**/*.js"}, upperTransformer{})
	writeSource(t, "src/x.js", "hi")
	writeSource(t, "src/x.txt", "hi")

	require.NoError(t, f.pipeline.Process("src/x.js"))
	require.NoError(t, f.pipeline.Process("src/x.txt"))

	js, err := os.ReadFile(filepath.Join("out", "x.js"))
	require.NoError(t, err)
	assert.Equal(t, "HI", string(js))

	txt, err := os.ReadFile(filepath.Join("out", "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(txt), "ungated file is copied, not transformed")
}

func TestPipeline_TransformFailureIsFatal(t *testing.T) {
	t.Chdir(t.TempDir())
	f := newFixture(t, []string{"**/*.js"}, failingTransformer{})
	writeSource(t, "src/x.js", "hi")

	err := f.pipeline.Process("src/x.js")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 0, f.notified, "no notification after a failed write")
}

func TestPipeline_Idempotent(t *testing.T) {
	t.Chdir(t.TempDir())
	f := newFixture(t, nil, identityTransformer{})
	writeSource(t, "src/a.txt", "hi")

	require.NoError(t, f.pipeline.Process("src/a.txt"))
	first, err := os.ReadFile(filepath.Join("out", "a.txt"))
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Process("src/a.txt"))
	second, err := os.ReadFile(filepath.Join("out", "a.txt"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPipeline_VanishedSourceIsSkipped(t *testing.T) {
	t.Chdir(t.TempDir())
	f := newFixture(t, nil, identityTransformer{})

	require.NoError(t, f.pipeline.Process("src/never-existed.txt"))
	assert.Equal(t, 0, f.notified)
}

func TestPipeline_RemoveFileNotifies(t *testing.T) {
	t.Chdir(t.TempDir())
	f := newFixture(t, nil, identityTransformer{})
	writeSource(t, "src/a.txt", "hi")
	require.NoError(t, f.pipeline.Process("src/a.txt"))
	f.notified = 0

	require.NoError(t, f.pipeline.Remove("src/a.txt"))
	_, err := os.Stat(filepath.Join("out", "a.txt"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 1, f.notified)
}

func TestPipeline_RemoveDirectoryDoesNotNotify(t *testing.T) {
	t.Chdir(t.TempDir())
	f := newFixture(t, nil, identityTransformer{})
	writeSource(t, "src/b/c.txt", "bye")
	require.NoError(t, f.pipeline.Process("src/b"))
	require.NoError(t, f.pipeline.Process("src/b/c.txt"))
	f.notified = 0

	require.NoError(t, f.pipeline.Remove("src/b"))
	_, err := os.Stat(filepath.Join("out", "b"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, f.notified)
}

func TestPipeline_HaltedDoesNothing(t *testing.T) {
	t.Chdir(t.TempDir())
	f := newFixture(t, nil, identityTransformer{})
	writeSource(t, "src/a.txt", "hi")
	f.halted = true

	require.NoError(t, f.pipeline.Process("src/a.txt"))
	_, err := os.Stat(filepath.Join("out", "a.txt"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, f.notified)
}

func TestPipeline_SymlinkBecomesDirectory(t *testing.T) {
	t.Chdir(t.TempDir())
	f := newFixture(t, nil, identityTransformer{})
	writeSource(t, "elsewhere/real.txt", "hi")
	require.NoError(t, os.MkdirAll("src", 0o755))
	require.NoError(t, os.Symlink(filepath.Join("..", "elsewhere"), filepath.Join("src", "link")))

	require.NoError(t, f.pipeline.Process("src/link"))

	info, err := os.Lstat(filepath.Join("out", "link"))
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "symlinks materialize as directories, never as links")
}

func TestPipeline_ScanMirrorsAcceptedTree(t *testing.T) {
	t.Chdir(t.TempDir())
	f := newFixture(t, nil, identityTransformer{})
	writeSource(t, "src/a.txt", "hi")
	writeSource(t, "src/b/c.txt", "bye")
	writeSource(t, "src/node_modules/z/skip.js", "nope")

	filter := NewFilter(deps.NewSet())
	var dirs []string
	require.NoError(t, f.pipeline.Scan([]string{"src"}, filter, func(dir string) {
		dirs = append(dirs, dir)
	}))

	a, err := os.ReadFile(filepath.Join("out", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(a))
	c, err := os.ReadFile(filepath.Join("out", "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bye", string(c))

	_, err = os.Stat(filepath.Join("out", "node_modules", "z"))
	assert.True(t, os.IsNotExist(err), "non-production vendor content is not mirrored")

	assert.Contains(t, strings.Join(dirs, "\n"), "src/b")
}

func TestPipeline_ScanIsReproducible(t *testing.T) {
	t.Chdir(t.TempDir())
	f := newFixture(t, nil, identityTransformer{})
	writeSource(t, "src/a.txt", "hi")
	filter := NewFilter(deps.NewSet())

	require.NoError(t, f.pipeline.Scan([]string{"src"}, filter, nil))
	first, err := os.ReadFile(filepath.Join("out", "a.txt"))
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Scan([]string{"src"}, filter, nil))
	second, err := os.ReadFile(filepath.Join("out", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
