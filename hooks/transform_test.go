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
package hooks

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	assert.IsType(t, Identity{}, Select(""))
	assert.IsType(t, ESBuild{}, Select("esbuild"))
	assert.IsType(t, &ExecTransformer{}, Select("node up.js"))
}

func TestIdentity(t *testing.T) {
	out, err := Identity{}.Transform("/in", "/out", []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(out))
}

// writeScript drops an executable shell script into a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script hooks are not exercised on windows")
	}
	path := filepath.Join(t.TempDir(), "hook.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestExecTransformer_StdinToStdout(t *testing.T) {
	script := writeScript(t, `tr 'a-z' 'A-Z'`)
	tr := &ExecTransformer{Command: script}

	out, err := tr.Transform("/src/x.js", "/out/x.js", []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "HI", string(out))
}

func TestExecTransformer_ReceivesPaths(t *testing.T) {
	script := writeScript(t, `printf '%s %s' "$1" "$2"`)
	tr := &ExecTransformer{Command: script}

	out, err := tr.Transform("/src/x.js", "/out/x.js", nil)
	require.NoError(t, err)
	assert.Equal(t, "/src/x.js /out/x.js", string(out))
}

func TestExecTransformer_NonzeroExitIsFatal(t *testing.T) {
	script := writeScript(t, `echo bad transform >&2; exit 3`)
	tr := &ExecTransformer{Command: script}

	_, err := tr.Transform("/src/x.js", "/out/x.js", []byte("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad transform")
}

func TestESBuild_StripsTypes(t *testing.T) {
	out, err := ESBuild{}.Transform("/src/x.ts", "/out/x.js", []byte("export const x: number = 1\n"))
	require.NoError(t, err)
	code := string(out)
	assert.NotContains(t, code, ": number")
	assert.Contains(t, code, "const x = 1")
}

func TestESBuild_SyntaxErrorIsFatal(t *testing.T) {
	_, err := ESBuild{}.Transform("/src/x.ts", "/out/x.js", []byte("const ="))
	require.Error(t, err)
}

func TestLoaderFor(t *testing.T) {
	assert.Equal(t, api.LoaderTS, loaderFor("a.ts"))
	assert.Equal(t, api.LoaderTSX, loaderFor("a.tsx"))
	assert.Equal(t, api.LoaderJSX, loaderFor("a.jsx"))
	assert.Equal(t, api.LoaderJSON, loaderFor("a.json"))
	assert.Equal(t, api.LoaderJS, loaderFor("a.js"))
	assert.Equal(t, api.LoaderJS, loaderFor("a.mjs"))
}
