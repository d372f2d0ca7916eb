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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/rebuild/supervise"
)

func TestExecCleanup_ReceivesCommandKindSignal(t *testing.T) {
	record := filepath.Join(t.TempDir(), "record.txt")
	script := writeScript(t, `printf '%s|%s|%s' "$1" "$2" "$3" > `+record)

	cleanup := ExecCleanup(script)
	e := &supervise.Execution{Command: "node svr.js", Kind: supervise.KindSpawn}
	require.NoError(t, cleanup(e, supervise.SignalInterrupt))

	got, err := os.ReadFile(record)
	require.NoError(t, err)
	assert.Equal(t, "node svr.js|spawn|SIGINT", string(got))
}

func TestExecCleanup_FailureIsReported(t *testing.T) {
	script := writeScript(t, `echo cleanup exploded >&2; exit 1`)
	cleanup := ExecCleanup(script)
	e := &supervise.Execution{Command: "node svr.js", Kind: supervise.KindFork}

	err := cleanup(e, supervise.SignalRestart)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cleanup exploded")
}
