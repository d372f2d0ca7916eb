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
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"bennypowers.dev/rebuild/supervise"
)

// ExecCleanup adapts a user command into the supervisor's cleanup hook.
// Contract: the command is invoked as `cmd <childCommand> <kind> <signal>`
// with kind ∈ {fork,spawn} and signal ∈ {SIGINT,SIGRES}. Side effects
// only; the supervisor's force-kill timer remains the safety net, so a
// hook that does nothing still makes progress.
func ExecCleanup(command string) supervise.CleanupFunc {
	argv := strings.Split(command, " ")
	return func(e *supervise.Execution, signal string) error {
		cmd := exec.Command(argv[0], append(argv[1:], e.Command, string(e.Kind), signal)...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("cleanup %q (%s %s): %w: %s", command, e.Command, signal, err, strings.TrimSpace(stderr.String()))
		}
		return nil
	}
}
