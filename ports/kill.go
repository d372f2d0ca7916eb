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

// Package ports kills TCP listeners by port number on final shutdown.
package ports

import (
	"fmt"
	"os/exec"
	"runtime"

	"bennypowers.dev/rebuild/internal/logging"
)

// Kill terminates whatever is listening on the TCP port. Failures are
// reported but never fatal: a port with no listener is the common case.
func Kill(port int) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("sh", "-c", fmt.Sprintf("lsof -ti tcp:%d | xargs kill -9", port))
	default:
		cmd = exec.Command("fuser", "-k", fmt.Sprintf("%d/tcp", port))
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("killing port %d: %w", port, err)
	}
	return nil
}

// KillAll kills each port in order, logging failures and continuing.
func KillAll(portList []int) {
	for _, port := range portList {
		logging.Info("killing port %d", port)
		if err := Kill(port); err != nil {
			logging.Debug("%v", err)
		}
	}
}
