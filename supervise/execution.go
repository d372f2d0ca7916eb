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
package supervise

import (
	"fmt"
	"time"
)

// Kind distinguishes the two child flavors.
type Kind string

const (
	// KindFork children get an IPC control channel and participate in
	// the pause/resume cold-start handshake.
	KindFork Kind = "fork"
	// KindSpawn children inherit stdout/stderr and have no IPC.
	KindSpawn Kind = "spawn"
)

// Cleanup signal tokens. SignalInterrupt is the POSIX interrupt name;
// SignalRestart is a protocol token only — it is delivered to fork
// children as the literal JSON string "SIGRES" on the IPC channel, never
// through the OS signal subsystem.
const (
	SignalInterrupt = "SIGINT"
	SignalRestart   = "SIGRES"
)

// ControlMessage is the fork child → parent coordination message.
type ControlMessage struct {
	PauseForking  bool `json:"pauseForking,omitempty"`
	ResumeForking bool `json:"resumeForking,omitempty"`
}

// Child is one managed OS process. The production implementation wraps
// os/exec; tests substitute in-memory fakes.
type Child interface {
	// Wait blocks until the process exits and returns its exit code.
	Wait() int

	// Interrupt delivers the POSIX interrupt signal.
	Interrupt() error

	// Kill hard-kills the process.
	Kill() error

	// Send writes a JSON message to the child's IPC channel.
	// Only meaningful for fork children.
	Send(v any) error

	// Messages yields inbound IPC control messages. Closed on exit.
	Messages() <-chan ControlMessage
}

// Execution is the supervisor's per-child record. Owned solely by the
// registry; removed on the child's own exit event.
type Execution struct {
	Command string
	Kind    Kind

	child     Child
	killTimer *time.Timer
	exited    chan struct{}
}

// Interrupt delivers the POSIX interrupt to the child.
func (e *Execution) Interrupt() error {
	return e.child.Interrupt()
}

// Kill hard-kills the child.
func (e *Execution) Kill() error {
	return e.child.Kill()
}

// Send delivers a message on the fork IPC channel.
func (e *Execution) Send(v any) error {
	if e.Kind != KindFork {
		return fmt.Errorf("%s is a %s child and has no IPC channel", e.Command, e.Kind)
	}
	return e.child.Send(v)
}

// Exited is closed when the child's exit event has fired.
func (e *Execution) Exited() <-chan struct{} {
	return e.exited
}

// CleanupFunc is invoked per execution on restart (SignalRestart) and on
// shutdown (SignalInterrupt). Errors are logged, never fatal: the
// force-kill timer remains the safety net.
type CleanupFunc func(e *Execution, signal string) error
