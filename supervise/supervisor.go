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

// Package supervise tracks the managed child set and drives each child
// through idle → running → draining → restarting → running, coordinating
// serialized fork startup via the IPC pause/resume protocol.
package supervise

import (
	"sync"
	"time"

	"bennypowers.dev/rebuild/internal/logging"
)

const (
	// DefaultWait is the force-kill deadline when --wait is not given.
	DefaultWait = 3000 * time.Millisecond
	// pauseGrace is how long after a fork's successful start the
	// supervisor waits for a pauseForking message before moving on.
	pauseGrace = 500 * time.Millisecond
	// pauseSafety bounds how long a fork child may hold its siblings.
	pauseSafety = 30 * time.Second
)

// Options configures a Supervisor.
type Options struct {
	Forks  []string
	Spawns []string
	// Wait is the force-kill deadline for restart and shutdown.
	Wait time.Duration
	// Cleanup overrides the default per-child cleanup. Nil selects the
	// default: SIGINT → POSIX interrupt; SIGRES → IPC "SIGRES" for
	// forks, hard kill for spawns.
	Cleanup CleanupFunc
	// Launcher overrides child process creation (tests).
	Launcher Launcher
	// Finalize runs the final port-kill sequence. Guaranteed to be
	// invoked at most once per process lifetime.
	Finalize func()
	// PauseGrace/PauseSafety override the handshake timers (tests).
	PauseGrace  time.Duration
	PauseSafety time.Duration
}

// Supervisor owns the managed-child registry, the crash flag, and the
// shutdown flag. Child exit callbacks marshal onto this state through the
// mutex; the registry is mutated only on spawn success, exit, and
// shutdown finalization.
type Supervisor struct {
	mu sync.Mutex

	forks  []string
	spawns []string
	wait   time.Duration

	cleanup     CleanupFunc
	launcher    Launcher
	finalize    func()
	finalOnce   sync.Once
	pauseGrace  time.Duration
	pauseSafety time.Duration

	executions map[string]*Execution
	crashed    bool
	shutdown   bool
	ready      bool
	making     bool
	draining   int
}

func New(opts Options) *Supervisor {
	s := &Supervisor{
		forks:       opts.Forks,
		spawns:      opts.Spawns,
		wait:        opts.Wait,
		cleanup:     opts.Cleanup,
		launcher:    opts.Launcher,
		finalize:    opts.Finalize,
		pauseGrace:  opts.PauseGrace,
		pauseSafety: opts.PauseSafety,
		executions:  make(map[string]*Execution),
	}
	if s.wait <= 0 {
		s.wait = DefaultWait
	}
	if s.launcher == nil {
		s.launcher = ExecLauncher{}
	}
	if s.finalize == nil {
		s.finalize = func() {}
	}
	if s.pauseGrace <= 0 {
		s.pauseGrace = pauseGrace
	}
	if s.pauseSafety <= 0 {
		s.pauseSafety = pauseSafety
	}
	return s
}

// HasCommands reports whether any fork or spawn commands are configured.
func (s *Supervisor) HasCommands() bool {
	return len(s.forks)+len(s.spawns) > 0
}

// SetReady marks the initial scan complete. Restart is a no-op before
// this; the session calls Restart right after to start the first
// generation of children.
func (s *Supervisor) SetReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
}

// IsShuttingDown reports the one-shot shutdown flag.
func (s *Supervisor) IsShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// Commands returns the registry keys, for tests and diagnostics.
func (s *Supervisor) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.executions))
	for k := range s.executions {
		keys = append(keys, k)
	}
	return keys
}

// Restart is the debouncer's entry point. No-op while shutting down,
// before the initial scan completes, with no commands configured, or
// while a previous restart is still in flight.
//
// Empty registry: start a fresh child generation (logging "restarting
// from crash" if a nonzero exit was recorded since the last one).
// Non-empty: drain — per-child cleanup with SIGRES plus a force-kill
// timer of wait ms; the last exit rebuilds the set.
func (s *Supervisor) Restart() {
	s.mu.Lock()
	if s.shutdown || !s.ready || !s.HasCommands() || s.making || s.draining > 0 {
		s.mu.Unlock()
		return
	}

	if len(s.executions) == 0 {
		if s.crashed {
			logging.Info("restarting from crash")
		}
		s.crashed = false
		s.making = true
		s.mu.Unlock()
		go s.makeChildren()
		return
	}

	logging.Info("restarting")
	s.draining = len(s.executions)
	targets := make([]*Execution, 0, len(s.executions))
	for _, e := range s.executions {
		targets = append(targets, e)
	}
	for _, e := range targets {
		e := e
		e.killTimer = time.AfterFunc(s.wait, func() {
			logging.Warning("force killing %s", e.Command)
			_ = e.Kill()
		})
	}
	s.mu.Unlock()

	for _, e := range targets {
		s.runCleanup(e, SignalRestart)
	}
}

// Shutdown sets the one-shot shutdown flag and drains the children with
// SIGINT cleanup under a single wait-ms force-kill timer. With an empty
// registry it runs finalization immediately. Repeat calls are ignored.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	targets := make([]*Execution, 0, len(s.executions))
	for _, e := range s.executions {
		targets = append(targets, e)
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		s.Finalize()
		return
	}

	time.AfterFunc(s.wait, func() {
		s.mu.Lock()
		remaining := make([]*Execution, 0, len(s.executions))
		for _, e := range s.executions {
			remaining = append(remaining, e)
		}
		s.mu.Unlock()
		for _, e := range remaining {
			logging.Warning("force killing %s", e.Command)
			_ = e.Kill()
		}
	})

	for _, e := range targets {
		s.runCleanup(e, SignalInterrupt)
	}
}

// Finalize runs the final port-kill sequence exactly once per process
// lifetime, no matter how many paths race into it.
func (s *Supervisor) Finalize() {
	s.finalOnce.Do(s.finalize)
}

// makeChildren starts every configured command not already in the
// registry: forks serially in configuration order (each one's pause
// protocol completing before the next begins), then spawns.
func (s *Supervisor) makeChildren() {
	defer func() {
		s.mu.Lock()
		s.making = false
		s.mu.Unlock()
	}()

	for _, command := range s.forks {
		if s.IsShuttingDown() {
			return
		}
		e := s.startChild(command, KindFork)
		if e != nil {
			s.awaitForkHandshake(e)
		}
	}
	for _, command := range s.spawns {
		if s.IsShuttingDown() {
			return
		}
		s.startChild(command, KindSpawn)
	}
}

// startChild launches one command and registers its Execution. A launch
// failure is logged and skipped; the next debounced restart may retry.
func (s *Supervisor) startChild(command string, kind Kind) *Execution {
	s.mu.Lock()
	_, exists := s.executions[command]
	s.mu.Unlock()
	if exists {
		return nil
	}

	child, err := s.launcher.Launch(command, kind)
	if err != nil {
		logging.Error("failed to start %q: %v", command, err)
		return nil
	}

	e := &Execution{
		Command: command,
		Kind:    kind,
		child:   child,
		exited:  make(chan struct{}),
	}

	s.mu.Lock()
	if s.shutdown {
		// lost the race with the interrupt: no new Executions once
		// the shutdown flag is up
		s.mu.Unlock()
		_ = child.Kill()
		go child.Wait()
		return nil
	}
	s.executions[command] = e
	s.mu.Unlock()

	logging.Info("started %s (%s)", command, kind)
	go s.watchExit(e)
	return e
}

// awaitForkHandshake gives a freshly started fork pauseGrace to request a
// hold, then waits out the hold until resume, the safety timeout, or the
// child's exit.
func (s *Supervisor) awaitForkHandshake(e *Execution) {
	grace := time.NewTimer(s.pauseGrace)
	defer grace.Stop()
	for {
		select {
		case msg, ok := <-e.child.Messages():
			if !ok {
				return
			}
			if msg.PauseForking {
				s.holdForks(e)
				return
			}
			if msg.ResumeForking {
				return
			}
		case <-grace.C:
			return
		case <-e.exited:
			return
		}
	}
}

func (s *Supervisor) holdForks(e *Execution) {
	logging.Info("%s paused forking", e.Command)
	safety := time.NewTimer(s.pauseSafety)
	defer safety.Stop()
	for {
		select {
		case msg, ok := <-e.child.Messages():
			if !ok {
				return
			}
			if msg.ResumeForking {
				logging.Info("%s resumed forking", e.Command)
				return
			}
		case <-safety.C:
			logging.Warning("%s held forking for %s; continuing without resume", e.Command, s.pauseSafety)
			return
		case <-e.exited:
			return
		}
	}
}

// watchExit is each child's exit listener: it removes the Execution from
// the registry, records crashes, and advances whichever drain (restart or
// shutdown) is in progress.
func (s *Supervisor) watchExit(e *Execution) {
	code := e.child.Wait()
	close(e.exited)

	s.mu.Lock()
	delete(s.executions, e.Command)
	if e.killTimer != nil {
		e.killTimer.Stop()
	}
	if code != 0 {
		s.crashed = true
		logging.Error("%s crashed with exit code %d", e.Command, code)
	} else {
		logging.Info("%s exited cleanly", e.Command)
	}
	empty := len(s.executions) == 0

	if s.shutdown {
		s.mu.Unlock()
		if empty {
			s.Finalize()
		}
		return
	}

	rebuild := false
	if s.draining > 0 {
		s.draining--
		if s.draining == 0 && empty {
			// the restart that drained these children now rebuilds;
			// exits recorded during the drain are not crashes to
			// report against the next generation
			s.crashed = false
			rebuild = true
			s.making = true
		}
	}
	s.mu.Unlock()

	if rebuild {
		go s.makeChildren()
	}
}

func (s *Supervisor) runCleanup(e *Execution, signal string) {
	fn := s.cleanup
	if fn == nil {
		fn = s.defaultCleanup
	}
	if err := fn(e, signal); err != nil {
		logging.Warning("cleanup for %s (%s) failed: %v", e.Command, signal, err)
	}
}

// defaultCleanup: on SIGINT the child receives the POSIX interrupt and is
// expected to exit itself; on SIGRES fork children receive the protocol
// token over IPC and spawn children are hard-killed.
func (s *Supervisor) defaultCleanup(e *Execution, signal string) error {
	switch signal {
	case SignalInterrupt:
		return e.Interrupt()
	case SignalRestart:
		if e.Kind == KindFork {
			return e.Send(SignalRestart)
		}
		return e.Kill()
	}
	return nil
}
