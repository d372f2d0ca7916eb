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

// Package watch owns the rebuild session: wipe the output root, resolve
// production deps, run the initial scan, then mirror change events and
// drive the child supervisor until interrupted.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"bennypowers.dev/rebuild/cmd/config"
	"bennypowers.dev/rebuild/deps"
	"bennypowers.dev/rebuild/hooks"
	"bennypowers.dev/rebuild/internal/logging"
	"bennypowers.dev/rebuild/internal/platform"
	"bennypowers.dev/rebuild/mirror"
	"bennypowers.dev/rebuild/ports"
	"bennypowers.dev/rebuild/supervise"
)

// SessionOptions carries the config plus test seams.
type SessionOptions struct {
	Config *config.RebuildConfig
	// Watcher overrides the fsnotify watcher (tests).
	Watcher platform.FileWatcher
	// Launcher overrides child process creation (tests).
	Launcher supervise.Launcher
	// Exit overrides os.Exit (tests).
	Exit func(int)
	// NoSignals disables SIGINT installation (tests drive Shutdown
	// directly).
	NoSignals bool
}

// Session wires the resolver, mirror pipeline, debouncer, supervisor,
// and shutdown coordinator together.
type Session struct {
	cfg      *config.RebuildConfig
	watcher  platform.FileWatcher
	sup      *supervise.Supervisor
	deb      *supervise.Debouncer
	pipeline *mirror.Pipeline
	filter   *mirror.Filter

	portsOnce sync.Once
	exit      func(int)
	noSignals bool
}

func NewSession(opts SessionOptions) (*Session, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		watcher:   opts.Watcher,
		exit:      opts.Exit,
		noSignals: opts.NoSignals,
	}
	if s.exit == nil {
		s.exit = os.Exit
	}
	if s.watcher == nil {
		watcher, err := platform.NewFSNotifyFileWatcher()
		if err != nil {
			return nil, err
		}
		s.watcher = watcher
	}

	var cleanup supervise.CleanupFunc
	if cfg.Cleanup != "" {
		cleanup = hooks.ExecCleanup(cfg.Cleanup)
	}
	s.sup = supervise.New(supervise.Options{
		Forks:    cfg.Fork,
		Spawns:   cfg.Spawn,
		Wait:     cfg.WaitDuration(),
		Cleanup:  cleanup,
		Launcher: opts.Launcher,
		Finalize: func() {
			s.killPorts()
			logging.Info("stopped")
			s.exit(0)
		},
	})
	s.deb = supervise.NewDebouncer(supervise.RestartWindow, s.sup.Restart)

	gate, err := mirror.NewGate(cfg.Transform)
	if err != nil {
		return nil, err
	}
	s.pipeline = mirror.NewPipeline(cfg.Output, gate, hooks.Select(cfg.Using), s.deb.Notify, s.sup.IsShuttingDown)

	return s, nil
}

// Supervisor exposes the child supervisor, for tests.
func (s *Session) Supervisor() *supervise.Supervisor {
	return s.sup
}

// killPorts runs the configured port kills exactly once per process
// lifetime, shared between normal finalization and the error path.
func (s *Session) killPorts() {
	s.portsOnce.Do(func() {
		ports.KillAll(s.cfg.Kill)
	})
}

// Run executes the session. It returns nil after a one-shot build (no
// children configured) and otherwise blocks mirroring changes until the
// process exits through the shutdown coordinator. Any error surfacing
// here still triggers the final port kill before propagating.
func (s *Session) Run() error {
	if err := s.run(); err != nil {
		s.killPorts()
		return err
	}
	return nil
}

func (s *Session) run() error {
	// The output root is destructive state: wiped and recreated every
	// startup, never persisted.
	if err := os.RemoveAll(s.cfg.Output); err != nil {
		return fmt.Errorf("clearing output root %s: %w", s.cfg.Output, err)
	}
	if err := os.MkdirAll(s.cfg.Output, 0o755); err != nil {
		return fmt.Errorf("creating output root %s: %w", s.cfg.Output, err)
	}

	prod, err := deps.Resolve(s.cfg.Watch)
	if err != nil {
		return err
	}
	logging.Debug("%d production dependency folders", prod.Len())
	s.filter = mirror.NewFilter(prod)

	if !s.noSignals {
		interrupts := make(chan os.Signal, 1)
		signal.Notify(interrupts, os.Interrupt)
		go func() {
			for range interrupts {
				// one-shot: repeat interrupts are ignored by the
				// supervisor's shutdown flag
				s.sup.Shutdown()
			}
		}()
	}

	if err := s.pipeline.Scan(s.cfg.Watch, s.filter, func(dir string) {
		if err := s.watcher.Add(dir); err != nil {
			logging.Warning("cannot watch %s: %v", dir, err)
		}
	}); err != nil {
		return err
	}

	if !s.sup.HasCommands() {
		_ = s.watcher.Close()
		logging.Success("build complete")
		return nil
	}

	// scan-time notifications must not fire a second restart on top of
	// the one the completed scan triggers here
	s.deb.Stop()
	s.sup.SetReady()
	s.sup.Restart()

	return s.eventLoop()
}

func (s *Session) eventLoop() error {
	for {
		select {
		case event, ok := <-s.watcher.Events():
			if !ok {
				return nil
			}
			if err := s.handleEvent(event); err != nil {
				return err
			}
		case err, ok := <-s.watcher.Errors():
			if !ok {
				return nil
			}
			logging.Warning("watch error: %v", err)
		}
	}
}

func (s *Session) handleEvent(event platform.FileWatchEvent) error {
	if s.sup.IsShuttingDown() {
		return nil
	}
	path := event.Name
	if !s.filter.Accept(path) {
		return nil
	}

	if event.Op.Has(platform.Remove) || event.Op.Has(platform.Rename) {
		return s.pipeline.Remove(path)
	}
	if !event.Op.Has(platform.Create) && !event.Op.Has(platform.Write) {
		return nil
	}

	if event.Op.Has(platform.Create) {
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			// files may land inside the new directory before its
			// watch is registered, so mirror the subtree too
			return s.scanSubtree(path)
		}
	}
	return s.pipeline.Process(path)
}

func (s *Session) scanSubtree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !s.filter.Accept(path) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := s.watcher.Add(path); err != nil {
				logging.Warning("cannot watch %s: %v", path, err)
			}
		}
		return s.pipeline.Process(path)
	})
}
