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
package platform

import (
	"fmt"
	"sync"
)

// MockFileWatcher implements FileWatcher for tests. Events are injected
// synchronously with Emit; watched paths are recorded for assertions.
type MockFileWatcher struct {
	mu      sync.Mutex
	watched map[string]bool
	events  chan FileWatchEvent
	errors  chan error
	closed  bool
}

func NewMockFileWatcher() *MockFileWatcher {
	return &MockFileWatcher{
		watched: make(map[string]bool),
		events:  make(chan FileWatchEvent, 256),
		errors:  make(chan error, 10),
	}
}

func (m *MockFileWatcher) Add(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("file watcher is closed")
	}
	m.watched[name] = true
	return nil
}

func (m *MockFileWatcher) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watched, name)
	return nil
}

func (m *MockFileWatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.events)
	close(m.errors)
	return nil
}

func (m *MockFileWatcher) Events() <-chan FileWatchEvent {
	return m.events
}

func (m *MockFileWatcher) Errors() <-chan error {
	return m.errors
}

// Emit injects an event as if the OS had reported it.
func (m *MockFileWatcher) Emit(name string, op WatchOp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.events <- FileWatchEvent{Name: name, Op: op}
	}
}

// IsWatching reports whether Add was called for name without a later Remove.
func (m *MockFileWatcher) IsWatching(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watched[name]
}
