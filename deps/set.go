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
package deps

import (
	"path/filepath"
	"sort"
)

// Set is the production-dependency set: the vendor folders whose contents
// participate in the build. It is computed once by Resolve and must not be
// mutated after the mirror pipeline starts consulting it.
type Set struct {
	paths map[string]struct{}
}

// NewSet returns a Set holding the given paths (empty when none are
// given). Exposed for tests that exercise the filter with hand-built
// membership.
func NewSet(paths ...string) *Set {
	s := &Set{paths: make(map[string]struct{})}
	for _, p := range paths {
		s.add(p)
	}
	return s
}

// add inserts a cleaned path and reports whether it was new.
func (s *Set) add(path string) bool {
	path = filepath.Clean(path)
	if _, ok := s.paths[path]; ok {
		return false
	}
	s.paths[path] = struct{}{}
	return true
}

// Contains reports membership of the cleaned path.
func (s *Set) Contains(path string) bool {
	_, ok := s.paths[filepath.Clean(path)]
	return ok
}

// Len returns the number of member folders.
func (s *Set) Len() int {
	return len(s.paths)
}

// Paths returns the members in sorted order.
func (s *Set) Paths() []string {
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
