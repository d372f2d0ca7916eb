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
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Gate decides per-file whether contents pass through the transformer.
// A path is transformed iff at least one configured glob matches it; with
// no globs configured nothing is transformed.
type Gate struct {
	patterns []string
}

// NewGate validates the glob patterns up front so a typo fails at startup
// rather than on the first matching file.
func NewGate(patterns []string) (*Gate, error) {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid transform pattern %q", pattern)
		}
	}
	return &Gate{patterns: patterns}, nil
}

// ShouldTransform reports whether path matches any configured pattern.
func (g *Gate) ShouldTransform(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range g.patterns {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
	}
	return false
}
