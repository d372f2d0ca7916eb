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
	"path/filepath"
	"strings"

	"bennypowers.dev/rebuild/deps"
	"bennypowers.dev/rebuild/internal/logging"
)

// Filter accepts or rejects candidate paths during tree scanning and
// change handling. Vendor paths are admitted only when their package
// folder is a member of the production-dependency set.
type Filter struct {
	prod *deps.Set
}

func NewFilter(prod *deps.Set) *Filter {
	return &Filter{prod: prod}
}

// Accept reports whether path participates in the mirror.
//
// Temporary files (trailing ~) and .bin folders are always rejected. A
// path inside a vendor tree is reduced to its package prefix
// (<anything>/node_modules/[<@scope>/]<name>, using the innermost vendor
// segment) and accepted iff that prefix is a production dependency. The
// terminal node_modules directory itself is always accepted so children
// can be examined.
func (f *Filter) Accept(path string) bool {
	if strings.HasSuffix(path, "~") {
		return false
	}

	slashed := filepath.ToSlash(filepath.Clean(path))
	segments := strings.Split(slashed, "/")

	vendor := -1
	for i, segment := range segments {
		if segment == ".bin" {
			return false
		}
		if segment == deps.VendorDir {
			vendor = i
		}
	}
	if vendor == -1 {
		return true
	}

	rest := segments[vendor+1:]
	var prefix []string
	switch {
	case len(rest) == 0:
		// the terminal node_modules directory itself
		return true
	case strings.HasPrefix(rest[0], "@"):
		if len(rest) == 1 {
			// an org-scope folder; admitted when any of its
			// children are production deps
			prefix = segments[:vendor+2]
		} else {
			prefix = segments[:vendor+3]
		}
	default:
		prefix = segments[:vendor+2]
	}

	abs, err := filepath.Abs(filepath.FromSlash(strings.Join(prefix, "/")))
	if err != nil {
		return false
	}
	if f.prod.Contains(abs) {
		return true
	}
	logging.Debug("filtered non-production vendor path: %s", path)
	return false
}
