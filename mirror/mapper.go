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
)

// OutPath maps a source path to its output path: the first path segment
// is stripped and the remainder joined under outputRoot. Applies to files,
// directories, and symlinks alike. A path of "src/a/b.txt" lands at
// "<outputRoot>/a/b.txt". Only one segment is stripped, so for a watch
// root with several segments ("a/b") the later ones stay in the output
// path.
func OutPath(outputRoot, sourcePath string) string {
	slashed := filepath.ToSlash(filepath.Clean(sourcePath))
	parts := strings.Split(slashed, "/")
	if len(parts) <= 1 {
		return filepath.Clean(outputRoot)
	}
	return filepath.Join(append([]string{outputRoot}, parts[1:]...)...)
}
