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
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// ManifestName is the package descriptor filename that marks a package
// folder inside and outside vendor trees.
const ManifestName = "package.json"

// VendorDir is the nested dependency directory name.
const VendorDir = "node_modules"

// readDependencies reads the direct-dependencies map of the manifest in
// dir. Manifests in the wild omit or malform fields, so the file is read
// loosely: a missing file, invalid JSON, or a non-object "dependencies"
// field all yield no edges. The caller decides whether that is fatal.
func readDependencies(dir string) []string {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil
	}
	result := gjson.GetBytes(data, "dependencies")
	if !result.IsObject() {
		return nil
	}
	var names []string
	result.ForEach(func(key, _ gjson.Result) bool {
		if key.String() != "" {
			names = append(names, key.String())
		}
		return true
	})
	return names
}

// hasManifest reports whether dir contains a package manifest that is a
// regular file. Its contents are not read.
func hasManifest(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ManifestName))
	return err == nil && info.Mode().IsRegular()
}
