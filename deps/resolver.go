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

// Package deps computes the production-dependency set: the vendor folders
// under node_modules trees that a production bundle would actually carry.
// Membership is decided by walking package manifest dependency graphs and
// vendor symlinks, with presence on disk as the source of truth. Version
// ranges are deliberately ignored.
package deps

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"bennypowers.dev/rebuild/internal/logging"
)

// Resolve walks each watch directory for top-level package manifests,
// seeds their direct and symlinked dependencies, then expands to a
// fixpoint through nested-first flat-fallback manifest resolution.
//
// A dependency named in a vendored manifest that cannot be resolved
// anywhere up the ancestor chain is a fatal configuration error: the tree
// on disk does not contain what its own manifests require.
func Resolve(watchDirs []string) (*Set, error) {
	set := NewSet()
	var queue []string

	enqueue := func(dir string) {
		if set.add(dir) {
			logging.Debug("prod dep: %s", dir)
			queue = append(queue, filepath.Clean(dir))
		}
	}

	for _, watch := range watchDirs {
		abs, err := filepath.Abs(watch)
		if err != nil {
			return nil, fmt.Errorf("invalid watch directory %q: %w", watch, err)
		}
		tops, err := discoverTopLevelManifests(abs)
		if err != nil {
			return nil, err
		}
		for _, top := range tops {
			for _, name := range readDependencies(top) {
				enqueue(filepath.Join(top, VendorDir, name))
			}
			for _, link := range symlinkChildren(filepath.Join(top, VendorDir)) {
				enqueue(link)
			}
		}
	}

	// Fixpoint: membership is deduplicated and only new paths advance,
	// so dependency cycles terminate.
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		for _, name := range readDependencies(dir) {
			resolved, err := resolveNested(dir, name)
			if err != nil {
				return nil, err
			}
			enqueue(resolved)
		}
		for _, link := range symlinkChildren(filepath.Join(dir, VendorDir)) {
			enqueue(link)
		}
	}

	// Org expansion: admitting the @scope folder itself makes the
	// per-event filter a single lookup for scoped packages.
	for _, member := range set.Paths() {
		parent := filepath.Dir(member)
		if strings.HasPrefix(filepath.Base(parent), "@") {
			if set.add(parent) {
				logging.Debug("prod dep (org): %s", parent)
			}
		}
	}

	return set, nil
}

// discoverTopLevelManifests returns the folders of every package manifest
// under root, ignoring dotfiles and anything inside a vendor tree.
func discoverTopLevelManifests(root string) ([]string, error) {
	var tops []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A root that vanished mid-walk is a real error; transient
			// children are skipped.
			if path == root {
				return err
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if name == VendorDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if name == ManifestName {
			tops = append(tops, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s for package manifests: %w", root, err)
	}
	return tops, nil
}

// resolveNested finds the folder providing dependency name for the package
// at dir: nested-first, flat-fallback. Starting from dir, each ancestor is
// checked for <ancestor>/node_modules/<name>/package.json; the first match
// wins.
func resolveNested(dir, name string) (string, error) {
	for ancestor := dir; ; {
		candidate := filepath.Join(ancestor, VendorDir, name)
		if hasManifest(candidate) {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return "", fmt.Errorf("resolving dependency %q of %s: %w", name, dir, err)
			}
			return abs, nil
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			break
		}
		ancestor = parent
	}
	return "", fmt.Errorf("cannot resolve dependency %q required by %s: not found in any enclosing %s", name, dir, VendorDir)
}

// symlinkChildren lists the non-hidden symlinked entries of a vendor
// directory. Linked packages participate regardless of whether any
// manifest names them: workspace tooling links them in for a reason.
func symlinkChildren(vendorDir string) []string {
	entries, err := os.ReadDir(vendorDir)
	if err != nil {
		return nil
	}
	var links []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.Type()&os.ModeSymlink != 0 {
			links = append(links, filepath.Join(vendorDir, entry.Name()))
		}
	}
	return links
}
