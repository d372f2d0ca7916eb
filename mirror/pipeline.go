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

// Package mirror maps accepted source paths into the output tree,
// copying or transforming file contents and notifying the restart
// debouncer after each completed write.
package mirror

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"bennypowers.dev/rebuild/internal/logging"
)

// Transformer rewrites file contents on their way into the output tree.
// Implementations live in the hooks package; the default is the identity
// function over the file's contents.
type Transformer interface {
	Transform(inputPath, outputPath string, contents []byte) ([]byte, error)
}

// Pipeline applies copy-or-transform per accepted source path. Per-file
// operations are serialized at the input side; the restart notification
// never fires before the write completes.
type Pipeline struct {
	outputRoot string
	gate       *Gate
	transform  Transformer
	notify     func()
	halted     func() bool
}

// NewPipeline wires the pipeline. notify is invoked after each successful
// file write or removal; halted is consulted before each unit of work so
// a shutdown stops the pipeline from enqueuing more.
func NewPipeline(outputRoot string, gate *Gate, transform Transformer, notify func(), halted func() bool) *Pipeline {
	return &Pipeline{
		outputRoot: outputRoot,
		gate:       gate,
		transform:  transform,
		notify:     notify,
		halted:     halted,
	}
}

// Process mirrors one source path into the output tree.
//
// Directories and symlinks materialize as output directories; symlinks
// are never followed into the output tree. Transform-gated regular files
// pass through the transformer and are written atomically; everything
// else is copied byte-for-byte. A source that vanished between the event
// and the read is skipped.
func (p *Pipeline) Process(sourcePath string) error {
	if p.halted() {
		return nil
	}

	info, err := os.Lstat(sourcePath)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Debug("skipping vanished source: %s", sourcePath)
		return nil
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", sourcePath, err)
	}

	outPath := OutPath(p.outputRoot, sourcePath)

	if info.IsDir() || info.Mode()&fs.ModeSymlink != 0 {
		if _, err := os.Lstat(outPath); errors.Is(err, fs.ErrNotExist) {
			if err := os.MkdirAll(outPath, 0o755); err != nil {
				return fmt.Errorf("creating output directory %s: %w", outPath, err)
			}
		}
		return nil
	}

	contents, err := os.ReadFile(sourcePath)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Debug("skipping vanished source: %s", sourcePath)
		return nil
	} else if err != nil {
		return fmt.Errorf("reading %s: %w", sourcePath, err)
	}

	if p.gate.ShouldTransform(sourcePath) {
		absIn, err := filepath.Abs(sourcePath)
		if err != nil {
			return err
		}
		absOut, err := filepath.Abs(outPath)
		if err != nil {
			return err
		}
		transformed, err := p.transform.Transform(absIn, absOut, contents)
		if err != nil {
			return fmt.Errorf("transforming %s: %w", sourcePath, err)
		}
		contents = transformed
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory for %s: %w", outPath, err)
	}
	if err := renameio.WriteFile(outPath, contents, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	logging.Debug("mirrored %s -> %s", sourcePath, outPath)
	p.notify()
	return nil
}

// Remove deletes the output path corresponding to an unlinked source.
// Removing a directory entry leaves nothing to rebuild against, so it
// only logs and does not notify.
func (p *Pipeline) Remove(sourcePath string) error {
	if p.halted() {
		return nil
	}

	outPath := OutPath(p.outputRoot, sourcePath)
	info, err := os.Lstat(outPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", outPath, err)
	}

	if info.IsDir() {
		if err := os.RemoveAll(outPath); err != nil {
			return fmt.Errorf("removing %s: %w", outPath, err)
		}
		logging.Info("removed output directory %s", outPath)
		return nil
	}

	if err := os.Remove(outPath); err != nil {
		return fmt.Errorf("removing %s: %w", outPath, err)
	}
	logging.Debug("removed %s", outPath)
	p.notify()
	return nil
}

// Scan walks each watch root in discovery order, mirroring every path the
// filter accepts. It honors the shutdown flag between entries. Rejected
// directories are not descended into. onDir, if non-nil, is invoked for
// each accepted directory so the caller can register watches.
func (p *Pipeline) Scan(watchDirs []string, filter *Filter, onDir func(path string)) error {
	for _, root := range watchDirs {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if p.halted() {
				return fs.SkipAll
			}
			if err != nil {
				if path == filepath.Clean(root) {
					return err
				}
				logging.Debug("skipping unreadable path: %s", path)
				return nil
			}
			if !filter.Accept(path) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() && onDir != nil {
				onDir(path)
			}
			return p.Process(path)
		})
		if err != nil {
			return fmt.Errorf("scanning %s: %w", root, err)
		}
	}
	return nil
}
