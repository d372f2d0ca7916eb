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

// Package hooks provides the user extension points: the per-file
// transformer and the per-child cleanup. Both are shell-command hooks
// with a documented stdio contract rather than dynamically loaded
// scripts, so any language can implement them.
package hooks

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"bennypowers.dev/rebuild/mirror"
)

// ESBuildName selects the builtin esbuild transformer via --using.
const ESBuildName = "esbuild"

// Select returns the transformer for a --using value: empty selects the
// identity transformer, "esbuild" the builtin, anything else an external
// command hook.
func Select(using string) mirror.Transformer {
	switch using {
	case "":
		return Identity{}
	case ESBuildName:
		return ESBuild{}
	default:
		return &ExecTransformer{Command: using}
	}
}

// Identity passes file contents through unchanged. This is the default
// when no transformer is configured.
type Identity struct{}

func (Identity) Transform(inputPath, outputPath string, contents []byte) ([]byte, error) {
	return contents, nil
}

// ExecTransformer shells out per file. Contract: the command is invoked
// as `cmd <inputAbsPath> <outputAbsPath>` with the file contents on
// stdin; stdout is the transformed contents; a nonzero exit is fatal.
type ExecTransformer struct {
	Command string
}

func (t *ExecTransformer) Transform(inputPath, outputPath string, contents []byte) ([]byte, error) {
	argv := strings.Split(t.Command, " ")
	cmd := exec.Command(argv[0], append(argv[1:], inputPath, outputPath)...)
	cmd.Stdin = bytes.NewReader(contents)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("transformer %q failed on %s: %w: %s", t.Command, inputPath, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// ESBuild is the builtin transformer: type-stripping and JSX via esbuild's
// Transform API, with the loader inferred from the source extension.
type ESBuild struct{}

func (ESBuild) Transform(inputPath, outputPath string, contents []byte) ([]byte, error) {
	result := api.Transform(string(contents), api.TransformOptions{
		Loader:     loaderFor(inputPath),
		Target:     api.ES2022,
		Format:     api.FormatESModule,
		Sourcefile: inputPath,
		// inline helpers to avoid a tslib dependency in the output tree
		TsconfigRaw: `{"compilerOptions":{"importHelpers":false}}`,
	})
	if len(result.Errors) > 0 {
		var sb strings.Builder
		sb.WriteString("transform failed:\n")
		for _, msg := range result.Errors {
			fmt.Fprintf(&sb, "  %s\n", msg.Text)
		}
		return nil, fmt.Errorf("%s", sb.String())
	}
	return result.Code, nil
}

func loaderFor(path string) api.Loader {
	switch filepath.Ext(path) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	case ".json":
		return api.LoaderJSON
	default:
		return api.LoaderJS
	}
}
