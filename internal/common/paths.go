// Copyright 2024 dbsnap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Limits mirror PATH_MAX and NAME_MAX on Linux.
const (
	MaxPathLength = 4096
	MaxNameLength = 255
)

// NormalizePath cleans and normalizes a path, removing leading/trailing slashes
func NormalizePath(path string) string {
	path = filepath.Clean(path)
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")
	if path == "." {
		return ""
	}
	return path
}

// RelativeTo returns the part of path that follows root, verbatim.
// For a path under root the result starts with a separator; for root itself
// it is empty. No cleaning is done on either argument.
func RelativeTo(path, root string) (string, error) {
	if !strings.HasPrefix(path, root) {
		return "", fmt.Errorf("%w: %q is not under %q", ErrInvalidPath, path, root)
	}
	return path[len(root):], nil
}

// Remap moves path from under sourceRoot to under destRoot by swapping the
// root prefix: destRoot + path[len(sourceRoot):].
func Remap(path, sourceRoot, destRoot string) (string, error) {
	rel, err := RelativeTo(path, sourceRoot)
	if err != nil {
		return "", err
	}
	dest := destRoot + rel
	if err := CheckPathLength(dest); err != nil {
		return "", err
	}
	return dest, nil
}

// CheckPathLength reports ErrPathTooLong when path, or any one of its
// components, exceeds what the filesystem accepts.
func CheckPathLength(path string) error {
	if len(path) >= MaxPathLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPathTooLong, len(path), MaxPathLength-1)
	}
	for _, part := range strings.Split(path, "/") {
		if len(part) > MaxNameLength {
			return fmt.Errorf("%w: component %.32q... is %d bytes (max %d)", ErrPathTooLong, part, len(part), MaxNameLength)
		}
	}
	return nil
}

// IsWithin reports whether path is root or lies below it. Both must be
// cleaned absolute paths.
func IsWithin(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, "/")+"/")
}
