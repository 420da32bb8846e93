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
	"errors"
	"fmt"
)

// Error classes. Per-entry failures wrap one of these so callers can
// classify them with errors.Is.
var (
	// ErrAccess: an entry cannot be inspected or opened (permission, vanished).
	ErrAccess = errors.New("access error")
	// ErrIO: read, write or copy failed on an already opened resource.
	ErrIO = errors.New("I/O error")
	// ErrStructural: an expected snapshot directory or manifest is missing.
	ErrStructural = errors.New("structural error")

	ErrInvalidPath      = errors.New("invalid path")
	ErrPathTooLong      = errors.New("path too long")
	ErrNotDir           = errors.New("not a directory")
	ErrSnapshotExists   = errors.New("snapshot already exists")
	ErrRepositoryLocked = errors.New("repository is locked by another process")
)

var (
	ErrSnapshotNotFound = fmt.Errorf("%w: snapshot not found", ErrStructural)
	ErrManifestMissing  = fmt.Errorf("%w: symlink manifest missing", ErrStructural)
)

// SkippedEntry records one entry a batch operation gave up on.
type SkippedEntry struct {
	Path string
	Err  error
}

func (s SkippedEntry) String() string {
	return s.Path + ": " + s.Err.Error()
}
