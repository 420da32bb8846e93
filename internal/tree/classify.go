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

// Package tree classifies and enumerates directory trees without following
// symbolic links.
package tree

import (
	"fmt"
	"os"

	billy "github.com/go-git/go-billy/v5"

	"dbsnap/internal/common"
)

// Kind is the type of a single filesystem entry.
type Kind int

const (
	KindOther Kind = iota
	KindDirectory
	KindRegularFile
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindRegularFile:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// KindOf maps a mode to a Kind. Devices, sockets and fifos are KindOther.
func KindOf(mode os.FileMode) Kind {
	switch {
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	case mode.IsDir():
		return KindDirectory
	case mode.IsRegular():
		return KindRegularFile
	default:
		return KindOther
	}
}

// Classify reports the kind of the entry at path itself; a symlink is
// reported as KindSymlink whatever it points to.
func Classify(fs billy.Symlink, path string) (Kind, error) {
	info, err := fs.Lstat(path)
	if err != nil {
		return KindOther, fmt.Errorf("%w: lstat %s: %w", common.ErrAccess, path, err)
	}
	return KindOf(info.Mode()), nil
}
