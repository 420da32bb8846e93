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
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// FS is the part of a billy filesystem that snapshot and restore need:
// file and directory operations plus link-aware stat and symlinks.
type FS interface {
	billy.Basic
	billy.Dir
	billy.Symlink
}

// HostFS returns the operating system filesystem addressed by absolute
// paths. Calls map directly onto the os package, so link targets pass
// through unaltered and Remove never follows a final symlink.
func HostFS() FS {
	return osfs.Default
}
