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

package snapshot

import (
	"fmt"
	"strings"
	"time"

	"dbsnap/internal/common"
)

const (
	idLayout = "20060102150405"

	// FullSuffix marks an ID as a full, non-incremental snapshot.
	FullSuffix = "_FULL"
)

// ID names one snapshot and is also its directory name in the repository.
// IDs have one-second resolution, so two backups started within the same
// second get the same ID.
type ID string

// NewID returns the ID for a full snapshot taken at t, in local time.
func NewID(t time.Time) ID {
	return ID(t.Local().Format(idLayout) + FullSuffix)
}

func (id ID) String() string {
	return string(id)
}

// Time returns the creation time encoded in a well-formed ID.
func (id ID) Time() (time.Time, error) {
	s, ok := strings.CutSuffix(string(id), FullSuffix)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q has no %s suffix", common.ErrInvalidPath, id, FullSuffix)
	}
	t, err := time.ParseInLocation(idLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %w", common.ErrInvalidPath, id, err)
	}
	return t, nil
}

// IsWellFormed reports whether id looks like one NewID produces.
func (id ID) IsWellFormed() bool {
	_, err := id.Time()
	return err == nil
}

// Validate checks that id can safely name a single directory inside a
// repository. It accepts IDs that are not well formed, so snapshot
// directories renamed by hand can still be restored.
func (id ID) Validate() error {
	s := string(id)
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, "/\x00") {
		return fmt.Errorf("%w: bad snapshot id %q", common.ErrInvalidPath, s)
	}
	if len(s) > common.MaxNameLength {
		return fmt.Errorf("%w: snapshot id is %d bytes", common.ErrPathTooLong, len(s))
	}
	return nil
}
