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
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"dbsnap/internal/common"
	"dbsnap/internal/util"
)

const (
	// LockFileName is the advisory lock taken in a repository for the
	// length of a backup or restore.
	LockFileName = ".dbsnap.lock"

	stagingPrefix = ".staging-"
)

// Repository is a directory of snapshots, one subdirectory per ID.
type Repository struct {
	Root string
}

// SnapshotPath returns where the snapshot with the given ID lives.
func (r Repository) SnapshotPath(id ID) string {
	return joinPath(r.Root, string(id))
}

// LockPath returns the repository's lock file path.
func (r Repository) LockPath() string {
	return joinPath(r.Root, LockFileName)
}

func (r Repository) newStagingPath() string {
	return joinPath(r.Root, stagingPrefix+uuid.New().String())
}

// List returns the IDs of the snapshots in the repository, oldest first.
// Staging directories of unfinished backups and entries that are not
// well-formed snapshot directories are left out.
func (r Repository) List(fs common.FS) ([]ID, error) {
	infos, err := fs.ReadDir(r.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: repository %s does not exist", common.ErrStructural, r.Root)
		}
		return nil, fmt.Errorf("%w: read repository %s: %w", common.ErrAccess, r.Root, err)
	}

	var ids []ID
	for _, fi := range infos {
		name := fi.Name()
		if !fi.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if id := ID(name); id.IsWellFormed() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Locker serializes operations on a repository.
type Locker interface {
	// Lock blocks until the repository at root is held or ctx ends, and
	// returns the function that releases it.
	Lock(ctx context.Context, root string) (unlock func() error, err error)
}

// FileLocker takes an flock on the repository's lock file, which it
// creates if needed. The repository directory must exist. It works on the
// host filesystem only.
type FileLocker struct {
	// Timeout bounds how long Lock waits for another holder. Zero means a
	// single attempt.
	Timeout time.Duration
}

func (l FileLocker) Lock(ctx context.Context, root string) (func() error, error) {
	fl := flock.New(Repository{Root: root}.LockPath(), flock.SetPermissions(0600))
	tryLock := func() error {
		locked, err := fl.TryLock()
		if err != nil {
			return err
		}
		if !locked {
			return util.ErrLockBusy
		}
		return nil
	}

	var err error
	if l.Timeout <= 0 {
		err = tryLock()
	} else {
		lockCtx, cancel := context.WithTimeout(ctx, l.Timeout)
		err = util.Retry(lockCtx, tryLock, util.LockRetryOptions()...)
		cancel()
	}
	if err != nil {
		if util.IsLockBusy(err) {
			return nil, fmt.Errorf("%w: %s", common.ErrRepositoryLocked, root)
		}
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", root, err)
	}
	return fl.Unlock, nil
}

// joinPath appends name to dir without cleaning dir.
func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
