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
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"dbsnap/internal/common"
	"dbsnap/internal/storage"
	"dbsnap/internal/tree"
)

// Restore recreates snapshot id from the repository at repoRoot under
// targetRoot. Existing files in the target are overwritten and existing
// symlinks replaced; nothing else there is removed.
//
// A snapshot that does not exist, or a target inside the repository, is
// reported before anything is written.
// A missing or unreadable symlink manifest does not fail the restore: the
// directories and files are still restored and the problem is recorded in
// the result.
func (e *Engine) Restore(ctx context.Context, repoRoot, targetRoot string, id ID) (*Result, error) {
	start := time.Now()
	if err := id.Validate(); err != nil {
		return nil, err
	}
	repoRoot, targetRoot = filepath.Clean(repoRoot), filepath.Clean(targetRoot)
	repo := Repository{Root: repoRoot}
	snapshotPath := repo.SnapshotPath(id)
	log := e.log.WithFields(logrus.Fields{"id": id, "target": targetRoot, "repository": repoRoot})

	if common.IsWithin(targetRoot, repoRoot) {
		return nil, fmt.Errorf("%w: restore target %s is inside repository %s", common.ErrInvalidPath, targetRoot, repoRoot)
	}
	if err := e.checkSnapshot(snapshotPath); err != nil {
		return nil, err
	}

	unlock, err := e.lock(ctx, repoRoot)
	if err != nil {
		return nil, err
	}
	defer unlock()

	manifest := joinPath(snapshotPath, storage.ManifestName)
	listing, err := tree.Enumerate(ctx, e.fs, snapshotPath, tree.Options{
		Sort:    e.opts.Sort,
		Exclude: []string{manifest},
		Log:     e.log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate snapshot %s: %w", id, err)
	}

	if err := storage.EnsureDirectory(e.fs, targetRoot); err != nil {
		return nil, fmt.Errorf("failed to prepare restore target: %w", err)
	}

	res := &Result{ID: id, Path: targetRoot, Skipped: listing.Skipped}
	if err := e.populate(ctx, listing, snapshotPath, targetRoot, res); err != nil {
		return nil, err
	}
	if len(listing.Symlinks) > 0 {
		// Backups store links only in the manifest, so these were placed in
		// the snapshot by hand. They are not restored.
		log.WithField("count", len(listing.Symlinks)).Debug("restore: symlinks inside snapshot ignored")
	}

	records, skipped, err := storage.ReadManifest(e.fs, manifest)
	e.recordSkipped(res, "manifest", skipped)
	if err != nil {
		e.skip(res, manifest, "manifest", err)
	}
	created, skipped := storage.ReplayManifest(e.fs, records, rootPrefix(targetRoot), e.log)
	res.Skipped = append(res.Skipped, skipped...)
	res.Symlinks = created

	res.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"dirs":     res.Dirs,
		"files":    res.Files,
		"symlinks": res.Symlinks,
		"bytes":    res.Bytes,
		"skipped":  len(res.Skipped),
	}).Info("restore completed")
	return res, nil
}

// checkSnapshot reports common.ErrSnapshotNotFound unless path is an
// existing snapshot directory.
func (e *Engine) checkSnapshot(path string) error {
	info, err := e.fs.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %s", common.ErrSnapshotNotFound, path)
	case err != nil:
		return fmt.Errorf("%w: stat %s: %w", common.ErrAccess, path, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s is not a directory", common.ErrSnapshotNotFound, path)
	}
	return nil
}
