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

	billyutil "github.com/go-git/go-billy/v5/util"
	"github.com/sirupsen/logrus"

	"dbsnap/internal/common"
	"dbsnap/internal/storage"
	"dbsnap/internal/tree"
)

// Backup takes a full snapshot of sourceRoot into the repository at
// repoRoot, creating the repository if needed.
//
// The snapshot is built in a staging directory and renamed to its ID once
// every entry has been handled, so a snapshot directory under its final
// name is always complete. Entries that cannot be read are skipped and
// listed in the result; only failures that leave no usable snapshot are
// returned as errors.
func (e *Engine) Backup(ctx context.Context, repoRoot, sourceRoot string) (*Result, error) {
	start := time.Now()
	repoRoot, sourceRoot = filepath.Clean(repoRoot), filepath.Clean(sourceRoot)
	repo := Repository{Root: repoRoot}
	log := e.log.WithFields(logrus.Fields{"source": sourceRoot, "repository": repoRoot})

	if common.IsWithin(sourceRoot, repoRoot) {
		return nil, fmt.Errorf("%w: source %s is inside repository %s", common.ErrInvalidPath, sourceRoot, repoRoot)
	}
	if err := storage.EnsureDirectory(e.fs, repoRoot); err != nil {
		return nil, fmt.Errorf("failed to prepare repository: %w", err)
	}

	unlock, err := e.lock(ctx, repoRoot)
	if err != nil {
		return nil, err
	}
	defer unlock()

	id := NewID(e.opts.Now())
	final := repo.SnapshotPath(id)
	if _, err := e.fs.Lstat(final); err == nil {
		return nil, fmt.Errorf("%w: %s", common.ErrSnapshotExists, final)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: lstat %s: %w", common.ErrAccess, final, err)
	}

	res := &Result{ID: id, Path: final}

	// The manifest occupies this name at the snapshot root, so a source
	// entry with the same name cannot be kept.
	manifestSrc := joinPath(sourceRoot, storage.ManifestName)
	if _, err := e.fs.Lstat(manifestSrc); err == nil {
		e.skip(res, manifestSrc, "backup",
			fmt.Errorf("%w: %s collides with the symlink manifest", common.ErrInvalidPath, manifestSrc))
	}

	listing, err := tree.Enumerate(ctx, e.fs, sourceRoot, tree.Options{
		Sort:    e.opts.Sort,
		Filter:  tree.BuildFilter(e.fs, sourceRoot, e.opts.Excludes),
		Exclude: []string{repoRoot, manifestSrc},
		Log:     e.log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", sourceRoot, err)
	}
	res.Skipped = append(res.Skipped, listing.Skipped...)
	log.WithField("entries", listing.Len()).Debug("backup: source enumerated")

	staging := repo.newStagingPath()
	if err := storage.EnsureDirectory(e.fs, staging); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	published := false
	defer func() {
		if published {
			return
		}
		if err := billyutil.RemoveAll(e.fs, staging); err != nil {
			log.WithField("path", staging).Warnf("failed to remove staging directory: %v", err)
		}
	}()

	if err := e.populate(ctx, listing, sourceRoot, staging, res); err != nil {
		return nil, err
	}

	records, skipped := storage.CollectSymlinks(e.fs, listing.Symlinks, rootPrefix(sourceRoot))
	e.recordSkipped(res, "readlink", skipped)
	manifest := joinPath(staging, storage.ManifestName)
	if err := storage.WriteManifest(e.fs, manifest, records); err != nil {
		e.skip(res, manifest, "manifest", err)
	} else {
		res.Symlinks = len(records)
	}

	if err := e.fs.Rename(staging, final); err != nil {
		return nil, fmt.Errorf("%w: publish snapshot %s: %w", common.ErrIO, final, err)
	}
	published = true

	res.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"id":       id,
		"dirs":     res.Dirs,
		"files":    res.Files,
		"symlinks": res.Symlinks,
		"bytes":    res.Bytes,
		"skipped":  len(res.Skipped),
	}).Info("backup completed")
	return res, nil
}
