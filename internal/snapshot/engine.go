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

// Package snapshot takes full snapshots of a directory tree into a
// repository and restores them.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dbsnap/internal/common"
	"dbsnap/internal/storage"
	"dbsnap/internal/tree"
)

// Options configures an Engine.
type Options struct {
	// Sort walks each directory in name order so runs are reproducible.
	Sort bool
	// Excludes are gitignore-style patterns, relative to the source root,
	// for entries a backup leaves out.
	Excludes []string
	// Locker serializes runs on one repository. Nil disables locking.
	Locker Locker
	// Now returns the time a snapshot ID is derived from. Defaults to
	// time.Now.
	Now func() time.Time
	Log logrus.FieldLogger
}

// Engine runs backups and restores. It holds no state between runs.
type Engine struct {
	fs   common.FS
	opts Options
	log  logrus.FieldLogger
}

// NewEngine returns an engine working on fs.
func NewEngine(fs common.FS, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{fs: fs, opts: opts, log: log}
}

// Result describes a finished backup or restore.
type Result struct {
	ID ID
	// Path is the snapshot directory for a backup and the target directory
	// for a restore.
	Path     string
	Dirs     int
	Files    int
	Symlinks int
	Bytes    int64
	// Skipped lists entries that could not be handled. The run still
	// completed for everything else.
	Skipped  []common.SkippedEntry
	Duration time.Duration
}

// List returns the snapshot IDs in the repository, oldest first.
func (e *Engine) List(repoRoot string) ([]ID, error) {
	return Repository{Root: repoRoot}.List(e.fs)
}

// populate recreates listing, taken under srcRoot, beneath destRoot: all
// directories first, so every file's parent exists when it is copied.
func (e *Engine) populate(ctx context.Context, listing *tree.Listing, srcRoot, destRoot string, res *Result) error {
	srcRoot, destRoot = rootPrefix(srcRoot), rootPrefix(destRoot)
	for _, dir := range listing.Dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest, err := common.Remap(dir, srcRoot, destRoot)
		if err == nil {
			err = storage.EnsureDirectory(e.fs, dest)
		}
		if err != nil {
			e.skip(res, dir, "mkdir", err)
			continue
		}
		e.log.WithField("path", dest).Trace("directory created")
		res.Dirs++
	}

	for _, file := range listing.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest, err := common.Remap(file, srcRoot, destRoot)
		var n int64
		if err == nil {
			n, err = storage.DuplicateFile(e.fs, file, dest)
		}
		if err != nil {
			e.skip(res, file, "copy", err)
			continue
		}
		e.log.WithFields(logrus.Fields{"path": dest, "bytes": n}).Trace("file copied")
		res.Files++
		res.Bytes += n
	}
	return nil
}

func (e *Engine) skip(res *Result, path, op string, err error) {
	e.log.WithFields(logrus.Fields{"path": path, "op": op}).Warn(err)
	res.Skipped = append(res.Skipped, common.SkippedEntry{Path: path, Err: err})
}

// recordSkipped adds entries another component already gave up on.
func (e *Engine) recordSkipped(res *Result, op string, entries []common.SkippedEntry) {
	for _, s := range entries {
		e.skip(res, s.Path, op, s.Err)
	}
}

func (e *Engine) lock(ctx context.Context, root string) (func(), error) {
	if e.opts.Locker == nil {
		return func() {}, nil
	}
	unlock, err := e.opts.Locker.Lock(ctx, root)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := unlock(); err != nil {
			e.log.WithField("path", root).Warnf("failed to release repository lock: %v", err)
		}
	}, nil
}

// rootPrefix turns a cleaned root into the prefix Remap swaps, so that "/"
// maps "/a" to destRoot+"/a".
func rootPrefix(root string) string {
	return strings.TrimSuffix(root, "/")
}

func (r *Result) String() string {
	return fmt.Sprintf("%d directories, %d files (%d bytes), %d symlinks, %d skipped",
		r.Dirs, r.Files, r.Bytes, r.Symlinks, len(r.Skipped))
}
