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

package tree

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"dbsnap/internal/common"
)

// PathSet is an ordered list of absolute paths collected during one walk.
type PathSet []string

// Listing is the result of one Enumerate call. Every directory in Dirs
// precedes all of its descendants in Dirs, Files and Symlinks.
type Listing struct {
	Root     string
	Dirs     PathSet
	Files    PathSet
	Symlinks PathSet
	Skipped  []common.SkippedEntry
}

// Len returns the number of collected entries.
func (l *Listing) Len() int {
	return len(l.Dirs) + len(l.Files) + len(l.Symlinks)
}

// Options tunes Enumerate.
type Options struct {
	// Sort orders the children of each directory by name. Without it the
	// order is whatever the filesystem's directory listing returns.
	Sort bool
	// Filter, if set, is consulted with the slash-separated path relative to
	// the root. Entries it rejects are neither collected nor descended into.
	Filter Filter
	// Exclude lists absolute paths that are pruned from the walk.
	Exclude []string
	Log     logrus.FieldLogger
}

// Enumerate walks root depth-first in pre-order and sorts every entry below
// it into directories, regular files and symlinks. Symlinks are never
// followed and other entry kinds are dropped.
//
// Only a failure to read root itself is returned as an error. An entry that
// cannot be inspected, or a directory that cannot be listed, is logged and
// recorded in Listing.Skipped; the walk carries on with the rest of the tree.
func Enumerate(ctx context.Context, fs common.FS, root string, opts Options) (*Listing, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	info, err := fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", common.ErrAccess, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", common.ErrNotDir, root)
	}

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, p := range opts.Exclude {
		excluded[filepath.Clean(p)] = true
	}

	w := &walker{
		fs:       fs,
		opts:     opts,
		log:      log,
		excluded: excluded,
		listing:  &Listing{Root: root},
	}

	children, err := w.children(root)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir %s: %w", common.ErrAccess, root, err)
	}

	// Work list of paths still to visit. Children are pushed in reverse so
	// they pop in listing order, which reproduces a recursive pre-order walk.
	stack := reversed(children)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return w.listing, err
		}

		path := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !w.visit(path) {
			continue
		}

		sub, err := w.children(path)
		if err != nil {
			w.skip(path, fmt.Errorf("%w: read dir %s: %w", common.ErrAccess, path, err))
			continue
		}
		stack = append(stack, reversed(sub)...)
	}

	log.WithFields(logrus.Fields{
		"root":     root,
		"dirs":     len(w.listing.Dirs),
		"files":    len(w.listing.Files),
		"symlinks": len(w.listing.Symlinks),
		"skipped":  len(w.listing.Skipped),
	}).Debug("enumerate: done")

	return w.listing, nil
}

type walker struct {
	fs       common.FS
	opts     Options
	log      logrus.FieldLogger
	excluded map[string]bool
	listing  *Listing
}

// visit classifies path and records it. It reports whether path is a
// directory whose children should be walked next.
func (w *walker) visit(path string) bool {
	if w.excluded[filepath.Clean(path)] {
		w.log.WithField("path", path).Debug("enumerate: excluded")
		return false
	}

	kind, err := Classify(w.fs, path)
	if err != nil {
		w.skip(path, err)
		return false
	}

	if w.opts.Filter != nil {
		rel, err := common.RelativeTo(path, w.listing.Root)
		if err == nil && !w.opts.Filter(common.NormalizePath(rel), kind == KindDirectory) {
			w.log.WithField("path", path).Debug("enumerate: filtered")
			return false
		}
	}

	switch kind {
	case KindDirectory:
		w.listing.Dirs = append(w.listing.Dirs, path)
		return true
	case KindRegularFile:
		w.listing.Files = append(w.listing.Files, path)
	case KindSymlink:
		w.listing.Symlinks = append(w.listing.Symlinks, path)
	default:
		w.log.WithField("path", path).Trace("enumerate: special file ignored")
	}
	return false
}

func (w *walker) children(dir string) ([]string, error) {
	infos, err := w.fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	if w.opts.Sort {
		sort.Strings(names)
	}
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = joinChild(dir, name)
	}
	return paths, nil
}

func (w *walker) skip(path string, err error) {
	w.log.WithFields(logrus.Fields{"path": path, "op": "enumerate"}).Warn(err)
	w.listing.Skipped = append(w.listing.Skipped, common.SkippedEntry{Path: path, Err: err})
}

// joinChild appends name to dir without cleaning dir, so every collected
// path keeps the root exactly as the caller spelled it.
func joinChild(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}

func reversed(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[len(paths)-1-i] = p
	}
	return out
}
