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

package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"dbsnap/internal/common"
)

// ManifestName is the file at a snapshot root that lists the snapshot's
// symbolic links.
const ManifestName = "symlink_list.txt"

const manifestDelimiter = " -> "

// maxManifestLine bounds one manifest line: two quoted fields of
// MaxPathLength bytes each, every byte escaped.
const maxManifestLine = 2*4*common.MaxPathLength + len(manifestDelimiter) + 4

// SymlinkRecord is one manifest line: where the link lives, relative to the
// tree root and starting with "/", and the link's target text as read.
type SymlinkRecord struct {
	Path   string
	Target string
}

// String returns the record in manifest line form, without the newline.
func (r SymlinkRecord) String() string {
	return encodeField(r.Path) + manifestDelimiter + encodeField(r.Target)
}

// encodeField leaves ordinary text alone so manifests stay readable and
// compatible with the plain "<path> -> <target>" form. Text the plain form
// cannot carry is written as a Go quoted string.
func encodeField(s string) string {
	if strings.Contains(s+" ", manifestDelimiter) ||
		strings.ContainsAny(s, "\n\r") ||
		strings.HasPrefix(s, "\"") {
		return strconv.Quote(s)
	}
	return s
}

// ParseManifestLine parses one manifest line produced by SymlinkRecord.String.
func ParseManifestLine(line string) (SymlinkRecord, error) {
	var path, rest string

	if strings.HasPrefix(line, "\"") {
		quoted, err := strconv.QuotedPrefix(line)
		if err != nil {
			return SymlinkRecord{}, fmt.Errorf("bad quoted path: %w", err)
		}
		path, _ = strconv.Unquote(quoted)
		rest = line[len(quoted):]
		if !strings.HasPrefix(rest, manifestDelimiter) {
			return SymlinkRecord{}, fmt.Errorf("missing %q after quoted path", manifestDelimiter)
		}
	} else {
		idx := strings.Index(line, manifestDelimiter)
		if idx < 0 {
			return SymlinkRecord{}, fmt.Errorf("missing %q delimiter", manifestDelimiter)
		}
		path, rest = line[:idx], line[idx:]
	}

	target := rest[len(manifestDelimiter):]
	if strings.HasPrefix(target, "\"") {
		if quoted, err := strconv.QuotedPrefix(target); err == nil && len(quoted) == len(target) {
			target, _ = strconv.Unquote(quoted)
		}
	}

	if path == "" || target == "" {
		return SymlinkRecord{}, fmt.Errorf("empty path or target")
	}
	return SymlinkRecord{Path: path, Target: target}, nil
}

// EncodeManifest writes records one per line.
func EncodeManifest(w io.Writer, records []SymlinkRecord) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err := bw.WriteString(r.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecodeManifest reads records in file order. Lines that do not parse are
// returned as skipped entries named "line N" and do not stop the read.
func DecodeManifest(r io.Reader) ([]SymlinkRecord, []common.SkippedEntry, error) {
	var (
		records []SymlinkRecord
		skipped []common.SkippedEntry
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxManifestLine)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		rec, err := ParseManifestLine(line)
		if err != nil {
			skipped = append(skipped, common.SkippedEntry{Path: fmt.Sprintf("line %d", lineNo), Err: err})
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return records, skipped, fmt.Errorf("%w: read manifest: %w", common.ErrIO, err)
	}
	return records, skipped, nil
}

// CollectSymlinks reads the target of every link in links and pairs it with
// the link's path relative to root. Links that cannot be read are skipped.
func CollectSymlinks(fs common.FS, links []string, root string) ([]SymlinkRecord, []common.SkippedEntry) {
	records := make([]SymlinkRecord, 0, len(links))
	var skipped []common.SkippedEntry

	for _, link := range links {
		rel, err := common.RelativeTo(link, root)
		if err != nil {
			skipped = append(skipped, common.SkippedEntry{Path: link, Err: err})
			continue
		}
		target, err := fs.Readlink(link)
		if err != nil {
			skipped = append(skipped, common.SkippedEntry{
				Path: link,
				Err:  fmt.Errorf("%w: readlink %s: %w", common.ErrAccess, link, err),
			})
			continue
		}
		records = append(records, SymlinkRecord{Path: rel, Target: target})
	}
	return records, skipped
}

// WriteManifest writes records to path, replacing any existing file.
func WriteManifest(fs common.FS, path string, records []SymlinkRecord) error {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FileMode)
	if err != nil {
		return fmt.Errorf("%w: create manifest %s: %w", common.ErrIO, path, err)
	}
	if err := EncodeManifest(f, records); err != nil {
		f.Close()
		return fmt.Errorf("%w: write manifest %s: %w", common.ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close manifest %s: %w", common.ErrIO, path, err)
	}
	return nil
}

// ReadManifest loads the manifest at path. A missing file is reported as
// common.ErrManifestMissing so callers can treat it as "no links".
func ReadManifest(fs common.FS, path string) ([]SymlinkRecord, []common.SkippedEntry, error) {
	f, err := fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", common.ErrManifestMissing, path)
		}
		return nil, nil, fmt.Errorf("%w: open manifest %s: %w", common.ErrAccess, path, err)
	}
	defer f.Close()

	records, skipped, err := DecodeManifest(f)
	for i := range skipped {
		skipped[i].Path = path + ": " + skipped[i].Path
	}
	return records, skipped, err
}

// ReplayManifest recreates every record as a symlink under destRoot. The
// target text is used as is, so relative targets resolve against the new
// location. An existing symlink at the destination is replaced; any other
// existing entry is left alone and reported. It returns the number of links
// created.
func ReplayManifest(fs common.FS, records []SymlinkRecord, destRoot string, log logrus.FieldLogger) (int, []common.SkippedEntry) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	var (
		created int
		skipped []common.SkippedEntry
	)
	for _, rec := range records {
		linkPath := destRoot + rec.Path
		err := checkRecordPath(rec.Path)
		if err == nil {
			err = replayOne(fs, linkPath, rec.Target)
		}
		if err != nil {
			log.WithFields(logrus.Fields{"path": linkPath, "op": "symlink"}).Warn(err)
			skipped = append(skipped, common.SkippedEntry{Path: linkPath, Err: err})
			continue
		}
		log.WithFields(logrus.Fields{"path": linkPath, "target": rec.Target}).Trace("symlink created")
		created++
	}
	return created, skipped
}

// checkRecordPath accepts only clean absolute paths below the root, so a
// replayed link cannot land outside the restore target.
func checkRecordPath(p string) error {
	if p == "/" || !strings.HasPrefix(p, "/") || path.Clean(p) != p {
		return fmt.Errorf("%w: manifest path %q is not a clean path below the root", common.ErrInvalidPath, p)
	}
	return nil
}

func replayOne(fs common.FS, linkPath, target string) error {
	if err := common.CheckPathLength(linkPath); err != nil {
		return err
	}

	info, err := fs.Lstat(linkPath)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		if err := fs.Remove(linkPath); err != nil {
			return fmt.Errorf("%w: replace symlink %s: %w", common.ErrIO, linkPath, err)
		}
	case err == nil:
		return fmt.Errorf("%w: %s exists and is not a symlink", common.ErrIO, linkPath)
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: lstat %s: %w", common.ErrAccess, linkPath, err)
	}

	if err := fs.Symlink(target, linkPath); err != nil {
		return fmt.Errorf("%w: symlink %s: %w", common.ErrIO, linkPath, err)
	}
	return nil
}
