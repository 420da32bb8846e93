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

// Package storage writes snapshot contents: directories, file copies and the
// symlink manifest.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"

	"dbsnap/internal/common"
)

const (
	// DirMode and FileMode are applied to everything written; source
	// permissions are not carried over.
	DirMode  os.FileMode = 0700
	FileMode os.FileMode = 0600

	// CopyChunkSize is the buffer size DuplicateFile copies with.
	CopyChunkSize = 4096
)

// EnsureDirectory creates path as a directory unless one already exists.
// Calling it again on the same path changes nothing.
func EnsureDirectory(fs common.FS, path string) error {
	if err := common.CheckPathLength(path); err != nil {
		return err
	}

	info, err := fs.Lstat(path)
	if err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%w: %s already exists", common.ErrNotDir, path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: lstat %s: %w", common.ErrAccess, path, err)
	}

	if err := fs.MkdirAll(path, DirMode); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", common.ErrIO, path, err)
	}
	return nil
}

// DuplicateFile copies the bytes of src into dest, creating or truncating
// dest. A symlink already at dest is replaced, never written through. It
// returns the number of bytes written. Both files are closed before it
// returns.
func DuplicateFile(fs common.FS, src, dest string) (int64, error) {
	if err := common.CheckPathLength(dest); err != nil {
		return 0, err
	}

	in, err := fs.Open(src)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", common.ErrAccess, src, err)
	}
	defer in.Close()

	if info, err := fs.Lstat(dest); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := fs.Remove(dest); err != nil {
			return 0, fmt.Errorf("%w: replace symlink %s: %w", common.ErrIO, dest, err)
		}
	}

	out, err := fs.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FileMode)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", common.ErrIO, dest, err)
	}

	n, copyErr := copyChunked(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		return n, fmt.Errorf("%w: copy %s to %s: %w", common.ErrIO, src, dest, copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("%w: close %s: %w", common.ErrIO, dest, closeErr)
	}
	return n, nil
}

// copyChunked is io.Copy with a fixed CopyChunkSize buffer and no
// ReaderFrom/WriterTo shortcuts.
func copyChunked(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, CopyChunkSize)
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
