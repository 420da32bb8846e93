package tree

import (
	"strings"

	"github.com/go-git/go-billy/v5/util"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sirupsen/logrus"

	"dbsnap/internal/common"
)

// IgnoreFileName is read from the root of a source tree, if present, and
// holds gitignore-style exclude patterns for that tree.
const IgnoreFileName = ".dbsnapignore"

// Filter decides whether an entry is kept. relPath is slash separated and
// relative to the walk root, with no leading slash.
type Filter func(relPath string, isDir bool) bool

// BuildFilter compiles the given exclude patterns together with the
// patterns from root's ignore file into a Filter. It returns nil when there
// is nothing to exclude.
func BuildFilter(fs common.FS, root string, excludes []string) Filter {
	lines := append([]string(nil), excludes...)

	data, err := util.ReadFile(fs, joinChild(root, IgnoreFileName))
	if err == nil {
		lines = append(lines, strings.Split(string(data), "\n")...)
	} else if _, statErr := fs.Lstat(joinChild(root, IgnoreFileName)); statErr == nil {
		logrus.WithField("path", joinChild(root, IgnoreFileName)).Warnf("filter: failed to read ignore file: %v", err)
	}

	if !hasPattern(lines) {
		return nil
	}

	gi := ignore.CompileIgnoreLines(lines...)
	return func(relPath string, isDir bool) bool {
		checkPath := relPath
		if isDir {
			checkPath = relPath + "/"
		}
		return !gi.MatchesPath(checkPath)
	}
}

func hasPattern(lines []string) bool {
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" && !strings.HasPrefix(l, "#") {
			return true
		}
	}
	return false
}
