package storage

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbsnap/internal/common"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSymlinkRecordString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  SymlinkRecord
		want string
	}{
		{"plain absolute", SymlinkRecord{"/a/link1", "/etc/passwd"}, "/a/link1 -> /etc/passwd"},
		{"plain relative", SymlinkRecord{"/a/up", "../b/c"}, "/a/up -> ../b/c"},
		{"spaces stay plain", SymlinkRecord{"/my dir/l", "my target"}, "/my dir/l -> my target"},
		{"delimiter in path", SymlinkRecord{"/a -> b", "t"}, `"/a -> b" -> t`},
		{"path ends with arrow", SymlinkRecord{"/a ->", "t"}, `"/a ->" -> t`},
		{"delimiter in target", SymlinkRecord{"/l", "x -> y"}, `/l -> "x -> y"`},
		{"newline", SymlinkRecord{"/l\n2", "t"}, `"/l\n2" -> t`},
		{"leading quote", SymlinkRecord{"/l", `"q"`}, `/l -> "\"q\""`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.rec.String())

			back, err := ParseManifestLine(tt.rec.String())
			require.NoError(t, err)
			assert.Equal(t, tt.rec, back)
		})
	}
}

func TestParseManifestLine(t *testing.T) {
	t.Parallel()

	t.Run("splits on first delimiter", func(t *testing.T) {
		t.Parallel()
		rec, err := ParseManifestLine("/a/l -> x -> y")
		require.NoError(t, err)
		assert.Equal(t, SymlinkRecord{"/a/l", "x -> y"}, rec)
	})

	t.Run("unbalanced quote in target kept verbatim", func(t *testing.T) {
		t.Parallel()
		rec, err := ParseManifestLine(`/a/l -> "half`)
		require.NoError(t, err)
		assert.Equal(t, `"half`, rec.Target)
	})

	for _, bad := range []string{"no delimiter", `"/unterminated -> x`, `"/a"x -> y`, "/a -> ", " -> t"} {
		bad := bad
		t.Run("rejects "+bad, func(t *testing.T) {
			t.Parallel()
			_, err := ParseManifestLine(bad)
			assert.Error(t, err)
		})
	}
}

func TestManifestRoundTrip(t *testing.T) {
	t.Parallel()

	records := []SymlinkRecord{
		{"/a/link1", "/etc/passwd"},
		{"/b/rel", "../a/file1"},
		{"/c/with space", "target with space"},
		{"/d -> e", "weird -> target"},
		{"/z", "/last"},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeManifest(&buf, records))
	assert.Equal(t, len(records), strings.Count(buf.String(), "\n"))

	got, skipped, err := DecodeManifest(&buf)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, records, got)
}

func TestDecodeManifestSkipsBadLines(t *testing.T) {
	t.Parallel()

	in := "/a -> 1\n\ngarbage\n/b -> 2\n"
	got, skipped, err := DecodeManifest(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []SymlinkRecord{{"/a", "1"}, {"/b", "2"}}, got)
	require.Len(t, skipped, 1)
	assert.Equal(t, "line 3", skipped[0].Path)
}

func TestWriteReadManifest(t *testing.T) {
	t.Parallel()
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/repo/id", DirMode))

	records := []SymlinkRecord{{"/a/link1", "/etc/passwd"}}
	path := "/repo/id/" + ManifestName
	require.NoError(t, WriteManifest(fs, path, records))

	raw, err := util.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "/a/link1 -> /etc/passwd\n", string(raw))

	got, skipped, err := ReadManifest(fs, path)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, records, got)
}

func TestReadManifestMissing(t *testing.T) {
	t.Parallel()
	fs := memfs.New()

	_, _, err := ReadManifest(fs, "/repo/id/"+ManifestName)
	assert.ErrorIs(t, err, common.ErrManifestMissing)
	assert.ErrorIs(t, err, common.ErrStructural)
}

func TestCollectSymlinks(t *testing.T) {
	t.Parallel()
	fs := memfs.New()
	require.NoError(t, fs.Symlink("/etc/passwd", "/db/a/link1"))
	require.NoError(t, fs.Symlink("../a", "/db/b/up"))

	records, skipped := CollectSymlinks(fs, []string{"/db/a/link1", "/db/b/up", "/db/gone", "/elsewhere/l"}, "/db")
	assert.Equal(t, []SymlinkRecord{
		{"/a/link1", "/etc/passwd"},
		{"/b/up", "../a"},
	}, records)

	require.Len(t, skipped, 2)
	assert.Equal(t, "/db/gone", skipped[0].Path)
	assert.ErrorIs(t, skipped[0].Err, common.ErrAccess)
	assert.ErrorIs(t, skipped[1].Err, common.ErrInvalidPath)
}

func TestReplayManifest(t *testing.T) {
	t.Parallel()

	t.Run("creates links with literal targets", func(t *testing.T) {
		t.Parallel()
		fs := memfs.New()
		require.NoError(t, fs.MkdirAll("/out/a", DirMode))

		n, skipped := ReplayManifest(fs, []SymlinkRecord{
			{"/a/link1", "/etc/passwd"},
			{"/a/rel", "../b"},
		}, "/out", quietLogger())
		assert.Equal(t, 2, n)
		assert.Empty(t, skipped)

		target, err := fs.Readlink("/out/a/link1")
		require.NoError(t, err)
		assert.Equal(t, "/etc/passwd", target)

		target, err = fs.Readlink("/out/a/rel")
		require.NoError(t, err)
		assert.Equal(t, "../b", target)
	})

	t.Run("replaces existing link", func(t *testing.T) {
		t.Parallel()
		fs := memfs.New()
		require.NoError(t, fs.Symlink("/old", "/out/l"))

		n, skipped := ReplayManifest(fs, []SymlinkRecord{{"/l", "/new"}}, "/out", quietLogger())
		assert.Equal(t, 1, n)
		assert.Empty(t, skipped)

		target, err := fs.Readlink("/out/l")
		require.NoError(t, err)
		assert.Equal(t, "/new", target)
	})

	t.Run("leaves regular file alone", func(t *testing.T) {
		t.Parallel()
		fs := memfs.New()
		require.NoError(t, util.WriteFile(fs, "/out/l", []byte("data"), FileMode))

		n, skipped := ReplayManifest(fs, []SymlinkRecord{{"/l", "/t"}, {"/m", "/t"}}, "/out", quietLogger())
		assert.Equal(t, 1, n)
		require.Len(t, skipped, 1)
		assert.Equal(t, "/out/l", skipped[0].Path)
		assert.ErrorIs(t, skipped[0].Err, common.ErrIO)

		info, err := fs.Lstat("/out/l")
		require.NoError(t, err)
		assert.Zero(t, info.Mode()&os.ModeSymlink)
	})
	t.Run("rejects paths outside the root", func(t *testing.T) {
		t.Parallel()
		fs := memfs.New()
		require.NoError(t, fs.MkdirAll("/restore/out", DirMode))

		bad := []SymlinkRecord{
			{"/../../x", "y"},
			{"/a/../../x", "y"},
			{"relative", "y"},
			{"/", "y"},
			{"/a//b", "y"},
		}
		n, skipped := ReplayManifest(fs, append(bad, SymlinkRecord{"/ok", "y"}), "/restore/out", quietLogger())
		assert.Equal(t, 1, n)
		require.Len(t, skipped, len(bad))
		for _, s := range skipped {
			assert.ErrorIs(t, s.Err, common.ErrInvalidPath, s.Path)
		}

		_, err := fs.Lstat("/x")
		assert.True(t, os.IsNotExist(err))
		_, err = fs.Lstat("/restore/x")
		assert.True(t, os.IsNotExist(err))
	})
}
