package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbsnap/internal/common"
)

func TestRepositoryPaths(t *testing.T) {
	t.Parallel()

	repo := Repository{Root: "/backups"}
	assert.Equal(t, "/backups/20240305140709_FULL", repo.SnapshotPath("20240305140709_FULL"))
	assert.Equal(t, "/backups/"+LockFileName, repo.LockPath())

	staging := repo.newStagingPath()
	assert.Contains(t, staging, "/backups/"+stagingPrefix)
	assert.NotEqual(t, staging, repo.newStagingPath())

	root := Repository{Root: "/"}
	assert.Equal(t, "/x_FULL", root.SnapshotPath("x_FULL"))
}

func TestRepositoryList(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	for _, dir := range []string{
		"/repo/20240305140709_FULL",
		"/repo/20230101000000_FULL",
		"/repo/.staging-1234",
		"/repo/notes",
	} {
		require.NoError(t, fs.MkdirAll(dir, 0700))
	}
	require.NoError(t, util.WriteFile(fs, "/repo/20240101000000_FULL", nil, 0600))
	require.NoError(t, util.WriteFile(fs, "/repo/"+LockFileName, nil, 0600))

	ids, err := Repository{Root: "/repo"}.List(fs)
	require.NoError(t, err)
	assert.Equal(t, []ID{"20230101000000_FULL", "20240305140709_FULL"}, ids)
}

func TestRepositoryListEmptyAndMissing(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/repo", 0700))

	ids, err := Repository{Root: "/repo"}.List(fs)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = Repository{Root: "/nope"}.List(fs)
	assert.ErrorIs(t, err, common.ErrStructural)
}

func TestFileLocker(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	locker := FileLocker{}

	unlock, err := locker.Lock(context.Background(), root)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, LockFileName))
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), root)
	assert.ErrorIs(t, err, common.ErrRepositoryLocked)

	require.NoError(t, unlock())

	unlock, err = locker.Lock(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestFileLockerWaits(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	held := flock.New(filepath.Join(root, LockFileName))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	go func() {
		time.Sleep(150 * time.Millisecond)
		held.Unlock()
	}()

	unlock, err := FileLocker{Timeout: 5 * time.Second}.Lock(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestFileLockerTimeout(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	held := flock.New(filepath.Join(root, LockFileName))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	start := time.Now()
	_, err = FileLocker{Timeout: 250 * time.Millisecond}.Lock(context.Background(), root)
	assert.ErrorIs(t, err, common.ErrRepositoryLocked)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestFileLockerMissingRepository(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "missing")
	_, err := FileLocker{}.Lock(context.Background(), root)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrRepositoryLocked)

	_, statErr := os.Stat(root)
	assert.True(t, os.IsNotExist(statErr))
}
