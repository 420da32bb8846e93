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

package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dbsnap/internal/common"
	"dbsnap/internal/snapshot"
)

var backupExcludes []string

var backupCmd = &cobra.Command{
	Use:     "full_backup <repository> <database-dir>",
	Aliases: []string{"full-backup", "backup"},
	Short:   "Take a full snapshot of a database directory",
	Long: `Copy every directory and regular file under <database-dir> into a new
snapshot folder inside <repository>, named after the current local time
(YYYYMMDDhhmmss_FULL). The repository is created if it does not exist.

Symbolic links are not followed. Their targets are written to
symlink_list.txt at the root of the snapshot.

Entries matching the settings' excludes, --exclude, or a .dbsnapignore file
at the root of <database-dir> are left out. Entries that cannot be read are
reported and skipped; the rest of the tree is still backed up.`,
	Args: cobra.ExactArgs(2),
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().StringArrayVar(&backupExcludes, "exclude", nil, "gitignore-style pattern to leave out (repeatable)")
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	repo, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve repository path: %w", err)
	}
	source, err := filepath.Abs(args[1])
	if err != nil {
		return fmt.Errorf("failed to resolve database path: %w", err)
	}

	excludes := append(append([]string(nil), settings.Excludes...), backupExcludes...)
	res, err := newEngine(excludes).Backup(cmd.Context(), repo, source)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	fmt.Printf("Backup completed successfully in %s\n", res.Path)
	printSummary(res)
	return nil
}

func newEngine(excludes []string) *snapshot.Engine {
	return snapshot.NewEngine(common.HostFS(), snapshot.Options{
		Sort:     settings.SortEnabled(),
		Excludes: excludes,
		Locker:   snapshot.FileLocker{Timeout: settings.LockWait()},
		Log:      logrus.StandardLogger(),
	})
}

func printSummary(res *snapshot.Result) {
	fmt.Printf("  %s in %s\n", res, res.Duration.Round(time.Millisecond))
	for _, s := range res.Skipped {
		fmt.Printf("  skipped: %s\n", s)
	}
}
