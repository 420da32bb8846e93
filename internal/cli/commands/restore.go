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

	"github.com/spf13/cobra"

	"dbsnap/internal/snapshot"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <repository> <target-dir> <snapshot-id>",
	Short: "Restore a snapshot into a directory",
	Long: `Recreate snapshot <snapshot-id> from <repository> under <target-dir>,
which is created if needed. Files already in the target are overwritten and
symbolic links recorded in the snapshot replace existing links; nothing else
in the target is removed.

Use 'dbsnap list <repository>' to see the available snapshot IDs.`,
	Args: cobra.ExactArgs(3),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	repo, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve repository path: %w", err)
	}
	target, err := filepath.Abs(args[1])
	if err != nil {
		return fmt.Errorf("failed to resolve target path: %w", err)
	}
	id := snapshot.ID(args[2])

	res, err := newEngine(nil).Restore(cmd.Context(), repo, target, id)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	fmt.Printf("Restore completed successfully from %s to %s\n", id, res.Path)
	printSummary(res)
	return nil
}
