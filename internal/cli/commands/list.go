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
)

var listCmd = &cobra.Command{
	Use:     "list <repository>",
	Aliases: []string{"ls"},
	Short:   "List the snapshots in a repository",
	Args:    cobra.ExactArgs(1),
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	repo, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve repository path: %w", err)
	}

	ids, err := newEngine(nil).List(repo)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Printf("No snapshots in %s\n", repo)
		return nil
	}

	for _, id := range ids {
		taken, _ := id.Time()
		fmt.Printf("%s  %s\n", id, taken.Format("2006-01-02 15:04:05"))
	}
	return nil
}
