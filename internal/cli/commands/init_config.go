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

	"github.com/spf13/cobra"

	"dbsnap/internal/config"
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the default settings file",
	Long: `Create the configuration directory and write settings.yaml with the
default values. An existing settings file is never overwritten.

The directory is --config-dir, else $DBSNAP_CONFIG_DIR, else ~/.dbsnap.`,
	Args: cobra.NoArgs,
	RunE: runInitConfig,
}

func init() {
	rootCmd.AddCommand(initConfigCmd)
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	written, err := config.InitConfigDir()
	if err != nil {
		return err
	}
	if written {
		fmt.Printf("Created default settings in %s\n", config.SettingsPath())
	} else {
		fmt.Printf("Settings already exist at %s (not modified)\n", config.SettingsPath())
	}
	return nil
}
