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

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/izefs/ize/common"
	"github.com/izefs/ize/internal/project"
	"github.com/spf13/cobra"
)

var initChannel string

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a new project under the configured central directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		g, err := loadGlobalConfig()
		if err != nil {
			return common.NewCLIError(common.ExitIOError, err)
		}

		if _, err := project.Create(g.CentralDir, name, initChannel); err != nil {
			if errors.Is(err, os.ErrExist) {
				return common.NewCLIError(common.ExitUserError, err)
			}
			return common.NewCLIError(common.ExitIOError, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "initialized project %q\n", name)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initChannel, "channel", "main", "initial channel name")
}
