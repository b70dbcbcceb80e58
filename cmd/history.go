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
	"fmt"
	"strings"

	"github.com/izefs/ize/common"
	"github.com/izefs/ize/internal/backend"
	"github.com/izefs/ize/internal/clock"
	"github.com/izefs/ize/internal/project"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <name> [path]",
	Short: "Show the recorded change history for a project, or one file within it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		g, err := loadGlobalConfig()
		if err != nil {
			return common.NewCLIError(common.ExitIOError, err)
		}

		layout, err := project.Find(g.CentralDir, name)
		if err != nil {
			return common.NewCLIError(common.ExitUserError, err)
		}

		b, err := backend.Open(layout.Pristine, "", &clock.RealClock{})
		if err != nil {
			return common.NewCLIError(common.ExitBackendError, err)
		}
		defer b.Close()

		var changes []backend.ChangeInfo
		if len(args) == 2 {
			changes, err = b.GetFileHistory(args[1])
		} else {
			changes, err = b.ListChangesDetailed()
		}
		if err != nil {
			return common.NewCLIError(common.ExitBackendError, err)
		}

		out := cmd.OutOrStdout()
		for _, c := range changes {
			fmt.Fprintf(out, "%s  %s  %s  %s\n",
				c.ID, c.Timestamp.Format("2006-01-02T15:04:05Z07:00"), strings.Join(c.FilesChanged, ","), c.Message)
		}
		return nil
	},
}
