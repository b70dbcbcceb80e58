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
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/izefs/ize/common"
	"github.com/izefs/ize/internal/backend"
	"github.com/izefs/ize/internal/cfg"
	"github.com/izefs/ize/internal/clock"
	"github.com/izefs/ize/internal/project"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <name> <path> <change-id>",
	Short: "Overwrite a file in the working tree with its content as of a prior change",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, relPath, rawID := args[0], args[1], args[2]

		id, err := parseChangeID(rawID)
		if err != nil {
			return common.NewCLIError(common.ExitUserError, err)
		}

		g, err := loadGlobalConfig()
		if err != nil {
			return common.NewCLIError(common.ExitIOError, err)
		}

		layout, err := project.Find(g.CentralDir, name)
		if err != nil {
			return common.NewCLIError(common.ExitUserError, err)
		}

		channel := "main"
		if meta, err := cfg.LoadProjectMeta(layout.MetaToml); err == nil && meta.Channel != "" {
			channel = meta.Channel
		}

		b, err := backend.Open(layout.Pristine, channel, &clock.RealClock{})
		if err != nil {
			return common.NewCLIError(common.ExitBackendError, err)
		}
		defer b.Close()

		content, err := b.ContentAtChange(id)
		if err != nil {
			return common.NewCLIError(common.ExitBackendError, err)
		}

		dest := filepath.Join(layout.Working, relPath)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return common.NewCLIError(common.ExitIOError, err)
		}
		if err := os.WriteFile(dest, content, 0o644); err != nil {
			return common.NewCLIError(common.ExitIOError, err)
		}

		if _, err := b.RecordFileRestore(relPath, content, fmt.Sprintf("restore to %s", rawID)); err != nil {
			return common.NewCLIError(common.ExitBackendError, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "restored %s to change %s\n", relPath, rawID)
		return nil
	},
}

// parseChangeID decodes a hex-encoded change ID, as printed by history.
func parseChangeID(raw string) (backend.ChangeID, error) {
	var id backend.ChangeID
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return id, fmt.Errorf("cmd: invalid change id %q: %w", raw, err)
	}
	if len(decoded) != len(id) {
		return id, fmt.Errorf("cmd: change id %q has wrong length", raw)
	}
	copy(id[:], decoded)
	return id, nil
}
