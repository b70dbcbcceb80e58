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

// Package cmd implements ize's command-line surface: init, mount, list,
// history and restore, dispatched through cobra the way the teacher's CLI
// does, but against project directories instead of GCS buckets.
package cmd

import (
	"fmt"

	"github.com/izefs/ize/internal/cfg"
	"github.com/izefs/ize/internal/logger"
	"github.com/spf13/cobra"
)

var (
	globalConfigPath string
	logSeverity      string
	logFormat        string
)

var rootCmd = &cobra.Command{
	Use:           "ize",
	Short:         "Versioned passthrough mounts backed by a project history store",
	Long:          `ize mounts a project's source directory through FUSE, recording every mutation into a content-addressed, version-controlled backing store as it happens.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		logger.SetLogFormat(logFormat)
		logger.SetLogSeverity(logSeverity)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalConfigPath, "config", "", "path to the global config file (default ~/.config/ize/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logSeverity, "log-severity", logger.SeverityInfo, "log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format: text or json")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(restoreCmd)
}

// Execute runs the root command and returns the error it produced, if
// any; main maps this onto a process exit code via common.ExitCode.
func Execute() error {
	return rootCmd.Execute()
}

// resolveGlobalConfigPath returns the --config override if given,
// otherwise the default global config location.
func resolveGlobalConfigPath() (string, error) {
	if globalConfigPath != "" {
		return globalConfigPath, nil
	}
	return cfg.DefaultGlobalPath()
}

// loadGlobalConfig loads the global config. It never fails on a missing
// file: cfg.LoadGlobal falls back to defaults.
func loadGlobalConfig() (cfg.Global, error) {
	path, err := resolveGlobalConfigPath()
	if err != nil {
		return cfg.Global{}, fmt.Errorf("cmd: resolve config path: %w", err)
	}
	return cfg.LoadGlobal(path)
}
