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
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/izefs/ize/common"
	"github.com/izefs/ize/internal/backend"
	"github.com/izefs/ize/internal/cfg"
	"github.com/izefs/ize/internal/clock"
	"github.com/izefs/ize/internal/fs"
	"github.com/izefs/ize/internal/handles"
	"github.com/izefs/ize/internal/logger"
	"github.com/izefs/ize/internal/observer"
	"github.com/izefs/ize/internal/opcode"
	"github.com/izefs/ize/internal/opqueue"
	"github.com/izefs/ize/internal/project"
	"github.com/izefs/ize/internal/recorder"
	"github.com/izefs/ize/internal/registry"
	"github.com/izefs/ize/internal/worker"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/spf13/cobra"
)

// defaultQueueCapacity bounds the in-memory opcode queue (§4.5). Chosen
// generously enough that ordinary write bursts never hit backpressure,
// while still bounding worst-case memory under a sustained write storm.
const defaultQueueCapacity = 1024

var mountReadOnly bool

var mountCmd = &cobra.Command{
	Use:   "mount <name> <mountpoint>",
	Short: "Mount a project's working tree and record every mutation made through it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMount(args[0], args[1], mountReadOnly)
	},
}

func init() {
	mountCmd.Flags().BoolVar(&mountReadOnly, "read-only", false, "reject mutating operations and record nothing")
}

func runMount(name, mountPoint string, readOnly bool) error {
	g, err := loadGlobalConfig()
	if err != nil {
		return common.NewCLIError(common.ExitIOError, err)
	}

	layout, err := project.Find(g.CentralDir, name)
	if err != nil {
		return common.NewCLIError(common.ExitUserError, err)
	}

	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return common.NewCLIError(common.ExitIOError, fmt.Errorf("cmd: create mount point: %w", err))
	}

	if _, err := project.RaiseNoFileLimit(); err != nil {
		logger.Warnf("could not raise RLIMIT_NOFILE, continuing with default: %v", err)
	}

	src, err := project.OpenSource(layout.Working)
	if err != nil {
		return common.NewCLIError(common.ExitIOError, fmt.Errorf("cmd: open source directory: %w", err))
	}

	journalPath := filepath.Join(layout.ChangesDir, "journal.log")
	journal, err := os.OpenFile(journalPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		src.Close()
		return common.NewCLIError(common.ExitIOError, fmt.Errorf("cmd: open opcode journal: %w", err))
	}

	channel := "main"
	if meta, err := cfg.LoadProjectMeta(layout.MetaToml); err == nil && meta.Channel != "" {
		channel = meta.Channel
	}

	clk := &clock.RealClock{}
	reg := registry.New()
	ht := handles.New()
	bus := observer.New()
	queue := opqueue.New(defaultQueueCapacity)
	staging := opcode.NewStaging(layout.BlobsDir)

	if !readOnly {
		bus.Register(recorder.New(queue, staging, journal, recorder.DefaultBackpressure))
	}

	b, err := backend.Open(layout.Pristine, channel, clk)
	if err != nil {
		journal.Close()
		src.Close()
		return common.NewCLIError(common.ExitBackendError, fmt.Errorf("cmd: open backend: %w", err))
	}

	w := worker.New(queue, b, staging, clk, worker.DefaultRetryPolicy, slog.Default())
	workerDone := make(chan error, 1)
	go func() { workerDone <- w.Run(context.Background()) }()

	engine := fs.New(src, reg, ht, bus, clk, readOnly)
	server := fuseutil.NewFileSystemServer(engine)

	mountCfg := &fuse.MountConfig{
		ReadOnly:    readOnly,
		ErrorLogger: log.New(os.Stderr, "ize-fuse: ", 0),
	}
	if logSeverity == logger.SeverityTrace || logSeverity == logger.SeverityDebug {
		mountCfg.DebugLogger = log.New(os.Stderr, "ize-fuse-debug: ", 0)
	}

	logger.Infof("mounting project %q at %s", name, mountPoint)
	mfs, err := fuse.Mount(mountPoint, server, mountCfg)
	if err != nil {
		queue.Close()
		<-workerDone
		b.Close()
		journal.Close()
		src.Close()
		return common.NewCLIError(common.ExitIOError, fmt.Errorf("cmd: mount: %w", err))
	}

	registerSignalHandler(mountPoint)

	joinErr := mfs.Join(context.Background())

	shutdown := common.JoinShutdownFunc(
		func(context.Context) error { queue.Close(); return nil },
		func(context.Context) error { return <-workerDone },
		func(context.Context) error { return ht.CloseAll() },
		func(context.Context) error { return b.Close() },
		func(context.Context) error { return journal.Close() },
		func(context.Context) error { return src.Close() },
	)
	if err := shutdown(context.Background()); err != nil {
		logger.Errorf("shutdown: %v", err)
	}

	if joinErr != nil {
		return common.NewCLIError(common.ExitIOError, fmt.Errorf("cmd: serve: %w", joinErr))
	}
	return nil
}

// registerSignalHandler unmounts mountPoint on SIGINT so Ctrl-C drives
// the same clean-shutdown path as an explicit `fusermount -u`.
func registerSignalHandler(mountPoint string) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	go func() {
		<-signalChan
		logger.Infof("received interrupt, unmounting %s", mountPoint)
		if err := fuse.Unmount(mountPoint); err != nil {
			logger.Errorf("failed to unmount %s: %v", mountPoint, err)
		}
	}()
}
