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

// Package logger provides Ize's package-level structured logger: a
// severity scheme one notch finer than slog's four built-in levels
// (TRACE below DEBUG, and OFF above ERROR), text or JSON output, and
// file rotation via lumberjack through an async writer so logging calls
// on the FUSE dispatch path never block on disk I/O.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels, offset from slog's built-ins so TRACE sorts below
// DEBUG and OFF sorts above ERROR.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

// Severity name strings accepted by the --log-severity flag and by
// FileConfig.Severity.
const (
	SeverityTrace = "TRACE"
	SeverityDebug = "DEBUG"
	SeverityInfo  = "INFO"
	SeverityWarn  = "WARNING"
	SeverityError = "ERROR"
	SeverityOff   = "OFF"
)

// RotateConfig mirrors lumberjack's own knobs, named the way Ize's
// config surfaces them.
type RotateConfig struct {
	MaxFileSizeMB   int
	BackupFileCount int
	Compress        bool
}

// DefaultRotateConfig returns Ize's default rotation policy: 512 MB
// files, 10 backups, no compression.
func DefaultRotateConfig() RotateConfig {
	return RotateConfig{MaxFileSizeMB: 512, BackupFileCount: 10, Compress: false}
}

type loggerFactory struct {
	file      *os.File
	asyncFile *AsyncLogger
	sysWriter io.Writer
	format    string
	level     string
	rotate    RotateConfig
}

var defaultLoggerFactory = &loggerFactory{
	level:  SeverityInfo,
	format: "text",
	rotate: DefaultRotateConfig(),
}

var programLevel = new(slog.LevelVar)

var defaultLogger = slog.New(defaultLoggerFactory.createJSONOrTextHandler(os.Stderr, programLevel, ""))

func init() {
	setLoggingLevel(defaultLoggerFactory.level, programLevel)
}

// replaceLevelAttr renders the severity attribute as "severity=TRACE"
// rather than slog's default "level=DEBUG-8".
func replaceLevelAttr(a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level := a.Value.Any().(slog.Level)
	var name string
	switch {
	case level < LevelDebug:
		name = SeverityTrace
	case level < LevelInfo:
		name = SeverityDebug
	case level < LevelWarn:
		name = SeverityInfo
	case level < LevelError:
		name = SeverityWarn
	default:
		name = SeverityError
	}
	return slog.String("severity", name)
}

func (f *loggerFactory) createJSONOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelAttr,
	}
	pw := &prefixWriter{w: w, prefix: prefix}
	if strings.EqualFold(f.format, "text") {
		return slog.NewTextHandler(pw, opts)
	}
	return slog.NewJSONHandler(pw, opts)
}

// prefixWriter exists only so tests can assert on a caller-chosen prefix
// without the logger carrying per-call string concatenation.
type prefixWriter struct {
	w      io.Writer
	prefix string
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	if p.prefix == "" {
		return p.w.Write(b)
	}
	n, err := io.WriteString(p.w, p.prefix)
	if err != nil {
		return n, err
	}
	m, err := p.w.Write(b)
	return n + m, err
}

// setLoggingLevel maps a configured severity name onto the slog level
// var backing a logger, defaulting unrecognized names to INFO.
func setLoggingLevel(severity string, level *slog.LevelVar) {
	switch strings.ToUpper(severity) {
	case SeverityTrace:
		level.Set(LevelTrace)
	case SeverityDebug:
		level.Set(LevelDebug)
	case SeverityInfo:
		level.Set(LevelInfo)
	case SeverityWarn:
		level.Set(LevelWarn)
	case SeverityError:
		level.Set(LevelError)
	case SeverityOff:
		level.Set(LevelOff)
	default:
		level.Set(LevelInfo)
	}
}

// SetLogSeverity applies severity to the default logger's level, the
// same way InitLogFile and the factory's initial construction do. It is
// exported so the CLI's --log-severity flag (root.go) can adjust the
// already-constructed default logger without rebuilding its handler.
func SetLogSeverity(severity string) {
	defaultLoggerFactory.level = severity
	setLoggingLevel(severity, programLevel)
}

// SetLogFormat switches the default logger's output format ("text" or
// "json"; anything else falls back to json) and rebuilds the handler
// against whatever writer is currently in use.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	var w io.Writer = os.Stderr
	switch {
	case defaultLoggerFactory.asyncFile != nil:
		w = defaultLoggerFactory.asyncFile
	case defaultLoggerFactory.sysWriter != nil:
		w = defaultLoggerFactory.sysWriter
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJSONOrTextHandler(w, programLevel, ""))
}

// FileConfig is the subset of Ize's logging configuration InitLogFile
// needs: where to write, at what severity, in what format, and with
// what rotation policy.
type FileConfig struct {
	FilePath string
	Severity string
	Format   string
	Rotate   RotateConfig
}

// InitLogFile points the default logger at a rotated log file on disk,
// writing through an AsyncLogger so FUSE dispatch threads never block
// on the file write.
func InitLogFile(cfg FileConfig) error {
	lj := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.Rotate.MaxFileSizeMB,
		MaxBackups: cfg.Rotate.BackupFileCount,
		Compress:   cfg.Rotate.Compress,
	}
	async := NewAsyncLogger(lj, 4096)

	defaultLoggerFactory = &loggerFactory{
		asyncFile: async,
		format:    cfg.Format,
		level:     cfg.Severity,
		rotate:    cfg.Rotate,
	}
	setLoggingLevel(cfg.Severity, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJSONOrTextHandler(async, programLevel, ""))
	return nil
}

// CloseLogFile flushes and closes the file backing the default logger,
// if one was configured via InitLogFile.
func CloseLogFile() error {
	if defaultLoggerFactory.asyncFile != nil {
		return defaultLoggerFactory.asyncFile.Close()
	}
	return nil
}

func logf(ctx context.Context, level slog.Level, format string, v ...any) {
	if !defaultLogger.Enabled(ctx, level) {
		return
	}
	defaultLogger.Log(ctx, level, fmt.Sprintf(format, v...))
}

func Tracef(format string, v ...any) { logf(context.Background(), LevelTrace, format, v...) }
func Debugf(format string, v ...any) { logf(context.Background(), LevelDebug, format, v...) }
func Infof(format string, v ...any)  { logf(context.Background(), LevelInfo, format, v...) }
func Warnf(format string, v ...any)  { logf(context.Background(), LevelWarn, format, v...) }
func Errorf(format string, v ...any) { logf(context.Background(), LevelError, format, v...) }
