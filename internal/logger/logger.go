// Copyright 2025 The pravaha Authors
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

// Package logger is pravaha's leveled structured logger: a
// package-level *slog.Logger behind a settable level, with custom
// severity names layered over slog's own levels so log lines read
// TRACE/DEBUG/INFO/WARNING/ERROR rather than slog's default names.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Severity levels, expressed as slog.Level values spaced so the
// severity string (below) can tell them apart from slog's own
// DEBUG/INFO/WARN/ERROR.
const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
)

var programLevel = new(slog.LevelVar)

var defaultLogger = slog.New(newHandler(os.Stderr, programLevel, false))

// SetOutput redirects the package logger's destination. Passing a
// *lumberjack.Logger (or any other io.Writer) from a caller — pravaha's
// demo CLI does, for rotation — is how the core's cfg.WithLogWriter
// option plugs in; the core itself never opens a file.
func SetOutput(w io.Writer, json bool) {
	defaultLogger = slog.New(newHandler(w, programLevel, json))
}

// SetLevel parses one of "trace", "debug", "info", "warning", "error"
// (case-insensitively) and adjusts the package logger's minimum level.
// Unrecognized values are ignored.
func SetLevel(level string) {
	switch normalizeLevel(level) {
	case "trace":
		programLevel.Set(LevelTrace)
	case "debug":
		programLevel.Set(LevelDebug)
	case "info":
		programLevel.Set(LevelInfo)
	case "warning", "warn":
		programLevel.Set(LevelWarning)
	case "error":
		programLevel.Set(LevelError)
	}
}

func normalizeLevel(level string) string {
	out := make([]byte, 0, len(level))
	for _, r := range level {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, byte(r))
	}
	return string(out)
}

func newHandler(w io.Writer, level *slog.LevelVar, json bool) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				a.Key = "severity"
				a.Value = slog.StringValue(severityName(a.Value))
			}
			return a
		},
	}
	if json {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func severityName(v slog.Value) string {
	lvl, _ := v.Any().(slog.Level)
	switch {
	case lvl < LevelDebug:
		return "TRACE"
	case lvl < LevelInfo:
		return "DEBUG"
	case lvl < LevelWarning:
		return "INFO"
	case lvl < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

func Tracef(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, args...))
}
func Debugf(format string, args ...any) { defaultLogger.Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { defaultLogger.Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { defaultLogger.Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { defaultLogger.Error(fmt.Sprintf(format, args...)) }
