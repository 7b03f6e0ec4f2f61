// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package log configures the process-wide apex/log handler. Other packages
// import github.com/apex/log directly and log through WithFields.
package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// EnvVar names the environment variable holding the log level.
const EnvVar = "LINEDIFF_LOG"

// DefaultLevel is used when neither the environment nor the config names one.
const DefaultLevel = "error"

// ParseLevel maps a level name to an apex level. Unknown names fall back to
// the error level and report false.
func ParseLevel(name string) (log.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return log.DebugLevel, true
	case "info":
		return log.InfoLevel, true
	case "warn", "warning":
		return log.WarnLevel, true
	case "error":
		return log.ErrorLevel, true
	case "fatal":
		return log.FatalLevel, true
	default:
		return log.ErrorLevel, false
	}
}

// InitLogger installs the compact handler on stderr. The level comes from
// LINEDIFF_LOG, then configLevel, then DefaultLevel.
func InitLogger(configLevel string) {
	Init(os.Stderr, levelName(configLevel))
}

func levelName(configLevel string) string {
	if env := os.Getenv(EnvVar); env != "" {
		return env
	}
	if configLevel != "" {
		return configLevel
	}
	return DefaultLevel
}

// Init installs a compact handler writing to w at the named level.
func Init(w io.Writer, level string) {
	lvl, _ := ParseLevel(level)
	log.SetHandler(NewHandler(w))
	log.SetLevel(lvl)
}

// Handler writes one line per entry:
//
//	2006-01-02 15:04:05 W index: watcher error path=/tmp/x error=...
type Handler struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewHandler returns a Handler writing to w.
func NewHandler(w io.Writer) *Handler {
	return &Handler{w: w, now: time.Now}
}

// HandleLog implements log.Handler.
func (h *Handler) HandleLog(e *log.Entry) error {
	var b strings.Builder
	b.WriteString(h.now().Format("2006-01-02 15:04:05"))
	b.WriteByte(' ')
	b.WriteString(levelLetter(e.Level))
	b.WriteByte(' ')
	b.WriteString(e.Message)

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields[name])
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func levelLetter(l log.Level) string {
	switch l {
	case log.DebugLevel:
		return "D"
	case log.InfoLevel:
		return "I"
	case log.WarnLevel:
		return "W"
	case log.ErrorLevel:
		return "E"
	case log.FatalLevel:
		return "F"
	default:
		return "?"
	}
}
