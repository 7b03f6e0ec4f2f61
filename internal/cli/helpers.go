// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Formatting and output helpers shared by the commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/linediff/internal/fsops"
)

// formatDurationShort formats a short duration string.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// writeOutputFile writes command output to path. The parent directory must
// exist; an existing directory at path is refused rather than replaced.
func writeOutputFile(path, content string) error {
	cleaned := filepath.Clean(path)
	if info, err := os.Stat(cleaned); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s", fsops.ErrIsDirectory, cleaned)
	}
	if err := fsops.WriteText(cleaned, content); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
