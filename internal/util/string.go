// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"github.com/mattn/go-runewidth"
)

const ellipsis = "..."

// TruncateWidth truncates s to maxWidth terminal columns, ending it with tail
// when something was cut. Wide characters count as two columns. The tail is
// dropped when it would not leave room for any text.
func TruncateWidth(s string, maxWidth int, tail string) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= runewidth.StringWidth(tail) {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, tail)
}

// TruncateLeft keeps the last maxWidth columns of s, prefixing "..." when
// something was cut. Used for file paths, where the tail is the useful part.
func TruncateLeft(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}

	prefix := ellipsis
	if maxWidth <= len(ellipsis) {
		prefix = ""
	}
	budget := maxWidth - len(prefix)

	runes := []rune(s)
	width := 0
	i := len(runes)
	for i > 0 {
		w := runewidth.RuneWidth(runes[i-1])
		if width+w > budget {
			break
		}
		width += w
		i--
	}
	return prefix + string(runes[i:])
}
