// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package diff

import "strings"

// SplitLines splits text into its line sequence.
//
// Lines end at "\n" or "\r\n"; the terminator is not part of the line. A lone
// "\r" is ordinary content. A final terminator does not start a new line, so
// "a\n" is ["a"] while "a\n\n" is ["a", ""]. The empty string has no lines.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}

	lines := make([]string, 0, strings.Count(text, "\n")+1)
	for text != "" {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			lines = append(lines, text)
			break
		}
		lines = append(lines, strings.TrimSuffix(text[:i], "\r"))
		text = text[i+1:]
	}
	return lines
}
