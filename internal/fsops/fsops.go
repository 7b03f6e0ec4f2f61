// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsops

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/jeranaias/linediff/internal/util"
)

// DefaultMaxFileSize is the read limit used by ReadText.
const DefaultMaxFileSize int64 = 64 * 1024 * 1024

var (
	ErrNotFound        = errors.New("file not found")
	ErrIsDirectory     = errors.New("is a directory")
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidEncoding = errors.New("file is not valid UTF-8 or UTF-16 text")
)

var (
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// ReadText reads path as text, limited to DefaultMaxFileSize bytes.
func ReadText(path string) (string, error) {
	return ReadTextLimit(path, DefaultMaxFileSize)
}

// ReadTextLimit reads path as text. A limit of zero or less disables the
// size check.
//
// A leading byte order mark selects UTF-8 or UTF-16 and is stripped; without
// one the content must be valid UTF-8.
func ReadTextLimit(path string, limit int64) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}
	if limit > 0 && info.Size() > limit {
		return "", fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrTooLarge, path, info.Size(), limit)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	text, err := Decode(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, path)
	}
	return text, nil
}

// Decode turns raw file bytes into a string.
func Decode(data []byte) (string, error) {
	utf16 := bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE)
	if !utf16 && !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}

	// BOMOverride switches to the encoding named by the mark, if any.
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return string(out), nil
}

// WriteText atomically replaces path with content.
func WriteText(path, content string) error {
	if err := util.AtomicWriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadPair reads the original and modified inputs of a diff. The first
// failure is returned and the second file is not read.
func ReadPair(originalPath, modifiedPath string) (original, modified string, err error) {
	return ReadPairLimit(originalPath, modifiedPath, DefaultMaxFileSize)
}

// ReadPairLimit is ReadPair with an explicit size limit per file.
func ReadPairLimit(originalPath, modifiedPath string, limit int64) (original, modified string, err error) {
	original, err = ReadTextLimit(originalPath, limit)
	if err != nil {
		return "", "", err
	}
	modified, err = ReadTextLimit(modifiedPath, limit)
	if err != nil {
		return "", "", err
	}
	return original, modified, nil
}
