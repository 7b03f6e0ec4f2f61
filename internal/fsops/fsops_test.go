// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestReadText(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"plain", []byte("a\nb\n"), "a\nb\n"},
		{"empty", []byte{}, ""},
		{"crlf kept", []byte("a\r\nb"), "a\r\nb"},
		{"utf8 bom stripped", []byte("\xEF\xBB\xBFhello"), "hello"},
		{"utf16le", []byte{0xFF, 0xFE, 'h', 0, 'i', 0, '\n', 0}, "hi\n"},
		{"utf16be", []byte{0xFE, 0xFF, 0, 'h', 0, 'i'}, "hi"},
		{"multibyte", []byte("héllo 日本"), "héllo 日本"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name+".txt", tt.data)

			got, err := ReadText(path)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadText_Errors(t *testing.T) {
	dir := t.TempDir()
	binary := writeFile(t, dir, "bin.dat", []byte{'a', 0xC3, 0x28, 'b'})
	big := writeFile(t, dir, "big.txt", []byte("0123456789"))

	_, err := ReadText(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "missing.txt")

	_, err = ReadText(dir)
	assert.ErrorIs(t, err, ErrIsDirectory)

	_, err = ReadText(binary)
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = ReadTextLimit(big, 5)
	assert.ErrorIs(t, err, ErrTooLarge)

	got, err := ReadTextLimit(big, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", got)
}

func TestWriteText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.txt")

	require.NoError(t, WriteText(path, "line1\nline2\n"))
	require.NoError(t, WriteText(path, "replaced"))

	got, err := ReadText(path)
	require.NoError(t, err)
	assert.Equal(t, "replaced", got)
}

func TestReadPair(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("one\n"))
	b := writeFile(t, dir, "b.txt", []byte("two\n"))

	original, modified, err := ReadPair(a, b)
	require.NoError(t, err)
	assert.Equal(t, "one\n", original)
	assert.Equal(t, "two\n", modified)

	_, _, err = ReadPair(filepath.Join(dir, "nope.txt"), b)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = ReadPair(a, dir)
	assert.ErrorIs(t, err, ErrIsDirectory)
}
