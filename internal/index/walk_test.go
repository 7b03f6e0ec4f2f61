// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTree creates files (slash-separated relative paths) under a temp dir.
func makeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestWalk_LexicalOrderAndFilters(t *testing.T) {
	root := makeTree(t, map[string]string{
		"b.txt":               "b",
		"a.txt":               "a",
		"sub/c.go":            "c",
		"sub/deep/d.md":       "d",
		".git/config":         "x",
		"node_modules/m.js":   "m",
		"image.png":           "png",
		"big.txt":             strings.Repeat("x", 100),
		"sub/.linediff/x.txt": "x",
	})

	opts := DefaultOptions()
	opts.MaxFileSize = 50

	paths, err := BuildIndex(context.Background(), root, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt", "sub/c.go", "sub/deep/d.md"}, relAll(t, root, paths))
}

func TestWalk_Restartable(t *testing.T) {
	root := makeTree(t, map[string]string{"one.txt": "1", "two.txt": "2"})
	seq := Walk(context.Background(), root, DefaultOptions())

	collect := func() []string {
		var out []string
		for p, err := range seq {
			require.NoError(t, err)
			out = append(out, filepath.Base(p))
		}
		return out
	}

	first := collect()
	require.NoError(t, os.WriteFile(filepath.Join(root, "three.txt"), []byte("3"), 0644))
	second := collect()

	assert.Equal(t, []string{"one.txt", "two.txt"}, first)
	assert.Equal(t, []string{"one.txt", "three.txt", "two.txt"}, second)
}

func TestWalk_EarlyBreak(t *testing.T) {
	root := makeTree(t, map[string]string{"a": "", "b": "", "c": ""})

	count := 0
	for _, err := range Walk(context.Background(), root, Options{}) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestWalk_Canceled(t *testing.T) {
	root := makeTree(t, map[string]string{"a": "", "b": ""})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var errs []error
	for p, err := range Walk(ctx, root, Options{}) {
		assert.Empty(t, p)
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)

	_, err := BuildIndex(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalk_MissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	var errs []error
	for _, err := range Walk(context.Background(), missing, Options{}) {
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrInvalidPath)
}

func TestWalk_EmptyDirectory(t *testing.T) {
	paths, err := BuildIndex(context.Background(), t.TempDir(), DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestOptions_Ignored(t *testing.T) {
	opts := Options{IgnorePatterns: []string{"*.log", "tmp"}}

	assert.True(t, opts.ignored("server.log"))
	assert.True(t, opts.ignored("tmp"))
	assert.False(t, opts.ignored("tmp.txt"))
	assert.False(t, opts.ignored("main.go"))
}
