// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T, root string) *PathIndex {
	t.Helper()
	cfg := DefaultConfig(root)
	cfg.DatabasePath = filepath.Join(t.TempDir(), "index.db")

	idx, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestOpen_InvalidRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := Open(DefaultConfig(filepath.Join(dir, "missing")))
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = Open(DefaultConfig(file))
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = Open(nil)
	assert.Error(t, err)
}

func TestPathIndex_Refresh(t *testing.T) {
	root := makeTree(t, map[string]string{
		"main.go":         "package main\n",
		"internal/x.go":   "package internal\n",
		".git/HEAD":       "ref",
		"docs/readme.md":  "# docs\n",
		"build/output.js": "ignored",
	})
	idx := openTestIndex(t, root)
	ctx := context.Background()

	assert.False(t, idx.IsIndexed())
	require.NoError(t, idx.Refresh(ctx))
	assert.True(t, idx.IsIndexed())

	paths, err := idx.Paths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/readme.md", "internal/x.go", "main.go"}, paths)

	entry, err := idx.Lookup("main.go")
	require.NoError(t, err)
	assert.Equal(t, "main.go", entry.Path)
	assert.Equal(t, int64(len("package main\n")), entry.Size)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.FileCount)
	assert.False(t, stats.IsIndexing)
	assert.False(t, stats.IsWatching)
	assert.Positive(t, stats.TotalSize)
}

func TestPathIndex_RefreshReplacesContent(t *testing.T) {
	root := makeTree(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	idx := openTestIndex(t, root)
	ctx := context.Background()

	require.NoError(t, idx.Refresh(ctx))
	require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.txt"), []byte("c"), 0644))
	require.NoError(t, idx.Refresh(ctx))

	paths, err := idx.Paths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt", "c.txt"}, paths)
}

func TestPathIndex_RefreshCanceled(t *testing.T) {
	root := makeTree(t, map[string]string{"a.txt": "a"})
	idx := openTestIndex(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, idx.Refresh(ctx))
	assert.False(t, idx.IsIndexed())
}

func TestPathIndex_UpsertAndRemove(t *testing.T) {
	root := makeTree(t, map[string]string{
		"keep.txt":     "k",
		"dir/one.txt":  "1",
		"dir/two.txt":  "2",
		"dir2/sib.txt": "s",
	})
	idx := openTestIndex(t, root)
	ctx := context.Background()
	require.NoError(t, idx.Refresh(ctx))

	// Relative and absolute paths both work.
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("new"), 0644))
	require.NoError(t, idx.Upsert("new.txt"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("longer"), 0644))
	require.NoError(t, idx.Upsert(filepath.Join(root, "keep.txt")))

	entry, err := idx.Lookup("keep.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(6), entry.Size)

	// Removing a directory drops everything below it, but not siblings that
	// share the prefix.
	require.NoError(t, idx.Remove("dir"))

	paths, err := idx.Paths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dir2/sib.txt", "keep.txt", "new.txt"}, paths)

	_, err = idx.Lookup("dir/one.txt")
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestPathIndex_UpsertRejects(t *testing.T) {
	root := makeTree(t, map[string]string{"a.txt": "a", "sub/b.txt": "b"})
	idx := openTestIndex(t, root)

	assert.ErrorIs(t, idx.Upsert(filepath.Join(t.TempDir(), "elsewhere.txt")), ErrInvalidPath)
	assert.ErrorIs(t, idx.Upsert("../outside.txt"), ErrInvalidPath)
	assert.ErrorIs(t, idx.Upsert("sub"), ErrInvalidPath)
	assert.ErrorIs(t, idx.Upsert("missing.txt"), ErrInvalidPath)
	assert.ErrorIs(t, idx.Remove(root), ErrInvalidPath)
}

func TestPathIndex_UpsertIgnored(t *testing.T) {
	root := makeTree(t, map[string]string{"node_modules/pkg/index.js": "x", "app.exe": "x"})
	idx := openTestIndex(t, root)
	ctx := context.Background()

	require.NoError(t, idx.Upsert("node_modules/pkg/index.js"))
	require.NoError(t, idx.Upsert("app.exe"))

	paths, err := idx.Paths(ctx)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestPathIndex_SkipsOwnDatabase(t *testing.T) {
	root := makeTree(t, map[string]string{"a.txt": "a"})
	cfg := DefaultConfig(root)
	cfg.DatabasePath = filepath.Join(root, "paths.db")

	idx, err := Open(cfg)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Refresh(ctx))

	paths, err := idx.Paths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, paths)
}

func TestPathIndex_Persists(t *testing.T) {
	root := makeTree(t, map[string]string{"a.txt": "a", "b/c.txt": "c"})
	cfg := DefaultConfig(root)
	cfg.DatabasePath = filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	idx, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, idx.Refresh(ctx))
	require.NoError(t, idx.Close())

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, reopened.IsIndexed())
	paths, err := reopened.Paths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b/c.txt"}, paths)
}

func TestLikeEscape(t *testing.T) {
	assert.Equal(t, `a\_b\%c\\d`, likeEscape(`a_b%c\d`))
}
