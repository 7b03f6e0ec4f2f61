// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeranaias/linediff/internal/index"
)

func ExampleBuildIndex() {
	root, err := os.MkdirTemp("", "linediff-walk")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(root)

	for _, rel := range []string{"b.txt", "a.txt", "src/main.go", ".git/HEAD"} {
		path := filepath.Join(root, rel)
		os.MkdirAll(filepath.Dir(path), 0755)
		os.WriteFile(path, []byte("x\n"), 0644)
	}

	paths, err := index.BuildIndex(context.Background(), root, index.DefaultOptions())
	if err != nil {
		panic(err)
	}
	for _, p := range paths {
		rel, _ := filepath.Rel(root, p)
		fmt.Println(filepath.ToSlash(rel))
	}

	// Output:
	// a.txt
	// b.txt
	// src/main.go
}

func ExamplePathIndex() {
	root, err := os.MkdirTemp("", "linediff-index")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(root)

	os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello\n"), 0644)

	idx, err := index.Open(index.DefaultConfig(root))
	if err != nil {
		panic(err)
	}
	defer idx.Close()

	ctx := context.Background()
	if err := idx.Refresh(ctx); err != nil {
		panic(err)
	}

	entry, err := idx.Lookup("notes.txt")
	if err != nil {
		panic(err)
	}
	fmt.Println(entry.Path, entry.Size)

	// Output:
	// notes.txt 6
}
