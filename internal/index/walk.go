// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
)

// Options controls which files a traversal yields.
type Options struct {
	// IgnorePatterns are glob patterns matched against base names. A matching
	// directory is not descended into.
	IgnorePatterns []string

	// MaxFileSize skips files larger than this many bytes. Zero means no limit.
	MaxFileSize int64
}

// DefaultIgnorePatterns lists version control, dependency and build
// directories plus common binary formats.
var DefaultIgnorePatterns = []string{
	".git", ".svn", ".hg", ".linediff",
	"node_modules", "__pycache__", ".venv", "venv",
	"vendor", "target", "dist", "build",
	".idea", ".vscode", ".vs",
	"*.exe", "*.dll", "*.so", "*.dylib",
	"*.zip", "*.tar", "*.gz",
	"*.jpg", "*.png", "*.gif", "*.pdf",
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		IgnorePatterns: append([]string(nil), DefaultIgnorePatterns...),
		MaxFileSize:    10 * 1024 * 1024,
	}
}

// ignored reports whether name matches one of the ignore patterns.
func (o Options) ignored(name string) bool {
	for _, pattern := range o.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// Walk returns a lazy sequence of the regular files under root, in lexical
// order. Nothing is read until the sequence is ranged over, and every range
// starts a fresh traversal.
//
// An entry that cannot be read is yielded as an error and the traversal
// continues. When ctx ends the traversal stops after yielding ctx.Err().
func Walk(ctx context.Context, root string, opts Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stopped := false
		emit := func(path string, err error) error {
			if !yield(path, err) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}

			if err != nil {
				if d == nil {
					// root itself could not be read
					return emit(path, fmt.Errorf("%w: %w", ErrInvalidPath, err))
				}
				return emit(path, err)
			}

			if d.IsDir() {
				if path != root && opts.ignored(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() || opts.ignored(d.Name()) {
				return nil
			}

			if opts.MaxFileSize > 0 {
				info, err := d.Info()
				if err != nil {
					return emit(path, err)
				}
				if info.Size() > opts.MaxFileSize {
					return nil
				}
			}

			return emit(path, nil)
		})

		if stopped {
			return
		}
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			yield("", err)
		}
	}
}

// BuildIndex collects every path Walk yields. The first error aborts the
// build.
func BuildIndex(ctx context.Context, root string, opts Options) ([]string, error) {
	var paths []string
	for path, err := range Walk(ctx, root, opts) {
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
