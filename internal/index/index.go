// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotIndexed  = errors.New("path not indexed")
	ErrIndexing    = errors.New("indexing in progress")
	ErrDatabase    = errors.New("database error")
	ErrInvalidPath = errors.New("invalid path")
)

// =============================================================================
// PATH INDEX
// =============================================================================

// PathIndex persists the file paths under a root directory in SQLite.
type PathIndex struct {
	db     *sql.DB
	root   string
	dbPath string // absolute; the database never indexes itself
	config *Config
	mu     sync.RWMutex

	watcher *Watcher

	// Indexing state
	indexing    bool
	indexingMu  sync.Mutex
	lastIndexed time.Time
}

// Config holds index configuration
type Config struct {
	// Root is the directory being indexed
	Root string

	// DatabasePath is where to store the SQLite database
	DatabasePath string

	// Options filters what gets indexed
	Options Options

	// EnableWatch starts a Watcher after the first Refresh
	EnableWatch bool

	// WatchDebounce is how long a path must stay quiet before it is re-indexed
	WatchDebounce time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig(root string) *Config {
	return &Config{
		Root:          root,
		DatabasePath:  filepath.Join(root, ".linediff", "index.db"),
		Options:       DefaultOptions(),
		EnableWatch:   false,
		WatchDebounce: 500 * time.Millisecond,
	}
}

// FileEntry is one indexed file.
type FileEntry struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Open opens (creating if needed) the index database for config.Root.
func Open(config *Config) (*PathIndex, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	root, err := filepath.Abs(config.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, root)
	}

	if err := os.MkdirAll(filepath.Dir(config.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrDatabase, err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrDatabase, pragma, err)
		}
	}

	dbPath, err := filepath.Abs(config.DatabasePath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	idx := &PathIndex{
		db:     db,
		root:   root,
		dbPath: dbPath,
		config: config,
	}

	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: schema: %v", ErrDatabase, err)
	}

	if err := idx.loadLastIndexed(); err != nil {
		log.WithError(err).Warn("index: failed to load metadata")
	}

	return idx, nil
}

func (idx *PathIndex) initSchema() error {
	if _, err := idx.db.Exec(Schema); err != nil {
		return err
	}
	if _, err := idx.db.Exec(InitMetadata); err != nil {
		return err
	}
	_, err := idx.db.Exec("UPDATE metadata SET value = ? WHERE key = 'root_path'", idx.root)
	return err
}

func (idx *PathIndex) loadLastIndexed() error {
	var lastIndexed int64
	err := idx.db.QueryRow("SELECT value FROM metadata WHERE key = 'last_full_index'").Scan(&lastIndexed)
	if err != nil {
		return err
	}
	if lastIndexed > 0 {
		idx.mu.Lock()
		idx.lastIndexed = time.Unix(lastIndexed, 0)
		idx.mu.Unlock()
	}
	return nil
}

// Root returns the absolute root directory.
func (idx *PathIndex) Root() string {
	return idx.root
}

// Close stops the watcher, if any, and closes the database.
func (idx *PathIndex) Close() error {
	idx.mu.Lock()
	w := idx.watcher
	idx.watcher = nil
	idx.mu.Unlock()

	if w != nil {
		w.Close()
	}
	return idx.db.Close()
}

// =============================================================================
// INDEXING
// =============================================================================

// Refresh rebuilds the index from a full traversal of the root, in one
// transaction. Unreadable entries are logged and skipped. It returns
// ErrIndexing if another Refresh is running.
func (idx *PathIndex) Refresh(ctx context.Context) error {
	idx.indexingMu.Lock()
	if idx.indexing {
		idx.indexingMu.Unlock()
		return ErrIndexing
	}
	idx.indexing = true
	idx.indexingMu.Unlock()

	defer func() {
		idx.indexingMu.Lock()
		idx.indexing = false
		idx.indexingMu.Unlock()
	}()

	startTime := time.Now()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM files"); err != nil {
		return fmt.Errorf("%w: clear files: %v", ErrDatabase, err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertFile)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer stmt.Close()

	var fileCount, skipped int
	for path, err := range Walk(ctx, idx.root, idx.config.Options) {
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			skipped++
			log.WithError(err).WithField("path", path).Warn("index: skipping entry")
			continue
		}
		if idx.isDatabaseFile(path) {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			skipped++
			log.WithError(err).WithField("path", path).Warn("index: skipping entry")
			continue
		}

		rel, err := idx.relPath(path)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, rel, info.Size(), info.ModTime().Unix(), startTime.Unix()); err != nil {
			return fmt.Errorf("%w: insert %s: %v", ErrDatabase, rel, err)
		}
		fileCount++
	}

	if _, err := tx.ExecContext(ctx, "UPDATE metadata SET value = ? WHERE key = 'last_full_index'", startTime.Unix()); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrDatabase, err)
	}

	idx.mu.Lock()
	idx.lastIndexed = startTime
	startWatch := idx.config.EnableWatch && idx.watcher == nil
	idx.mu.Unlock()

	log.WithFields(log.Fields{
		"root":     idx.root,
		"files":    fileCount,
		"skipped":  skipped,
		"duration": time.Since(startTime).Round(time.Millisecond),
	}).Info("index: refreshed")

	if startWatch {
		if err := idx.startWatcher(); err != nil {
			log.WithError(err).Warn("index: file watching disabled")
		}
	}

	return nil
}

// Upsert indexes or re-indexes a single file. path may be absolute or
// relative to the root. Directories are rejected; ignored or oversized files
// are removed from the index instead.
func (idx *PathIndex) Upsert(path string) error {
	abs := idx.absPath(path)
	rel, err := idx.relPath(abs)
	if err != nil {
		return err
	}
	if idx.isDatabaseFile(abs) {
		return nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if info.IsDir() || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInvalidPath, rel)
	}

	if idx.excluded(rel, info.Size()) {
		return idx.Remove(abs)
	}

	if _, err := idx.db.Exec(upsertFile, rel, info.Size(), info.ModTime().Unix(), time.Now().Unix()); err != nil {
		return fmt.Errorf("%w: upsert %s: %v", ErrDatabase, rel, err)
	}
	return nil
}

// Remove drops path from the index. When path names a directory every file
// below it is dropped too.
func (idx *PathIndex) Remove(path string) error {
	rel, err := idx.relPath(idx.absPath(path))
	if err != nil {
		return err
	}

	_, err = idx.db.Exec(`DELETE FROM files WHERE path = ? OR path LIKE ? ESCAPE '\'`, rel, likeEscape(rel)+"/%")
	if err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrDatabase, rel, err)
	}
	return nil
}

// excluded reports whether a file at rel is filtered out by the options.
func (idx *PathIndex) excluded(rel string, size int64) bool {
	opts := idx.config.Options
	if opts.MaxFileSize > 0 && size > opts.MaxFileSize {
		return true
	}
	for _, part := range strings.Split(rel, "/") {
		if opts.ignored(part) {
			return true
		}
	}
	return false
}

// =============================================================================
// QUERIES
// =============================================================================

// Paths returns every indexed path, relative to the root and sorted.
func (idx *PathIndex) Paths(ctx context.Context) ([]string, error) {
	rows, err := idx.db.QueryContext(ctx, "SELECT path FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return paths, nil
}

// Lookup returns the entry for a path relative to the root.
func (idx *PathIndex) Lookup(rel string) (FileEntry, error) {
	rel = filepath.ToSlash(filepath.Clean(rel))

	var size, modTime, indexedAt int64
	err := idx.db.QueryRow("SELECT size, mod_time, indexed_at FROM files WHERE path = ?", rel).
		Scan(&size, &modTime, &indexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return FileEntry{}, fmt.Errorf("%w: %s", ErrNotIndexed, rel)
	}
	if err != nil {
		return FileEntry{}, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return FileEntry{
		Path:      rel,
		Size:      size,
		ModTime:   time.Unix(modTime, 0),
		IndexedAt: time.Unix(indexedAt, 0),
	}, nil
}

// =============================================================================
// STATISTICS
// =============================================================================

// Stats describes the state of an index.
type Stats struct {
	Root         string    `json:"root"`
	FileCount    int       `json:"file_count"`
	TotalSize    int64     `json:"total_size"`
	LastIndexed  time.Time `json:"last_indexed"`
	IsIndexing   bool      `json:"is_indexing"`
	IsWatching   bool      `json:"is_watching"`
	DatabaseSize int64     `json:"database_size"`
}

// Stats returns current index statistics
func (idx *PathIndex) Stats(ctx context.Context) (Stats, error) {
	var count int
	var total sql.NullInt64
	err := idx.db.QueryRowContext(ctx, "SELECT COUNT(*), SUM(size) FROM files").Scan(&count, &total)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	idx.indexingMu.Lock()
	indexing := idx.indexing
	idx.indexingMu.Unlock()

	var dbSize int64
	if info, err := os.Stat(idx.config.DatabasePath); err == nil {
		dbSize = info.Size()
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return Stats{
		Root:         idx.root,
		FileCount:    count,
		TotalSize:    total.Int64,
		LastIndexed:  idx.lastIndexed,
		IsIndexing:   indexing,
		IsWatching:   idx.watcher != nil,
		DatabaseSize: dbSize,
	}, nil
}

// IsIndexed reports whether Refresh has completed at least once for this
// database.
func (idx *PathIndex) IsIndexed() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return !idx.lastIndexed.IsZero()
}

// =============================================================================
// HELPERS
// =============================================================================

func (idx *PathIndex) absPath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(idx.root, path)
}

// relPath converts an absolute path below the root into the stored form.
func (idx *PathIndex) relPath(abs string) (string, error) {
	rel, err := filepath.Rel(idx.root, abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrInvalidPath, abs, idx.root)
	}
	return filepath.ToSlash(rel), nil
}

// isDatabaseFile reports whether abs is the index database or one of its
// SQLite side files.
func (idx *PathIndex) isDatabaseFile(abs string) bool {
	switch abs {
	case idx.dbPath, idx.dbPath + "-wal", idx.dbPath + "-shm", idx.dbPath + "-journal":
		return true
	}
	return false
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
