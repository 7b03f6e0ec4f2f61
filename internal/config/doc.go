// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves linediff settings.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (LINEDIFF_LOG, LINEDIFF_DIFF_TIMEOUT, LINEDIFF_INDEX_DB)
//   - ~/.linediff/config.toml
//   - ~/.linediff/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	timeout := cfg.Diff.Timeout()
//
// Values can also be read and written by dotted key, as the config command does:
//
//	cfg.Set("index.watch", "true")
//	v, _ := cfg.Get("tasks.max_concurrent")
package config
