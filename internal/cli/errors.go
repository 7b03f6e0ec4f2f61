// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes shared by all linediff commands.
//
// Commands always return errors and never print them themselves; Run
// displays the error once and maps it to an exit code.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/jeranaias/linediff/internal/config"
	"github.com/jeranaias/linediff/internal/fsops"
	"github.com/jeranaias/linediff/internal/index"
	"github.com/jeranaias/linediff/internal/tasks"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNotFoundError indicates an input file or directory was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// UsageError reports a malformed command line.
type UsageError struct {
	Command string // Command that was misused (e.g., "diff")
	Reason  string // What was wrong
	Usage   string // Correct usage (optional)
}

func (e *UsageError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Command, e.Reason)
	if e.Usage != "" {
		msg += fmt.Sprintf("\nUsage: %s", e.Usage)
	}
	return msg
}

// ConfigError reports a configuration that could not be loaded or saved.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// BatchError reports how many tasks of a batch did not complete.
type BatchError struct {
	Failed   int
	Canceled int
	Total    int
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d tasks failed, %d canceled", e.Failed, e.Total, e.Canceled)
}

// reportedError marks an error whose details were already written as a JSON
// envelope, so Run does not print it a second time.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// =============================================================================
// ERROR CONSTRUCTION HELPERS
// =============================================================================

// NewUsageError creates a new usage error.
func NewUsageError(command, reason, usage string) error {
	return &UsageError{Command: command, Reason: reason, Usage: usage}
}

// =============================================================================
// ERROR DISPLAY HELPERS
// =============================================================================

// DisplayError writes err to w in a consistent format.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", RenderConditional(ErrorStyle, "[ERROR]"), err.Error())
}

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	var configErr *ConfigError
	var validateErrs config.ValidateErrors
	if errors.As(err, &configErr) || errors.As(err, &validateErrs) {
		return ExitConfigError
	}

	switch {
	case errors.Is(err, fsops.ErrNotFound),
		errors.Is(err, index.ErrInvalidPath),
		errors.Is(err, index.ErrNotIndexed),
		errors.Is(err, tasks.ErrTaskNotFound),
		errors.Is(err, fs.ErrNotExist):
		return ExitNotFoundError

	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	}

	return ExitGeneralError
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
