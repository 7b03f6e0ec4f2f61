// json_output.go - JSON output support for scripting.
//
// Provides a standardized JSON envelope for every command run with --json.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/linediff/internal/diff"
	"github.com/jeranaias/linediff/internal/index"
	"github.com/jeranaias/linediff/internal/tasks"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w, indented.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// OutputJSON runs handler and writes its result as a JSON envelope to w.
// A handler error is written as an error envelope and returned marked as
// already reported.
func OutputJSON(w io.Writer, command string, handler func() (interface{}, error)) error {
	data, err := handler()
	if err != nil {
		if werr := NewJSONErrorResponse(command, err).Write(w); werr != nil {
			return werr
		}
		return reportedError{err}
	}
	return NewJSONResponse(command, data).Write(w)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// DiffData is the data of the diff command.
type DiffData struct {
	Original string      `json:"original"`
	Modified string      `json:"modified"`
	Diff     *diff.Diff  `json:"diff"`
	Hunks    []diff.Hunk `json:"hunks,omitempty"`
	Summary  string      `json:"summary"`
}

// IndexData is the data of the index command.
type IndexData struct {
	Root  string       `json:"root"`
	Files []string     `json:"files,omitempty"`
	Stats *index.Stats `json:"stats,omitempty"`
}

// BatchData is the data of the batch command.
type BatchData struct {
	Manifest string       `json:"manifest"`
	Tasks    []tasks.Info `json:"tasks"`
	Summary  string       `json:"summary"`
}

// VersionData is the data of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// ConfigPathData is the data of the config path command.
type ConfigPathData struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}
