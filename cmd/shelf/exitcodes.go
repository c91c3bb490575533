package main

import (
	"errors"

	"github.com/matsen/shelf/internal/doi"
	"github.com/matsen/shelf/internal/failure"
)

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (no library selected, bad settings)
	ExitDataError   = 3 // Data error (invalid name or move, undecodable input)
	ExitNotFound    = 4 // Document, folder, file or library not found
	ExitIndexError  = 5 // Full-text index failure
	ExitCancelled   = 130
)

// exitCodeFor maps an error onto an exit code by its kind.
func exitCodeFor(err error) int {
	if errors.Is(err, doi.ErrInvalidDOI) {
		return ExitDataError
	}
	switch failure.KindOf(err) {
	case failure.KindCancelled:
		return ExitCancelled
	case failure.KindNotFound, failure.KindFileNotFound:
		return ExitNotFound
	case failure.KindInvalidName, failure.KindInvalidMove, failure.KindDuplicateSiblingName,
		failure.KindDecode, failure.KindSchemaConflict:
		return ExitDataError
	case failure.KindIndex:
		return ExitIndexError
	}
	return ExitError
}
