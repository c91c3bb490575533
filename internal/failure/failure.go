// Package failure categorizes errors surfaced by the catalog core.
package failure

import (
	"context"
	"errors"
	"fmt"
)

// Kind is an error category, independent of the concrete error type.
type Kind string

const (
	KindNone                 Kind = ""
	KindIO                   Kind = "IO_FAILURE"
	KindSchemaConflict       Kind = "SCHEMA_CONFLICT"
	KindDuplicateSiblingName Kind = "DUPLICATE_SIBLING_NAME"
	KindInvalidName          Kind = "INVALID_NAME"
	KindInvalidMove          Kind = "INVALID_MOVE"
	KindFileNotFound         Kind = "FILE_NOT_FOUND"
	KindDecode               Kind = "DECODE_FAILURE"
	KindIndex                Kind = "INDEX_FAILURE"
	KindCancelled            Kind = "CANCELLED"
	KindNotFound             Kind = "NOT_FOUND"
)

// Sentinel errors, one per kind. Wrap them with fmt.Errorf("%w: ...").
var (
	ErrIO                   = errors.New("i/o failure")
	ErrSchemaConflict       = errors.New("schema conflict")
	ErrDuplicateSiblingName = errors.New("a sibling folder already has this name")
	ErrInvalidName          = errors.New("invalid folder name")
	ErrInvalidMove          = errors.New("invalid folder operation")
	ErrFileNotFound         = errors.New("file not found")
	ErrDecode               = errors.New("decode failure")
	ErrIndex                = errors.New("index failure")
	ErrCancelled            = errors.New("cancelled")
	ErrNotFound             = errors.New("not found")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrCancelled, KindCancelled},
	{context.Canceled, KindCancelled},
	{ErrDuplicateSiblingName, KindDuplicateSiblingName},
	{ErrInvalidName, KindInvalidName},
	{ErrInvalidMove, KindInvalidMove},
	{ErrSchemaConflict, KindSchemaConflict},
	{ErrFileNotFound, KindFileNotFound},
	{ErrDecode, KindDecode},
	{ErrIndex, KindIndex},
	{ErrNotFound, KindNotFound},
	{ErrIO, KindIO},
}

// Error attaches a kind and the offending entity id to an error.
type Error struct {
	Kind Kind
	ID   string // Document or folder id
	Err  error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns an *Error for id, classifying err. A nil err stays nil.
func Wrap(id string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), ID: id, Err: err}
}

// KindOf classifies err. Errors of no known kind are IO failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var fe *Error
	if errors.As(err, &fe) && fe.Kind != KindNone {
		return fe.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindIO
}

// IsCancelled reports whether err means a job was cancelled. Cancellation
// is not a failure; callers unwind without reporting it.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
