package stash

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyKey is returned when a cell or binding is created for an empty key.
	ErrEmptyKey = errors.New("stash: empty key")

	// ErrNilStore is returned when a cell or binding is created without a store.
	ErrNilStore = errors.New("stash: nil store")

	// ErrClosed is returned by operations on a binding after Close.
	ErrClosed = errors.New("stash: binding closed")
)

// Failure stages reported to metrics, error history and signals.
const (
	StageLoad    = "load"
	StageDecode  = "decode"
	StageEncode  = "encode"
	StagePersist = "persist"
)

// LoadError reports that the Store could not return the current entry for a key.
type LoadError struct {
	Key string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("stash: load %q: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DecodeError reports that a stored entry is not valid encoded data.
// It is surfaced to the reader rather than replaced with a guessed default,
// since a default would diverge from what other bindings observe.
type DecodeError struct {
	Key  string
	Data []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("stash: decode %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports that a value could not be marshaled by the codec.
type EncodeError struct {
	Key string
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("stash: encode %q: %v", e.Key, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// PersistError reports that the Store rejected a write. When a write fails
// this way no subscriber is notified and the cell keeps its previous value.
type PersistError struct {
	Key string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("stash: persist %q: %v", e.Key, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// stageOf maps a cell error to its failure stage.
func stageOf(err error) string {
	var (
		loadErr    *LoadError
		decodeErr  *DecodeError
		encodeErr  *EncodeError
		persistErr *PersistError
	)
	switch {
	case errors.As(err, &loadErr):
		return StageLoad
	case errors.As(err, &decodeErr):
		return StageDecode
	case errors.As(err, &encodeErr):
		return StageEncode
	case errors.As(err, &persistErr):
		return StagePersist
	default:
		return "unknown"
	}
}
