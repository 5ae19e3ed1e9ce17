package schema

import (
	"errors"
	"fmt"
)

// Kind classifies an archive failure so callers can branch without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindDuplicateSource
	KindEmbedding
	KindVectorStore
	KindRelational
	KindPartialSync
	KindSourceUnavailable
	KindTranscriptsDisabled
	KindNoTranscript
	KindExtraction
	KindBusy
	KindGeneration
	KindLock
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindDuplicateSource:
		return "duplicate_source"
	case KindEmbedding:
		return "embedding_failure"
	case KindVectorStore:
		return "vector_store_failure"
	case KindRelational:
		return "relational_failure"
	case KindPartialSync:
		return "partial_sync_failure"
	case KindSourceUnavailable:
		return "source_unavailable"
	case KindTranscriptsDisabled:
		return "transcripts_disabled"
	case KindNoTranscript:
		return "no_transcript"
	case KindExtraction:
		return "extraction_failure"
	case KindBusy:
		return "busy"
	case KindGeneration:
		return "generation_failure"
	case KindLock:
		return "lock_failure"
	default:
		return "unknown"
	}
}

// Sides of a two-store write that can fail independently.
const (
	SideVector     = "vector"
	SideRelational = "relational"
	SideBoth       = "both"
)

// Error is the single error type returned by the archive pipelines and extractors.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Side names the store that failed for partial sync failures.
	Side string
	// Written counts vector records durably written before the failure.
	Written int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrDuplicateSource     = &Error{Kind: KindDuplicateSource}
	ErrEmbedding           = &Error{Kind: KindEmbedding}
	ErrVectorStore         = &Error{Kind: KindVectorStore}
	ErrRelational          = &Error{Kind: KindRelational}
	ErrPartialSync         = &Error{Kind: KindPartialSync}
	ErrSourceUnavailable   = &Error{Kind: KindSourceUnavailable}
	ErrTranscriptsDisabled = &Error{Kind: KindTranscriptsDisabled}
	ErrNoTranscript        = &Error{Kind: KindNoTranscript}
	ErrExtraction          = &Error{Kind: KindExtraction}
	ErrBusy                = &Error{Kind: KindBusy}
	ErrGeneration          = &Error{Kind: KindGeneration}
	ErrLock                = &Error{Kind: KindLock}
)

// E builds an *Error.
func E(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
