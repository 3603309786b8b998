package document

import "errors"

var (
	// ErrNoDocument is returned for operations that need a current document.
	ErrNoDocument = errors.New("no document loaded")

	// ErrUnknownOp is returned when completing an op that was never begun.
	ErrUnknownOp = errors.New("unknown pending operation")

	// ErrEmptyDocID is returned when opening a document without a name.
	ErrEmptyDocID = errors.New("empty document id")
)
