// Package apperr defines the error kinds shared across pipe-label.
// Package-level sentinels elsewhere wrap one of these kinds so callers can
// classify any error with errors.Is or KindOf.
package apperr

import "errors"

var (
	// ErrNotFound covers missing files, directories, videos, clips and labels.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState covers empty inputs, unknown values and out-of-range indices.
	ErrInvalidState = errors.New("invalid state")
	// ErrIOFault covers media that exists but cannot be opened or decoded.
	ErrIOFault = errors.New("io fault")
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidState
	KindIOFault
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindIOFault:
		return "IO_FAULT"
	default:
		return "INTERNAL_ERROR"
	}
}

// KindOf classifies err by the first kind sentinel found in its chain.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrIOFault):
		return KindIOFault
	default:
		return KindUnknown
	}
}
