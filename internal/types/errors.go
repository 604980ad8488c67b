// internal/types/errors.go
package types

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure so the caller can decide between
// rejecting, rebuilding and giving up.
type Kind string

const (
	KindValidation Kind = "validation"
	KindLiquidity  Kind = "liquidity"
	KindAssembly   Kind = "assembly"
	KindNetwork    Kind = "network"
	KindRPC        Kind = "rpc"
	KindOnChain    Kind = "on_chain"
	KindExpired    Kind = "expired"
)

var (
	ErrInsufficientLiquidity  = errors.New("insufficient liquidity")
	ErrUnknownProgramVariant  = errors.New("unknown program variant")
	ErrOversizeInstructionSet = errors.New("instruction set exceeds transaction limits")
	ErrBlockhashMismatch      = errors.New("transactions do not share one blockhash")
	ErrBundleTooLarge         = errors.New("bundle exceeds relay transaction limit")
	ErrAllEndpointsFailed     = errors.New("no relay endpoint accepted the bundle")
	ErrBlockhashExpired       = errors.New("blockhash expired before confirmation")
	ErrDeadlineExceeded       = errors.New("bundle deadline exceeded")
	ErrBudgetExceeded         = errors.New("quote exceeds wallet sol budget")
)

// Error несёт категорию ошибки и операцию, на которой она возникла.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error [%s]: %v", e.Kind, e.Op, e.Err)
}

// Unwrap возвращает исходную ошибку
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and operation name.
func NewError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRebuildable reports whether the failure calls for a fresh snapshot and rebuild.
func IsRebuildable(err error) bool {
	switch KindOf(err) {
	case KindOnChain, KindExpired:
		return true
	}
	return false
}
