// internal/blockchain/solbc/transaction/types.go
package transaction

import (
	"errors"
	"time"
)

var (
	ErrInvalidSignature   = errors.New("invalid transaction signature")
	ErrInvalidBlockhash   = errors.New("invalid blockhash")
	ErrInvalidInstruction = errors.New("invalid instruction")
)

// DefaultPollInterval - интервал опроса статуса подписи по умолчанию.
const DefaultPollInterval = 500 * time.Millisecond

// State - состояние отслеживания якорной подписи бандла.
type State string

const (
	StatePending       State = "pending"
	StateConfirmed     State = "confirmed"
	StateFailedOnChain State = "failed_on_chain"
	StateExpired       State = "expired"
)

// Terminal reports whether no further polling can change the state.
func (s State) Terminal() bool {
	return s != StatePending
}

// Outcome is what the watcher observed when it stopped.
type Outcome struct {
	State       State
	Signature   string
	Slot        uint64
	BlockHeight uint64
	Error       string
	Polls       int
	Elapsed     time.Duration
}
