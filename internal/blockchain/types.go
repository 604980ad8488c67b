// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// BlockhashInfo is a recent blockhash together with the last block height
// at which transactions referencing it can still land.
type BlockhashInfo struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// SimulationResult представляет результат симуляции транзакции.
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed uint64
}

// SignatureStatus is the observed status of one signature.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	ConfirmationStatus rpc.ConfirmationStatusType
	Err                interface{}
}

// Client определяет общий интерфейс для взаимодействия с блокчейном.
// Все методы - идемпотентные чтения, их можно повторять.
type Client interface {
	// Получить последний blockhash и его lastValidBlockHeight.
	GetLatestBlockhash(ctx context.Context) (*BlockhashInfo, error)
	// Текущая высота блока.
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	// Данные аккаунта; nil, если аккаунт не существует.
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
	// Данные нескольких аккаунтов за один запрос; nil для отсутствующих.
	GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) ([][]byte, error)
	// Симулировать транзакцию.
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
	// Статус подписи; nil, если подпись ещё не видна.
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (*SignatureStatus, error)
}

// CommitmentReached reports whether observed satisfies desired
// (processed < confirmed < finalized).
func CommitmentReached(observed rpc.ConfirmationStatusType, desired rpc.CommitmentType) bool {
	rank := func(s string) int {
		switch s {
		case string(rpc.CommitmentProcessed):
			return 1
		case string(rpc.CommitmentConfirmed):
			return 2
		case string(rpc.CommitmentFinalized):
			return 3
		}
		return 0
	}
	have := rank(string(observed))
	return have > 0 && have >= rank(string(desired))
}
