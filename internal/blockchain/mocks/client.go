// internal/blockchain/mocks/client.go
package mocks

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/mock"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain"
)

// MockChainClient реализует интерфейс blockchain.Client для тестов
type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) GetLatestBlockhash(ctx context.Context) (*blockchain.BlockhashInfo, error) {
	args := m.Called(ctx)
	info, _ := args.Get(0).(*blockchain.BlockhashInfo)
	return info, args.Error(1)
}

func (m *MockChainClient) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	args := m.Called(ctx, commitment)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockChainClient) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	args := m.Called(ctx, pubkey)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockChainClient) GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) ([][]byte, error) {
	args := m.Called(ctx, pubkeys)
	data, _ := args.Get(0).([][]byte)
	return data, args.Error(1)
}

func (m *MockChainClient) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	args := m.Called(ctx, tx)
	res, _ := args.Get(0).(*blockchain.SimulationResult)
	return res, args.Error(1)
}

func (m *MockChainClient) GetSignatureStatus(ctx context.Context, signature solana.Signature) (*blockchain.SignatureStatus, error) {
	args := m.Called(ctx, signature)
	status, _ := args.Get(0).(*blockchain.SignatureStatus)
	return status, args.Error(1)
}

var _ blockchain.Client = (*MockChainClient)(nil)
