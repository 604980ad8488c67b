package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain"
	"github.com/rovshanmuradov/solana-bundler/internal/blockchain/mocks"
)

func testSignature() solana.Signature {
	var sig solana.Signature
	sig[0] = 7
	sig[63] = 9
	return sig
}

func TestWatcher_ExpiresWhenHeightPassesLastValid(t *testing.T) {
	client := new(mocks.MockChainClient)
	sig := testSignature()

	client.On("GetSignatureStatus", mock.Anything, sig).Return(nil, nil)
	client.On("GetBlockHeight", mock.Anything, rpc.CommitmentConfirmed).Return(uint64(999), nil).Once()
	client.On("GetBlockHeight", mock.Anything, rpc.CommitmentConfirmed).Return(uint64(1000), nil).Once()
	client.On("GetBlockHeight", mock.Anything, rpc.CommitmentConfirmed).Return(uint64(1001), nil)

	w := NewWatcher(client, time.Millisecond, zaptest.NewLogger(t))
	out, err := w.AwaitConfirmation(context.Background(), sig, 1000, rpc.CommitmentConfirmed)

	require.NoError(t, err)
	assert.Equal(t, StateExpired, out.State)
	assert.Equal(t, uint64(1001), out.BlockHeight)
	assert.Equal(t, 3, out.Polls)
	client.AssertExpectations(t)
}

func TestWatcher_TerminalStates(t *testing.T) {
	tests := []struct {
		name       string
		status     *blockchain.SignatureStatus
		commitment rpc.CommitmentType
		want       State
	}{
		{
			name:       "confirmed at desired commitment",
			status:     &blockchain.SignatureStatus{Slot: 42, ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
			commitment: rpc.CommitmentConfirmed,
			want:       StateConfirmed,
		},
		{
			name:       "finalized satisfies confirmed",
			status:     &blockchain.SignatureStatus{Slot: 42, ConfirmationStatus: rpc.ConfirmationStatusFinalized},
			commitment: rpc.CommitmentConfirmed,
			want:       StateConfirmed,
		},
		{
			name: "on-chain error",
			status: &blockchain.SignatureStatus{
				Slot:               42,
				ConfirmationStatus: rpc.ConfirmationStatusProcessed,
				Err:                map[string]interface{}{"InstructionError": []interface{}{4, map[string]interface{}{"Custom": 6004}}},
			},
			commitment: rpc.CommitmentConfirmed,
			want:       StateFailedOnChain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mocks.MockChainClient)
			sig := testSignature()
			client.On("GetSignatureStatus", mock.Anything, sig).Return(tt.status, nil)

			w := NewWatcher(client, time.Millisecond, zaptest.NewLogger(t))
			out, err := w.AwaitConfirmation(context.Background(), sig, 1000, tt.commitment)

			require.NoError(t, err)
			assert.Equal(t, tt.want, out.State)
			assert.Equal(t, uint64(42), out.Slot)
			if tt.want == StateFailedOnChain {
				assert.Contains(t, out.Error, "InstructionError")
			}
			client.AssertNotCalled(t, "GetBlockHeight", mock.Anything, mock.Anything)
		})
	}
}

func TestWatcher_SeenSignatureDoesNotExpire(t *testing.T) {
	client := new(mocks.MockChainClient)
	sig := testSignature()

	processed := &blockchain.SignatureStatus{Slot: 10, ConfirmationStatus: rpc.ConfirmationStatusProcessed}
	confirmed := &blockchain.SignatureStatus{Slot: 10, ConfirmationStatus: rpc.ConfirmationStatusConfirmed}
	client.On("GetSignatureStatus", mock.Anything, sig).Return(processed, nil).Twice()
	client.On("GetSignatureStatus", mock.Anything, sig).Return(confirmed, nil)

	w := NewWatcher(client, time.Millisecond, zaptest.NewLogger(t))
	out, err := w.AwaitConfirmation(context.Background(), sig, 1, rpc.CommitmentConfirmed)

	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, out.State)
	client.AssertNotCalled(t, "GetBlockHeight", mock.Anything, mock.Anything)
}

func TestWatcher_DroppedSignatureExpires(t *testing.T) {
	client := new(mocks.MockChainClient)
	sig := testSignature()

	// Подпись видна на processed, затем пропадает вместе с форком.
	processed := &blockchain.SignatureStatus{Slot: 10, ConfirmationStatus: rpc.ConfirmationStatusProcessed}
	client.On("GetSignatureStatus", mock.Anything, sig).Return(processed, nil).Once()
	client.On("GetSignatureStatus", mock.Anything, sig).Return(nil, nil)
	client.On("GetBlockHeight", mock.Anything, rpc.CommitmentConfirmed).Return(uint64(2000), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	w := NewWatcher(client, time.Millisecond, zaptest.NewLogger(t))
	out, err := w.AwaitConfirmation(ctx, sig, 1000, rpc.CommitmentConfirmed)

	require.NoError(t, err)
	assert.Equal(t, StateExpired, out.State)
	assert.Equal(t, uint64(2000), out.BlockHeight)
	assert.Equal(t, 2, out.Polls)
	client.AssertNumberOfCalls(t, "GetBlockHeight", 1)
}

func TestState_Terminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	for _, s := range []State{StateConfirmed, StateFailedOnChain, StateExpired} {
		assert.True(t, s.Terminal(), s)
	}
}

func TestWatcher_TransientErrorsKeepPolling(t *testing.T) {
	client := new(mocks.MockChainClient)
	sig := testSignature()

	client.On("GetSignatureStatus", mock.Anything, sig).Return(nil, errors.New("connection reset")).Once()
	client.On("GetSignatureStatus", mock.Anything, sig).Return(
		&blockchain.SignatureStatus{ConfirmationStatus: rpc.ConfirmationStatusFinalized}, nil)
	client.On("GetBlockHeight", mock.Anything, rpc.CommitmentConfirmed).Return(uint64(5), nil)

	w := NewWatcher(client, time.Millisecond, zaptest.NewLogger(t))
	out, err := w.AwaitConfirmation(context.Background(), sig, 100, rpc.CommitmentFinalized)

	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, out.State)
	assert.Equal(t, 2, out.Polls)
}

func TestWatcher_ContextDeadline(t *testing.T) {
	client := new(mocks.MockChainClient)
	sig := testSignature()

	client.On("GetSignatureStatus", mock.Anything, sig).Return(nil, nil)
	client.On("GetBlockHeight", mock.Anything, rpc.CommitmentConfirmed).Return(uint64(10), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	w := NewWatcher(client, 5*time.Millisecond, zaptest.NewLogger(t))
	out, err := w.AwaitConfirmation(ctx, sig, 1000, rpc.CommitmentConfirmed)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateExpired, out.State)
}
