// internal/blockchain/solbc/transaction/watcher.go
package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain"
)

// Watcher отслеживает якорную подпись бандла до терминального состояния.
type Watcher struct {
	client   blockchain.Client
	interval time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a watcher polling at the given interval.
func NewWatcher(client blockchain.Client, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		client:   client,
		interval: interval,
		logger:   logger.Named("tx-watcher"),
	}
}

// AwaitConfirmation polls until the signature reaches the desired commitment,
// reports an on-chain error, or the chain moves past lastValidBlockHeight
// while the signature is not visible. A signature that was seen and then
// dropped (minority fork) is subject to expiry again. Context cancellation
// ends in Expired together with the context error.
func (w *Watcher) AwaitConfirmation(
	ctx context.Context,
	signature solana.Signature,
	lastValidBlockHeight uint64,
	commitment rpc.CommitmentType,
) (*Outcome, error) {
	start := time.Now()
	outcome := &Outcome{State: StatePending, Signature: signature.String()}
	logger := w.logger.With(
		zap.String("signature", signature.String()),
		zap.Uint64("last_valid_block_height", lastValidBlockHeight),
		zap.String("commitment", string(commitment)),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		outcome.Polls++
		w.poll(ctx, logger, signature, lastValidBlockHeight, commitment, outcome)
		if outcome.State.Terminal() {
			outcome.Elapsed = time.Since(start)
			logger.Info("Confirmation finished",
				zap.String("state", string(outcome.State)),
				zap.Int("polls", outcome.Polls),
				zap.Duration("elapsed", outcome.Elapsed))
			return outcome, nil
		}

		select {
		case <-ctx.Done():
			outcome.State = StateExpired
			outcome.Elapsed = time.Since(start)
			logger.Warn("Confirmation interrupted", zap.Error(ctx.Err()))
			return outcome, ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll делает один шаг конечного автомата и обновляет outcome.State.
func (w *Watcher) poll(
	ctx context.Context,
	logger *zap.Logger,
	signature solana.Signature,
	lastValidBlockHeight uint64,
	commitment rpc.CommitmentType,
	outcome *Outcome,
) {
	status, err := w.client.GetSignatureStatus(ctx, signature)
	if err != nil {
		logger.Warn("Signature status check failed", zap.Error(err))
	} else if status != nil {
		outcome.Slot = status.Slot
		if status.Err != nil {
			outcome.State = StateFailedOnChain
			outcome.Error = fmt.Sprintf("%v", status.Err)
			return
		}
		if blockchain.CommitmentReached(status.ConfirmationStatus, commitment) {
			outcome.State = StateConfirmed
		}
		// Подпись видна в этом опросе: высоту не проверяем.
		return
	}

	height, err := w.client.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		logger.Warn("Block height check failed", zap.Error(err))
		return
	}
	outcome.BlockHeight = height
	if height > lastValidBlockHeight {
		if outcome.Slot != 0 {
			logger.Warn("Signature dropped after being seen", zap.Uint64("slot", outcome.Slot))
		}
		outcome.State = StateExpired
	}
}
