// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain"
	"github.com/rovshanmuradov/solana-bundler/internal/blockchain/solbc/rpc"
)

// Client – тонкий адаптер для чтений из блокчейна Solana через solana-go.
// Каждое чтение идёт через RetryPolicy и ротацию узлов пула.
type Client struct {
	pool       *rpc.Pool
	retry      RetryPolicy
	commitment solanarpc.CommitmentType
	recorder   LatencyRecorder
	logger     *zap.Logger
}

// LatencyRecorder получает длительность каждого RPC-вызова. *metrics.Collector реализует его.
type LatencyRecorder interface {
	RecordRPCLatency(method, endpoint string, duration time.Duration)
}

// SetRecorder enables per-call latency recording; nil disables it.
func (c *Client) SetRecorder(rec LatencyRecorder) {
	c.recorder = rec
}

// NewClient создаёт новый клиент, принимая список RPC URL и логгер через dependency injection.
func NewClient(rpcURLs []string, retry RetryPolicy, commitment solanarpc.CommitmentType, logger *zap.Logger) (*Client, error) {
	logger = logger.Named("solbc-client")
	pool, err := rpc.NewPool(rpcURLs, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc pool: %w", err)
	}
	if commitment == "" {
		commitment = solanarpc.CommitmentConfirmed
	}
	return &Client{
		pool:       pool,
		retry:      retry,
		commitment: commitment,
		logger:     logger,
	}, nil
}

// read выполняет операцию на следующем узле пула с повторами.
func read[T any](ctx context.Context, c *Client, method string, op func(node *rpc.NodeClient) (T, error)) (T, error) {
	return retryRead(ctx, c.retry, c.logger, method, func() (T, error) {
		node := c.pool.Next()
		start := time.Now()
		res, err := op(node)
		if c.recorder != nil {
			c.recorder.RecordRPCLatency(method, node.URL, time.Since(start))
		}
		if err != nil {
			if rpc.IsRetryableError(err) {
				c.pool.MarkFailed(node)
			}
			return res, rpc.NewError(err, node.URL, method)
		}
		return res, nil
	})
}

// GetLatestBlockhash получает последний blockhash вместе с lastValidBlockHeight.
func (c *Client) GetLatestBlockhash(ctx context.Context) (*blockchain.BlockhashInfo, error) {
	info, err := read(ctx, c, "getLatestBlockhash", func(node *rpc.NodeClient) (*blockchain.BlockhashInfo, error) {
		result, err := node.Client.GetLatestBlockhash(ctx, c.commitment)
		if err != nil {
			return nil, err
		}
		if result == nil || result.Value == nil {
			return nil, rpc.ErrInvalidResponse
		}
		return &blockchain.BlockhashInfo{
			Blockhash:            result.Value.Blockhash,
			LastValidBlockHeight: result.Value.LastValidBlockHeight,
		}, nil
	})
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return nil, err
	}
	return info, nil
}

// GetBlockHeight возвращает текущую высоту блока.
func (c *Client) GetBlockHeight(ctx context.Context, commitment solanarpc.CommitmentType) (uint64, error) {
	return read(ctx, c, "getBlockHeight", func(node *rpc.NodeClient) (uint64, error) {
		return node.Client.GetBlockHeight(ctx, commitment)
	})
}

// GetAccountInfo получает данные аккаунта; nil без ошибки, если аккаунта нет.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	accounts, err := c.GetMultipleAccounts(ctx, []solana.PublicKey{pubkey})
	if err != nil {
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	return accounts[0], nil
}

// GetMultipleAccounts получает информацию о нескольких аккаунтах за один запрос
func (c *Client) GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) ([][]byte, error) {
	if len(pubkeys) == 0 {
		return nil, nil
	}

	// Создаем опции запроса
	opts := solanarpc.GetMultipleAccountsOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	}

	return read(ctx, c, "getMultipleAccounts", func(node *rpc.NodeClient) ([][]byte, error) {
		res, err := node.Client.GetMultipleAccountsWithOpts(ctx, pubkeys, &opts)
		if err != nil {
			return nil, err
		}
		if res == nil || len(res.Value) != len(pubkeys) {
			return nil, rpc.ErrInvalidResponse
		}
		out := make([][]byte, len(pubkeys))
		for i, acc := range res.Value {
			if acc == nil || acc.Data == nil {
				continue
			}
			out[i] = acc.Data.GetBinary()
		}
		return out, nil
	})
}

// SimulateTransaction симулирует транзакцию и возвращает результат симуляции.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	result, err := read(ctx, c, "simulateTransaction", func(node *rpc.NodeClient) (*solanarpc.SimulateTransactionResponse, error) {
		return node.Client.SimulateTransaction(ctx, tx)
	})
	if err != nil {
		c.logger.Error("SimulateTransaction error", zap.Error(err))
		return nil, err
	}
	if result == nil || result.Value == nil {
		return nil, rpc.ErrInvalidResponse
	}
	units := uint64(0)
	if result.Value.UnitsConsumed != nil {
		units = *result.Value.UnitsConsumed
	}
	return &blockchain.SimulationResult{
		Err:           result.Value.Err,
		Logs:          result.Value.Logs,
		UnitsConsumed: units,
	}, nil
}

// GetSignatureStatus получает статус одной подписи; nil, если она ещё не видна.
func (c *Client) GetSignatureStatus(ctx context.Context, signature solana.Signature) (*blockchain.SignatureStatus, error) {
	return read(ctx, c, "getSignatureStatuses", func(node *rpc.NodeClient) (*blockchain.SignatureStatus, error) {
		result, err := node.Client.GetSignatureStatuses(ctx, false, signature)
		if err != nil {
			return nil, err
		}
		if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
			return nil, nil
		}
		status := result.Value[0]
		return &blockchain.SignatureStatus{
			Slot:               status.Slot,
			Confirmations:      status.Confirmations,
			ConfirmationStatus: status.ConfirmationStatus,
			Err:                status.Err,
		}, nil
	})
}

// GetSlot возвращает последний слот на заданном уровне подтверждения.
func (c *Client) GetSlot(ctx context.Context, commitment solanarpc.CommitmentType) (uint64, error) {
	return read(ctx, c, "getSlot", func(node *rpc.NodeClient) (uint64, error) {
		return node.Client.GetSlot(ctx, commitment)
	})
}

// SendTransaction submits a signed transaction once. Sends are never retried:
// a lost transaction is rebuilt by the caller against a fresh blockhash.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	node := c.pool.Next()
	start := time.Now()
	sig, err := node.Client.SendTransactionWithOpts(ctx, tx, solanarpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if c.recorder != nil {
		c.recorder.RecordRPCLatency("sendTransaction", node.URL, time.Since(start))
	}
	if err != nil {
		if rpc.IsRetryableError(err) {
			c.pool.MarkFailed(node)
		}
		return solana.Signature{}, rpc.NewError(err, node.URL, "sendTransaction")
	}
	return sig, nil
}

// NextNode exposes the pool to helpers that need the raw solana-go client
// (lookup table loading).
func (c *Client) NextNode() *rpc.NodeClient {
	return c.pool.Next()
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
