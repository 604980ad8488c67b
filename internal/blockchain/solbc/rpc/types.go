// internal/blockchain/solbc/rpc/types.go
package rpc

import (
	"sync"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// NodeClient представляет отдельный RPC узел
type NodeClient struct {
	Client *rpc.Client
	URL    string
	active bool
	mutex  sync.RWMutex
}

// Pool представляет пул RPC клиентов с round-robin выбором узла
type Pool struct {
	clients []*NodeClient
	logger  *zap.Logger
	index   int
	mutex   sync.Mutex
}
