// internal/blockchain/solbc/rpc/client.go
package rpc

import (
	solanarpc "github.com/gagliardetto/solana-go/rpc"
)

// NewNodeClient создает новый экземпляр NodeClient
func NewNodeClient(url string) *NodeClient {
	return &NodeClient{
		Client: solanarpc.New(url),
		URL:    url,
		active: true,
	}
}

// SetActive устанавливает статус активности узла
func (c *NodeClient) SetActive(state bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.active = state
}

// IsActive возвращает текущий статус активности узла
func (c *NodeClient) IsActive() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.active
}
