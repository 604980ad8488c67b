// internal/blockchain/solbc/rpc/pool.go
package rpc

import (
	"go.uber.org/zap"
)

// NewPool создает новый пул клиентов
func NewPool(urls []string, logger *zap.Logger) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoActiveClients
	}
	clients := make([]*NodeClient, 0, len(urls))
	for _, url := range urls {
		clients = append(clients, NewNodeClient(url))
	}
	return &Pool{
		clients: clients,
		logger:  logger.Named("rpc-pool"),
		index:   -1,
	}, nil
}

// Next возвращает следующий активный клиент из пула.
// Если все узлы помечены неактивными, пул сбрасывает пометки:
// лучше повторить запрос к "плохому" узлу, чем не сделать его вовсе.
func (p *Pool) Next() *NodeClient {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for i := 0; i < len(p.clients); i++ {
		p.index = (p.index + 1) % len(p.clients)
		if p.clients[p.index].IsActive() {
			return p.clients[p.index]
		}
	}

	p.logger.Warn("All RPC nodes inactive, resetting pool", zap.Int("nodes", len(p.clients)))
	for _, c := range p.clients {
		c.SetActive(true)
	}
	p.index = (p.index + 1) % len(p.clients)
	return p.clients[p.index]
}

// MarkFailed выводит узел из ротации до следующего сброса.
func (p *Pool) MarkFailed(node *NodeClient) {
	if len(p.clients) > 1 {
		node.SetActive(false)
	}
}

// HasActiveClients проверяет наличие активных клиентов в пуле
func (p *Pool) HasActiveClients() bool {
	for _, client := range p.clients {
		if client.IsActive() {
			return true
		}
	}
	return false
}

// Size возвращает количество узлов в пуле
func (p *Pool) Size() int {
	return len(p.clients)
}
