// internal/blockchain/solbc/rpc/errors.go
package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	// ErrNoActiveClients возникает, когда нет доступных активных клиентов
	ErrNoActiveClients = errors.New("no active RPC clients available")

	// ErrRateLimit возникает при превышении лимита запросов
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrTimeout возникает при превышении времени ожидания
	ErrTimeout = errors.New("request timeout")

	// ErrInvalidResponse возникает при получении некорректного ответа
	ErrInvalidResponse = errors.New("invalid RPC response")

	// ErrConnectionFailed возникает при ошибке подключения
	ErrConnectionFailed = errors.New("connection failed")
)

// Error представляет ошибку RPC с дополнительным контекстом
type Error struct {
	Err     error
	NodeURL string
	Method  string
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	return fmt.Sprintf("RPC error [%s] at %s: %v", e.Method, e.NodeURL, e.Err)
}

// Unwrap возвращает оригинальную ошибку
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError создает новую ошибку RPC
func NewError(err error, nodeURL, method string) error {
	return &Error{
		Err:     err,
		NodeURL: nodeURL,
		Method:  method,
	}
}

// IsRetryableError определяет, имеет ли смысл повторить чтение на другом узле.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Проверяем конкретные типы ошибок
	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrRateLimit),
		errors.Is(err, ErrConnectionFailed),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}

	// JSON-RPC ошибки узла: -32005 (node behind), -32004 (block not available),
	// 429 в теле ответа
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case -32005, -32004, -32007, 429:
			return true
		}
		return false
	}

	// Проверяем текст ошибки для общих сетевых проблем
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "timeout")
}
