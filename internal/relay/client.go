// internal/relay/client.go
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ybbus/jsonrpc/v3"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

const (
	methodSendBundle        = "sendBundle"
	methodSimulateBundle    = "simulateBundle"
	methodGetBundleStatuses = "getBundleStatuses"
)

// Client talks JSON-RPC to a single block-engine endpoint.
type Client struct {
	endpoint Endpoint
	rpc      jsonrpc.RPCClient
	logger   *zap.Logger
}

// NewClient creates a client for one endpoint. A nil httpClient uses http.DefaultClient.
func NewClient(endpoint Endpoint, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint: endpoint,
		rpc: jsonrpc.NewClientWithOpts(endpoint.URL, &jsonrpc.RPCClientOpts{
			HTTPClient: httpClient,
		}),
		logger: logger.Named("relay-client").With(zap.String("endpoint", endpoint.URL)),
	}
}

// Endpoint returns the endpoint this client targets.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// call classifies failures: a JSON-RPC error object is KindRPC,
// anything else on the way (transport, HTTP status, timeout) is KindNetwork.
func (c *Client) call(ctx context.Context, method string, params interface{}) (*jsonrpc.RPCResponse, error) {
	start := time.Now()
	res, err := c.rpc.Call(ctx, method, params)
	elapsed := time.Since(start)

	if res != nil && res.Error != nil {
		c.logger.Debug("Relay returned error object",
			zap.String("method", method),
			zap.Int("code", res.Error.Code),
			zap.String("message", res.Error.Message),
			zap.Duration("elapsed", elapsed))
		return nil, types.NewError(types.KindRPC, method, res.Error)
	}
	if err != nil {
		var httpErr *jsonrpc.HTTPError
		if errors.As(err, &httpErr) {
			err = fmt.Errorf("http status %d: %w", httpErr.Code, err)
		}
		c.logger.Debug("Relay call failed",
			zap.String("method", method),
			zap.Error(err),
			zap.Duration("elapsed", elapsed))
		return nil, types.NewError(types.KindNetwork, method, err)
	}
	if res == nil {
		return nil, types.NewError(types.KindNetwork, method, fmt.Errorf("empty response"))
	}
	return res, nil
}

// SendBundle submits base58-encoded transactions and returns the relay's bundle id.
func (c *Client) SendBundle(ctx context.Context, encoded []string) (string, error) {
	res, err := c.call(ctx, methodSendBundle, [][]string{encoded})
	if err != nil {
		return "", err
	}
	id, err := res.GetString()
	if err != nil {
		return "", types.NewError(types.KindRPC, methodSendBundle, fmt.Errorf("unexpected result: %w", err))
	}
	return id, nil
}

// SimulationSummary is the relay's verdict on a simulated bundle.
type SimulationSummary struct {
	Failed  bool
	Message string
	Logs    []string
}

type simulateResult struct {
	Value struct {
		Summary            interface{} `json:"summary"`
		TransactionResults []struct {
			Err  interface{} `json:"err"`
			Logs []string    `json:"logs"`
		} `json:"transactionResults"`
	} `json:"value"`
}

// SimulateBundle asks the endpoint to simulate the bundle without landing it.
func (c *Client) SimulateBundle(ctx context.Context, encoded []string) (*SimulationSummary, error) {
	params := []interface{}{map[string]interface{}{"encodedTransactions": encoded}}
	res, err := c.call(ctx, methodSimulateBundle, params)
	if err != nil {
		return nil, err
	}

	var out simulateResult
	if err := res.GetObject(&out); err != nil {
		return nil, types.NewError(types.KindRPC, methodSimulateBundle, fmt.Errorf("unexpected result: %w", err))
	}

	summary := &SimulationSummary{}
	for _, tr := range out.Value.TransactionResults {
		summary.Logs = append(summary.Logs, tr.Logs...)
	}
	// summary: "succeeded" или {"failed": {...}}
	switch s := out.Value.Summary.(type) {
	case string:
		summary.Failed = s != "succeeded"
		summary.Message = s
	case map[string]interface{}:
		summary.Failed = true
		summary.Message = fmt.Sprintf("%v", s["failed"])
	}
	return summary, nil
}

// BundleStatus is one entry of getBundleStatuses.
type BundleStatus struct {
	BundleID           string      `json:"bundle_id"`
	Transactions       []string    `json:"transactions"`
	Slot               uint64      `json:"slot"`
	ConfirmationStatus string      `json:"confirmation_status"`
	Err                interface{} `json:"err"`
}

type statusesResult struct {
	Value []*BundleStatus `json:"value"`
}

// GetBundleStatuses returns landed status per bundle id; unknown ids are omitted.
func (c *Client) GetBundleStatuses(ctx context.Context, ids []string) ([]*BundleStatus, error) {
	res, err := c.call(ctx, methodGetBundleStatuses, [][]string{ids})
	if err != nil {
		return nil, err
	}
	var out statusesResult
	if err := res.GetObject(&out); err != nil {
		return nil, types.NewError(types.KindRPC, methodGetBundleStatuses, fmt.Errorf("unexpected result: %w", err))
	}

	statuses := make([]*BundleStatus, 0, len(out.Value))
	for _, s := range out.Value {
		if s != nil {
			statuses = append(statuses, s)
		}
	}
	return statuses, nil
}
