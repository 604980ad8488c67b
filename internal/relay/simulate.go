// internal/relay/simulate.go
package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/bundle"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

// SimulationError carries the relay's logs for a bundle that failed simulation.
type SimulationError struct {
	Message string
	Logs    []string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("bundle simulation failed: %s", e.Message)
}

// Simulator runs a simulateBundle preflight against one endpoint.
type Simulator struct {
	client   *Client
	timeout  time.Duration
	recorder Recorder
	logger   *zap.Logger
}

// NewSimulator creates a preflight simulator. recorder may be nil.
func NewSimulator(endpoint Endpoint, httpClient *http.Client, timeout time.Duration, recorder Recorder, logger *zap.Logger) *Simulator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Simulator{
		client:   NewClient(endpoint, httpClient, logger),
		timeout:  timeout,
		recorder: recorder,
		logger:   logger.Named("simulator"),
	}
}

// Simulate returns nil when the relay expects the bundle to land.
// A failed simulation is a KindOnChain error wrapping *SimulationError.
func (s *Simulator) Simulate(ctx context.Context, bn *bundle.Bundle) error {
	encoded, err := bundle.EncodeBundle(bn)
	if err != nil {
		return types.NewError(types.KindAssembly, "simulate", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	summary, err := s.client.SimulateBundle(callCtx, encoded)
	if s.recorder != nil {
		outcome := "accepted"
		if err != nil {
			outcome = string(types.KindOf(err))
		}
		s.recorder.RecordRelay(s.client.endpoint.URL, methodSimulateBundle, outcome, time.Since(start))
	}
	if err != nil {
		return err
	}

	if summary.Failed {
		s.logger.Warn("Bundle simulation failed",
			zap.String("bundle_id", bn.ID),
			zap.String("summary", summary.Message),
			zap.Int("log_lines", len(summary.Logs)))
		return types.NewError(types.KindOnChain, "simulate", &SimulationError{
			Message: summary.Message,
			Logs:    summary.Logs,
		})
	}

	s.logger.Debug("Bundle simulation succeeded", zap.String("bundle_id", bn.ID))
	return nil
}
