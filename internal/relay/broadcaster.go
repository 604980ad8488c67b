// internal/relay/broadcaster.go
package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/solana-bundler/internal/bundle"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

// DefaultTimeout bounds a single endpoint call.
const DefaultTimeout = 5 * time.Second

// Recorder receives per-call relay outcomes. *metrics.Collector implements it.
type Recorder interface {
	RecordRelay(endpoint, method, outcome string, duration time.Duration)
}

// Config настраивает рассылку бандла.
type Config struct {
	Timeout time.Duration
	// RateLimit - запросов в секунду на один endpoint; 0 без ограничения.
	RateLimit  float64
	HTTPClient *http.Client
}

type endpointClient struct {
	*Client
	limiter *rate.Limiter
}

// Broadcaster fans a bundle out to every endpoint and joins all results.
type Broadcaster struct {
	clients  []*endpointClient
	timeout  time.Duration
	recorder Recorder
	logger   *zap.Logger
}

// NewBroadcaster creates one client and one limiter per endpoint. recorder may be nil.
func NewBroadcaster(endpoints []Endpoint, cfg Config, recorder Recorder, logger *zap.Logger) (*Broadcaster, error) {
	if len(endpoints) == 0 {
		return nil, types.NewError(types.KindValidation, "broadcaster", fmt.Errorf("no relay endpoints"))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	b := &Broadcaster{
		timeout:  cfg.Timeout,
		recorder: recorder,
		logger:   logger.Named("broadcaster"),
	}
	for _, ep := range endpoints {
		limit := rate.Inf
		if cfg.RateLimit > 0 {
			limit = rate.Limit(cfg.RateLimit)
		}
		b.clients = append(b.clients, &endpointClient{
			Client:  NewClient(ep, cfg.HTTPClient, logger),
			limiter: rate.NewLimiter(limit, 1),
		})
	}
	return b, nil
}

// Endpoints returns the configured endpoints in order.
func (b *Broadcaster) Endpoints() []Endpoint {
	out := make([]Endpoint, len(b.clients))
	for i, c := range b.clients {
		out[i] = c.endpoint
	}
	return out
}

// Broadcast serializes the bundle once and submits it to every endpoint
// concurrently. Each call has its own timeout; a slow endpoint neither blocks
// nor cancels the others. One acceptance is enough for StatusSubmitted.
func (b *Broadcaster) Broadcast(ctx context.Context, bn *bundle.Bundle) (*types.BundleResult, error) {
	encoded, err := bundle.EncodeBundle(bn)
	if err != nil {
		return nil, types.NewError(types.KindAssembly, "broadcast", err)
	}

	outcomes := make([]types.EndpointOutcome, len(b.clients))
	var wg sync.WaitGroup
	for i, c := range b.clients {
		wg.Add(1)
		go func(i int, c *endpointClient) {
			defer wg.Done()
			outcomes[i] = b.submit(ctx, c, encoded)
		}(i, c)
	}
	wg.Wait()

	result := &types.BundleResult{
		Status:          types.StatusSubmitted,
		BundleID:        bn.ID,
		AnchorSignature: bn.AnchorSignature.String(),
		Endpoints:       outcomes,
	}

	if result.Accepted() == 0 {
		kind := types.KindNetwork
		for _, o := range outcomes {
			if o.Kind == types.KindRPC {
				kind = types.KindRPC
				break
			}
		}
		result.Status = types.StatusAllEndpointsFailed
		result.Err = types.NewError(kind, "broadcast",
			fmt.Errorf("%w: %d endpoints", types.ErrAllEndpointsFailed, len(outcomes)))
		b.logger.Warn("Bundle rejected by all endpoints",
			zap.String("bundle_id", bn.ID),
			zap.Int("endpoints", len(outcomes)))
		return result, result.Err
	}

	b.logger.Info("Bundle submitted",
		zap.String("bundle_id", bn.ID),
		zap.Int("accepted", result.Accepted()),
		zap.Int("failed", len(result.Failures())))
	return result, nil
}

func (b *Broadcaster) submit(ctx context.Context, c *endpointClient, encoded []string) types.EndpointOutcome {
	outcome := types.EndpointOutcome{URL: c.endpoint.URL, Region: c.endpoint.Region}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	if err := c.limiter.Wait(callCtx); err != nil {
		outcome.Kind = types.KindNetwork
		outcome.Err = types.NewError(types.KindNetwork, "rate limit", err)
		b.record(c, methodSendBundle, outcome, time.Since(start))
		return outcome
	}

	id, err := c.SendBundle(callCtx, encoded)
	if err != nil {
		outcome.Kind = types.KindOf(err)
		if outcome.Kind == "" {
			outcome.Kind = types.KindNetwork
		}
		outcome.Err = err
		b.logger.Debug("Endpoint rejected bundle",
			zap.String("endpoint", c.endpoint.URL),
			zap.String("kind", string(outcome.Kind)),
			zap.Error(err))
	} else {
		outcome.Accepted = true
		outcome.BundleID = id
	}
	b.record(c, methodSendBundle, outcome, time.Since(start))
	return outcome
}

func (b *Broadcaster) record(c *endpointClient, method string, o types.EndpointOutcome, d time.Duration) {
	if b.recorder == nil {
		return
	}
	label := "accepted"
	if !o.Accepted {
		label = string(o.Kind)
	}
	b.recorder.RecordRelay(c.endpoint.URL, method, label, d)
}
