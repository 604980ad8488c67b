// internal/relay/status.go
package relay

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

// BundleStatuses asks the endpoints in order for the landed status of the
// relay-assigned bundle ids and returns the first answer.
// Used for diagnostics once a bundle expired without confirmation.
func (b *Broadcaster) BundleStatuses(ctx context.Context, ids []string) ([]*BundleStatus, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var errs []error
	for _, c := range b.clients {
		callCtx, cancel := context.WithTimeout(ctx, b.timeout)
		statuses, err := c.GetBundleStatuses(callCtx, ids)
		cancel()
		if err == nil {
			return statuses, nil
		}
		b.logger.Debug("getBundleStatuses failed",
			zap.String("endpoint", c.endpoint.URL),
			zap.Error(err))
		errs = append(errs, err)
	}
	return nil, types.NewError(types.KindNetwork, "bundle statuses", errors.Join(errs...))
}

// AcceptedIDs returns the distinct bundle ids endpoints assigned on submission.
func AcceptedIDs(result *types.BundleResult) []string {
	if result == nil {
		return nil
	}
	seen := make(map[string]bool)
	var ids []string
	for _, o := range result.Endpoints {
		if o.Accepted && o.BundleID != "" && !seen[o.BundleID] {
			seen[o.BundleID] = true
			ids = append(ids, o.BundleID)
		}
	}
	return ids
}
