// internal/relay/endpoints.go
package relay

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint is one block-engine bundle URL.
type Endpoint struct {
	URL    string
	Region string
}

// Block-engine regions.
var Regions = map[string]string{
	"mainnet":   "https://mainnet.block-engine.jito.wtf/api/v1/bundles",
	"amsterdam": "https://amsterdam.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"frankfurt": "https://frankfurt.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"ny":        "https://ny.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"tokyo":     "https://tokyo.mainnet.block-engine.jito.wtf/api/v1/bundles",
}

// EndpointForRegion resolves a region name to its endpoint.
func EndpointForRegion(region string) (Endpoint, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	u, ok := Regions[region]
	if !ok {
		return Endpoint{}, fmt.Errorf("unknown relay region %q", region)
	}
	return Endpoint{URL: u, Region: region}, nil
}

// ResolveEndpoints merges explicit URLs with region names, dropping duplicates.
// Order is URLs first, then regions.
func ResolveEndpoints(urls, regions []string) ([]Endpoint, error) {
	seen := make(map[string]bool)
	var out []Endpoint

	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid relay endpoint %q", raw)
		}
		if seen[raw] {
			continue
		}
		seen[raw] = true
		out = append(out, Endpoint{URL: raw, Region: u.Host})
	}

	for _, region := range regions {
		ep, err := EndpointForRegion(region)
		if err != nil {
			return nil, err
		}
		if seen[ep.URL] {
			continue
		}
		seen[ep.URL] = true
		out = append(out, ep)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no relay endpoints configured")
	}
	return out, nil
}
