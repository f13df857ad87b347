package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached PxWeb metadata response.
type Key struct {
	// Endpoint is the API path (e.g., "/tables/TAB1267/metadata").
	Endpoint string

	// QueryParams are the request's query parameters (e.g., {"lang": "sv"}).
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: px:endpoint:param1=val1:param2=val2
//
// Example:
//
//	px:tables/TAB1267/metadata:lang=sv
func (k Key) String() string {
	parts := []string{"px"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism.
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
