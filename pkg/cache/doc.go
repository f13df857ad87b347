// Package cache provides Redis-backed caching for PxWeb metadata responses.
//
// PxWeb rate windows are tight (the SCB default allows 30 calls per 10
// seconds) and metadata endpoints (/config, /navigation, /tables, table
// metadata) change rarely, so caching them locally keeps the window budget
// free for data requests. Table data responses are never cached: data
// requests are POSTs whose selection payloads vary per fetch partition.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint:    "/tables/TAB1267/metadata",
//		QueryParams: url.Values{"lang": []string{"sv"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from the API, then:
//		// manager.Set(ctx, key, cache.NewEntry(body, status, ttl))
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - px_cache_hits_total{layer="redis"} - Cache hits
//   - px_cache_misses_total - Cache misses
//   - px_cache_size_bytes{layer="redis"} - Cache size
//   - px_cache_errors_total{operation} - Cache operation errors
package cache
