// Command px-fetch downloads the complete contents of a PxWeb table as one
// CSV file, transparently splitting the selection into as many sub-requests
// as the service's cell limit demands.
//
// Usage:
//
//	px-fetch TAB1267 [output.csv]
//
// Configuration via environment:
//
//	PXWEB_BASE_URL   API base URL (default: SCB v2 beta)
//	PXWEB_LANG       Response language, sv or en (default: sv)
//	REDIS_URL        Redis address for metadata caching (optional)
//	USER_AGENT       User-Agent header
//	LOG_LEVEL        debug, info, warn, error (default: info)
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/statwerk/pxweb-client/pkg/client"
	"github.com/statwerk/pxweb-client/pkg/logging"
)

const defaultBaseURL = "https://api.scb.se/ov0104/v2beta/api/v2"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s TABLE_ID [OUTPUT_FILE]\n", os.Args[0])
		os.Exit(2)
	}
	tableID := os.Args[1]

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: true,
		Output: os.Stderr,
	})

	// Configuration from environment
	baseURL := getEnv("PXWEB_BASE_URL", defaultBaseURL)
	lang := getEnv("PXWEB_LANG", client.LangSwedish)
	userAgent := getEnv("USER_AGENT", "px-fetch/0.1.0")

	// Optional Redis metadata cache
	var redisClient *redis.Client
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: redisURL,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Printf("Metadata caching via Redis at %s", redisURL)
	}

	cfg := client.DefaultConfig(baseURL, redisClient)
	cfg.UserAgent = userAgent
	cfg.Language = lang

	c, err := client.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create PxWeb client: %v", err)
	}
	defer c.Close()

	combined, err := c.FetchTableData(context.Background(), tableID, client.FetchOptions{})
	if err != nil {
		log.Fatalf("Fetch failed: %v", err)
	}

	out := os.Stdout
	if len(os.Args) > 2 {
		f, err := os.Create(os.Args[2])
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
		log.Printf("Writing %d rows to %s", combined.RowCount(), os.Args[2])
	}

	if _, err := combined.WriteTo(out); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
