// hiveserver runs the Run Execution Engine's HTTP API: it loads hierarchy
// configurations from disk, wires the durable event log and LLM/tool
// backends, and serves runs/start, runs/stream, and the rest of the
// executor surface.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentfleet/hive/pkg/api"
	"github.com/agentfleet/hive/pkg/eventbus"
	"github.com/agentfleet/hive/pkg/eventstore/memory"
	"github.com/agentfleet/hive/pkg/eventstore/postgres"
	"github.com/agentfleet/hive/pkg/hierarchy"
	"github.com/agentfleet/hive/pkg/hive"
	"github.com/agentfleet/hive/pkg/llmclient"
	"github.com/agentfleet/hive/pkg/toolprovider"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %d", key, v, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %s", key, v, defaultValue)
		return defaultValue
	}
	return d
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	poolSize := getEnvInt("HIVE_POOL_SIZE", hive.DefaultMaxConcurrentRuns)
	subscriberBuffer := getEnvInt("HIVE_SUBSCRIBER_BUFFER", eventbus.DefaultBufferSize)
	eventTTL := getEnvDuration("HIVE_EVENT_TTL", hive.DefaultEventTTL)
	dsn := os.Getenv("HIVE_DB_DSN")
	llmBackend := getEnv("HIVE_LLM_BACKEND", "stub")

	ctx := context.Background()

	hierarchies, err := hierarchy.LoadDir(filepath.Join(*configDir, "hierarchies"))
	if err != nil {
		log.Fatalf("Failed to load hierarchy configurations: %v", err)
	}
	slog.Info("hierarchies loaded", "count", hierarchies.Len())

	var store eventbus.EventStore
	if dsn != "" {
		pgStore, err := postgres.Open(ctx, postgres.Config{DSN: dsn})
		if err != nil {
			log.Fatalf("Failed to connect durable event store: %v", err)
		}
		defer pgStore.Close()
		go pgStore.Reaper(ctx, time.Hour)
		store = pgStore
		slog.Info("durable event store ready", "backend", "postgres")
	} else {
		memStore := memory.New()
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					memStore.Sweep()
				}
			}
		}()
		store = memStore
		slog.Info("durable event store ready", "backend", "memory")
	}

	bus := eventbus.New(store, subscriberBuffer)

	var llm llmclient.Client
	switch llmBackend {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			log.Fatalf("HIVE_LLM_BACKEND=openai requires OPENAI_API_KEY")
		}
		llm = llmclient.NewOpenAI(apiKey)
	case "stub", "":
		llm = llmclient.NewScripted()
		slog.Warn("running with the scripted stub LLM client; set HIVE_LLM_BACKEND=openai for real completions")
	default:
		log.Fatalf("Unknown HIVE_LLM_BACKEND %q", llmBackend)
	}

	tools := toolprovider.NewStub(nil)

	runs := hive.NewRunManager(hive.RunManagerConfig{
		Hierarchies:       hierarchies,
		Publisher:         bus,
		EventStore:        store,
		LLM:               llm,
		Tools:             tools,
		MaxConcurrentRuns: poolSize,
		EventTTL:          eventTTL,
	})

	server := api.NewServer(runs, hierarchies, bus, store)

	slog.Info("starting hiveserver", "http_port", httpPort, "pool_size", poolSize, "event_ttl", eventTTL)
	if err := server.Start(":" + httpPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
