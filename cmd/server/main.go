// Package main runs the watchlist transaction distribution server:
// - Webhook ingress: receives transaction batches from the upstream indexer
// - Client registry: live WebSocket consumers, one connection per clientID
// - Fan-out: pushes each user's relevant transactions to their connections
// - Notification dispatch: emails users whose watched addresses were touched
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"katlog/internal/domain"
	"katlog/internal/fanout"
	"katlog/internal/ingress"
	"katlog/internal/notify"
	"katlog/internal/registry"
	"katlog/internal/storage"
	chstore "katlog/internal/storage/clickhouse"
	"katlog/internal/storage/httpapi"
	"katlog/internal/storage/memory"
	"katlog/internal/storage/migrations"
	pgstore "katlog/internal/storage/postgres"
)

// collaboratorStores holds the watchlist and user lookups plus the optional
// delivery analytics log.
type collaboratorStores struct {
	watchlists  storage.WatchlistStore
	users       storage.UserStore
	deliveryLog storage.DeliveryLogStore // nil when no ClickHouse DSN given
}

func main() {
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("SERVER_ADDR", ":4000"), "HTTP listen address")
	apiURL := flag.String("api-url", os.Getenv("API_URL"), "Base URL of the watchlist/user API")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (colocated watchlist DB)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for delivery analytics (optional)")
	seedFile := flag.String("seed-file", "", "JSON file of watchlists and users to preload (in-memory mode only)")
	dispatchTimeout := flag.Duration("dispatch-timeout", 30*time.Second, "Per-batch fan-out and notification deadline")
	pingInterval := flag.Duration("ping-interval", 30*time.Second, "Client heartbeat interval")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *apiURL != "" && *postgresDSN != "" {
		logger.Fatal("--api-url and --postgres-dsn are mutually exclusive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *apiURL, *postgresDSN, *clickhouseDSN, *seedFile, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	reg := registry.New(registry.Options{
		PingInterval: *pingInterval,
		Logger:       logger,
	})

	engine := fanout.New(fanout.Options{
		Registry:       reg,
		WatchlistStore: stores.watchlists,
		DeliveryLog:    stores.deliveryLog,
		Logger:         logger,
	})

	dispatcher := notify.NewDispatcher(notify.Options{
		WatchlistStore: stores.watchlists,
		UserStore:      stores.users,
		Sender:         createSender(logger),
		DeliveryLog:    stores.deliveryLog,
		Logger:         logger,
	})

	server := ingress.NewServer(ingress.Options{
		Registry:        reg,
		Fanout:          engine,
		Dispatcher:      dispatcher,
		WatchlistStore:  stores.watchlists,
		DispatchTimeout: *dispatchTimeout,
		Logger:          logger,
	})

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.Routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
	}()

	logger.Printf("Listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores wires the watchlist/user collaborators. Precedence: HTTP API
// when --api-url is set, PostgreSQL when --postgres-dsn is set, otherwise
// in-memory (optionally seeded). ClickHouse delivery logging is independent
// and optional.
func createStores(ctx context.Context, apiURL, postgresDSN, clickhouseDSN, seedFile string, logger *log.Logger) (*collaboratorStores, func(), error) {
	stores := &collaboratorStores{}
	cleanup := func() {}

	switch {
	case apiURL != "":
		client := httpapi.NewClient(apiURL)
		stores.watchlists = client
		stores.users = client
		logger.Printf("Using watchlist API at %s", apiURL)

	case postgresDSN != "":
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}
		stores.watchlists = pgstore.NewWatchlistStore(pool)
		stores.users = pgstore.NewUserStore(pool)
		cleanup = pool.Close
		logger.Println("Using PostgreSQL watchlist store")

	default:
		watchlists := memory.NewWatchlistStore()
		users := memory.NewUserStore()
		if seedFile != "" {
			if err := seedStores(seedFile, watchlists, users); err != nil {
				return nil, nil, fmt.Errorf("seed stores: %w", err)
			}
			logger.Printf("Seeded in-memory stores from %s", seedFile)
		}
		stores.watchlists = watchlists
		stores.users = users
		logger.Println("Using in-memory watchlist store")
	}

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.deliveryLog = chstore.NewDeliveryLogStore(conn)
		prev := cleanup
		cleanup = func() {
			conn.Close()
			prev()
		}
		logger.Println("Delivery analytics logging to ClickHouse enabled")
	}

	return stores, cleanup, nil
}

// createSender builds the alert sender. Alerts go over SMTP when SMTP_HOST
// is configured; otherwise they are logged only.
func createSender(logger *log.Logger) notify.Sender {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		logger.Println("SMTP_HOST not set, email alerts will be logged only")
		return notify.NewLogSender(logger)
	}

	port := 587
	if p := os.Getenv("SMTP_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			port = parsed
		}
	}

	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = os.Getenv("SMTP_USER")
	}

	return notify.NewSMTPSender(notify.SMTPConfig{
		Host:     host,
		Port:     port,
		Username: os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
		From:     from,
	})
}

// seedData is the on-disk format for --seed-file.
type seedData struct {
	Watchlists []domain.Watchlist `json:"watchlists"`
	Users      []domain.User      `json:"users"`
}

// seedStores preloads the in-memory stores from a JSON file.
func seedStores(path string, watchlists *memory.WatchlistStore, users *memory.UserStore) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var seed seedData
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range seed.Watchlists {
		if err := watchlists.Put(&seed.Watchlists[i]); err != nil {
			return fmt.Errorf("watchlist %s: %w", seed.Watchlists[i].UserID, err)
		}
	}
	for i := range seed.Users {
		if err := users.Put(&seed.Users[i]); err != nil {
			return fmt.Errorf("user %s: %w", seed.Users[i].ID, err)
		}
	}
	return nil
}

// envOr returns the environment variable's value, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
