// Package main runs a terminal consumer of the distribution pipeline: it
// connects as one user, prints matched transactions as they are pushed, and
// polls the cluster until each one reaches finalized.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"katlog/internal/domain"
	"katlog/internal/solana"
	"katlog/internal/storage/httpapi"
	"katlog/internal/tracker"
	"katlog/internal/wsclient"
)

func main() {
	server := flag.String("server", "ws://localhost:4000/api/webhook", "WebSocket URL of the distribution server")
	userID := flag.String("user", os.Getenv("WATCH_USER_ID"), "User ID to connect as")
	apiURL := flag.String("api-url", os.Getenv("API_URL"), "Base URL of the watchlist API (fetches the user's watchlist)")
	addresses := flag.String("addresses", "", "Ad-hoc watchlist, comma-separated address=label pairs (alternative to --api-url)")
	rpcEndpoint := flag.String("rpc-endpoint", envOr("SOLANA_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"), "Solana RPC HTTP endpoint for status checks")
	network := flag.String("network", string(domain.NetworkMainnet), "Network watched by ad-hoc addresses (Mainnet, Devnet, Testnet)")

	flag.Parse()

	logger := log.New(os.Stderr, "[watch] ", log.LstdFlags)

	if *userID == "" {
		logger.Fatal("--user is required")
	}
	if *apiURL == "" && *addresses == "" {
		logger.Fatal("--api-url or --addresses is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	items, err := loadWatchlist(ctx, *apiURL, *addresses, *userID, domain.Network(*network))
	if err != nil {
		logger.Fatalf("Failed to load watchlist: %v", err)
	}
	if len(items) == 0 {
		logger.Fatal("Watchlist is empty, nothing to watch")
	}
	logger.Printf("Watching %d addresses for user %s", len(items), *userID)

	tracked := tracker.New(tracker.Options{Logger: logger})

	reconciler, err := tracker.NewReconciler(tracker.ReconcilerOptions{
		Tracker: tracked,
		RPC:     solana.NewHTTPClient(*rpcEndpoint),
		OnUpgrade: func(signature string, status domain.ConfirmationStatus) {
			fmt.Printf("status  %s -> %s\n", shorten(signature), status)
		},
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create reconciler: %v", err)
	}
	go reconciler.Run(ctx)

	client := wsclient.New(wsclient.Options{
		Endpoint: *server,
		UserID:   *userID,
		Logger:   logger,
		OnState: func(state wsclient.State) {
			logger.Printf("Connection %s", state)
		},
		OnBatch: func(batch []domain.AccountAction) {
			added := tracked.Add(batch, items)
			checked := make(map[string]bool)
			for _, record := range added {
				printRecord(&record)
				if checked[record.Action.Signature] {
					continue
				}
				checked[record.Action.Signature] = true
				// Initial status check on arrival; the reconciler takes
				// over from there.
				if err := reconciler.CheckNow(ctx, record.Action.Signature, time.Now()); err != nil {
					logger.Printf("Initial status check %s: %v", record.Action.Signature, err)
				}
			}
		},
	})
	client.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Println("Shutting down...")
	client.Close()
	cancel()
}

// loadWatchlist resolves the watchlist either from the API or from the
// ad-hoc --addresses flag.
func loadWatchlist(ctx context.Context, apiURL, addresses, userID string, network domain.Network) ([]domain.WatchlistItem, error) {
	if apiURL != "" {
		watchlist, err := httpapi.NewClient(apiURL).GetWatchlistByUserID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("fetch watchlist for %s: %w", userID, err)
		}
		return watchlist.Items, nil
	}

	if !network.Valid() {
		return nil, fmt.Errorf("unknown network %q", network)
	}

	var items []domain.WatchlistItem
	for _, pair := range strings.Split(addresses, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		address, label := pair, ""
		if idx := strings.Index(pair, "="); idx >= 0 {
			address, label = pair[:idx], pair[idx+1:]
		}
		if err := solana.ValidateAddress(address); err != nil {
			return nil, fmt.Errorf("address %s: %w", address, err)
		}
		if label == "" {
			label = shorten(address)
		}

		items = append(items, domain.WatchlistItem{
			Address:         address,
			Label:           label,
			WatchedNetworks: []domain.Network{network},
		})
	}
	return items, nil
}

func printRecord(record *domain.WatchlistAccountTransaction) {
	tx := &record.Action
	amount := "unknown"
	if tx.Amount != nil {
		amount = fmt.Sprintf("%g", *tx.Amount)
	}

	fmt.Printf("%s  %s  %s  %s -> %s  amount=%s  [%s (%s)]\n",
		tx.Timestamp, shorten(tx.Signature), tx.Action,
		shorten(tx.From), shorten(tx.To), amount,
		record.ConcernedAddress, record.Label)
}

// shorten abbreviates signatures and addresses for terminal output.
func shorten(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + ".." + s[len(s)-4:]
}

// envOr returns the environment variable's value, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
