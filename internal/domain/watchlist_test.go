package domain

import "testing"

func devnetTx(sig, from, to string) AccountAction {
	return AccountAction{
		Signature: sig,
		From:      from,
		To:        to,
		Action:    ActionSolTransfer,
		Network:   NetworkDevnet,
		Timestamp: "2025-01-01T00:00:00Z",
		Success:   true,
	}
}

func TestWatchlistItem_Matches_NetworkGating(t *testing.T) {
	tx := devnetTx("S1", "A", "B")

	item := WatchlistItem{Address: "A", Label: "hot", WatchedNetworks: []Network{NetworkDevnet}}
	if !item.Matches(&tx) {
		t.Error("devnet item should match devnet transaction")
	}

	item.WatchedNetworks = []Network{NetworkMainnet}
	if item.Matches(&tx) {
		t.Error("mainnet-only item must not match devnet transaction")
	}

	item.WatchedNetworks = nil
	if item.Matches(&tx) {
		t.Error("item with no watched networks must not match")
	}
}

func TestWatchlist_MatchingItems_BothEndpoints(t *testing.T) {
	wl := Watchlist{
		UserID: "u1",
		Items: []WatchlistItem{
			{Address: "A", Label: "sender", WatchedNetworks: []Network{NetworkDevnet}},
			{Address: "B", Label: "receiver", WatchedNetworks: []Network{NetworkDevnet}},
			{Address: "C", Label: "bystander", WatchedNetworks: []Network{NetworkDevnet}},
		},
	}

	tx := devnetTx("S1", "A", "B")
	matched := wl.MatchingItems(&tx)
	if len(matched) != 2 {
		t.Fatalf("expected 2 matching items, got %d", len(matched))
	}
	if matched[0].Address != "A" || matched[1].Address != "B" {
		t.Errorf("unexpected matched addresses: %s, %s", matched[0].Address, matched[1].Address)
	}
}

func TestWatchlist_FilterRelevant(t *testing.T) {
	wl := Watchlist{
		UserID: "u1",
		Items: []WatchlistItem{
			{Address: "A", Label: "mine", WatchedNetworks: []Network{NetworkDevnet}},
		},
	}

	batch := []AccountAction{
		devnetTx("S1", "A", "B"),
		devnetTx("S2", "X", "Y"),
		devnetTx("S3", "Z", "A"),
	}

	relevant := wl.FilterRelevant(batch)
	if len(relevant) != 2 {
		t.Fatalf("expected 2 relevant transactions, got %d", len(relevant))
	}
	if relevant[0].Signature != "S1" || relevant[1].Signature != "S3" {
		t.Errorf("unexpected signatures: %s, %s", relevant[0].Signature, relevant[1].Signature)
	}

	// Transaction touching two watched addresses appears once.
	wl.Items = append(wl.Items, WatchlistItem{Address: "B", Label: "also mine", WatchedNetworks: []Network{NetworkDevnet}})
	relevant = wl.FilterRelevant(batch[:1])
	if len(relevant) != 1 {
		t.Fatalf("double-matched transaction should appear once, got %d", len(relevant))
	}
}
