package domain

// WatchlistItem is one watched address owned by a user. Address and Label
// are unique within the owning watchlist. An empty WatchedNetworks set means
// the item is stored but not actively watched on any network.
type WatchlistItem struct {
	Address            string    `json:"address"`
	Label              string    `json:"label"`
	EmailNotifications bool      `json:"emailNotifications"`
	WatchedNetworks    []Network `json:"watchedNetworks"`
}

// WatchesNetwork reports whether the item is active on the given network.
func (i *WatchlistItem) WatchesNetwork(n Network) bool {
	for _, w := range i.WatchedNetworks {
		if w == n {
			return true
		}
	}
	return false
}

// Matches reports whether the transaction is relevant to this item:
// the item's address is the sender or recipient and the transaction's
// network is watched.
func (i *WatchlistItem) Matches(a *AccountAction) bool {
	return a.Touches(i.Address) && i.WatchesNetwork(a.Network)
}

// Watchlist is one user's collection of watched addresses.
type Watchlist struct {
	UserID string          `json:"userId"`
	Items  []WatchlistItem `json:"items"`
}

// MatchingItems returns the items relevant to the transaction. A
// transaction touching two watched addresses returns both items.
func (w *Watchlist) MatchingItems(a *AccountAction) []WatchlistItem {
	var matched []WatchlistItem
	for _, item := range w.Items {
		if item.Matches(a) {
			matched = append(matched, item)
		}
	}
	return matched
}

// FilterRelevant returns the subset of the batch relevant to this watchlist.
// Transactions are returned at most once even when two items match.
func (w *Watchlist) FilterRelevant(batch []AccountAction) []AccountAction {
	var relevant []AccountAction
	for i := range batch {
		if len(w.MatchingItems(&batch[i])) > 0 {
			relevant = append(relevant, batch[i])
		}
	}
	return relevant
}

// User is the owner of a watchlist as exposed by the user collaborator.
// Email is empty when the user has no email on file.
type User struct {
	ID            string `json:"_id"`
	Email         string `json:"email,omitempty"`
	WalletAddress string `json:"walletAddress"`
}
