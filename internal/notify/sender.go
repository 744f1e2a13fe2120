// Package notify sends watchlist transaction alerts over email.
package notify

import (
	"context"
	"fmt"

	"katlog/internal/domain"
)

// Subject and sender name used for every alert.
const (
	AlertSubject = "Watchlist Account Transaction Alert"
	SenderName   = "Katlog"
)

// Alert is one notification: a transaction plus the watched address that
// made it relevant and that address's label.
type Alert struct {
	Transaction      domain.AccountAction
	ConcernedAddress string
	Label            string
}

// Sender delivers alerts to a recipient address.
type Sender interface {
	SendAlert(ctx context.Context, to string, alert *Alert) error
}

// renderBody builds the HTML body for an alert. The concerned address is
// annotated with its watchlist label.
func renderBody(alert *Alert) string {
	tx := &alert.Transaction

	from := tx.From
	to := tx.To
	if alert.Label != "" {
		if from == alert.ConcernedAddress {
			from = fmt.Sprintf("%s (%s)", from, alert.Label)
		}
		if to == alert.ConcernedAddress {
			to = fmt.Sprintf("%s (%s)", to, alert.Label)
		}
	}

	amount := "unknown"
	if tx.Amount != nil {
		amount = fmt.Sprintf("%g", *tx.Amount)
	}

	return fmt.Sprintf(`<h1>Transaction Alert</h1>
<p>A transaction involving an account on your watchlist has occurred:</p>
<ul>
  <li>Signature: %s</li>
  <li>From: %s</li>
  <li>To: %s</li>
  <li>Amount: %s</li>
  <li>Action: %s</li>
  <li>Timestamp: %s</li>
  <li>Success: %t</li>
</ul>`, tx.Signature, from, to, amount, tx.Action, tx.Timestamp, tx.Success)
}
