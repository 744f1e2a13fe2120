package notify

import (
	"context"
	"log"
)

// LogSender writes alerts to the log instead of sending email. Used when no
// SMTP transport is configured.
type LogSender struct {
	logger *log.Logger
}

// NewLogSender creates a log-backed sender.
func NewLogSender(logger *log.Logger) *LogSender {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSender{logger: logger}
}

// Compile-time interface check.
var _ Sender = (*LogSender)(nil)

// SendAlert logs the alert and reports success.
func (s *LogSender) SendAlert(_ context.Context, to string, alert *Alert) error {
	s.logger.Printf("[notify] alert for %s: tx %s touching %s (%s)",
		to, alert.Transaction.Signature, alert.ConcernedAddress, alert.Label)
	return nil
}
