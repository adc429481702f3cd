// Package notification delivers trading events (entries, exits, lifecycle
// errors) to external channels: Telegram, webhooks, or plain logs.
//
// Delivery is always best-effort from the controller's point of view; use
// BestEffort at call sites inside the trading flow.
package notification

import (
	"context"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// BestEffort sends through n and only logs a failure. A nil Notifier is a
// no-op. This is the form the trading flow uses: a notification failure must
// never abort a trade.
func BestEffort(ctx context.Context, n Notifier, alert Alert) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, alert); err != nil {
		log.Printf("[notify] delivery failed (%s %q): %v", alert.Level, alert.Title, err)
	}
}

// Multi fans one alert out to several backends. Send returns the first error
// but still attempts every backend.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LogNotifier logs alerts instead of delivering them (useful in staging).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}
