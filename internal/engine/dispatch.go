package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/priceguard/server/internal/push"
	"github.com/priceguard/server/internal/tracking"
)

// Dispatcher fans one cycle's changed products out to eligible subscribers.
type Dispatcher struct {
	index  TrackingIndex
	sender Sender
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(index TrackingIndex, sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{index: index, sender: sender, logger: logger}
}

// Dispatch builds and sends notifications for the changed products of one
// cycle. A subscriber is eligible when their target price is at or above the
// new price; subscribers without a registered device are skipped silently.
// The whole batch goes to the push provider in one call; an empty batch is
// not sent. Returns the provider's per-payload success/failure counts.
func (d *Dispatcher) Dispatch(ctx context.Context, changes []Change) (sent, failed int, err error) {
	if len(changes) == 0 {
		return 0, 0, nil
	}

	// One batched lookup for every subscription on the changed set.
	productIDs := make([]string, len(changes))
	for i, c := range changes {
		productIDs[i] = c.ProductID
	}
	subs, err := d.index.FindSubscriptionsForProducts(ctx, productIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("load subscriptions: %w", err)
	}

	// Group by product for the per-change fan-out.
	byProduct := make(map[string][]tracking.Subscription)
	for _, sub := range subs {
		byProduct[sub.ProductID] = append(byProduct[sub.ProductID], sub)
	}

	var payloads []push.Payload
	for _, c := range changes {
		for _, sub := range byProduct[c.ProductID] {
			if sub.TargetPrice < c.Price {
				continue
			}
			token, ok, err := d.index.DeviceTokenFor(ctx, sub.UserID)
			if err != nil {
				d.logger.Warn("device token lookup failed", "user_id", sub.UserID, "error", err)
				continue
			}
			if !ok {
				// No registered device — unreachable, not an error.
				continue
			}
			payloads = append(payloads, push.Payload{
				Token:    token,
				Title:    notificationTitle,
				Body:     fmt.Sprintf(notificationBodyFormat, c.Name, c.Price),
				ImageURL: c.ImageURL,
			})
		}
	}

	if len(payloads) == 0 {
		return 0, 0, nil
	}
	return d.sender.SendBatch(ctx, payloads)
}
