// Package broker handles order placement and fill reporting through the
// brokerage API. The core talks to the Gateway interface only; the REST
// gateway is the production implementation and the paper gateway simulates
// fills for staging.
package broker

import (
	"context"
	"errors"

	"scalping-systemv1/internal/model"
)

// ErrRejected is returned by GetOrderFill when the broker rejected the order.
// The order will never fill; callers must not keep polling.
var ErrRejected = errors.New("order rejected")

// Gateway submits market orders and reports their fills.
type Gateway interface {
	// SubmitMarketOrder places a market order and returns the broker order ID.
	SubmitMarketOrder(ctx context.Context, symbol string, qty int64, side model.Side) (string, error)

	// GetOrderFill reports the fill state of an order: (price, true, nil) once
	// filled, (0, false, nil) while pending, ErrRejected if it will never fill.
	// Callers own the poll-with-timeout loop.
	GetOrderFill(ctx context.Context, orderID string) (float64, bool, error)
}
