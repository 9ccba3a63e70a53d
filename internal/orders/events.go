package orders

// PlacedEvent is the message published to the fulfillment queue after an
// order commits. The worker uses it to bump per-product sold counters and to
// finalize the idempotency record.
type PlacedEvent struct {
	OrderID        string      `json:"order_id"`
	CustomerID     string      `json:"customer_id"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
	TotalAmount    float64     `json:"total_amount"`
	Lines          []EventLine `json:"lines"`
}

// EventLine is the slice of a line the worker needs.
type EventLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	ShopID    string `json:"shop_id"`
}

// NewPlacedEvent projects an order onto its queue message.
func NewPlacedEvent(o Order, idempotencyKey string) PlacedEvent {
	ev := PlacedEvent{
		OrderID:        o.OrderID,
		CustomerID:     o.CustomerID,
		IdempotencyKey: idempotencyKey,
		TotalAmount:    o.TotalAmount,
	}
	for _, l := range o.Lines {
		ev.Lines = append(ev.Lines, EventLine{ProductID: l.ProductID, Quantity: l.Quantity, ShopID: l.ShopID})
	}
	return ev
}
