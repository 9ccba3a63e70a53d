package validation

// LineItem is a single cart entry.
type LineItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"` // must be >= 1
}

// PaymentInfo is the opaque payment descriptor. method "cod" triggers the
// flat surcharge; transaction_id passes through untouched.
type PaymentInfo struct {
	Method        string `json:"method"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// PlaceOrderRequest is the payload for POST /orders.
type PlaceOrderRequest struct {
	Items     []LineItem  `json:"items" validate:"required,min=1,dive"` // at least one item
	AddressID string      `json:"address_id" validate:"required"`
	Payment   PaymentInfo `json:"payment"`
}

// UpdateStatusRequest is the payload for PUT /orders/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}
