package orders

import "time"

// Status is the order lifecycle state. A shop admin may move a non-terminal
// order to any non-terminal value or to Delivered; the service deliberately
// does not force a strict Pending -> Processing -> Shipped -> Delivered
// progression. Cancelled is reachable only through the cancel operation,
// which also releases the reserved stock.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus validates a raw status string against the enumeration.
func ParseStatus(s string) (Status, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether the status permits no further transitions.
// Delivered orders are history; Cancelled orders already released their
// stock, so reopening one would resurrect it without a reservation.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CODMethod is the payment method string that attracts the flat
// cash-on-delivery surcharge.
const CODMethod = "cod"

// CODSurcharge is the flat fee added to the order total for COD payments.
const CODSurcharge = 40.0

// Line is one product+quantity entry within an order. ShopID is captured from
// the product at order time so a later product reassignment cannot move the
// line between shops.
type Line struct {
	ProductID          string  `dynamodbav:"product_id" json:"product_id"`
	ProductName        string  `dynamodbav:"product_name" json:"product_name"`
	UnitPrice          float64 `dynamodbav:"unit_price" json:"unit_price"`
	DiscountPercentage float64 `dynamodbav:"discount_percentage" json:"discount_percentage"`
	Quantity           int     `dynamodbav:"quantity" json:"quantity"`
	ShopID             string  `dynamodbav:"shop_id" json:"shop_id"`
}

// Subtotal is the discount-adjusted price of the line.
func (l Line) Subtotal() float64 {
	unit := l.UnitPrice
	if l.DiscountPercentage > 0 {
		unit = unit * (1 - l.DiscountPercentage/100)
	}
	return unit * float64(l.Quantity)
}

// Order is the item stored in the orders table. Orders are never physically
// deleted; cancellation is a status change.
type Order struct {
	OrderID       string    `dynamodbav:"order_id"`    // PK
	CustomerID    string    `dynamodbav:"customer_id"` // GSI customer-index
	AddressID     string    `dynamodbav:"address_id"`
	TotalAmount   float64   `dynamodbav:"total_amount"`
	Status        Status    `dynamodbav:"status"`
	PaymentMethod string    `dynamodbav:"payment_method,omitempty"`
	PaymentTxnID  string    `dynamodbav:"payment_txn_id,omitempty"`
	Lines         []Line    `dynamodbav:"lines"`
	CreatedAt     time.Time `dynamodbav:"created_at"`
	UpdatedAt     time.Time `dynamodbav:"updated_at"`
}

// HasShopLine reports whether any line on the order belongs to shopID. This is
// the authorization predicate for shop-admin operations.
func (o *Order) HasShopLine(shopID string) bool {
	if shopID == "" {
		return false
	}
	for _, l := range o.Lines {
		if l.ShopID == shopID {
			return true
		}
	}
	return false
}

// ShopLines returns only the lines belonging to shopID.
func (o *Order) ShopLines(shopID string) []Line {
	var out []Line
	for _, l := range o.Lines {
		if l.ShopID == shopID {
			out = append(out, l)
		}
	}
	return out
}

// ShopIDs returns the distinct shops the order spans, in line order.
func (o *Order) ShopIDs() []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range o.Lines {
		if !seen[l.ShopID] {
			seen[l.ShopID] = true
			out = append(out, l.ShopID)
		}
	}
	return out
}
