package orders

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure for the HTTP boundary. Every domain
// error carries exactly one Kind; handlers map Kinds to status codes and
// never let raw store errors escape.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindAuthorization
	KindConflict
	KindInternal
)

// Error is a workflow failure with a machine-readable code and a
// human-readable message safe to return to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

// AsError extracts a workflow *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var we *Error
	if errors.As(err, &we) {
		return we, true
	}
	return nil, false
}

func validationErr(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func conflictErr(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

// Workflow error constructors. Messages follow the wording the mobile client
// already renders.

func errEmptyCart() *Error {
	return validationErr("empty_cart", "Cart is empty")
}

func errAddressRequired() *Error {
	return validationErr("invalid_address", "Delivery address is required")
}

func errInvalidAddress() *Error {
	return validationErr("invalid_address", "Invalid delivery address")
}

func errProductNotFound(productID string) *Error {
	return validationErr("product_not_found", fmt.Sprintf("Invalid product or quantity for product ID %s.", productID))
}

func errInvalidQuantity(productID string) *Error {
	return validationErr("invalid_quantity", fmt.Sprintf("Invalid product or quantity for product ID %s.", productID))
}

func errDuplicateLine(productID string) *Error {
	return validationErr("duplicate_line", fmt.Sprintf("Product %s appears more than once in the cart", productID))
}

func errInsufficientStock(name string, available, requested int) *Error {
	return conflictErr("insufficient_stock",
		fmt.Sprintf("Not enough quantity available for %s. Available: %d, Requested: %d", name, available, requested))
}

func errInvalidStatus() *Error {
	return validationErr("invalid_status",
		fmt.Sprintf("Invalid status. Must be one of: %s, %s, %s, %s, %s",
			StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled))
}

func errCancelViaStatusRoute() *Error {
	return validationErr("invalid_status", "Cancellation must go through the cancel endpoint")
}

func errOrderFinalized(current Status) *Error {
	return conflictErr("order_finalized", fmt.Sprintf("Cannot update a %s order", current))
}

func errOrderNotFound() *Error {
	// Also returned when the order exists but carries no line for the
	// caller's shop, so existence never leaks across tenants.
	return &Error{Kind: KindNotFound, Code: "order_not_found", Message: "Order not found"}
}

func errUnauthorized(msg string) *Error {
	return &Error{Kind: KindAuthorization, Code: "unauthorized", Message: msg}
}

func errCannotCancelDelivered() *Error {
	return conflictErr("cannot_cancel_delivered", "Cannot cancel a delivered order")
}

func errAlreadyCancelled() *Error {
	return conflictErr("already_cancelled", "Order is already cancelled")
}

func errStatusConflict() *Error {
	return conflictErr("status_conflict", "Order status changed concurrently, retry")
}

func internalErr() *Error {
	// Detail stays in logs; clients get a generic message.
	return &Error{Kind: KindInternal, Code: "internal_error", Message: "Something went wrong"}
}
