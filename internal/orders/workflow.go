package orders

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freshkart/grocery-orderflow/internal/address"
	"github.com/freshkart/grocery-orderflow/internal/aws"
	"github.com/freshkart/grocery-orderflow/internal/catalog"
	"github.com/freshkart/grocery-orderflow/internal/idempotency"
	"github.com/freshkart/grocery-orderflow/internal/identity"
)

// ErrDuplicateSubmission means the creation transaction was cancelled because
// the Idempotency-Key already exists. The handler replays the stored response.
var ErrDuplicateSubmission = errors.New("duplicate submission: idempotency key exists")

// Workflow orchestrates order creation, status transitions and cancellation.
// Every operation is one all-or-nothing DynamoDB transaction: a validation
// failure or condition miss leaves no partial order and no partial stock
// decrement behind.
//
// Inventory policy: stock is reserved in full at order creation and released
// in full on cancellation. Transitioning into Shipped does not touch stock.
type Workflow struct {
	orders    *Store
	catalog   *catalog.Store
	addresses *address.Store
	idemp     *idempotency.Store
	log       *zap.Logger
	nowFunc   func() time.Time
	newID     func() string
}

// NewWorkflow wires the workflow engine. idemp may be nil when idempotent
// creation is not deployed.
func NewWorkflow(orders *Store, cat *catalog.Store, addrs *address.Store, idemp *idempotency.Store, log *zap.Logger) *Workflow {
	return &Workflow{
		orders:    orders,
		catalog:   cat,
		addresses: addrs,
		idemp:     idemp,
		log:       log,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// LineInput is one (product, quantity) pair from the cart.
type LineInput struct {
	ProductID string
	Quantity  int
}

// PaymentInput carries the opaque payment descriptor. Method "cod" attracts
// the flat surcharge; nothing else about payments is interpreted here.
type PaymentInput struct {
	Method        string
	TransactionID string
}

// PlaceOrderInput is the resolved request for order creation.
type PlaceOrderInput struct {
	Lines          []LineInput
	AddressID      string
	Payment        PaymentInput
	IdempotencyKey string
}

// PlacedOrder is the creation result: the persisted order plus the delivery
// address echo.
type PlacedOrder struct {
	Order           Order
	DeliveryAddress *address.Address
}

// PlaceOrder validates the cart fail-fast, then commits the order, its shop
// links, the per-product stock decrements and (when a key is supplied) the
// idempotency record in one transaction.
func (w *Workflow) PlaceOrder(ctx context.Context, caller identity.Caller, in PlaceOrderInput) (*PlacedOrder, error) {
	if len(in.Lines) == 0 {
		return nil, errEmptyCart()
	}

	// Duplicates are answered from the stored record before any validation,
	// otherwise a replay could fail on state the first attempt changed (the
	// stock it already reserved, for instance). The conditional put inside
	// the transaction below remains the backstop for concurrent duplicates.
	if in.IdempotencyKey != "" && w.idemp != nil {
		rec, err := w.idemp.Get(ctx, in.IdempotencyKey)
		if err != nil {
			w.log.Error("idempotency lookup", zap.String("idempotency_key", in.IdempotencyKey), zap.Error(err))
			return nil, internalErr()
		}
		if rec != nil {
			return nil, ErrDuplicateSubmission
		}
	}

	if in.AddressID == "" {
		return nil, errAddressRequired()
	}
	addr, err := w.addresses.Get(ctx, in.AddressID)
	if err != nil {
		w.log.Error("resolve address", zap.String("address_id", in.AddressID), zap.Error(err))
		return nil, internalErr()
	}
	if addr == nil || addr.UserID != caller.UserID {
		return nil, errInvalidAddress()
	}

	seen := make(map[string]bool, len(in.Lines))
	lines := make([]Line, 0, len(in.Lines))
	total := 0.0
	for _, li := range in.Lines {
		if seen[li.ProductID] {
			return nil, errDuplicateLine(li.ProductID)
		}
		seen[li.ProductID] = true

		if li.Quantity <= 0 {
			return nil, errInvalidQuantity(li.ProductID)
		}
		product, err := w.catalog.Get(ctx, li.ProductID)
		if err != nil {
			w.log.Error("resolve product", zap.String("product_id", li.ProductID), zap.Error(err))
			return nil, internalErr()
		}
		if product == nil {
			return nil, errProductNotFound(li.ProductID)
		}
		if product.Quantity < li.Quantity {
			return nil, errInsufficientStock(product.Name, product.Quantity, li.Quantity)
		}

		line := Line{
			ProductID:          product.ProductID,
			ProductName:        product.Name,
			UnitPrice:          product.Price,
			DiscountPercentage: product.DiscountPercentage,
			Quantity:           li.Quantity,
			ShopID:             product.ShopID,
		}
		lines = append(lines, line)
		total += line.Subtotal()
	}

	if in.Payment.Method == CODMethod {
		total += CODSurcharge
	}

	now := w.nowFunc().UTC()
	order := Order{
		OrderID:       w.newID(),
		CustomerID:    caller.UserID,
		AddressID:     addr.AddressID,
		TotalAmount:   total,
		Status:        StatusPending,
		PaymentMethod: in.Payment.Method,
		PaymentTxnID:  in.Payment.TransactionID,
		Lines:         lines,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Transaction layout: one stock decrement per line first, then the order
	// put, shop links, and the optional idempotency record. The indices of
	// the decrements are needed to map cancellation reasons back to lines.
	items := make([]types.TransactWriteItem, 0, len(lines)+len(order.ShopIDs())+2)
	for _, line := range lines {
		items = append(items, w.catalog.DecrementStockItem(line.ProductID, line.Quantity))
	}
	orderPut, err := w.orders.PutOrderItem(order)
	if err != nil {
		w.log.Error("build order put", zap.Error(err))
		return nil, internalErr()
	}
	items = append(items, orderPut)
	items = append(items, w.orders.ShopLinkItems(order)...)

	idempIdx := -1
	if in.IdempotencyKey != "" && w.idemp != nil {
		recPut, err := w.idemp.PutRecordItem(in.IdempotencyKey, order.OrderID)
		if err != nil {
			w.log.Error("build idempotency put", zap.Error(err))
			return nil, internalErr()
		}
		idempIdx = len(items)
		items = append(items, recPut)
	}

	if err := w.orders.TransactWrite(ctx, items); err != nil {
		return nil, w.mapCreateFailure(ctx, err, lines, idempIdx)
	}

	w.log.Info("order placed",
		zap.String("order_id", order.OrderID),
		zap.String("customer_id", order.CustomerID),
		zap.Float64("total_amount", order.TotalAmount),
		zap.Int("shops", len(order.ShopIDs())),
	)
	return &PlacedOrder{Order: order, DeliveryAddress: addr}, nil
}

// mapCreateFailure translates a cancelled creation transaction into a domain
// error. Decrement condition misses mean the stock drifted between the
// validation read and the commit; the product is re-read for fresh numbers.
func (w *Workflow) mapCreateFailure(ctx context.Context, err error, lines []Line, idempIdx int) error {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		w.log.Error("order transaction", zap.String("aws_code", aws.ErrorCode(err)), zap.Error(err))
		return internalErr()
	}
	for i, reason := range tce.CancellationReasons {
		if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
			continue
		}
		if i < len(lines) {
			line := lines[i]
			available := 0
			if p, gerr := w.catalog.Get(ctx, line.ProductID); gerr == nil && p != nil {
				available = p.Quantity
			}
			return errInsufficientStock(line.ProductName, available, line.Quantity)
		}
		if i == idempIdx {
			return ErrDuplicateSubmission
		}
	}
	w.log.Error("order transaction cancelled", zap.Error(err))
	return internalErr()
}

// UpdateStatus applies a shop-admin status transition. The caller must own a
// shop with at least one line on the order; otherwise the order is reported
// as not found, whether or not it exists.
func (w *Workflow) UpdateStatus(ctx context.Context, caller identity.Caller, orderID, rawStatus string) (Status, error) {
	next, ok := ParseStatus(rawStatus)
	if !ok {
		return "", errInvalidStatus()
	}
	// Cancellation releases the reserved stock; a bare status write to
	// Cancelled would leak it. Only Cancel may set that status.
	if next == StatusCancelled {
		return "", errCancelViaStatusRoute()
	}
	if caller.Role != identity.RoleAdmin || caller.ShopID == "" {
		return "", errUnauthorized("Admin does not have a shop.")
	}

	order, err := w.orders.Get(ctx, orderID)
	if err != nil {
		w.log.Error("get order", zap.String("order_id", orderID), zap.Error(err))
		return "", internalErr()
	}
	if order == nil || !order.HasShopLine(caller.ShopID) {
		return "", errOrderNotFound()
	}
	if order.Status.Terminal() {
		return "", errOrderFinalized(order.Status)
	}

	if err := w.orders.UpdateStatus(ctx, orderID, order.Status, next); err != nil {
		if errors.Is(err, ErrStatusMismatch) {
			return "", errStatusConflict()
		}
		w.log.Error("update status", zap.String("order_id", orderID), zap.Error(err))
		return "", internalErr()
	}

	w.log.Info("order status updated",
		zap.String("order_id", orderID),
		zap.String("shop_id", caller.ShopID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(next)),
	)
	return next, nil
}

// Cancel marks the order Cancelled and releases the stock reserved at
// creation, atomically. Allowed for the order's customer or for an admin of
// any shop with a line on the order, and only while the order is neither
// Delivered nor already Cancelled.
func (w *Workflow) Cancel(ctx context.Context, caller identity.Caller, orderID string) (Status, error) {
	order, err := w.orders.Get(ctx, orderID)
	if err != nil {
		w.log.Error("get order", zap.String("order_id", orderID), zap.Error(err))
		return "", internalErr()
	}
	if order == nil {
		return "", errOrderNotFound()
	}

	switch caller.Role {
	case identity.RoleCustomer:
		// Another customer's order reads as absent, not as forbidden.
		if order.CustomerID != caller.UserID {
			return "", errOrderNotFound()
		}
	case identity.RoleAdmin:
		if caller.ShopID == "" {
			return "", errUnauthorized("Shop not found for this owner")
		}
		if !order.HasShopLine(caller.ShopID) {
			return "", errOrderNotFound()
		}
	default:
		return "", errUnauthorized("Unauthorized to cancel orders")
	}

	switch order.Status {
	case StatusDelivered:
		return "", errCannotCancelDelivered()
	case StatusCancelled:
		return "", errAlreadyCancelled()
	}

	// CAS on the status we read prevents a racing cancel from releasing the
	// stock twice.
	items := []types.TransactWriteItem{w.orders.StatusCASItem(orderID, order.Status, StatusCancelled)}
	for _, line := range order.Lines {
		items = append(items, w.catalog.RestockItem(line.ProductID, line.Quantity))
	}
	if err := w.orders.TransactWrite(ctx, items); err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return "", errStatusConflict()
		}
		w.log.Error("cancel transaction", zap.String("order_id", orderID), zap.Error(err))
		return "", internalErr()
	}

	w.log.Info("order cancelled",
		zap.String("order_id", orderID),
		zap.String("caller", caller.UserID),
		zap.String("role", caller.Role.String()),
	)
	return StatusCancelled, nil
}

// CustomerOrderView is an order with its delivery address resolved.
type CustomerOrderView struct {
	Order
	DeliveryAddress *address.Address
}

// CustomerOrders lists the caller's own orders, newest first.
func (w *Workflow) CustomerOrders(ctx context.Context, caller identity.Caller) ([]CustomerOrderView, error) {
	list, err := w.orders.ListByCustomer(ctx, caller.UserID)
	if err != nil {
		w.log.Error("list customer orders", zap.String("customer_id", caller.UserID), zap.Error(err))
		return nil, internalErr()
	}
	views := make([]CustomerOrderView, 0, len(list))
	for _, o := range list {
		view := CustomerOrderView{Order: o}
		if o.AddressID != "" {
			if addr, aerr := w.addresses.Get(ctx, o.AddressID); aerr == nil {
				view.DeliveryAddress = addr
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// ShopOrderView is an order restricted to one shop's lines, with that shop's
// subtotal. TotalAmount remains the whole-order figure.
type ShopOrderView struct {
	OrderID      string
	CustomerID   string
	CreatedAt    time.Time
	TotalAmount  float64
	Status       Status
	Lines        []Line
	ShopSubtotal float64
}

// ShopOrders lists every order containing at least one line from the admin's
// shop, newest first, with only that shop's lines attached.
func (w *Workflow) ShopOrders(ctx context.Context, caller identity.Caller) ([]ShopOrderView, error) {
	if caller.Role != identity.RoleAdmin || caller.ShopID == "" {
		return nil, &Error{Kind: KindNotFound, Code: "no_shop", Message: "Admin does not have a shop."}
	}
	ids, err := w.orders.ListOrderIDsByShop(ctx, caller.ShopID)
	if err != nil {
		w.log.Error("list shop orders", zap.String("shop_id", caller.ShopID), zap.Error(err))
		return nil, internalErr()
	}
	views := make([]ShopOrderView, 0, len(ids))
	for _, id := range ids {
		o, gerr := w.orders.Get(ctx, id)
		if gerr != nil {
			w.log.Error("get shop order", zap.String("order_id", id), zap.Error(gerr))
			return nil, internalErr()
		}
		if o == nil {
			continue
		}
		shopLines := o.ShopLines(caller.ShopID)
		subtotal := 0.0
		for _, l := range shopLines {
			subtotal += l.Subtotal()
		}
		views = append(views, ShopOrderView{
			OrderID:      o.OrderID,
			CustomerID:   o.CustomerID,
			CreatedAt:    o.CreatedAt,
			TotalAmount:  o.TotalAmount,
			Status:       o.Status,
			Lines:        shopLines,
			ShopSubtotal: subtotal,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.After(views[j].CreatedAt) })
	return views, nil
}
