package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/freshkart/grocery-orderflow/internal/address"
	"github.com/freshkart/grocery-orderflow/internal/aws"
	"github.com/freshkart/grocery-orderflow/internal/catalog"
	"github.com/freshkart/grocery-orderflow/internal/idempotency"
	"github.com/freshkart/grocery-orderflow/internal/identity"
	"github.com/freshkart/grocery-orderflow/internal/metrics"
	"github.com/freshkart/grocery-orderflow/internal/orders"
	"github.com/freshkart/grocery-orderflow/internal/reporting"
	"github.com/freshkart/grocery-orderflow/internal/validation"
)

// HandlerConfig groups dependencies for the order routes.
type HandlerConfig struct {
	DynamoDBClient   aws.DynamoDBAPI
	SQSClient        aws.SQSAPI
	CloudWatchClient aws.CloudWatchAPI
	ProductsTable    string
	OrdersTable      string
	ShopOrdersTable  string
	AddressesTable   string
	IdempotencyTable string
	QueueURL         string
	MetricsNamespace string
	TTLWindow        time.Duration
	Logger           *zap.Logger
}

// RegisterOrderRoutes wires the workflow endpoints onto the router.
func RegisterOrderRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	catalogStore := catalog.NewStore(cfg.DynamoDBClient, cfg.ProductsTable)
	addressStore := address.NewStore(cfg.DynamoDBClient, cfg.AddressesTable)
	orderStore := orders.NewStore(cfg.DynamoDBClient, cfg.OrdersTable, cfg.ShopOrdersTable)
	idempStore := idempotency.NewStore(cfg.DynamoDBClient, cfg.IdempotencyTable, cfg.TTLWindow)
	workflow := orders.NewWorkflow(orderStore, catalogStore, addressStore, idempStore, log)
	reports := reporting.NewService(orderStore, log)
	recorder := metrics.NewRecorder(cfg.CloudWatchClient, cfg.MetricsNamespace, log)

	var publisher *aws.Publisher
	if cfg.SQSClient != nil && cfg.QueueURL != "" {
		publisher = aws.NewPublisher(cfg.SQSClient, cfg.QueueURL)
	}

	authed := r.Group("/", identity.Middleware())

	authed.POST("/orders", identity.RequireRole(identity.RoleCustomer), func(c *gin.Context) {
		ctx := c.Request.Context()
		caller, _ := identity.FromGin(c)

		var req validation.PlaceOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		in := orders.PlaceOrderInput{
			AddressID:      req.AddressID,
			IdempotencyKey: c.GetHeader("Idempotency-Key"),
			Payment: orders.PaymentInput{
				Method:        req.Payment.Method,
				TransactionID: req.Payment.TransactionID,
			},
		}
		for _, it := range req.Items {
			in.Lines = append(in.Lines, orders.LineInput{ProductID: it.ProductID, Quantity: it.Quantity})
		}

		placed, err := workflow.PlaceOrder(ctx, caller, in)
		if err == orders.ErrDuplicateSubmission {
			replayIdempotent(c, idempStore, in.IdempotencyKey)
			return
		}
		if err != nil {
			if we, ok := orders.AsError(err); ok && we.Code == "insufficient_stock" {
				recorder.Count(ctx, metrics.MetricStockConflicts, 1, nil)
			}
			writeError(c, log, err)
			return
		}

		recorder.Count(ctx, metrics.MetricOrdersPlaced, 1, nil)

		body := gin.H{
			"message":      "Order placed successfully",
			"order_id":     placed.Order.OrderID,
			"total_amount": placed.Order.TotalAmount,
			"delivery_address": gin.H{
				"full_name":      placed.DeliveryAddress.FullName,
				"street_address": placed.DeliveryAddress.StreetAddress,
				"city":           placed.DeliveryAddress.City,
				"state":          placed.DeliveryAddress.State,
				"postal_code":    placed.DeliveryAddress.PostalCode,
			},
		}

		if publisher != nil {
			event := orders.NewPlacedEvent(placed.Order, in.IdempotencyKey)
			attrs := map[string]string{
				"order_id":       placed.Order.OrderID,
				"correlation_id": c.GetHeader("X-Request-Id"),
			}
			if err := publisher.SendEvent(ctx, event, attrs); err != nil {
				// Order is committed; fulfillment hooks catch up later.
				log.Warn("publish order placed event", zap.String("order_id", placed.Order.OrderID), zap.Error(err))
			}
		} else if in.IdempotencyKey != "" {
			// No worker deployed: finalize the idempotency record inline.
			responseBody, _ := json.Marshal(body)
			if err := idempStore.MarkDone(ctx, in.IdempotencyKey, string(responseBody), http.StatusCreated); err != nil {
				log.Warn("mark idempotency done", zap.Error(err))
			}
		}

		c.Header("Location", fmt.Sprintf("/orders/%s", placed.Order.OrderID))
		c.JSON(http.StatusCreated, body)
	})

	authed.GET("/orders/customer", identity.RequireRole(identity.RoleCustomer), func(c *gin.Context) {
		caller, _ := identity.FromGin(c)
		views, err := workflow.CustomerOrders(c.Request.Context(), caller)
		if err != nil {
			writeError(c, log, err)
			return
		}
		out := make([]gin.H, 0, len(views))
		for _, view := range views {
			item := gin.H{
				"id":                     view.OrderID,
				"created_at":             view.CreatedAt.Format(time.RFC3339),
				"total_amount":           view.TotalAmount,
				"status":                 view.Status,
				"payment_method":         view.PaymentMethod,
				"payment_transaction_id": view.PaymentTxnID,
				"items":                  view.Lines,
			}
			if view.DeliveryAddress != nil {
				item["delivery_address"] = gin.H{
					"id":             view.DeliveryAddress.AddressID,
					"full_name":      view.DeliveryAddress.FullName,
					"street_address": view.DeliveryAddress.StreetAddress,
					"city":           view.DeliveryAddress.City,
					"state":          view.DeliveryAddress.State,
					"postal_code":    view.DeliveryAddress.PostalCode,
					"phone_number":   view.DeliveryAddress.PhoneNumber,
				}
			}
			out = append(out, item)
		}
		c.JSON(http.StatusOK, out)
	})

	authed.GET("/orders/shop", identity.RequireRole(identity.RoleAdmin), func(c *gin.Context) {
		caller, _ := identity.FromGin(c)
		views, err := workflow.ShopOrders(c.Request.Context(), caller)
		if err != nil {
			writeError(c, log, err)
			return
		}
		out := make([]gin.H, 0, len(views))
		for _, view := range views {
			out = append(out, gin.H{
				"id":                         view.OrderID,
				"customer_id":                view.CustomerID,
				"created_at":                 view.CreatedAt.Format(time.RFC3339),
				"total_amount":               view.TotalAmount,
				"status":                     view.Status,
				"items_for_this_shop":        view.Lines,
				"shop_specific_total_amount": view.ShopSubtotal,
			})
		}
		c.JSON(http.StatusOK, out)
	})

	authed.PUT("/orders/:id/status", identity.RequireRole(identity.RoleAdmin), func(c *gin.Context) {
		caller, _ := identity.FromGin(c)

		var req validation.UpdateStatusRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		status, err := workflow.UpdateStatus(c.Request.Context(), caller, c.Param("id"), req.Status)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":  fmt.Sprintf("Order status updated to %s", status),
			"order_id": c.Param("id"),
			"status":   status,
		})
	})

	authed.PUT("/orders/:id/cancel", func(c *gin.Context) {
		caller, _ := identity.FromGin(c)

		status, err := workflow.Cancel(c.Request.Context(), caller, c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		recorder.Count(c.Request.Context(), metrics.MetricOrdersCancelled, 1, nil)
		c.JSON(http.StatusOK, gin.H{
			"message":  "Order cancelled successfully",
			"order_id": c.Param("id"),
			"status":   status,
		})
	})

	authed.GET("/admin/analytics", identity.RequireRole(identity.RoleAdmin), func(c *gin.Context) {
		caller, _ := identity.FromGin(c)
		if caller.ShopID == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "no_shop", "message": "Admin does not have a shop."})
			return
		}
		days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
		analytics, err := reports.ShopAnalytics(c.Request.Context(), caller.ShopID, days)
		if err != nil {
			log.Error("shop analytics", zap.String("shop_id", caller.ShopID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Something went wrong"})
			return
		}
		c.JSON(http.StatusOK, analytics)
	})
}

// replayIdempotent serves a duplicate POST /orders submission from the stored
// idempotency record.
func replayIdempotent(c *gin.Context, store *idempotency.Store, key string) {
	rec, err := store.Get(c.Request.Context(), key)
	if err != nil || rec == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed", "message": "could not resolve duplicate submission"})
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" {
			c.Data(rec.ResponseStatus, "application/json", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": rec.OrderID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "order_id": rec.OrderID})
	case idempotency.StatusFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "previous_attempt_failed", "order_id": rec.OrderID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
}

// writeError maps a workflow error onto an HTTP response. Anything that is
// not a typed workflow error is logged and surfaced as a generic 500.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	we, ok := orders.AsError(err)
	if !ok {
		log.Error("unhandled workflow error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Something went wrong"})
		return
	}
	status := http.StatusInternalServerError
	switch we.Kind {
	case orders.KindValidation:
		status = http.StatusBadRequest
	case orders.KindNotFound:
		status = http.StatusNotFound
	case orders.KindAuthorization:
		status = http.StatusForbidden
	case orders.KindConflict:
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": we.Code, "message": we.Message})
}
