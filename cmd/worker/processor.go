package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/freshkart/grocery-orderflow/internal/aws"
	"github.com/freshkart/grocery-orderflow/internal/catalog"
	"github.com/freshkart/grocery-orderflow/internal/idempotency"
)

// Processor consumes order-placed events and applies the post-commit hooks:
// per-product sold counters, per-shop fan-out logging, and idempotency
// finalization. The order itself is already durable before a message exists,
// so every step here may be retried.
type Processor struct {
	catalogStore *catalog.Store
	idempStore   *idempotency.Store
	log          *zap.Logger
}

// NewProcessor creates a worker processor with AWS clients injected.
func NewProcessor(clients *aws.AWSClients, productsTable, idempTable string, log *zap.Logger) *Processor {
	return &Processor{
		catalogStore: catalog.NewStore(clients.DynamoDB, productsTable),
		idempStore:   idempotency.NewStore(clients.DynamoDB, idempTable, 48*time.Hour),
		log:          log,
	}
}

// Handle receives an SQS batch event and processes each message.
// Returning an error makes the runtime redeliver; repeated failures land the
// message in the DLQ.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.log.Error("worker error", zap.Error(err))
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg WorkerMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	p.log.Info("order placed event received",
		zap.String("order_id", msg.OrderID),
		zap.String("customer_id", msg.CustomerID),
		zap.Int("lines", len(msg.Lines)),
	)

	shops := map[string]int{}
	for _, line := range msg.Lines {
		if err := p.catalogStore.AddSoldCount(ctx, line.ProductID, line.Quantity); err != nil {
			return fmt.Errorf("bump sold count for %s: %w", line.ProductID, err)
		}
		shops[line.ShopID] += line.Quantity
	}
	for shopID, units := range shops {
		p.log.Info("shop fulfillment notified",
			zap.String("order_id", msg.OrderID),
			zap.String("shop_id", shopID),
			zap.Int("units", units),
		)
	}

	if msg.IdempotencyKey != "" {
		response := fmt.Sprintf(`{"order_id":%q,"total_amount":%g,"message":"Order placed successfully"}`, msg.OrderID, msg.TotalAmount)
		if err := p.idempStore.MarkDone(ctx, msg.IdempotencyKey, response, http.StatusCreated); err != nil {
			return fmt.Errorf("finalize idempotency: %w", err)
		}
	}

	p.log.Info("order placed event processed", zap.String("order_id", msg.OrderID))
	return nil
}
