package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/freshkart/grocery-orderflow/internal/aws"
	"github.com/freshkart/grocery-orderflow/internal/logging"
)

func main() {
	logger := logging.MustNewLogger("order-worker")
	defer logger.Sync()

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	processor := NewProcessor(clients, os.Getenv("PRODUCTS_TABLE"), os.Getenv("IDEMPOTENCY_TABLE"), logger)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"order_id":"local-order-1","customer_id":"local-cust-1","lines":[]}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{Body: testBody},
			},
		}
		if err := processor.Handle(context.Background(), event); err != nil {
			logger.Fatal("local handler error", zap.Error(err))
		}
		return
	}

	lambda.Start(processor.Handle)
}
