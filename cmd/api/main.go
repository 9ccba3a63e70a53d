package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/freshkart/grocery-orderflow/internal/aws"
	"github.com/freshkart/grocery-orderflow/internal/handlers"
	"github.com/freshkart/grocery-orderflow/internal/logging"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterOrderRoutes(r, cfg)

	return r
}

func main() {
	logger := logging.MustNewLogger("order-api")
	defer logger.Sync()

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	cfg := handlers.HandlerConfig{
		DynamoDBClient:   clients.DynamoDB,
		SQSClient:        clients.SQS,
		CloudWatchClient: clients.CloudWatch,
		ProductsTable:    os.Getenv("PRODUCTS_TABLE"),
		OrdersTable:      os.Getenv("ORDERS_TABLE"),
		ShopOrdersTable:  os.Getenv("SHOP_ORDERS_TABLE"),
		AddressesTable:   os.Getenv("ADDRESSES_TABLE"),
		IdempotencyTable: os.Getenv("IDEMPOTENCY_TABLE"),
		QueueURL:         os.Getenv("ORDERS_QUEUE_URL"),
		MetricsNamespace: "GroceryOrderflow",
		TTLWindow:        48 * time.Hour,
		Logger:           logger,
	}

	r := setupRouter(cfg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		logger.Info("running local server", zap.String("addr", addr))
		if err := r.Run(addr); err != nil {
			logger.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
