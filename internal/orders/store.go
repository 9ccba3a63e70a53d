package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/freshkart/grocery-orderflow/internal/aws"
)

// CustomerIndex is the GSI on the orders table keyed by customer_id.
const CustomerIndex = "customer-index"

// ErrStatusMismatch means a conditional status update lost a race: the order
// was no longer in the status we read.
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// Store encapsulates operations on the orders and shop_orders tables.
// shop_orders holds one (shop_id, order_id) row per shop an order spans,
// written in the same transaction as the order itself.
type Store struct {
	client          aws.DynamoDBAPI
	tableName       string
	shopOrdersTable string
	nowFunc         func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName, shopOrdersTable string) *Store {
	return &Store{
		client:          client,
		tableName:       tableName,
		shopOrdersTable: shopOrdersTable,
		nowFunc:         time.Now,
	}
}

// PutOrderItem builds the transactional put for a new order, guarded against
// order_id reuse.
func (s *Store) PutOrderItem(order Order) (types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal order: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.tableName,
			Item:                item,
			ConditionExpression: strPtr("attribute_not_exists(order_id)"),
		},
	}, nil
}

// ShopLinkItems builds one shop_orders put per distinct shop on the order.
func (s *Store) ShopLinkItems(order Order) []types.TransactWriteItem {
	var items []types.TransactWriteItem
	for _, shopID := range order.ShopIDs() {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: &s.shopOrdersTable,
				Item: map[string]types.AttributeValue{
					"shop_id":    &types.AttributeValueMemberS{Value: shopID},
					"order_id":   &types.AttributeValueMemberS{Value: order.OrderID},
					"created_at": &types.AttributeValueMemberS{Value: order.CreatedAt.UTC().Format(time.RFC3339)},
				},
			},
		})
	}
	return items
}

// TransactWrite issues the combined transaction. Callers inspect the raw
// error for TransactionCanceledException to map condition failures back to
// domain errors.
func (s *Store) TransactWrite(ctx context.Context, items []types.TransactWriteItem) error {
	_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: items,
	})
	return err
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// ListByCustomer returns the customer's orders, newest first.
func (s *Store) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              strPtr(CustomerIndex),
		KeyConditionExpression: strPtr("customer_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: customerID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query customer orders: %w", err)
	}
	orders := make([]Order, 0, len(out.Items))
	for _, item := range out.Items {
		var o Order
		if err := attributevalue.UnmarshalMap(item, &o); err != nil {
			return nil, fmt.Errorf("unmarshal order: %w", err)
		}
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

// ListOrderIDsByShop returns the ids of all orders containing at least one
// line from the shop.
func (s *Store) ListOrderIDsByShop(ctx context.Context, shopID string) ([]string, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.shopOrdersTable,
		KeyConditionExpression: strPtr("shop_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: shopID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query shop orders: %w", err)
	}
	ids := make([]string, 0, len(out.Items))
	for _, item := range out.Items {
		if v, ok := item["order_id"].(*types.AttributeValueMemberS); ok {
			ids = append(ids, v.Value)
		}
	}
	return ids, nil
}

// UpdateStatus conditionally moves the order from expectedStatus to
// newStatus. Returns ErrStatusMismatch if the order was concurrently moved.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, expectedStatus, newStatus Status) error {
	now := s.nowFunc()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:         strPtr("SET #s = :new, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(newStatus)},
			":ua":       &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
			":expected": &types.AttributeValueMemberS{Value: string(expectedStatus)},
		},
		ConditionExpression: strPtr("#s = :expected"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// StatusCASItem builds the transactional form of UpdateStatus, for combining
// a status change with stock mutations in one atomic write.
func (s *Store) StatusCASItem(orderID string, expectedStatus, newStatus Status) types.TransactWriteItem {
	now := s.nowFunc()
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName: &s.tableName,
			Key: map[string]types.AttributeValue{
				"order_id": &types.AttributeValueMemberS{Value: orderID},
			},
			UpdateExpression:         strPtr("SET #s = :new, updated_at = :ua"),
			ExpressionAttributeNames: map[string]string{"#s": "status"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":new":      &types.AttributeValueMemberS{Value: string(newStatus)},
				":ua":       &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
				":expected": &types.AttributeValueMemberS{Value: string(expectedStatus)},
			},
			ConditionExpression: strPtr("#s = :expected"),
		},
	}
}

func strPtr(s string) *string { return &s }
