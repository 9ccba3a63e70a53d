package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/freshkart/grocery-orderflow/internal/aws"
)

// Condition expressions used by the stock mutations. The decrement guard is
// what keeps quantity non-negative under concurrent orders: the check and the
// subtraction land in the same conditional statement.
const (
	CondProductInStock = "attribute_exists(product_id) AND quantity >= :n"
	CondProductExists  = "attribute_exists(product_id)"
	ExprDecrementStock = "SET quantity = quantity - :n"
	ExprRestock        = "ADD quantity :n"
	ExprAddSoldCount   = "ADD sold_count :n"
)

// Store encapsulates operations on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new catalog Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
	}
}

// Get fetches a product by product_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: productID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// DecrementStockItem builds a transactional update that subtracts qty from the
// product's available quantity, guarded by "quantity >= qty". Meant to be
// combined with the order put in a single TransactWriteItems call so a stock
// shortfall rolls back the whole order.
func (s *Store) DecrementStockItem(productID string, qty int) types.TransactWriteItem {
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName: &s.tableName,
			Key: map[string]types.AttributeValue{
				"product_id": &types.AttributeValueMemberS{Value: productID},
			},
			UpdateExpression:    strPtr(ExprDecrementStock),
			ConditionExpression: strPtr(CondProductInStock),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":n": &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			},
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		},
	}
}

// RestockItem builds a transactional update that returns qty units to the
// product's available quantity. Used when a cancellation releases the stock
// reserved at order creation.
func (s *Store) RestockItem(productID string, qty int) types.TransactWriteItem {
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName: &s.tableName,
			Key: map[string]types.AttributeValue{
				"product_id": &types.AttributeValueMemberS{Value: productID},
			},
			UpdateExpression:    strPtr(ExprRestock),
			ConditionExpression: strPtr(CondProductExists),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":n": &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			},
		},
	}
}

// AddSoldCount bumps the product's sold counter. Applied asynchronously by the
// fulfillment worker; not part of any order transaction.
func (s *Store) AddSoldCount(ctx context.Context, productID string, qty int) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: productID},
		},
		UpdateExpression:    strPtr(ExprAddSoldCount),
		ConditionExpression: strPtr(CondProductExists),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n": &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
		},
	})
	if err != nil {
		return fmt.Errorf("add sold count: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }
