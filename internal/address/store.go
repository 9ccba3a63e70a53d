package address

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/freshkart/grocery-orderflow/internal/aws"
)

// Address is a delivery address as stored in the addresses table. Address
// book CRUD is external; the order workflow only reads addresses to validate
// ownership and echo delivery details.
type Address struct {
	AddressID     string `dynamodbav:"address_id"` // PK
	UserID        string `dynamodbav:"user_id"`
	FullName      string `dynamodbav:"full_name"`
	StreetAddress string `dynamodbav:"street_address"`
	Landmark      string `dynamodbav:"landmark,omitempty"`
	City          string `dynamodbav:"city"`
	State         string `dynamodbav:"state"`
	PostalCode    string `dynamodbav:"postal_code"`
	PhoneNumber   string `dynamodbav:"phone_number"`
}

// Store reads the addresses table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
	}
}

// Get fetches an address by address_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, addressID string) (*Address, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"address_id": &types.AttributeValueMemberS{Value: addressID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var a Address
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal address: %w", err)
	}
	return &a, nil
}
