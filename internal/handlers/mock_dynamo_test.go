package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/freshkart/grocery-orderflow/internal/address"
	"github.com/freshkart/grocery-orderflow/internal/catalog"
)

// mockDynamo is the HTTP-level cousin of the workflow package's in-memory
// double: items per table keyed by primary key, conditions evaluated against
// the exact expressions the stores issue.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{tables: map[string]map[string]map[string]types.AttributeValue{}}
}

func (m *mockDynamo) ensureTable(tbl string) {
	if _, ok := m.tables[tbl]; !ok {
		m.tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
}

func itemKey(attrs map[string]types.AttributeValue) (string, error) {
	str := func(name string) (string, bool) {
		if v, ok := attrs[name].(*types.AttributeValueMemberS); ok {
			return v.Value, true
		}
		return "", false
	}
	if v, ok := str("product_id"); ok {
		return v, nil
	}
	if v, ok := str("idempotency_key"); ok {
		return v, nil
	}
	if shop, ok := str("shop_id"); ok {
		if order, ok := str("order_id"); ok {
			return shop + "|" + order, nil
		}
	}
	if v, ok := str("order_id"); ok {
		return v, nil
	}
	if v, ok := str("address_id"); ok {
		return v, nil
	}
	return "", errors.New("no primary key attribute")
}

func numValue(attrs map[string]types.AttributeValue, name string) (int, bool) {
	if v, ok := attrs[name].(*types.AttributeValueMemberN); ok {
		n, err := strconv.Atoi(v.Value)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

func (m *mockDynamo) checkCondition(table, cond string, item map[string]types.AttributeValue, values map[string]types.AttributeValue) bool {
	existing := func(attrs map[string]types.AttributeValue) map[string]types.AttributeValue {
		pk, err := itemKey(attrs)
		if err != nil {
			return nil
		}
		m.ensureTable(table)
		return m.tables[table][pk]
	}
	switch cond {
	case "attribute_not_exists(order_id)", "attribute_not_exists(idempotency_key)":
		return existing(item) == nil
	case catalog.CondProductExists:
		return existing(item) != nil
	case catalog.CondProductInStock:
		curr := existing(item)
		if curr == nil {
			return false
		}
		have, ok := numValue(curr, "quantity")
		if !ok {
			return false
		}
		want, _ := numValue(values, ":n")
		return have >= want
	case "#s = :expected":
		curr := existing(item)
		if curr == nil {
			return false
		}
		status, ok := curr["status"].(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		expected := values[":expected"].(*types.AttributeValueMemberS)
		return status.Value == expected.Value
	}
	return false
}

func applyUpdate(item map[string]types.AttributeValue, expr string, values map[string]types.AttributeValue) {
	switch expr {
	case catalog.ExprDecrementStock:
		n, _ := numValue(values, ":n")
		have, _ := numValue(item, "quantity")
		item["quantity"] = &types.AttributeValueMemberN{Value: strconv.Itoa(have - n)}
	case catalog.ExprRestock:
		n, _ := numValue(values, ":n")
		have, _ := numValue(item, "quantity")
		item["quantity"] = &types.AttributeValueMemberN{Value: strconv.Itoa(have + n)}
	case catalog.ExprAddSoldCount:
		n, _ := numValue(values, ":n")
		have, _ := numValue(item, "sold_count")
		item["sold_count"] = &types.AttributeValueMemberN{Value: strconv.Itoa(have + n)}
	case "SET #s = :new, updated_at = :ua":
		item["status"] = values[":new"]
		item["updated_at"] = values[":ua"]
	case "SET #s = :done, response_body = :rb, response_status = :rs, updated_at = :ua":
		item["status"] = values[":done"]
		item["response_body"] = values[":rb"]
		item["response_status"] = values[":rs"]
		item["updated_at"] = values[":ua"]
	case "SET #s = :failed, note = :n, updated_at = :ua":
		item["status"] = values[":failed"]
		item["note"] = values[":n"]
		item["updated_at"] = values[":ua"]
	}
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	pk, err := itemKey(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && !m.checkCondition(table, *params.ConditionExpression, params.Item, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	m.tables[table][pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	pk, err := itemKey(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.tables[table][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	pk, err := itemKey(params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := m.tables[table][pk]
	if params.ConditionExpression != nil {
		if !m.checkCondition(table, *params.ConditionExpression, params.Key, params.ExpressionAttributeValues) {
			return nil, &types.ConditionalCheckFailedException{}
		}
	} else if !exists {
		item = map[string]types.AttributeValue{}
		for k, v := range params.Key {
			item[k] = v
		}
		m.tables[table][pk] = item
	}
	applyUpdate(item, *params.UpdateExpression, params.ExpressionAttributeValues)
	m.tables[table][pk] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)

	var attr, want string
	switch strings.TrimSpace(*params.KeyConditionExpression) {
	case "customer_id = :cid":
		attr = "customer_id"
		want = params.ExpressionAttributeValues[":cid"].(*types.AttributeValueMemberS).Value
	case "shop_id = :sid":
		attr = "shop_id"
		want = params.ExpressionAttributeValues[":sid"].(*types.AttributeValueMemberS).Value
	default:
		return nil, errors.New("unsupported key condition: " + *params.KeyConditionExpression)
	}

	out := &dyn.QueryOutput{}
	for _, item := range m.tables[table] {
		if v, ok := item[attr].(*types.AttributeValueMemberS); ok && v.Value == want {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, it := range params.TransactItems {
		code := "None"
		switch {
		case it.Put != nil:
			if it.Put.ConditionExpression != nil &&
				!m.checkCondition(*it.Put.TableName, *it.Put.ConditionExpression, it.Put.Item, it.Put.ExpressionAttributeValues) {
				code = "ConditionalCheckFailed"
				failed = true
			}
		case it.Update != nil:
			if it.Update.ConditionExpression != nil &&
				!m.checkCondition(*it.Update.TableName, *it.Update.ConditionExpression, it.Update.Key, it.Update.ExpressionAttributeValues) {
				code = "ConditionalCheckFailed"
				failed = true
			}
		}
		codeCopy := code
		reasons[i] = types.CancellationReason{Code: &codeCopy}
	}
	if failed {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	for _, it := range params.TransactItems {
		switch {
		case it.Put != nil:
			table := *it.Put.TableName
			m.ensureTable(table)
			pk, err := itemKey(it.Put.Item)
			if err != nil {
				return nil, err
			}
			m.tables[table][pk] = it.Put.Item
		case it.Update != nil:
			table := *it.Update.TableName
			m.ensureTable(table)
			pk, err := itemKey(it.Update.Key)
			if err != nil {
				return nil, err
			}
			item, ok := m.tables[table][pk]
			if !ok {
				return nil, errors.New("transact update on missing item")
			}
			applyUpdate(item, *it.Update.UpdateExpression, it.Update.ExpressionAttributeValues)
			m.tables[table][pk] = item
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (m *mockDynamo) seedProduct(t *testing.T, table string, p catalog.Product) {
	t.Helper()
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		t.Fatalf("marshal product: %v", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureTable(table)
	m.tables[table][p.ProductID] = item
}

func (m *mockDynamo) seedAddress(t *testing.T, table string, a address.Address) {
	t.Helper()
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		t.Fatalf("marshal address: %v", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureTable(table)
	m.tables[table][a.AddressID] = item
}

func (m *mockDynamo) productQuantity(t *testing.T, table, productID string) int {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.tables[table][productID]
	if !ok {
		t.Fatalf("product %s not in table %s", productID, table)
	}
	n, ok := numValue(item, "quantity")
	if !ok {
		t.Fatalf("product %s has no numeric quantity", productID)
	}
	return n
}
