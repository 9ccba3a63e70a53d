package catalog

// Product is the item stored in the products DynamoDB table. Catalog
// management (restock, price edits) is owned by a separate service; the order
// workflow only reads products and adjusts quantity and sold_count.
type Product struct {
	ProductID          string  `dynamodbav:"product_id"` // PK
	Name               string  `dynamodbav:"name"`
	Price              float64 `dynamodbav:"price"`
	DiscountPercentage float64 `dynamodbav:"discount_percentage"`
	Quantity           int     `dynamodbav:"quantity"`
	ShopID             string  `dynamodbav:"shop_id"`
	Category           string  `dynamodbav:"category,omitempty"`
	Unit               string  `dynamodbav:"unit,omitempty"`
	Featured           bool    `dynamodbav:"featured,omitempty"`
	ImageURL           string  `dynamodbav:"image_url,omitempty"`
	SoldCount          int     `dynamodbav:"sold_count,omitempty"`
	Description        string  `dynamodbav:"description,omitempty"`
}

// EffectivePrice is the unit price after discount.
func (p Product) EffectivePrice() float64 {
	if p.DiscountPercentage > 0 {
		return p.Price * (1 - p.DiscountPercentage/100)
	}
	return p.Price
}
