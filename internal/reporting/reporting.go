package reporting

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/freshkart/grocery-orderflow/internal/orders"
)

// TopProduct is one entry of the best-sellers list.
type TopProduct struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Revenue   float64 `json:"revenue"`
}

// RevenuePoint is one calendar day of the shop's revenue series.
type RevenuePoint struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

// Analytics is the shop dashboard aggregate. Sales figures count only the
// shop's own lines; cancelled orders are excluded from revenue but appear in
// the status breakdown. AverageOrderValue averages the per-order shop
// subtotals, so orders that carried no revenue for this shop do not dilute it.
type Analytics struct {
	TotalSales        float64        `json:"totalSales"`
	TotalOrders       int            `json:"totalOrders"`
	ActiveCustomers   int            `json:"activeCustomers"`
	AverageOrderValue float64        `json:"averageOrderValue"`
	RevenueData       []RevenuePoint `json:"revenueData"`
	OrderStatusData   map[string]int `json:"orderStatusData"`
	TopProducts       []TopProduct   `json:"topProducts"`
}

// Service computes read-only aggregates over the order ledger. It never
// writes.
type Service struct {
	orders *orders.Store
	log    *zap.Logger
}

func NewService(store *orders.Store, log *zap.Logger) *Service {
	return &Service{orders: store, log: log}
}

const topProductLimit = 5

// ShopAnalytics aggregates the shop's orders over the trailing window.
func (s *Service) ShopAnalytics(ctx context.Context, shopID string, days int) (*Analytics, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	ids, err := s.orders.ListOrderIDsByShop(ctx, shopID)
	if err != nil {
		s.log.Error("list shop orders", zap.String("shop_id", shopID), zap.Error(err))
		return nil, err
	}

	out := &Analytics{
		RevenueData:     []RevenuePoint{},
		OrderStatusData: map[string]int{},
		TopProducts:     []TopProduct{},
	}
	customers := map[string]bool{}
	byProduct := map[string]*TopProduct{}
	revenueByDay := map[string]float64{}
	revenueOrders := 0

	for _, id := range ids {
		order, err := s.orders.Get(ctx, id)
		if err != nil {
			s.log.Error("get order", zap.String("order_id", id), zap.Error(err))
			return nil, err
		}
		if order == nil || order.CreatedAt.Before(cutoff) {
			continue
		}

		out.TotalOrders++
		out.OrderStatusData[string(order.Status)]++
		customers[order.CustomerID] = true

		if order.Status == orders.StatusCancelled {
			continue
		}
		shopTotal := 0.0
		for _, line := range order.ShopLines(shopID) {
			shopTotal += line.Subtotal()
			tp, ok := byProduct[line.ProductID]
			if !ok {
				tp = &TopProduct{ProductID: line.ProductID, Name: line.ProductName}
				byProduct[line.ProductID] = tp
			}
			tp.Quantity += line.Quantity
			tp.Revenue += line.Subtotal()
		}
		out.TotalSales += shopTotal
		if shopTotal > 0 {
			revenueOrders++
			revenueByDay[order.CreatedAt.UTC().Format("2006-01-02")] += shopTotal
		}
	}

	out.ActiveCustomers = len(customers)
	if revenueOrders > 0 {
		out.AverageOrderValue = out.TotalSales / float64(revenueOrders)
	}

	for day, rev := range revenueByDay {
		out.RevenueData = append(out.RevenueData, RevenuePoint{Date: day, Revenue: rev})
	}
	sort.Slice(out.RevenueData, func(i, j int) bool { return out.RevenueData[i].Date < out.RevenueData[j].Date })

	for _, tp := range byProduct {
		out.TopProducts = append(out.TopProducts, *tp)
	}
	sort.Slice(out.TopProducts, func(i, j int) bool {
		if out.TopProducts[i].Quantity != out.TopProducts[j].Quantity {
			return out.TopProducts[i].Quantity > out.TopProducts[j].Quantity
		}
		return out.TopProducts[i].ProductID < out.TopProducts[j].ProductID
	})
	if len(out.TopProducts) > topProductLimit {
		out.TopProducts = out.TopProducts[:topProductLimit]
	}
	return out, nil
}
