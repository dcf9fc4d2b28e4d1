package contract

import "strings"

type OrderStatus string

const (
	OrderDelivered OrderStatus = "delivered"
	OrderInTransit OrderStatus = "in-transit"
	OrderFulfilled OrderStatus = "fulfilled"
	OrderError     OrderStatus = "error"
)

// Order mirrors a record of the customer order data set.
type Order struct {
	CustomerName    string      `json:"CustomerName"`
	Email           string      `json:"Email"`
	OrderNumber     string      `json:"OrderNumber"`
	ProductsOrdered []string    `json:"ProductsOrdered"`
	Status          OrderStatus `json:"Status"`
	TrackingNumber  string      `json:"TrackingNumber,omitempty"`
}

type Product struct {
	ProductName string   `json:"ProductName"`
	SKU         string   `json:"SKU"`
	Inventory   int      `json:"Inventory"`
	Description string   `json:"Description"`
	Tags        []string `json:"Tags"`
}

// OrderQuery filters orders. Empty fields do not filter.
type OrderQuery struct {
	Email       string
	OrderNumber string
}

// Matches applies the order service's filter rules: email compares
// case-insensitively, order number exactly.
func (q OrderQuery) Matches(o Order) bool {
	if email := strings.TrimSpace(q.Email); email != "" && !strings.EqualFold(o.Email, email) {
		return false
	}
	if number := strings.TrimSpace(q.OrderNumber); number != "" && o.OrderNumber != number {
		return false
	}
	return true
}

// ProductQuery filters the catalog. Zero value returns every product.
type ProductQuery struct {
	Text         string
	Tags         []string
	MinInventory *int
}

func (q ProductQuery) Matches(p Product) bool {
	if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" {
		if !strings.Contains(strings.ToLower(p.ProductName), text) &&
			!strings.Contains(strings.ToLower(p.Description), text) &&
			!strings.Contains(strings.ToLower(p.SKU), text) {
			return false
		}
	}
	if len(q.Tags) > 0 && !anyTag(p.Tags, q.Tags) {
		return false
	}
	if q.MinInventory != nil && p.Inventory < *q.MinInventory {
		return false
	}
	return true
}

func anyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// OrderSlots is the oracle's extraction result. Empty means not found.
type OrderSlots struct {
	OrderNumber string `json:"order_number"`
	Email       string `json:"email"`
}
