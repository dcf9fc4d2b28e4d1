package contract

import (
	"context"

	statex "github.com/tanpawarit/outfitters-agent/agent/state"
)

// Oracle is the natural-language capability the orchestrator consults.
// Implementations report failures as errors; the guard maps them to safe
// defaults.
type Oracle interface {
	ClassifyIntent(ctx context.Context, history []statex.Turn, current statex.Intent) (statex.Intent, error)
	ExtractOrderSlots(ctx context.Context, history []statex.Turn) (OrderSlots, error)
	HasSufficientProductContext(ctx context.Context, history []statex.Turn) (bool, error)
	// GenerateGroundedReply returns "" when no catalog product matches.
	GenerateGroundedReply(ctx context.Context, history []statex.Turn, catalog []Product) (string, error)
}

type OrderFinder interface {
	FindOrders(ctx context.Context, q OrderQuery) ([]Order, error)
}

type ProductCatalog interface {
	ListProducts(ctx context.Context, q ProductQuery) ([]Product, error)
}

type ProductLookup interface {
	GetProduct(ctx context.Context, sku string) (Product, error)
}

// DataSource bundles the two data collaborators.
type DataSource interface {
	OrderFinder
	ProductCatalog
	ProductLookup
}
