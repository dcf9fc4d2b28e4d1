package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	"github.com/tanpawarit/outfitters-agent/agent/reply"
	statex "github.com/tanpawarit/outfitters-agent/agent/state"
)

type ProductGatherer struct {
	oracle  ProductAdvisor
	catalog contractx.ProductCatalog
	timeout time.Duration
	logger  zerolog.Logger
}

var _ Handler = (*ProductGatherer)(nil)

func NewProductGatherer(oracle ProductAdvisor, catalog contractx.ProductCatalog, timeout time.Duration, opts ...Option) (*ProductGatherer, error) {
	if oracle == nil {
		return nil, fmt.Errorf("%w: product advisor is required", contractx.ErrValidation)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: product catalog is required", contractx.ErrValidation)
	}
	return &ProductGatherer{
		oracle:  oracle,
		catalog: catalog,
		timeout: dataTimeout(timeout),
		logger:  applyOptions("product_flow", opts).logger,
	}, nil
}

func (f *ProductGatherer) Handle(ctx context.Context, st *statex.ConversationState) (string, error) {
	if err := enterGathering(st); err != nil {
		return "", err
	}

	if !f.oracle.HasSufficientProductContext(ctx, st) {
		return reply.AskProductDetails, transition(st, statex.PhaseInfoGathering)
	}

	if err := transition(st, statex.PhaseDataRetrieval); err != nil {
		return "", err
	}

	products, err := f.listAll(ctx)
	if err != nil || len(products) == 0 {
		f.logger.Error().Err(err).Str("session_id", st.SessionID).Int("products", len(products)).Msg("catalog unavailable")
		return reply.CatalogUnavailable, transition(st, statex.PhaseIntentDetection)
	}

	out, err := f.oracle.GenerateGroundedReply(ctx, st, products)
	switch {
	case err != nil:
		return reply.ProductReplyFailed, transition(st, statex.PhaseIntentDetection)
	case out == "":
		return reply.NoProductMatch, transition(st, statex.PhaseInfoGathering)
	}
	return out, transition(st, statex.PhaseIntentDetection)
}

func (f *ProductGatherer) listAll(ctx context.Context) ([]contractx.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.catalog.ListProducts(ctx, contractx.ProductQuery{})
}
