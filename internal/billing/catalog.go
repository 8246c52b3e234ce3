package billing

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"todoapp/internal/domain"
	"todoapp/internal/infra"
	"todoapp/internal/providers/lemonsqueezy"
)

// CatalogSource is the subset of the billing provider the catalog reads.
type CatalogSource interface {
	ListStores(ctx context.Context) ([]lemonsqueezy.Store, error)
	ListProducts(ctx context.Context, storeID string) ([]lemonsqueezy.Product, error)
	ListVariants(ctx context.Context, productID string) ([]lemonsqueezy.Variant, error)
}

// Catalog assembles plans from the store, its products and their variants.
// Nothing is cached: every call reflects the provider's current catalog.
type Catalog struct {
	source      CatalogSource
	logger      *infra.Logger
	concurrency int
}

func NewCatalog(source CatalogSource, logger *infra.Logger) *Catalog {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Catalog{source: source, logger: logger, concurrency: 4}
}

// GetPlans returns one plan per product that has at least one variant, in
// product order. Any failed step fails the whole fetch with ErrCatalog.
func (c *Catalog) GetPlans(ctx context.Context) ([]domain.Plan, error) {
	stores, err := c.source.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list stores: %w", domain.ErrCatalog, err)
	}
	if len(stores) == 0 {
		return nil, fmt.Errorf("%w: no store found", domain.ErrCatalog)
	}
	store := stores[0]

	products, err := c.source.ListProducts(ctx, store.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: list products: %w", domain.ErrCatalog, err)
	}

	plans := make([]*domain.Plan, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, product := range products {
		g.Go(func() error {
			variants, err := c.source.ListVariants(gctx, product.ID)
			if err != nil {
				return fmt.Errorf("%w: list variants of product %s: %w", domain.ErrCatalog, product.ID, err)
			}
			if len(variants) == 0 {
				c.logger.Warn().Str("product_id", product.ID).Msg("catalog: product has no variants, skipping")
				return nil
			}
			plans[i] = buildPlan(store, product, variants[0])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.Plan, 0, len(plans))
	for _, p := range plans {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

// Plan looks up a single plan by product id from a fresh catalog fetch.
func (c *Catalog) Plan(ctx context.Context, id string) (*domain.Plan, error) {
	plans, err := c.GetPlans(ctx)
	if err != nil {
		return nil, err
	}
	for i := range plans {
		if plans[i].ID == id {
			return &plans[i], nil
		}
	}
	return nil, fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
}

func buildPlan(store lemonsqueezy.Store, product lemonsqueezy.Product, variant lemonsqueezy.Variant) *domain.Plan {
	price := product.Price
	if price == 0 {
		price = variant.Price
	}
	return &domain.Plan{
		ID:                 product.ID,
		Name:               product.Name,
		Price:              price,
		Currency:           store.Currency,
		Interval:           variant.Interval,
		ProductDescription: product.Description,
		CheckoutURL:        product.BuyNowURL,
		VariantID:          variant.ID,
		StoreID:            store.ID,
	}
}
