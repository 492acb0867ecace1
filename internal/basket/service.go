// Package basket prices carts against the product catalog.
package basket

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/bill"
	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/offer"
	"github.com/xenking/kart-pricing/internal/domain/product"
)

const tracerName = "github.com/xenking/kart-pricing/internal/basket"

// Bill is a priced cart.
type Bill struct {
	bill.Bill
	// Unresolved lists cart ids that are missing from the catalog. They are
	// left out of the bill.
	Unresolved []string
}

// Service joins cart snapshots with catalog data and prices them.
type Service struct {
	products product.Repository
	offers   offer.Evaluator
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithEvaluator replaces the standard offer rules.
func WithEvaluator(e offer.Evaluator) Option {
	return func(s *Service) {
		s.offers = e
	}
}

// WithTracerProvider enables pricing spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// NewService creates a Service over products.
func NewService(products product.Repository, opts ...Option) *Service {
	s := &Service{
		products: products,
		offers:   offer.Standard(),
		tracer:   noop.NewTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluator returns the offer rules used for pricing.
func (s *Service) Evaluator() offer.Evaluator {
	return s.offers
}

// Lines builds basket lines for st in cart order. Ids not in the catalog are
// returned separately.
func (s *Service) Lines(ctx context.Context, st cart.State) (lines []offer.BasketLine, unresolved []string, err error) {
	ids := st.IDs()
	if len(ids) == 0 {
		return nil, nil, nil
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines = make([]offer.BasketLine, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			unresolved = append(unresolved, id)
			continue
		}
		lines = append(lines, offer.BasketLine{
			ID:    p.ID,
			Name:  p.Name,
			Price: p.Price,
			Qty:   st.Quantity(id),
		})
	}
	return lines, unresolved, nil
}

// Price evaluates every line of st and aggregates the bill.
func (s *Service) Price(ctx context.Context, st cart.State) (_ Bill, rerr error) {
	ctx, span := s.tracer.Start(ctx, "basket.Price",
		trace.WithAttributes(attribute.Int("basket.products", st.Len())),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	lines, unresolved, err := s.Lines(ctx, st)
	if err != nil {
		return Bill{}, err
	}
	if len(unresolved) > 0 {
		zctx.From(ctx).Warn("Cart references unknown products",
			zap.Strings("product_ids", unresolved),
		)
	}

	b := bill.Price(s.offers, lines)
	span.SetAttributes(
		attribute.String("bill.total", b.Total.StringFixed(2)),
		attribute.Int("bill.unresolved", len(unresolved)),
	)
	return Bill{Bill: b, Unresolved: unresolved}, nil
}
