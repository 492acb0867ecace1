package offer

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
)

type scenarioKey struct{}

// scenario holds the state for a single feature scenario.
type scenario struct {
	prices map[string]decimal.Decimal
	basket []BasketLine
	result Result
}

func scenarioFrom(ctx context.Context) *scenario {
	return ctx.Value(scenarioKey{}).(*scenario)
}

func theCatalogPrices(ctx context.Context, table *godog.Table) error {
	sc := scenarioFrom(ctx)
	for _, row := range table.Rows[1:] {
		price, err := decimal.NewFromString(row.Cells[1].Value)
		if err != nil {
			return fmt.Errorf("price for %s: %w", row.Cells[0].Value, err)
		}
		sc.prices[row.Cells[0].Value] = price
	}
	return nil
}

func aBasketWith(ctx context.Context, qty int, productID string) error {
	sc := scenarioFrom(ctx)
	sc.basket = append(sc.basket, BasketLine{
		ID:    productID,
		Name:  productID,
		Price: sc.prices[productID],
		Qty:   qty,
	})
	return nil
}

func iEvaluateTheLine(ctx context.Context, productID string) error {
	sc := scenarioFrom(ctx)
	for _, l := range sc.basket {
		if l.ID == productID {
			sc.result = Evaluate(l.ID, l.Qty, l.Price, sc.basket)
			return nil
		}
	}
	return fmt.Errorf("no %q line in basket", productID)
}

func expectAmount(name string, got decimal.Decimal, want string) error {
	w, err := decimal.NewFromString(want)
	if err != nil {
		return err
	}
	if !w.Equal(got) {
		return fmt.Errorf("expected %s %s, got %s", name, w, got)
	}
	return nil
}

func theItemCostIs(ctx context.Context, want string) error {
	return expectAmount("item cost", scenarioFrom(ctx).result.ItemCost, want)
}

func theSavingsAre(ctx context.Context, want string) error {
	return expectAmount("savings", scenarioFrom(ctx).result.Savings, want)
}

func theOfferLabelIs(ctx context.Context, want string) error {
	if got := scenarioFrom(ctx).result.Offer; got != want {
		return fmt.Errorf("expected offer %q, got %q", want, got)
	}
	return nil
}

func initializeScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return context.WithValue(ctx, scenarioKey{}, &scenario{
			prices: make(map[string]decimal.Decimal),
		}), nil
	})

	ctx.Step(`^the catalog prices$`, theCatalogPrices)
	ctx.Step(`^a basket with (\d+) "([^"]*)"$`, aBasketWith)
	ctx.Step(`^I evaluate the "([^"]*)" line$`, iEvaluateTheLine)
	ctx.Step(`^the item cost is (-?\d+\.\d+)$`, theItemCostIs)
	ctx.Step(`^the savings are (-?\d+\.\d+)$`, theSavingsAre)
	ctx.Step(`^the offer label is "([^"]*)"$`, theOfferLabelIs)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"testdata/offers.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
