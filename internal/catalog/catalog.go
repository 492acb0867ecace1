// Package catalog provides the built-in storefront product catalog and the
// JSON format shared by catalog files.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/offer"
	"github.com/xenking/kart-pricing/internal/domain/product"
)

//go:embed products.json
var defaultProducts []byte

// Default returns the built-in storefront products.
func Default() []product.Product {
	products, err := Decode(bytes.NewReader(defaultProducts))
	if err != nil {
		panic(errors.Wrap(err, "decode embedded catalog"))
	}
	return products
}

// Decode reads a JSON array of products. Prices may be numbers or strings.
func Decode(r io.Reader) ([]product.Product, error) {
	var products []product.Product
	d := jx.Decode(r, 4096)
	if err := d.Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return errors.Wrapf(err, "product %d", len(products))
		}
		products = append(products, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "image":
			p.Image, err = d.Str()
		case "price":
			p.Price, err = decodePrice(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	}); err != nil {
		return p, err
	}

	switch {
	case p.ID == "":
		return p, errors.New("id is required")
	case p.Price.IsNegative():
		return p, errors.Errorf("negative price %s for %s", p.Price, p.ID)
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	return p, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return price, offer.CheckPrice(price)
}

// Static is an in-memory product.Repository over a fixed product list.
type Static struct {
	products []product.Product
	byID     map[string]int
}

var _ product.Repository = (*Static)(nil)

// NewStatic creates a Static catalog. Later duplicates of an id are ignored.
func NewStatic(products []product.Product) *Static {
	s := &Static{byID: make(map[string]int, len(products))}
	for _, p := range products {
		if _, dup := s.byID[p.ID]; dup {
			continue
		}
		s.byID[p.ID] = len(s.products)
		s.products = append(s.products, p)
	}
	return s
}

// List returns every product in catalog order.
func (s *Static) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *Static) GetByID(_ context.Context, id string) (*product.Product, error) {
	i, ok := s.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p := s.products[i]
	return &p, nil
}

func (s *Static) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if i, ok := s.byID[id]; ok {
			out = append(out, s.products[i])
		}
	}
	return out, nil
}
