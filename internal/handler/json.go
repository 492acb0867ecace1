package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/basket"
	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/offer"
	"github.com/xenking/kart-pricing/internal/domain/product"
)

const maxBodySize = 64 << 10

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
		if p.Description != "" {
			e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		}
		if p.Image != "" {
			e.Field("image", func(e *jx.Encoder) { e.Str(h.imageBaseURL + p.Image) })
		}
	})
}

func encodeBill(e *jx.Encoder, b basket.Bill) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range b.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(l.ID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
						e.Field("price", func(e *jx.Encoder) { money(e, l.Price) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Qty) })
						e.Field("itemCost", func(e *jx.Encoder) { money(e, l.ItemCost) })
						e.Field("savings", func(e *jx.Encoder) { money(e, l.Savings) })
						e.Field("offer", func(e *jx.Encoder) { e.Str(l.Offer) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { money(e, b.Subtotal) })
		e.Field("totalSavings", func(e *jx.Encoder) { money(e, b.TotalSavings) })
		e.Field("total", func(e *jx.Encoder) { money(e, b.Total) })
		e.Field("unresolved", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, id := range b.Unresolved {
					e.Str(id)
				}
			})
		})
	})
}

func encodeCart(cartID string, st cart.State, b basket.Bill) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(cartID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, id := range st.IDs() {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(id) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(st.Quantity(id)) })
					})
				}
			})
		})
		e.Field("bill", func(e *jx.Encoder) { encodeBill(e, b) })
	})
	return e.Bytes()
}

func encodeResult(r offer.Result) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("itemCost", func(e *jx.Encoder) { money(e, r.ItemCost) })
		e.Field("savings", func(e *jx.Encoder) { money(e, r.Savings) })
		e.Field("offer", func(e *jx.Encoder) { e.Str(r.Offer) })
	})
	return e.Bytes()
}

// readBody returns the request body, nil when it is empty.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, badRequest("read body", err)
	}
	if len(data) > maxBodySize {
		return nil, badRequest("body too large", nil)
	}
	return data, nil
}

// decodeIntField reads {"<field>": n}. ok is false when the body is empty or
// the field is absent.
func decodeIntField(data []byte, field string) (n int, ok bool, err error) {
	if len(data) == 0 {
		return 0, false, nil
	}
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != field {
			return d.Skip()
		}
		v, err := d.Int()
		if err != nil {
			return errors.Wrap(err, key)
		}
		n, ok = v, true
		return nil
	}); err != nil {
		return 0, false, badRequest("malformed body", err)
	}
	return n, ok, nil
}

// decodeDecimal reads a price given as a JSON number or string and rejects
// values outside offer.CheckPrice.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	} else {
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if err := offer.CheckPrice(v); err != nil {
		return decimal.Zero, err
	}
	return v, nil
}

type evaluateRequest struct {
	productID string
	quantity  int
	unitPrice decimal.Decimal
	basket    []offer.BasketLine

	hasProduct, hasQuantity, hasPrice bool
}

func decodeBasketLine(d *jx.Decoder) (offer.BasketLine, error) {
	var l offer.BasketLine
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			l.ID, err = d.Str()
		case "name":
			l.Name, err = d.Str()
		case "price":
			l.Price, err = decodeDecimal(d)
		case "qty", "quantity":
			l.Qty, err = d.Int()
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	return l, err
}

func decodeEvaluateRequest(data []byte) (evaluateRequest, error) {
	var req evaluateRequest
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			req.productID, err = d.Str()
			req.hasProduct = true
		case "quantity":
			req.quantity, err = d.Int()
			req.hasQuantity = true
		case "unitPrice":
			req.unitPrice, err = decodeDecimal(d)
			req.hasPrice = true
		case "basket":
			err = d.Arr(func(d *jx.Decoder) error {
				l, err := decodeBasketLine(d)
				if err != nil {
					return err
				}
				req.basket = append(req.basket, l)
				return nil
			})
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return req, badRequest("malformed body", err)
	}
	switch {
	case !req.hasProduct || req.productID == "":
		return req, badRequest("productId is required", nil)
	case !req.hasQuantity:
		return req, badRequest("quantity is required", nil)
	case !req.hasPrice:
		return req, badRequest("unitPrice is required", nil)
	}
	return req, nil
}
