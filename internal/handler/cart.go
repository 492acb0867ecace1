package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/gorilla/mux"

	"github.com/xenking/kart-pricing/internal/domain/cart"
)

// CreateCart allocates a new cart id. The cart itself is created lazily on
// first mutation.
func (h *Handler) CreateCart(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(h.newID()) })
	})
	writeJSON(w, http.StatusCreated, e.Bytes())
}

// GetCart returns the cart items and its priced bill.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := cartIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCart(w, r, cartID, h.carts.Get(r.Context(), cartID))
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := cartIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCart(w, r, cartID, h.carts.Clear(r.Context(), cartID))
}

// SetItem sets the quantity of a product from {"quantity": n}. A quantity of
// 0 or less removes the line.
func (h *Handler) SetItem(w http.ResponseWriter, r *http.Request) {
	cartID, productID, data, err := h.itemRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	qty, ok, err := decodeIntField(data, "quantity")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, badRequest("quantity is required", nil))
		return
	}
	// Removing a line never needs the catalog, so stale ids can be dropped.
	if qty > 0 {
		if err := h.requireProduct(r.Context(), productID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	h.respondCart(w, r, cartID, h.carts.SetQuantity(r.Context(), cartID, productID, qty))
}

// IncreaseItem adds {"by": n} units, 1 by default.
func (h *Handler) IncreaseItem(w http.ResponseWriter, r *http.Request) {
	cartID, productID, by, err := h.stepRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.requireProduct(r.Context(), productID); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCart(w, r, cartID, h.carts.Increase(r.Context(), cartID, productID, by))
}

// DecreaseItem removes {"by": n} units, 1 by default. The line disappears
// once its quantity reaches 0.
func (h *Handler) DecreaseItem(w http.ResponseWriter, r *http.Request) {
	cartID, productID, by, err := h.stepRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCart(w, r, cartID, h.carts.Decrease(r.Context(), cartID, productID, by))
}

func (h *Handler) itemRequest(r *http.Request) (cartID, productID string, body []byte, err error) {
	if cartID, err = cartIDFrom(r); err != nil {
		return "", "", nil, err
	}
	productID = mux.Vars(r)["productID"]
	if body, err = readBody(r); err != nil {
		return "", "", nil, err
	}
	return cartID, productID, body, nil
}

func (h *Handler) stepRequest(r *http.Request) (cartID, productID string, by int, err error) {
	cartID, productID, data, err := h.itemRequest(r)
	if err != nil {
		return "", "", 0, err
	}
	by, ok, err := decodeIntField(data, "by")
	switch {
	case err != nil:
		return "", "", 0, err
	case !ok:
		by = 1
	case by <= 0:
		return "", "", 0, badRequest("by must be greater than 0", nil)
	}
	return cartID, productID, by, nil
}

func (h *Handler) requireProduct(ctx context.Context, productID string) error {
	if _, err := h.products.GetByID(ctx, productID); err != nil {
		return errors.Wrapf(err, "product %q", productID)
	}
	return nil
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, cartID string, st cart.State) {
	b, err := h.pricing.Price(r.Context(), st)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "price cart"))
		return
	}
	writeJSON(w, http.StatusOK, encodeCart(cartID, st, b))
}
