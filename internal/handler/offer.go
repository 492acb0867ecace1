package handler

import (
	"net/http"
)

// EvaluateOffer prices a single line against a caller supplied basket without
// touching any cart.
func (h *Handler) EvaluateOffer(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeEvaluateRequest(data)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res := h.pricing.Evaluator().Evaluate(req.productID, req.quantity, req.unitPrice, req.basket)
	writeJSON(w, http.StatusOK, encodeResult(res))
}
