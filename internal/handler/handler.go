// Package handler exposes products, carts and offer evaluation over a JSON
// HTTP API.
package handler

import (
	"net/http"
	"regexp"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/basket"
	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/pkg/httpmiddleware"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to product image paths. Empty keeps them as
	// stored.
	ImageBaseURL string
}

// Handler serves the /api routes.
type Handler struct {
	products     product.Repository
	carts        *cart.Manager
	pricing      *basket.Service
	imageBaseURL string
	newID        func() string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	carts *cart.Manager,
	pricing *basket.Service,
) *Handler {
	return &Handler{
		products:     products,
		carts:        carts,
		pricing:      pricing,
		imageBaseURL: cfg.ImageBaseURL,
		newID:        uuid.NewString,
	}
}

// Register mounts the API on r under /api.
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{productID}", h.GetProduct).Methods(http.MethodGet)

	api.HandleFunc("/carts", h.CreateCart).Methods(http.MethodPost)
	api.HandleFunc("/carts/{cartID}", h.GetCart).Methods(http.MethodGet)
	api.HandleFunc("/carts/{cartID}", h.ClearCart).Methods(http.MethodDelete)
	api.HandleFunc("/carts/{cartID}/items/{productID}", h.SetItem).Methods(http.MethodPut)
	api.HandleFunc("/carts/{cartID}/items/{productID}/increase", h.IncreaseItem).Methods(http.MethodPost)
	api.HandleFunc("/carts/{cartID}/items/{productID}/decrease", h.DecreaseItem).Methods(http.MethodPost)

	api.HandleFunc("/offers/evaluate", h.EvaluateOffer).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// badRequestError is reported to clients as 400 with its message.
type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &badRequestError{msg: msg, err: err}
}

var cartIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func cartIDFrom(r *http.Request) (string, error) {
	id := mux.Vars(r)["cartID"]
	if !cartIDPattern.MatchString(id) {
		return "", badRequest("invalid cart id", nil)
	}
	return id, nil
}

// writeError maps err to a status code and writes the error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var bre *badRequestError
	switch {
	case errors.As(err, &bre):
		httpmiddleware.WriteError(w, http.StatusBadRequest, bre.Error())
	case errors.Is(err, product.ErrNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, "product not found")
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
