// Package api exposes the cart and checkout engine over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/shopkit/checkout/internal/cart"
	"github.com/shopkit/checkout/internal/catalog"
	"github.com/shopkit/checkout/internal/checkout"
	"github.com/shopkit/checkout/internal/identity"
	"github.com/shopkit/checkout/internal/order"
)

// Handler serves the cart, checkout and order endpoints.
type Handler struct {
	manager *checkout.Manager
	catalog catalog.Repository
	orders  order.Store
}

// NewHandler creates a Handler.
func NewHandler(manager *checkout.Manager, cat catalog.Repository, orders order.Store) *Handler {
	return &Handler{
		manager: manager,
		catalog: cat,
		orders:  orders,
	}
}

// Routes builds the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addCartItem)
			r.Put("/items/{id}", h.updateCartItem)
			r.Delete("/items/{id}", h.removeCartItem)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", h.getQuote)
			r.Post("/coupon", h.applyCoupon)
			r.Get("/upsells", h.listUpsells)
			r.Post("/upsells/{id}", h.addUpsell)
			r.Delete("/items/{id}", h.removeOrderItem)
			r.Post("/order", h.placeOrder)
		})
		r.Get("/orders/{id}", h.getOrder)
	})
	return r
}

// identityFrom derives the request principal from headers. Requests without
// identity headers act on the shared guest partition.
func identityFrom(r *http.Request) identity.Identity {
	id := r.Header.Get("X-User-ID")
	email := r.Header.Get("X-User-Email")
	if id == "" && email == "" {
		return identity.Guest()
	}
	return identity.Identity{ID: id, Email: email}
}

// errorResponse is the JSON body for all error statuses.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, errorResponse{Code: code, Message: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "malformed request body")
		return false
	}
	return true
}

// lineJSON is the wire shape of a cart line.
type lineJSON struct {
	ID       string  `json:"id"`
	Title    string  `json:"title,omitempty"`
	Image    string  `json:"image,omitempty"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func toLineJSON(items []cart.Line) []lineJSON {
	out := make([]lineJSON, len(items))
	for i, it := range items {
		out[i] = lineJSON{
			ID:       it.ID,
			Title:    it.Title,
			Image:    it.Image,
			Price:    it.Price.InexactFloat64(),
			Quantity: it.Quantity,
		}
	}
	return out
}

// productJSON is the wire shape of a catalog product.
type productJSON struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image,omitempty"`
}

func toProductJSON(products []catalog.Product) []productJSON {
	out := make([]productJSON, len(products))
	for i, p := range products {
		out[i] = productJSON{
			ID:    p.ID,
			Title: p.Title,
			Price: p.Price.InexactFloat64(),
			Image: p.Image,
		}
	}
	return out
}
