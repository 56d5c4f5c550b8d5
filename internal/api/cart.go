package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/shopkit/checkout/internal/cart"
)

// cartResponse is the wire shape of the cart state.
type cartResponse struct {
	Items []lineJSON `json:"items"`
	Count int        `json:"count"`
}

func (h *Handler) cartJSON(s *cart.Store) cartResponse {
	return cartResponse{
		Items: toLineJSON(s.Items()),
		Count: s.Count(),
	}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Cart(r.Context(), identityFrom(r))
	writeJSON(w, r, http.StatusOK, h.cartJSON(s))
}

type addItemRequest struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Image    string  `json:"image"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "invalid_item", "item id required")
		return
	}

	s := h.manager.Cart(r.Context(), identityFrom(r))
	s.AddItem(r.Context(), cart.Line{
		ID:    req.ID,
		Title: req.Title,
		Image: req.Image,
		Price: decimal.NewFromFloat(req.Price),
	}, req.Quantity)
	writeJSON(w, r, http.StatusOK, h.cartJSON(s))
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity < 1 {
		writeError(w, r, http.StatusUnprocessableEntity, "invalid_quantity", "quantity must be at least 1")
		return
	}

	s := h.manager.Cart(r.Context(), identityFrom(r))
	s.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	writeJSON(w, r, http.StatusOK, h.cartJSON(s))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Cart(r.Context(), identityFrom(r))
	s.RemoveItem(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, r, http.StatusOK, h.cartJSON(s))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	s := h.manager.Cart(r.Context(), id)
	s.Clear(r.Context(), id)
	writeJSON(w, r, http.StatusOK, h.cartJSON(s))
}
