package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/shopkit/checkout/internal/catalog"
	"github.com/shopkit/checkout/internal/checkout"
)

// quoteResponse is the wire shape of a checkout quote.
type quoteResponse struct {
	Items        []lineJSON `json:"items"`
	Subtotal     float64    `json:"subtotal"`
	DiscountRate float64    `json:"discountRate"`
	Discount     float64    `json:"discount"`
	Surcharge    float64    `json:"surcharge"`
	Total        float64    `json:"total"`
}

func quoteJSON(s *checkout.Session) quoteResponse {
	q := s.Quote()
	return quoteResponse{
		Items:        toLineJSON(s.Items()),
		Subtotal:     q.Subtotal.InexactFloat64(),
		DiscountRate: q.DiscountRate.InexactFloat64(),
		Discount:     q.Discount.InexactFloat64(),
		Surcharge:    q.Surcharge.InexactFloat64(),
		Total:        q.Total.InexactFloat64(),
	}
}

func (h *Handler) getQuote(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Session(r.Context(), identityFrom(r))
	writeJSON(w, r, http.StatusOK, quoteJSON(s))
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s := h.manager.Session(r.Context(), identityFrom(r))
	s.ApplyCoupon(req.Code)
	writeJSON(w, r, http.StatusOK, quoteJSON(s))
}

func (h *Handler) listUpsells(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Session(r.Context(), identityFrom(r))
	offers, err := s.Upsells(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("list upsells", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal", "failed to list offers")
		return
	}
	writeJSON(w, r, http.StatusOK, toProductJSON(offers))
}

func (h *Handler) addUpsell(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.catalog.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "product not found")
			return
		}
		zctx.From(ctx).Error("catalog lookup", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal", "catalog unavailable")
		return
	}

	s := h.manager.Session(ctx, identityFrom(r))
	if err := s.AddUpsell(ctx, *p); err != nil {
		if errors.Is(err, checkout.ErrAlreadyPlaced) {
			writeError(w, r, http.StatusConflict, "already_placed", "order already placed")
			return
		}
		zctx.From(ctx).Error("add upsell", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal", "failed to add offer")
		return
	}
	writeJSON(w, r, http.StatusOK, quoteJSON(s))
}

func (h *Handler) removeOrderItem(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Session(r.Context(), identityFrom(r))
	if err := s.RemoveOrderItem(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, http.StatusConflict, "already_placed", "order already placed")
		return
	}
	writeJSON(w, r, http.StatusOK, quoteJSON(s))
}

type placeOrderResponse struct {
	OrderID string `json:"orderId"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var metadata map[string]string
	if r.ContentLength > 0 && !decodeBody(w, r, &metadata) {
		return
	}

	s := h.manager.Session(ctx, identityFrom(r))
	orderID, err := s.PlaceOrder(ctx, metadata)
	switch {
	case errors.Is(err, checkout.ErrAlreadyPlaced):
		writeError(w, r, http.StatusConflict, "already_placed", "order already placed")
	case errors.Is(err, checkout.ErrEmptyOrder):
		writeError(w, r, http.StatusUnprocessableEntity, "empty_order", "order has no items")
	case err != nil:
		zctx.From(ctx).Error("place order", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal", "failed to place order")
	default:
		writeJSON(w, r, http.StatusCreated, placeOrderResponse{OrderID: orderID})
	}
}
