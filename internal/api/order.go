package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/shopkit/checkout/internal/order"
)

// orderResponse is the wire shape of an order confirmation.
type orderResponse struct {
	ID       string            `json:"id"`
	Items    []lineJSON        `json:"items"`
	Total    float64           `json:"total"`
	Status   string            `json:"status"`
	Date     time.Time         `json:"date"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.orders.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "order not found")
			return
		}
		zctx.From(ctx).Error("get order", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal", "failed to load order")
		return
	}

	writeJSON(w, r, http.StatusOK, orderResponse{
		ID:       rec.ID,
		Items:    toLineJSON(rec.Items),
		Total:    rec.Total.InexactFloat64(),
		Status:   rec.Status,
		Date:     rec.SubmittedAt,
		Metadata: rec.Metadata,
	})
}
