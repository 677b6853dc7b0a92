package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/techstore/internal/domain/order"
	"github.com/xenking/techstore/internal/domain/voucher"
)

type placeOrderRequest struct {
	Items       []itemDTO `json:"items"`
	VoucherCode string    `json:"voucherCode"`
}

// placeOrder submits a cart directly, without a checkout session.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		Items:       fromItemDTOs(req.Items),
		VoucherCode: req.VoucherCode,
	})
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toOrderDTO(result.Order, result.Products))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toOrderDTO(o, nil))
}

// writeOrderError maps order placement and lookup errors to responses.
func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	if voucher.ReasonOf(err) != "" {
		writeRejection(w, r, err)
		return
	}
	if errors.Is(err, order.ErrEmptyItems) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, order.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var iqErr *order.InvalidQuantityError
	if errors.As(err, &iqErr) {
		writeError(w, http.StatusUnprocessableEntity, iqErr.Error())
		return
	}
	var pnfErr *order.ProductNotFoundError
	if errors.As(err, &pnfErr) {
		writeError(w, http.StatusUnprocessableEntity, pnfErr.Error())
		return
	}

	writeInternal(w, r, err)
}
