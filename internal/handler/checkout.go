package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/techstore/internal/domain/checkout"
	"github.com/xenking/techstore/internal/domain/voucher"
)

func (h *Handler) createCheckout(w http.ResponseWriter, r *http.Request) {
	v, err := h.checkout.Create(r.Context())
	if err != nil {
		writeInternal(w, r, errors.Wrap(err, "create checkout"))
		return
	}
	writeData(w, http.StatusCreated, toCheckoutView(printer(r), v))
}

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	v, err := h.checkout.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCheckoutView(printer(r), v))
}

type setItemsRequest struct {
	Items []itemDTO `json:"items"`
}

func (h *Handler) setCheckoutItems(w http.ResponseWriter, r *http.Request) {
	var req setItemsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := h.checkout.SetItems(r.Context(), chi.URLParam(r, "id"), fromItemDTOs(req.Items))
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCheckoutView(printer(r), v))
}

type applyCodeRequest struct {
	Code string `json:"code"`
}

// applyCheckoutVoucher applies a typed or picked code to the session.
// Rejections are a 200 outcome carrying the unchanged checkout.
func (h *Handler) applyCheckoutVoucher(w http.ResponseWriter, r *http.Request) {
	var req applyCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	app, v, err := h.checkout.ApplyCode(r.Context(), chi.URLParam(r, "id"), req.Code)
	if err != nil && voucher.ReasonOf(err) == "" {
		writeCheckoutError(w, r, err)
		return
	}
	h.recordApplication(r, err)

	p := printer(r)
	resp := toOutcome(voucher.NewOutcome(p, app, err))
	resp.Checkout = toCheckoutView(p, v)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) removeCheckoutVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := h.checkout.RemoveVoucher(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCheckoutView(printer(r), v))
}

func (h *Handler) placeCheckoutOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.checkout.PlaceOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toOrderDTO(result.Order, result.Products))
}

func writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, checkout.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, checkout.ErrSessionConflict):
		writeError(w, http.StatusConflict, "checkout was changed by another request, reload and retry")
	default:
		writeOrderError(w, r, err)
	}
}
