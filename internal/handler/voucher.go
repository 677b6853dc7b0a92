package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/techstore/internal/domain/voucher"
)

// listVouchers serves the voucher catalog in the storefront envelope.
func (h *Handler) listVouchers(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Warn("Load voucher catalog failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			ErrorReason: string(voucher.ReasonCatalogUnavailable),
			Message:     voucher.Message(printer(r), voucher.ErrCatalogUnavailable),
		})
		return
	}
	writeData(w, http.StatusOK, toVoucherDTOs(list))
}

type applyRequest struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// applyVoucher evaluates a code against a subtotal without touching any
// session. Rejections are reported in the outcome with status 200.
func (h *Handler) applyVoucher(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Subtotal.IsNegative() {
		writeError(w, http.StatusBadRequest, "subtotal must not be negative")
		return
	}

	var (
		app voucher.Application
		err error
	)
	list, listErr := h.catalog.List(r.Context())
	if listErr != nil {
		zctx.From(r.Context()).Warn("Load voucher catalog failed", zap.Error(listErr))
		err = &voucher.IneligibleError{
			Code:   voucher.CanonicalCode(req.Code),
			Reason: voucher.ReasonCatalogUnavailable,
		}
	} else {
		app, err = voucher.NewSelection(nil).ApplyCode(req.Code, list, req.Subtotal, h.now())
	}
	h.recordApplication(r, err)

	writeJSON(w, http.StatusOK, toOutcome(voucher.NewOutcome(printer(r), app, err)))
}
