package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/techstore/internal/catalog"
	"github.com/xenking/techstore/internal/domain/voucher"
)

// readVoucher decodes a voucher body with the same normalization as catalog
// payloads and validates it for storage.
func readVoucher(w http.ResponseWriter, r *http.Request) (voucher.Voucher, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return voucher.Voucher{}, errors.Wrap(err, "read request body")
	}
	v, err := catalog.DecodeOne(body)
	if err != nil {
		return voucher.Voucher{}, errors.Wrap(err, "decode voucher")
	}
	return v, nil
}

func (h *Handler) adminListVouchers(w http.ResponseWriter, r *http.Request) {
	list, err := h.vouchers.List(r.Context())
	if err != nil {
		writeInternal(w, r, errors.Wrap(err, "list vouchers"))
		return
	}
	writeData(w, http.StatusOK, toVoucherDTOs(list))
}

func (h *Handler) adminGetVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := h.vouchers.FindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toVoucherDTO(v))
}

func (h *Handler) adminCreateVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := readVoucher(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v.UsedCount = 0
	if err := v.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.vouchers.Create(r.Context(), &v); err != nil {
		writeAdminError(w, r, err)
		return
	}
	h.written(r, "create", v.Code)
	writeData(w, http.StatusCreated, toVoucherDTO(&v))
}

// adminReplaceVoucher overwrites a voucher. The body code must match the
// path and the usage counter is kept.
func (h *Handler) adminReplaceVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := readVoucher(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if code := voucher.CanonicalCode(chi.URLParam(r, "code")); v.Code != code {
		writeError(w, http.StatusBadRequest, "code does not match path")
		return
	}
	current, err := h.vouchers.FindByCode(r.Context(), v.Code)
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	v.UsedCount = current.UsedCount
	if err := v.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.vouchers.Update(r.Context(), &v); err != nil {
		writeAdminError(w, r, err)
		return
	}
	h.written(r, "update", v.Code)
	writeData(w, http.StatusOK, toVoucherDTO(&v))
}

type setActiveRequest struct {
	IsActive *bool `json:"isActive"`
}

func (h *Handler) adminSetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "isActive is required")
		return
	}

	code := voucher.CanonicalCode(chi.URLParam(r, "code"))
	if err := h.vouchers.SetActive(r.Context(), code, *req.IsActive); err != nil {
		writeAdminError(w, r, err)
		return
	}
	h.written(r, "set_active", code)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminDeleteVoucher(w http.ResponseWriter, r *http.Request) {
	code := voucher.CanonicalCode(chi.URLParam(r, "code"))
	if err := h.vouchers.Delete(r.Context(), code); err != nil {
		writeAdminError(w, r, err)
		return
	}
	h.written(r, "delete", code)
	w.WriteHeader(http.StatusNoContent)
}

// written invalidates the catalog cache and records the change.
func (h *Handler) written(r *http.Request, op, code string) {
	if h.cache != nil {
		h.cache.Invalidate()
	}
	lg := zctx.From(r.Context()).With(zap.String("op", op), zap.String("code", code))
	if key := apiKeyFromContext(r.Context()); key != nil {
		lg = lg.With(zap.String("api_key_id", key.ID))
	}
	lg.Info("Voucher changed")
}

func writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, voucher.ErrCodeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, voucher.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeInternal(w, r, err)
	}
}
