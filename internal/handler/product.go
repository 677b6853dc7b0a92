package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/techstore/internal/domain/product"
)

// listProducts returns the catalog, filtered by the optional q parameter.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeInternal(w, r, errors.Wrap(err, "list products"))
		return
	}
	if q := r.URL.Query().Get("q"); q != "" {
		products = product.Search(products, q)
	}
	writeData(w, http.StatusOK, toProductDTOs(products))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeInternal(w, r, errors.Wrap(err, "get product"))
		return
	}
	writeData(w, http.StatusOK, toProductDTO(p))
}
