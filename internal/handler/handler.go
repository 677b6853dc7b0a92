// Package handler implements the storefront HTTP API on a chi router.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/text/message"

	"github.com/xenking/techstore/internal/domain/auth"
	"github.com/xenking/techstore/internal/domain/checkout"
	"github.com/xenking/techstore/internal/domain/order"
	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/voucher"
)

// maxBodyBytes limits request bodies.
const maxBodyBytes = 1 << 20

// Invalidator drops cached catalog data after a write.
type Invalidator interface {
	Invalidate()
}

// Deps holds the domain dependencies of the Handler.
type Deps struct {
	// Catalog serves the voucher list for browsing and stateless apply.
	Catalog voucher.Catalog
	// Vouchers is the admin store. Cache is invalidated after every write.
	Vouchers voucher.Repository
	Cache    Invalidator
	Products product.Repository
	Orders   *order.Service
	Checkout *checkout.Service
	Auth     *auth.Authenticator
	// Meter records voucher application outcomes. Optional.
	Meter metric.Meter
}

// Handler serves the HTTP API.
type Handler struct {
	catalog  voucher.Catalog
	vouchers voucher.Repository
	cache    Invalidator
	products product.Repository
	orders   *order.Service
	checkout *checkout.Service
	auth     *auth.Authenticator

	applications metric.Int64Counter
	now          func() time.Time
}

// New creates a Handler.
func New(deps Deps) (*Handler, error) {
	meter := deps.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("techstore")
	}
	applications, err := meter.Int64Counter("voucher.applications",
		metric.WithDescription("Voucher apply attempts by outcome reason"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create counter")
	}

	return &Handler{
		catalog:      deps.Catalog,
		vouchers:     deps.Vouchers,
		cache:        deps.Cache,
		products:     deps.Products,
		orders:       deps.Orders,
		checkout:     deps.Checkout,
		auth:         deps.Auth,
		applications: applications,
		now:          time.Now,
	}, nil
}

func (h *Handler) recordApplication(r *http.Request, err error) {
	reason := "APPLIED"
	if err != nil {
		reason = string(voucher.ReasonOf(err))
	}
	h.applications.Add(r.Context(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// printer negotiates the response language from Accept-Language.
func printer(r *http.Request) *message.Printer {
	return voucher.NewPrinter(r.Header.Get("Accept-Language"))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dataResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

// writeRejection renders a voucher rejected at order placement.
func writeRejection(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		ErrorReason: string(voucher.ReasonOf(err)),
		Message:     voucher.Message(printer(r), err),
	})
}

func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
