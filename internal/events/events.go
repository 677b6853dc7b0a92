// Package events publishes domain events for downstream consumers such as
// fulfilment and voucher analytics.
package events

import (
	"context"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/techstore/internal/domain/order"
)

// TypeOrderPlaced is the event type of EncodeOrderPlaced payloads.
const TypeOrderPlaced = "order.placed"

// EncodeOrderPlaced renders the order.placed payload. Amounts are decimal
// strings so consumers never see float rounding.
func EncodeOrderPlaced(o *order.Order, at time.Time) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.Field("type", func(e *jx.Encoder) { e.Str(TypeOrderPlaced) })
	e.Field("occurred_at", func(e *jx.Encoder) { e.Str(at.UTC().Format(time.RFC3339Nano)) })
	e.Field("order_id", func(e *jx.Encoder) { e.Str(o.ID) })
	e.Field("items", func(e *jx.Encoder) {
		e.ArrStart()
		for _, item := range o.Items {
			e.ObjStart()
			e.Field("product_id", func(e *jx.Encoder) { e.Str(item.ProductID) })
			e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
			e.Field("unit_price", func(e *jx.Encoder) { e.Str(item.UnitPrice.StringFixed(2)) })
			e.ObjEnd()
		}
		e.ArrEnd()
	})
	e.Field("subtotal", func(e *jx.Encoder) { e.Str(o.Subtotal.StringFixed(2)) })
	e.Field("discount", func(e *jx.Encoder) { e.Str(o.Discount.StringFixed(2)) })
	e.Field("total", func(e *jx.Encoder) { e.Str(o.Total.StringFixed(2)) })
	if o.VoucherCode != "" {
		e.Field("voucher_code", func(e *jx.Encoder) { e.Str(o.VoucherCode) })
	}
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}

var _ order.Publisher = Noop{}

// Noop discards events. It is used when no broker is configured.
type Noop struct{}

func (Noop) OrderPlaced(context.Context, *order.Order) error { return nil }
