package handler

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/message"

	"github.com/xenking/techstore/internal/domain/checkout"
	"github.com/xenking/techstore/internal/domain/order"
	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/voucher"
)

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Message     string `json:"message"`
}

// num renders an exact decimal as a JSON number.
func num(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

type voucherDTO struct {
	Code          string      `json:"code"`
	Description   string      `json:"description"`
	DiscountType  string      `json:"discountType"`
	DiscountValue json.Number `json:"discountValue"`
	MaxDiscount   json.Number `json:"maxDiscount"`
	MinOrderValue json.Number `json:"minOrderValue"`
	StartDate     *time.Time  `json:"startDate,omitempty"`
	EndDate       time.Time   `json:"endDate"`
	UsageLimit    int         `json:"usageLimit"`
	UsedCount     int         `json:"usedCount"`
	IsActive      bool        `json:"isActive"`
}

func toVoucherDTO(v *voucher.Voucher) *voucherDTO {
	if v == nil {
		return nil
	}
	return &voucherDTO{
		Code:          v.Code,
		Description:   v.Description,
		DiscountType:  string(v.DiscountType),
		DiscountValue: num(v.DiscountValue),
		MaxDiscount:   num(v.MaxDiscount),
		MinOrderValue: num(v.MinOrderValue),
		StartDate:     v.StartDate,
		EndDate:       v.EndDate,
		UsageLimit:    v.UsageLimit,
		UsedCount:     v.UsedCount,
		IsActive:      v.IsActive,
	}
}

func toVoucherDTOs(list []voucher.Voucher) []*voucherDTO {
	out := make([]*voucherDTO, len(list))
	for i := range list {
		out[i] = toVoucherDTO(&list[i])
	}
	return out
}

type outcomeResponse struct {
	Success        bool          `json:"success"`
	Voucher        *voucherDTO   `json:"voucher"`
	DiscountAmount json.Number   `json:"discountAmount"`
	ErrorReason    string        `json:"errorReason,omitempty"`
	Message        string        `json:"message"`
	Checkout       *checkoutView `json:"checkout,omitempty"`
}

func toOutcome(o voucher.Outcome) outcomeResponse {
	return outcomeResponse{
		Success:        o.Success,
		Voucher:        toVoucherDTO(o.Voucher),
		DiscountAmount: num(o.DiscountAmount),
		ErrorReason:    string(o.ErrorReason),
		Message:        o.Message,
	}
}

type itemDTO struct {
	ProductID string       `json:"productId"`
	Quantity  int          `json:"quantity"`
	UnitPrice *json.Number `json:"unitPrice,omitempty"`
}

func toItemDTOs(items []order.OrderItem) []itemDTO {
	out := make([]itemDTO, len(items))
	for i, it := range items {
		price := num(it.UnitPrice)
		out[i] = itemDTO{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: &price}
	}
	return out
}

func fromItemDTOs(items []itemDTO) []order.OrderItem {
	out := make([]order.OrderItem, len(items))
	for i, it := range items {
		out[i] = order.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}

type removedDTO struct {
	ErrorReason string `json:"errorReason"`
	Message     string `json:"message"`
}

type checkoutView struct {
	ID             string      `json:"id"`
	Items          []itemDTO   `json:"items"`
	Subtotal       json.Number `json:"subtotal"`
	Voucher        *voucherDTO `json:"voucher"`
	Discount       json.Number `json:"discount"`
	Total          json.Number `json:"total"`
	RemovedVoucher *removedDTO `json:"removedVoucher,omitempty"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

func toCheckoutView(p *message.Printer, v *checkout.View) *checkoutView {
	out := &checkoutView{
		ID:        v.Session.ID,
		Items:     toItemDTOs(v.Session.Items),
		Subtotal:  num(v.Session.Subtotal),
		Voucher:   toVoucherDTO(v.Session.Voucher),
		Discount:  num(v.Discount),
		Total:     num(v.Total),
		UpdatedAt: v.Session.UpdatedAt,
	}
	if v.Removed != nil {
		out.RemovedVoucher = &removedDTO{
			ErrorReason: string(voucher.ReasonOf(v.Removed)),
			Message:     voucher.Message(p, v.Removed),
		}
	}
	return out
}

type productDTO struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Brand       string      `json:"brand"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	ImageURL    string      `json:"imageUrl"`
}

func toProductDTO(p *product.Product) productDTO {
	return productDTO{
		ID:          p.ID,
		Name:        p.Name,
		Brand:       p.Brand,
		Category:    p.Category,
		Description: p.Description,
		Price:       num(p.Price),
		ImageURL:    p.ImageURL,
	}
}

func toProductDTOs(list []product.Product) []productDTO {
	out := make([]productDTO, len(list))
	for i := range list {
		out[i] = toProductDTO(&list[i])
	}
	return out
}

type orderDTO struct {
	ID          string       `json:"id"`
	Items       []itemDTO    `json:"items"`
	Subtotal    json.Number  `json:"subtotal"`
	Discount    json.Number  `json:"discount"`
	Total       json.Number  `json:"total"`
	VoucherCode string       `json:"voucherCode,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	Products    []productDTO `json:"products,omitempty"`
}

func toOrderDTO(o *order.Order, products []product.Product) orderDTO {
	out := orderDTO{
		ID:          o.ID,
		Items:       toItemDTOs(o.Items),
		Subtotal:    num(o.Subtotal),
		Discount:    num(o.Discount),
		Total:       num(o.Total),
		VoucherCode: o.VoucherCode,
		CreatedAt:   o.CreatedAt,
	}
	if len(products) > 0 {
		out.Products = toProductDTOs(products)
	}
	return out
}
