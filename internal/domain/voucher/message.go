package voucher

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Languages lists the languages rejection messages are available in. The
// first entry is the fallback.
var Languages = []language.Tag{language.English, language.Vietnamese}

var matcher = language.NewMatcher(Languages)

const (
	msgCodeNotFound       = "Voucher code %s does not exist"
	msgInactive           = "Voucher %s is no longer available"
	msgUsageLimitReached  = "Voucher %s has been fully redeemed"
	msgExpired            = "Voucher %s has expired"
	msgNotYetStarted      = "Voucher %s is not active yet"
	msgBelowMinimum       = "Minimum order value not met, short by %v"
	msgCatalogUnavailable = "Vouchers are temporarily unavailable"
	msgApplied            = "Voucher %s applied, you save %v"
)

func init() {
	vi := map[string]string{
		msgCodeNotFound:       "Mã giảm giá %s không tồn tại",
		msgInactive:           "Mã giảm giá %s đã ngừng áp dụng",
		msgUsageLimitReached:  "Mã giảm giá %s đã hết lượt sử dụng",
		msgExpired:            "Mã giảm giá %s đã hết hạn",
		msgNotYetStarted:      "Mã giảm giá %s chưa đến thời gian áp dụng",
		msgBelowMinimum:       "Đơn hàng chưa đạt giá trị tối thiểu, còn thiếu %v",
		msgCatalogUnavailable: "Không thể tải danh sách mã giảm giá",
		msgApplied:            "Đã áp dụng mã %s, bạn được giảm %v",
	}
	for key, msg := range vi {
		if err := message.SetString(language.Vietnamese, key, msg); err != nil {
			panic(err)
		}
	}
}

// NewPrinter returns a printer for the best supported match of an
// Accept-Language header value.
func NewPrinter(acceptLanguage string) *message.Printer {
	_, idx := language.MatchStrings(matcher, acceptLanguage)
	return message.NewPrinter(Languages[idx])
}

// Message renders a user-facing explanation for a rejection error.
func Message(p *message.Printer, err error) string {
	var ie *IneligibleError
	if !errors.As(err, &ie) {
		ie = &IneligibleError{Reason: ReasonOf(err)}
	}

	switch ie.Reason {
	case ReasonCodeNotFound:
		return p.Sprintf(msgCodeNotFound, ie.Code)
	case ReasonInactive:
		return p.Sprintf(msgInactive, ie.Code)
	case ReasonUsageLimitReached:
		return p.Sprintf(msgUsageLimitReached, ie.Code)
	case ReasonExpired:
		return p.Sprintf(msgExpired, ie.Code)
	case ReasonNotYetStarted:
		return p.Sprintf(msgNotYetStarted, ie.Code)
	case ReasonBelowMinimum:
		return p.Sprintf(msgBelowMinimum, amount(ie.Shortfall))
	case ReasonCatalogUnavailable:
		return p.Sprintf(msgCatalogUnavailable)
	default:
		return err.Error()
	}
}

func amount(d decimal.Decimal) number.Formatter {
	return number.Decimal(d.InexactFloat64())
}

// Outcome is the apply result handed to the checkout page.
type Outcome struct {
	Success        bool
	Voucher        *Voucher
	DiscountAmount decimal.Decimal
	ErrorReason    Reason
	Message        string
}

// NewOutcome builds the Outcome for an apply call. err must be nil or a
// rejection error.
func NewOutcome(p *message.Printer, app Application, err error) Outcome {
	if err != nil {
		return Outcome{
			ErrorReason: ReasonOf(err),
			Message:     Message(p, err),
		}
	}
	v := app.Voucher
	return Outcome{
		Success:        true,
		Voucher:        &v,
		DiscountAmount: app.Discount,
		Message:        p.Sprintf(msgApplied, v.Code, amount(app.Discount)),
	}
}
