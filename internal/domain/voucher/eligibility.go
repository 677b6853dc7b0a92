package voucher

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Reason identifies why a voucher could not be applied.
type Reason string

const (
	ReasonCodeNotFound       Reason = "CODE_NOT_FOUND"
	ReasonInactive           Reason = "INACTIVE"
	ReasonUsageLimitReached  Reason = "USAGE_LIMIT_REACHED"
	ReasonExpired            Reason = "EXPIRED"
	ReasonNotYetStarted      Reason = "NOT_YET_STARTED"
	ReasonBelowMinimum       Reason = "BELOW_MINIMUM"
	ReasonCatalogUnavailable Reason = "CATALOG_UNAVAILABLE"
)

var (
	// ErrCodeNotFound is returned when a code matches no catalog entry.
	ErrCodeNotFound = errors.New("voucher code not found")
	// ErrInactive is returned for administratively disabled vouchers.
	ErrInactive = errors.New("voucher is inactive")
	// ErrUsageLimitReached is returned when all redemptions are used up.
	ErrUsageLimitReached = errors.New("voucher usage limit reached")
	// ErrExpired is returned at or after the voucher end date.
	ErrExpired = errors.New("voucher expired")
	// ErrNotYetStarted is returned before the voucher start date.
	ErrNotYetStarted = errors.New("voucher not yet started")
	// ErrBelowMinimum is returned when the subtotal is under the minimum order value.
	ErrBelowMinimum = errors.New("minimum order value not met")
	// ErrCatalogUnavailable is returned when the catalog could not be loaded.
	ErrCatalogUnavailable = errors.New("voucher catalog unavailable")
)

var reasonErrors = map[Reason]error{
	ReasonCodeNotFound:       ErrCodeNotFound,
	ReasonInactive:           ErrInactive,
	ReasonUsageLimitReached:  ErrUsageLimitReached,
	ReasonExpired:            ErrExpired,
	ReasonNotYetStarted:      ErrNotYetStarted,
	ReasonBelowMinimum:       ErrBelowMinimum,
	ReasonCatalogUnavailable: ErrCatalogUnavailable,
}

// IneligibleError reports the reason a voucher was rejected. Shortfall is set
// for ReasonBelowMinimum only.
type IneligibleError struct {
	Code      string
	Reason    Reason
	Shortfall decimal.Decimal
}

func (e *IneligibleError) Error() string {
	msg := reasonErrors[e.Reason].Error()
	if e.Reason == ReasonBelowMinimum {
		msg = fmt.Sprintf("%s: short by %s", msg, e.Shortfall.String())
	}
	if e.Code == "" {
		return msg
	}
	return fmt.Sprintf("voucher %s: %s", e.Code, msg)
}

// Unwrap exposes the sentinel error for the reason.
func (e *IneligibleError) Unwrap() error {
	return reasonErrors[e.Reason]
}

// ReasonOf extracts the rejection reason from err. It returns "" when err
// carries none.
func ReasonOf(err error) Reason {
	var ie *IneligibleError
	if errors.As(err, &ie) {
		return ie.Reason
	}
	for reason, sentinel := range reasonErrors {
		if errors.Is(err, sentinel) {
			return reason
		}
	}
	return ""
}

func ineligible(v *Voucher, reason Reason) *IneligibleError {
	return &IneligibleError{Code: v.Code, Reason: reason}
}

// Evaluate decides whether v may be applied to subtotal at now. It returns nil
// when the voucher is eligible, or an *IneligibleError for the first failing
// check in this order: inactive, usage limit, expiry, start date, minimum
// order value.
func Evaluate(v *Voucher, subtotal decimal.Decimal, now time.Time) error {
	if !v.IsActive {
		return ineligible(v, ReasonInactive)
	}
	if v.UsedCount >= v.UsageLimit {
		return ineligible(v, ReasonUsageLimitReached)
	}
	if !now.Before(v.EndDate) {
		return ineligible(v, ReasonExpired)
	}
	if v.StartDate != nil && now.Before(*v.StartDate) {
		return ineligible(v, ReasonNotYetStarted)
	}
	if subtotal.LessThan(v.MinOrderValue) {
		err := ineligible(v, ReasonBelowMinimum)
		err.Shortfall = v.MinOrderValue.Sub(subtotal)
		return err
	}
	return nil
}
