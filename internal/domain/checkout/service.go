package checkout

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/techstore/internal/domain/order"
	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/voucher"
)

// Orders prices carts and places orders. Implemented by *order.Service.
type Orders interface {
	Price(ctx context.Context, items []order.OrderItem) ([]order.OrderItem, []product.Product, decimal.Decimal, error)
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
}

var _ Orders = (*order.Service)(nil)

// View is a session with its discount and total computed for display.
type View struct {
	Session  *Session
	Discount decimal.Decimal
	Total    decimal.Decimal
	// Removed is set when the operation dropped a voucher that no longer
	// qualifies.
	Removed error
}

// Service implements the checkout operations on top of a session Store.
type Service struct {
	store   Store
	catalog voucher.Catalog
	orders  Orders
	ttl     time.Duration
	now     func() time.Time
}

// NewService creates a checkout Service. Sessions expire ttl after their
// last change.
func NewService(store Store, catalog voucher.Catalog, orders Orders, ttl time.Duration) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		orders:  orders,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *Service) view(sess *Session) *View {
	sel := voucher.NewSelection(sess.Voucher)
	discount := sel.CurrentDiscount(sess.Subtotal)
	return &View{
		Session:  sess,
		Discount: discount,
		Total:    voucher.FinalTotal(sess.Subtotal, discount),
	}
}

// maxUpdateAttempts bounds how often update re-reads a session that keeps
// changing under it.
const maxUpdateAttempts = 3

func (s *Service) save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now()
	if err := s.store.Save(ctx, sess, s.ttl); err != nil {
		if errors.Is(err, ErrSessionConflict) || errors.Is(err, ErrSessionNotFound) {
			return err
		}
		return errors.Wrap(err, "save session")
	}
	return nil
}

// update reads session id, lets fn change it and saves the result. When
// another request saved the session in between, the read and fn are
// repeated on the fresh copy. fn reports whether it changed anything; an
// unchanged session is returned without saving. An error from fn is
// returned together with the session as read.
func (s *Service) update(ctx context.Context, id string, fn func(sess *Session) (bool, error)) (*Session, error) {
	for attempt := 1; ; attempt++ {
		sess, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		changed, err := fn(sess)
		if err != nil {
			return sess, err
		}
		if !changed {
			return sess, nil
		}

		err = s.save(ctx, sess)
		switch {
		case err == nil:
			return sess, nil
		case errors.Is(err, ErrSessionConflict) && attempt < maxUpdateAttempts:
			zctx.From(ctx).Debug("Checkout session changed, retrying",
				zap.String("session_id", id),
				zap.Int("attempt", attempt),
			)
			continue
		default:
			return nil, err
		}
	}
}

// Create starts an empty checkout session.
func (s *Service) Create(ctx context.Context) (*View, error) {
	sess := &Session{
		ID:       uuid.New().String(),
		Items:    []order.OrderItem{},
		Subtotal: decimal.Zero,
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// Get returns the current state of a session. A voucher that expired since
// it was applied is dropped and reported in View.Removed.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	var removed error
	sess, err := s.update(ctx, id, func(sess *Session) (bool, error) {
		removed = s.revalidate(ctx, sess)
		return removed != nil, nil
	})
	if err != nil {
		return nil, err
	}
	v := s.view(sess)
	v.Removed = removed
	return v, nil
}

// revalidate re-runs eligibility of the applied voucher against the
// session subtotal and drops it when it no longer qualifies.
func (s *Service) revalidate(ctx context.Context, sess *Session) error {
	sel := voucher.NewSelection(sess.Voucher)
	removed := sel.Revalidate(sess.Subtotal, s.now())
	if removed == nil {
		return nil
	}
	sess.Voucher = nil
	zctx.From(ctx).Info("Voucher removed from checkout",
		zap.String("session_id", sess.ID),
		zap.String("reason", string(voucher.ReasonOf(removed))),
	)
	return removed
}

// SetItems replaces the cart contents, reprices them and re-checks the
// applied voucher against the new subtotal.
func (s *Service) SetItems(ctx context.Context, id string, items []order.OrderItem) (*View, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	priced, _, subtotal, err := s.orders.Price(ctx, items)
	if err != nil {
		return nil, err
	}

	var removed error
	sess, err := s.update(ctx, id, func(sess *Session) (bool, error) {
		sess.Items = slices.Clone(priced)
		sess.Subtotal = subtotal
		removed = s.revalidate(ctx, sess)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	v := s.view(sess)
	v.Removed = removed
	return v, nil
}

// ApplyCode applies code to the session. Rejections are returned as errors
// carrying a voucher.Reason, with the session left unchanged. Eligibility is
// evaluated against the cart as stored when the voucher is saved.
func (s *Service) ApplyCode(ctx context.Context, id, code string) (voucher.Application, *View, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return voucher.Application{}, nil, err
	}

	list, err := s.catalog.List(ctx)
	if err != nil {
		zctx.From(ctx).Warn("Load voucher catalog failed", zap.Error(err))
		return voucher.Application{}, s.view(sess), &voucher.IneligibleError{
			Code:   voucher.CanonicalCode(code),
			Reason: voucher.ReasonCatalogUnavailable,
		}
	}

	var app voucher.Application
	sess, err = s.update(ctx, id, func(sess *Session) (bool, error) {
		sel := voucher.NewSelection(sess.Voucher)
		var err error
		app, err = sel.ApplyCode(code, list, sess.Subtotal, s.now())
		if err != nil {
			return false, err
		}
		sess.Voucher = applied(sel)
		return true, nil
	})
	if err != nil {
		if sess != nil {
			return voucher.Application{}, s.view(sess), err
		}
		return voucher.Application{}, nil, err
	}
	return app, s.view(sess), nil
}

// RemoveVoucher clears the applied voucher. It is a no-op when none is
// applied.
func (s *Service) RemoveVoucher(ctx context.Context, id string) (*View, error) {
	sess, err := s.update(ctx, id, func(sess *Session) (bool, error) {
		if sess.Voucher == nil {
			return false, nil
		}
		sel := voucher.NewSelection(sess.Voucher)
		sel.Remove()
		sess.Voucher = applied(sel)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// PlaceOrder submits the session cart with its voucher. The session is
// deleted once the order exists. When the voucher is rejected at placement
// it is dropped from the session and the rejection returned.
func (s *Service) PlaceOrder(ctx context.Context, id string) (*order.PlaceOrderResult, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	req := order.PlaceOrderRequest{Items: sess.Items}
	if sess.Voucher != nil {
		req.VoucherCode = sess.Voucher.Code
	}

	result, err := s.orders.PlaceOrder(ctx, req)
	if err != nil {
		if voucher.ReasonOf(err) != "" && req.VoucherCode != "" {
			s.dropVoucher(ctx, id, req.VoucherCode)
		}
		return nil, err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		zctx.From(ctx).Warn("Delete checkout session failed",
			zap.String("session_id", id),
			zap.Error(err),
		)
	}
	return result, nil
}

// dropVoucher removes code from the session unless another voucher was
// applied meanwhile.
func (s *Service) dropVoucher(ctx context.Context, id, code string) {
	_, err := s.update(ctx, id, func(sess *Session) (bool, error) {
		if sess.Voucher == nil || sess.Voucher.Code != code {
			return false, nil
		}
		sess.Voucher = nil
		return true, nil
	})
	if err != nil {
		zctx.From(ctx).Warn("Drop rejected voucher failed",
			zap.String("session_id", id),
			zap.Error(err),
		)
	}
}

func applied(sel *voucher.Selection) *voucher.Voucher {
	v, ok := sel.Applied()
	if !ok {
		return nil
	}
	return &v
}
