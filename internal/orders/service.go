package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/markato-labs/markato/internal/identity"
	"github.com/markato-labs/markato/internal/platform/httpx"
)

// ErrCannotCancel is returned when an order has already left the
// PENDING state.
var ErrCannotCancel = errors.New("order is no longer pending")

// Notifier delivers a user-facing notification. Implementations queue
// the delivery; failures are logged, never surfaced to the caller.
type Notifier interface {
	Notify(ctx context.Context, userID, kind, message string) error
}

type Service struct {
	repo     Repository
	pricer   Pricer
	notifier Notifier
	logger   *slog.Logger
}

func NewService(logger *slog.Logger, repo Repository, pricer Pricer, notifier Notifier) *Service {
	return &Service{repo: repo, pricer: pricer, notifier: notifier, logger: logger}
}

type ListInput struct {
	Status string
	Page   int
	Limit  int
}

// List returns orders visible to the caller. Customers only ever see
// their own; staff roles see everything.
func (s *Service) List(ctx context.Context, id identity.Identity, in ListInput) (*OrderPage, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 || in.Limit > 100 {
		in.Limit = 10
	}

	filter := OrderFilter{}
	if id.Role == identity.RoleCustomer {
		filter.UserID = id.UserID
	}
	if in.Status != "" {
		status, err := ParseStatus(in.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}

	var (
		list  []Order
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = s.repo.ListOrders(gctx, filter, in.Limit, (in.Page-1)*in.Limit)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.CountOrders(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &OrderPage{Orders: list, Total: total, Page: in.Page, Limit: in.Limit}, nil
}

type ItemInput struct {
	ProductID string
	Quantity  int
}

type CreateInput struct {
	Items           []ItemInput
	ShippingAddress json.RawMessage
}

// Create places a PENDING order priced from the live catalog.
func (s *Service) Create(ctx context.Context, id identity.Identity, in CreateInput) (*Order, error) {
	orderID := uuid.NewString()
	var total float64
	items := make([]Item, 0, len(in.Items))
	for _, item := range in.Items {
		price, err := s.pricer.Price(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		total += price * float64(item.Quantity)
		items = append(items, Item{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     price,
		})
	}

	order := Order{
		ID:              orderID,
		UserID:          id.UserID,
		Status:          StatusPending,
		TotalAmount:     total,
		ShippingAddress: in.ShippingAddress,
		Items:           items,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, id.UserID, "ORDER_CREATED", fmt.Sprintf("Order %s placed", orderID))
	return s.repo.FindOrder(ctx, orderID)
}

// Get enforces ownership for customers only. Staff read freely.
func (s *Service) Get(ctx context.Context, id identity.Identity, orderID string) (*Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if id.Role == identity.RoleCustomer && order.UserID != id.UserID {
		return nil, fmt.Errorf("%w: not your order", httpx.ErrForbidden)
	}
	return order, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id identity.Identity, orderID, rawStatus string) (*Order, error) {
	if err := identity.RequireRoles(id, identity.RoleAdmin, identity.RoleVendor); err != nil {
		return nil, err
	}
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, order.UserID, "ORDER_STATUS", fmt.Sprintf("Order %s is now %s", orderID, status))
	return order, nil
}

// Cancel is customer-only: the owning customer may cancel their own
// PENDING order. Admins are deliberately excluded here.
func (s *Service) Cancel(ctx context.Context, id identity.Identity, orderID string) (*Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if id.Role != identity.RoleCustomer || order.UserID != id.UserID {
		return nil, fmt.Errorf("%w: only the ordering customer may cancel", httpx.ErrForbidden)
	}
	if order.Status != StatusPending {
		return nil, ErrCannotCancel
	}
	cancelled, err := s.repo.UpdateOrderStatus(ctx, orderID, StatusCancelled)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, order.UserID, "ORDER_CANCELLED", fmt.Sprintf("Order %s cancelled", orderID))
	return cancelled, nil
}

func (s *Service) notify(ctx context.Context, userID, kind, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, kind, message); err != nil {
		s.logger.Warn("notification enqueue failed",
			slog.String("user_id", userID),
			slog.String("kind", kind),
			slog.String("error", err.Error()))
	}
}

type ProcessPaymentInput struct {
	OrderID string
	Method  PaymentMethod
	Amount  float64
}

// cents converts a monetary amount to integer cents. Totals
// round-trip through NUMERIC(12,2), so comparisons happen in cents
// rather than raw float64 equality.
func cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// ProcessPayment records a completed payment for an unpaid order and
// marks the order COMPLETED. The paid amount must match the order
// total to the cent.
func (s *Service) ProcessPayment(ctx context.Context, in ProcessPaymentInput) (*Payment, error) {
	order, err := s.repo.FindOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Payment != nil {
		return nil, fmt.Errorf("%w: order already paid", httpx.ErrValidation)
	}
	if cents(order.TotalAmount) != cents(in.Amount) {
		return nil, fmt.Errorf("%w: amount mismatch", httpx.ErrValidation)
	}

	payment := Payment{
		ID:            uuid.NewString(),
		OrderID:       in.OrderID,
		Status:        PaymentCompleted,
		Amount:        in.Amount,
		Method:        in.Method,
		TransactionID: fmt.Sprintf("txn_%s", uuid.NewString()),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}
		_, err := tx.UpdateOrderStatus(ctx, in.OrderID, StatusCompleted)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, order.UserID, "PAYMENT_COMPLETED", fmt.Sprintf("Payment received for order %s", in.OrderID))
	return s.repo.FindPayment(ctx, payment.ID)
}

// GetPayment enforces ownership through the parent order for customers.
func (s *Service) GetPayment(ctx context.Context, id identity.Identity, paymentID string) (*Payment, error) {
	payment, err := s.repo.FindPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if id.Role == identity.RoleCustomer {
		order, err := s.repo.FindOrder(ctx, payment.OrderID)
		if err != nil {
			return nil, err
		}
		if order.UserID != id.UserID {
			return nil, fmt.Errorf("%w: not your payment", httpx.ErrForbidden)
		}
	}
	return payment, nil
}

// RefundPayment is staff-only and reverses a completed payment,
// cancelling the parent order.
func (s *Service) RefundPayment(ctx context.Context, id identity.Identity, paymentID string) (*Payment, error) {
	if err := identity.RequireRoles(id, identity.RoleAdmin, identity.RoleVendor); err != nil {
		return nil, err
	}
	payment, err := s.repo.FindPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != PaymentCompleted {
		return nil, fmt.Errorf("%w: only completed payments can be refunded", httpx.ErrValidation)
	}

	var refunded *Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		var err error
		refunded, err = tx.UpdatePaymentStatus(ctx, paymentID, PaymentRefunded)
		if err != nil {
			return err
		}
		_, err = tx.UpdateOrderStatus(ctx, payment.OrderID, StatusCancelled)
		return err
	})
	if err != nil {
		return nil, err
	}
	return refunded, nil
}
