package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"kopikita-be/internal/logger"
	"kopikita-be/internal/metrics"
	"kopikita-be/internal/product"
	"kopikita-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error)
	GetOrder(ctx context.Context, id uint) (*Order, error)
	GetOrderByExternalID(ctx context.Context, externalID string) (*Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, error)

	// RequestTransition is the only way an order's status changes.
	RequestTransition(ctx context.Context, orderID uint, target Status) (*Order, error)
}

type service struct {
	repo      Repository
	products  product.Repository
	publisher Publisher
	stats     *metrics.Registry
	locks     *stripedLock
}

func NewService(repo Repository, products product.Repository, publisher Publisher, stats *metrics.Registry) Service {
	return &service{
		repo:      repo,
		products:  products,
		publisher: publisher,
		stats:     stats,
		locks:     &stripedLock{},
	}
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrder"),
		zap.Int("item_count", len(input.Items)),
	)

	if len(input.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	o := &Order{
		OrderNumber: utils.GenerateOrderNumber(),
		ExternalID:  uuid.New(),
		Status:      StatusPending,
		TableNumber: trimmed(input.TableNumber),
	}

	guest := trimmed(input.GuestName)
	userID, signedIn := utils.GetUserIDFromContext(ctx)
	switch {
	case signedIn && utils.IsStaff(ctx) && guest != nil:
		// counter order taken by staff on behalf of a walk-in customer
		o.GuestName = guest
		log = log.With(zap.String("placed_by", utils.GetUserNameFromContext(ctx)))
	case signedIn:
		o.UserID = &userID
	case guest != nil:
		o.GuestName = guest
	default:
		return nil, ErrMissingCustomer
	}

	ids := make([]uint, 0, len(input.Items))
	for _, it := range input.Items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		ids = append(ids, it.ProductID)
	}

	catalog, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		log.Error("failed to load product prices", zap.Error(err))
		return nil, err
	}

	// Prices are captured now; later menu changes never touch this order.
	for _, it := range input.Items {
		p, ok := catalog[it.ProductID]
		if !ok || !p.IsAvailable {
			log.Warn("product unavailable", zap.Uint("product_id", it.ProductID))
			return nil, fmt.Errorf("%w: %d", ErrProductUnavailable, it.ProductID)
		}
		o.Items = append(o.Items, OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    it.Quantity,
			UnitPrice:   p.Price,
			Subtotal:    int64(it.Quantity) * p.Price,
		})
	}
	o.TotalAmount = CalculateTotal(o.Items)

	if err := s.repo.Create(ctx, o); err != nil {
		log.Error("failed to create order", zap.Error(err))
		return nil, err
	}

	s.stats.Counter(metrics.OrdersCreated).Inc()
	log.Info("order created",
		zap.Uint("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.Int64("total_amount", o.TotalAmount),
	)

	s.publish(ctx, CashierChannel, EventOrderCreated, newOrderCreatedEvent(o))

	return o, nil
}

func (s *service) GetOrder(ctx context.Context, id uint) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if utils.IsStaff(ctx) {
		return o, nil
	}
	if userID, ok := utils.GetUserIDFromContext(ctx); ok && o.BelongsTo(userID) {
		return o, nil
	}
	return nil, ErrForbidden
}

// GetOrderByExternalID is used by guests tracking their order and by payment callbacks;
// the external reference is unguessable so no ownership check applies.
func (s *service) GetOrderByExternalID(ctx context.Context, externalID string) (*Order, error) {
	if _, err := uuid.Parse(externalID); err != nil {
		return nil, ErrOrderNotFound
	}
	return s.repo.GetByExternalID(ctx, externalID)
}

func (s *service) ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	if !utils.IsStaff(ctx) {
		userID, ok := utils.GetUserIDFromContext(ctx)
		if !ok {
			return nil, ErrForbidden
		}
		filter.UserID = &userID
	}
	return s.repo.List(ctx, filter)
}

func (s *service) RequestTransition(ctx context.Context, orderID uint, target Status) (*Order, error) {
	defer s.stats.Observe(metrics.TransitionDuration, metrics.StartTimer())

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RequestTransition"),
		zap.Uint("order_id", orderID),
		zap.String("target", string(target)),
	)

	if !target.Valid() {
		return nil, s.reject(log, &TransitionError{OrderID: orderID, To: target, Err: ErrInvalidTargetStatus})
	}

	// Held until the event is out so events of one order leave in commit order.
	unlock := s.locks.lock(orderID)
	defer unlock()

	var from Status
	updated, err := s.repo.TransitionStatus(ctx, orderID, target, func(current Status) error {
		from = current
		return CheckTransition(current, target)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound),
			errors.Is(err, ErrTerminalState),
			errors.Is(err, ErrNonForwardTransition),
			errors.Is(err, ErrInvalidTargetStatus):
			return nil, s.reject(log, &TransitionError{OrderID: orderID, From: from, To: target, Err: err})
		}
		log.Error("failed to persist status transition", zap.Error(err))
		return nil, fmt.Errorf("transition order %d: %w", orderID, err)
	}

	s.stats.Counter(metrics.TransitionsAccepted).Inc()
	log.Info("order status changed",
		zap.String("from", string(from)),
		zap.String("to", string(updated.Status)),
	)

	event := newStatusUpdatedEvent(updated)
	s.publish(ctx, CashierChannel, EventOrderStatusUpdated, event)
	if updated.UserID != nil {
		s.publish(ctx, CustomerChannel(*updated.UserID), EventOrderStatusUpdated, event)
	}

	return updated, nil
}

func (s *service) reject(log *zap.Logger, err *TransitionError) error {
	s.stats.Counter(metrics.TransitionsRejected).Inc()
	log.Info("status transition rejected",
		zap.String("from", string(err.From)),
		zap.Error(err.Err),
	)
	return err
}

// publish never fails the caller: the state change is already committed.
func (s *service) publish(ctx context.Context, channel, event string, payload any) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(context.WithoutCancel(ctx), channel, event, payload); err != nil {
		s.stats.Counter(metrics.EventsPublishFailed).Inc()
		logger.FromCtx(ctx).Warn("event publish failed",
			zap.String("channel", channel),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}
	s.stats.Counter(metrics.EventsPublished).Inc()
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return utils.StrPtr(v)
}

type stripedLock struct {
	mus [64]sync.Mutex
}

func (l *stripedLock) lock(id uint) func() {
	m := &l.mus[id%uint(len(l.mus))]
	m.Lock()
	return m.Unlock
}
