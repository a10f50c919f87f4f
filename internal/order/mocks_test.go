package order

import (
	"context"
	"sync"
	"time"

	"kopikita-be/internal/product"

	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, o *Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uint) (*Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) GetByExternalID(ctx context.Context, externalID string) (*Order, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Order), args.Error(1)
}

func (m *MockRepository) TransitionStatus(ctx context.Context, id uint, to Status, check func(from Status) error) (*Order, error) {
	args := m.Called(ctx, id, to, check)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]product.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uint]product.Product), args.Error(1)
}

type MockService struct {
	mock.Mock
}

func (m *MockService) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockService) GetOrder(ctx context.Context, id uint) (*Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockService) GetOrderByExternalID(ctx context.Context, externalID string) (*Order, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockService) ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Order), args.Error(1)
}

func (m *MockService) RequestTransition(ctx context.Context, orderID uint, target Status) (*Order, error) {
	args := m.Called(ctx, orderID, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

// --- Fakes ---

type published struct {
	Channel string
	Event   string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, channel, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{Channel: channel, Event: event, Payload: payload})
	return nil
}

func (p *recordingPublisher) on(channel string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

// memRepository keeps orders in memory. Its mutex plays the part of the
// row lock taken by the SQL repository.
type memRepository struct {
	mu     sync.Mutex
	orders map[uint]Order
	writes int
}

func newMemRepository(orders ...Order) *memRepository {
	r := &memRepository{orders: make(map[uint]Order)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *memRepository) Create(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.ID = uint(len(r.orders) + 1)
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	r.orders[o.ID] = *o
	r.writes++
	return nil
}

func (r *memRepository) GetByID(_ context.Context, id uint) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (r *memRepository) GetByExternalID(_ context.Context, externalID string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ExternalID.String() == externalID {
			return &o, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (r *memRepository) List(_ context.Context, _ OrderFilter) ([]*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Order, 0, len(r.orders))
	for _, o := range r.orders {
		o := o
		out = append(out, &o)
	}
	return out, nil
}

func (r *memRepository) TransitionStatus(_ context.Context, id uint, to Status, check func(from Status) error) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if err := check(o.Status); err != nil {
		return nil, err
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	r.orders[id] = o
	r.writes++
	return &o, nil
}

func (r *memRepository) status(id uint) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].Status
}
