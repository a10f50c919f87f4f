package order

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Order amounts are whole rupiah.
type Order struct {
	ID          uint
	OrderNumber string
	// ExternalID is the reference handed to the payment gateway.
	ExternalID  uuid.UUID
	UserID      *uint
	GuestName   *string
	TableNumber *string
	Status      Status
	TotalAmount int64
	Items       []OrderItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrderItem struct {
	ID          uint
	OrderID     uint
	ProductID   uint
	ProductName string
	Quantity    int
	UnitPrice   int64
	Subtotal    int64
}

// BelongsTo reports whether the order was placed by the given account.
func (o *Order) BelongsTo(userID uint) bool {
	return o.UserID != nil && *o.UserID == userID
}

func CalculateTotal(items []OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += int64(it.Quantity) * it.UnitPrice
	}
	return total
}

type CreateOrderInput struct {
	GuestName   *string
	TableNumber *string
	Items       []CreateOrderItemInput
}

type CreateOrderItemInput struct {
	ProductID uint
	Quantity  int
}

type OrderFilter struct {
	Status *Status
	UserID *uint
	Limit  int
	Page   int
}

const (
	defaultLimit = 20
	maxLimit     = 100

	// keeps the offset inside a Postgres int4 whatever the limit
	maxPage = math.MaxInt32 / maxLimit
)

// normalize clamps paging to sane bounds and returns the offset.
func (f *OrderFilter) normalize() int {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Page > maxPage {
		f.Page = maxPage
	}
	return (f.Page - 1) * f.Limit
}
