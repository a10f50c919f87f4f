package order

import (
	"context"
	"fmt"
	"time"

	"kopikita-be/internal/utils"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusUpdated = "OrderStatusUpdated"
)

// CashierChannel is seen by every cashier dashboard.
const CashierChannel = "cashier.orders"

// CustomerChannel is the private channel of one customer account.
func CustomerChannel(userID uint) string {
	return fmt.Sprintf("customer.%d", userID)
}

// Publisher delivers events onto the real-time transport.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

type StatusUpdatedEvent struct {
	OrderID     uint      `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	NewStatus   Status    `json:"new_status"`
	StatusLabel string    `json:"status_label"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type OrderCreatedEvent struct {
	OrderID     uint               `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	CustomerRef string             `json:"customer"`
	TableNumber *string            `json:"table_number,omitempty"`
	Status      Status             `json:"status"`
	StatusLabel string             `json:"status_label"`
	TotalAmount int64              `json:"total_amount"`
	Items       []OrderCreatedItem `json:"items"`
	CreatedAt   time.Time          `json:"created_at"`
}

type OrderCreatedItem struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

func newStatusUpdatedEvent(o *Order) StatusUpdatedEvent {
	return StatusUpdatedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		NewStatus:   o.Status,
		StatusLabel: o.Status.Label(),
		UpdatedAt:   o.UpdatedAt,
	}
}

func newOrderCreatedEvent(o *Order) OrderCreatedEvent {
	items := make([]OrderCreatedItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderCreatedItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	customer := utils.PtrString(o.GuestName)
	if customer == "" && o.UserID != nil {
		customer = fmt.Sprintf("user:%d", *o.UserID)
	}

	return OrderCreatedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerRef: customer,
		TableNumber: o.TableNumber,
		Status:      o.Status,
		StatusLabel: o.Status.Label(),
		TotalAmount: o.TotalAmount,
		Items:       items,
		CreatedAt:   o.CreatedAt,
	}
}
