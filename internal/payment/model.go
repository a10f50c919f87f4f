package payment

import (
	"strings"

	"kopikita-be/internal/order"
)

// Provider is recorded with every stored callback.
const Provider = "XENDIT"

// CallbackPayload is the body the payment gateway posts once an invoice settles.
type CallbackPayload struct {
	ID         string  `json:"id"`
	ExternalID string  `json:"external_id"`
	Status     string  `json:"status"`
	Amount     float64 `json:"amount"`
	PaidAt     string  `json:"paid_at,omitempty"`
}

// eventID identifies a callback for deduplication. Gateways that omit an id
// get one derived from the reference and status.
func (p CallbackPayload) eventID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.ExternalID + ":" + strings.ToUpper(p.Status)
}

// targetStatus maps a gateway payment status onto an order transition.
func targetStatus(paymentStatus string) (order.Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(paymentStatus)) {
	case "PAID", "SUCCEEDED", "SETTLED":
		return order.StatusProcessing, true
	case "EXPIRED", "FAILED":
		return order.StatusCancelled, true
	}
	return "", false
}
