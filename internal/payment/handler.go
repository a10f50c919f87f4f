package payment

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"kopikita-be/internal/logger"
	"kopikita-be/internal/metrics"
	"kopikita-be/internal/order"
	"kopikita-be/internal/utils"

	"go.uber.org/zap"
)

const maxCallbackBody = 1 << 20

// WebhookHandler turns gateway callbacks into order transitions. Payment
// success moves an order to processing, expiry or failure cancels it.
type WebhookHandler struct {
	orders        order.Service
	repo          Repository
	callbackToken string
	stats         *metrics.Registry
}

func NewWebhookHandler(orders order.Service, repo Repository, callbackToken string, stats *metrics.Registry) *WebhookHandler {
	return &WebhookHandler{
		orders:        orders,
		repo:          repo,
		callbackToken: callbackToken,
		stats:         stats,
	}
}

// verifyToken skips the check when no token is configured (local development).
func (h *WebhookHandler) verifyToken(r *http.Request) bool {
	if h.callbackToken == "" {
		return true
	}
	got := r.Header.Get("x-callback-token")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackToken)) == 1
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer h.stats.Observe(metrics.WebhookDuration, metrics.StartTimer())

	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("handler", "payment_webhook"))

	if !h.verifyToken(r) {
		log.Warn("invalid callback token")
		utils.WriteJSONError(w, "invalid callback token", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if payload.ExternalID == "" || payload.Status == "" {
		utils.WriteJSONError(w, "external_id and status are required", http.StatusBadRequest)
		return
	}

	log = log.With(
		zap.String("external_id", payload.ExternalID),
		zap.String("payment_status", payload.Status),
	)

	target, ok := targetStatus(payload.Status)
	if !ok {
		log.Info("payment status ignored")
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	webhookID, done, err := h.repo.SaveWebhook(ctx, Provider, payload.eventID(), payload.Status,
		payload.ExternalID, body, true)
	if err != nil {
		log.Error("failed to store webhook", zap.Error(err))
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if done {
		log.Info("duplicate webhook", zap.Int64("webhook_id", webhookID))
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	o, err := h.orders.GetOrderByExternalID(ctx, payload.ExternalID)
	if err != nil {
		h.fail(log, r, webhookID, err.Error())
		if errors.Is(err, order.ErrOrderNotFound) {
			utils.WriteJSONError(w, order.ErrOrderNotFound.Error(), http.StatusNotFound)
			return
		}
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if target == order.StatusProcessing && int64(math.Round(payload.Amount)) != o.TotalAmount {
		reason := fmt.Sprintf("amount mismatch: paid %.0f, order total %d", payload.Amount, o.TotalAmount)
		log.Warn("payment amount mismatch", zap.Float64("paid", payload.Amount), zap.Int64("total", o.TotalAmount))
		h.fail(log, r, webhookID, reason)
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
		return
	}

	if _, err := h.orders.RequestTransition(ctx, o.ID, target); err != nil {
		var terr *order.TransitionError
		if errors.As(err, &terr) {
			// late or repeated callback for an order that already moved on
			log.Info("transition rejected", zap.Uint("order_id", o.ID), zap.Error(err))
			h.processed(log, r, webhookID)
			utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		log.Error("failed to apply payment", zap.Uint("order_id", o.ID), zap.Error(err))
		h.fail(log, r, webhookID, err.Error())
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.processed(log, r, webhookID)
	h.stats.Counter(metrics.WebhooksProcessed).Inc()
	log.Info("payment applied", zap.Uint("order_id", o.ID), zap.String("status", string(target)))
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) processed(log *zap.Logger, r *http.Request, id int64) {
	if err := h.repo.MarkWebhookProcessed(r.Context(), id); err != nil {
		log.Error("failed to mark webhook processed", zap.Int64("webhook_id", id), zap.Error(err))
	}
}

func (h *WebhookHandler) fail(log *zap.Logger, r *http.Request, id int64, reason string) {
	if err := h.repo.MarkWebhookFailed(r.Context(), id, reason); err != nil {
		log.Error("failed to mark webhook failed", zap.Int64("webhook_id", id), zap.Error(err))
	}
}
