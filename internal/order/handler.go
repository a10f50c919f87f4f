package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"kopikita-be/internal/logger"
	"kopikita-be/internal/middleware"
	"kopikita-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type createOrderRequest struct {
	GuestName   *string                  `json:"guest_name" validate:"omitempty,max=100"`
	TableNumber *string                  `json:"table_number" validate:"omitempty,max=10"`
	Items       []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type createOrderItemRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,gt=0"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type statusResponse struct {
	Value    Status `json:"value"`
	Label    string `json:"label"`
	Color    string `json:"color"`
	Rank     int    `json:"rank"`
	Terminal bool   `json:"terminal"`
}

type orderItemResponse struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	Subtotal    int64  `json:"subtotal"`
}

type orderResponse struct {
	ID          uint                `json:"id"`
	OrderNumber string              `json:"order_number"`
	ExternalID  string              `json:"external_id"`
	UserID      *uint               `json:"user_id,omitempty"`
	GuestName   *string             `json:"guest_name,omitempty"`
	TableNumber *string             `json:"table_number,omitempty"`
	Status      Status              `json:"status"`
	StatusLabel string              `json:"status_label"`
	StatusColor string              `json:"status_color"`
	TotalAmount int64               `json:"total_amount"`
	Items       []orderItemResponse `json:"items,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func toStatusResponse(s Status) statusResponse {
	return statusResponse{
		Value:    s,
		Label:    s.Label(),
		Color:    s.Color(),
		Rank:     s.Rank(),
		Terminal: s.IsTerminal(),
	}
}

func toOrderResponse(o *Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
		})
	}

	return orderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		ExternalID:  o.ExternalID.String(),
		UserID:      o.UserID,
		GuestName:   o.GuestName,
		TableNumber: o.TableNumber,
		Status:      o.Status,
		StatusLabel: o.Status.Label(),
		StatusColor: o.Status.Color(),
		TotalAmount: o.TotalAmount,
		Items:       items,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

type Handler struct {
	svc      Service
	validate *validator.Validate
}

func NewHandler(svc Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	signedIn := middleware.RequireRole(utils.RoleAdmin, utils.RoleCashier, utils.RoleCustomer)
	staff := middleware.RequireRole(utils.RoleAdmin, utils.RoleCashier)

	r.Get("/order-statuses", h.listStatuses)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/track/{externalID}", h.trackOrder)
	r.With(signedIn).Get("/orders", h.listOrders)
	r.With(signedIn).Get("/orders/{id}", h.getOrder)
	r.With(staff).Patch("/orders/{id}/status", h.updateStatus)
}

func (h *Handler) listStatuses(w http.ResponseWriter, r *http.Request) {
	out := make([]statusResponse, 0, len(statusOrder))
	for _, s := range Statuses() {
		out = append(out, toStatusResponse(s))
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	input := CreateOrderInput{
		GuestName:   req.GuestName,
		TableNumber: req.TableNumber,
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, CreateOrderItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	o, err := h.svc.CreateOrder(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) trackOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetOrderByExternalID(r.Context(), chi.URLParam(r, "externalID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := OrderFilter{}

	if raw := q.Get("status"); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.Status = &st
	}
	if n, err := utils.ToUint(q.Get("limit")); err == nil {
		filter.Limit = int(n)
	}
	if n, err := utils.ToUint(q.Get("page")); err == nil {
		filter.Page = int(n)
	}

	orders, err := h.svc.ListOrders(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ToUint(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	o, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ToUint(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.svc.RequestTransition(r.Context(), id, Status(strings.TrimSpace(req.Status)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		utils.WriteJSONError(w, "invalid request payload", http.StatusBadRequest)
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Namespace()] = fe.Tag()
			}
			utils.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":   "validation failed",
				"details": details,
			})
			return false
		}
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps domain errors to HTTP. Rejected transitions carry the
// committed status so the dashboard can put its control back.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var terr *TransitionError
	if errors.As(err, &terr) && !errors.Is(err, ErrOrderNotFound) && !errors.Is(err, ErrInvalidTargetStatus) {
		body := map[string]any{
			"error": terr.Err.Error(),
			"code":  transitionCode(terr.Err),
		}
		if terr.From != "" {
			body["current_status"] = toStatusResponse(terr.From)
		}
		utils.WriteJSON(w, http.StatusConflict, body)
		return
	}

	switch {
	case errors.Is(err, ErrOrderNotFound):
		utils.WriteJSONError(w, ErrOrderNotFound.Error(), http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		utils.WriteJSONError(w, ErrForbidden.Error(), http.StatusForbidden)
	case errors.Is(err, ErrInvalidTargetStatus):
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrEmptyOrder),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrMissingCustomer),
		errors.Is(err, ErrProductUnavailable):
		utils.WriteJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		logger.FromCtx(r.Context()).Error("request failed", zap.Error(err))
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

func transitionCode(err error) string {
	switch {
	case errors.Is(err, ErrTerminalState):
		return "TERMINAL_STATE"
	case errors.Is(err, ErrNonForwardTransition):
		return "NON_FORWARD_TRANSITION"
	}
	return "TRANSITION_REJECTED"
}
