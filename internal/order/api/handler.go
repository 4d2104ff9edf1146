package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ramen-orders/internal/analytics"
	"ramen-orders/internal/auth"
	"ramen-orders/internal/logger"
	"ramen-orders/internal/models"
	"ramen-orders/internal/order"
	"ramen-orders/internal/order/db"
	rediscart "ramen-orders/internal/order/redis"
	"ramen-orders/internal/receipt"
	"ramen-orders/internal/status"
	"ramen-orders/internal/utils"
)

type Handler struct {
	OrderService *order.OrderService
	Analytics    *analytics.Service
	Receipts     *receipt.Generator
	Carts        *rediscart.CartStore
	Logger       *logger.Logger
}

// RegisterAdminRoutes mounts the staff-facing routes. The caller wraps the
// group in the OIDC middleware.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/stats", h.GetStats)
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/bulk", h.BulkTransition)
			r.Post("/verify-pickup", h.VerifyPickupPass)
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", h.GetOrderDetail)
				r.Patch("/", h.UpdateStatus)
				r.Delete("/", h.DeleteOrder)
				r.Get("/notes", h.GetNotes)
				r.Post("/notes", h.AddNote)
				r.Get("/receipt", h.GetReceipt)
				r.Put("/driver", h.AssignDriver)
				r.Delete("/driver", h.UnassignDriver)
				r.Post("/driver/location", h.UpdateDriverLocation)
			})
		})
	})
}

func sendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// statusCodeFor maps service sentinel errors onto HTTP status codes.
func statusCodeFor(err error) int {
	switch {
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrAlreadyTerminal),
		errors.Is(err, order.ErrValidation),
		errors.Is(err, order.ErrInvalidPromo):
		return http.StatusUnprocessableEntity
	case errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrAlreadyReviewed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func sendError(w http.ResponseWriter, err error, message string) {
	sendJSON(w, statusCodeFor(err), utils.ErrorResponse(message, err.Error()))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.ListFilter{
		Status:         status.OrderStatus(q.Get("status")),
		OrderType:      status.OrderType(q.Get("orderType")),
		Search:         q.Get("search"),
		IncludeDeleted: q.Get("includeDeleted") == "true",
	}

	orders, err := h.OrderService.ListOrders(r.Context(), filter)
	if err != nil {
		sendError(w, err, "Could not list orders")
		return
	}
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Orders retrieved", orders))
}

func (h *Handler) GetOrderDetail(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	ord, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		sendError(w, err, "Order not found")
		return
	}
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Order retrieved", ord))
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req struct {
		Status string `json:"status"`
		Note   string `json:"note,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	ord, err := h.OrderService.ApplyTransition(r.Context(), orderID, status.OrderStatus(req.Status), req.Note, auth.StaffID(r.Context()))
	if err != nil {
		sendError(w, err, "Could not update status")
		return
	}
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Status updated", ord))
}

func (h *Handler) BulkTransition(w http.ResponseWriter, r *http.Request) {
	var req models.BulkTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if len(req.OrderIDs) == 0 {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("No orders selected", "orderIds is empty"))
		return
	}

	result := h.OrderService.BulkApplyTransition(r.Context(), req.OrderIDs, status.OrderStatus(req.Status), auth.StaffID(r.Context()))

	// 207 when the batch partially failed, so the dashboard can surface both
	// sides of the split.
	code := http.StatusOK
	if len(result.Failed) > 0 {
		code = http.StatusMultiStatus
	}
	sendJSON(w, code, utils.SuccessResponse("Bulk transition processed", result))
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	permanent := r.URL.Query().Get("permanent") == "true"

	if err := h.OrderService.CancelOrder(r.Context(), orderID, permanent, auth.StaffID(r.Context())); err != nil {
		sendError(w, err, "Could not delete order")
		return
	}
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Order deleted", map[string]interface{}{
		"orderId":   orderID,
		"permanent": permanent,
	}))
}

func (h *Handler) GetNotes(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	notes, err := h.OrderService.GetNotes(r.Context(), orderID)
	if err != nil {
		sendError(w, err, "Could not load notes")
		return
	}
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Notes retrieved", notes))
}

func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	note, err := h.OrderService.AddNote(r.Context(), orderID, req.Content, auth.StaffID(r.Context()))
	if err != nil {
		sendError(w, err, "Could not add note")
		return
	}
	sendJSON(w, http.StatusCreated, utils.SuccessResponse("Note added", note))
}

// VerifyPickupPass decodes the payload the counter scanner read off a
// customer's QR and returns the pass details for the staff screen.
func (h *Handler) VerifyPickupPass(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.Payload == "" {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("No payload scanned", "payload is empty"))
		return
	}

	pass, err := h.OrderService.VerifyPickupPass(req.Payload)
	if err != nil {
		sendError(w, err, "Could not verify pickup pass")
		return
	}
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Pickup pass verified", pass))
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Analytics.GetDashboardStats(r.Context())
	if err != nil {
		sendError(w, err, "Could not compute stats")
		return
	}
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Stats retrieved", stats))
}

func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	ord, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		sendError(w, err, "Order not found")
		return
	}

	var qrPNG []byte
	if !ord.IsDelivery() {
		qrPNG, _ = h.OrderService.PickupQR(ord)
	}

	pdf, err := h.Receipts.Generate(ord, qrPNG)
	if err != nil {
		h.Logger.Error("HTTP", fmt.Sprintf("Receipt generation for %s failed: %v", ord.OrderNumber, err))
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not generate receipt", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", ord.OrderNumber))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (h *Handler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	ord, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		sendError(w, err, "Order not found")
		return
	}
	if !ord.IsDelivery() {
		sendJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Pickup orders have no driver", orderID))
		return
	}

	var driver models.Driver
	if err := json.NewDecoder(r.Body).Decode(&driver); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if driver.Name == "" {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Driver name is required", ""))
		return
	}

	h.OrderService.Drivers.Assign(orderID, driver)
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Driver assigned", driver))
}

func (h *Handler) UnassignDriver(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.OrderService.Drivers.Unassign(orderID)
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Driver unassigned", nil))
}

func (h *Handler) UpdateDriverLocation(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var loc models.DriverLocation
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	h.OrderService.Drivers.UpdateLocation(orderID, loc)
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Location updated", loc))
}
