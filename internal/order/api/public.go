package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ramen-orders/internal/models"
	"ramen-orders/internal/utils"
)

// RegisterPublicRoutes mounts the customer-facing routes. No auth; order
// lookups require the order id or the number+phone pair.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.Checkout)
		r.Get("/tracking", h.GetTracking)
		r.Route("/{orderId}/feedback", func(r chi.Router) {
			r.Get("/", h.GetFeedback)
			r.Post("/", h.SubmitFeedback)
		})
	})
	r.Post("/promo-codes", h.ValidatePromo)
	r.Route("/carts", func(r chi.Router) {
		r.Post("/", h.CaptureCart)
		r.Get("/unsubscribe", h.UnsubscribeCart)
	})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	resp, err := h.OrderService.PlaceOrder(r.Context(), req)
	if err != nil {
		sendError(w, err, "Could not place order")
		return
	}
	sendJSON(w, http.StatusCreated, utils.SuccessResponse("Order placed", resp))
}

// GetTracking resolves an order either by id or by number+phone, then
// projects the tracking view.
func (h *Handler) GetTracking(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		ord *models.Order
		err error
	)
	switch {
	case q.Get("orderId") != "":
		ord, err = h.OrderService.GetOrder(r.Context(), q.Get("orderId"))
	case q.Get("orderNumber") != "" && q.Get("phone") != "":
		ord, err = h.OrderService.GetOrderByNumber(r.Context(), q.Get("orderNumber"), q.Get("phone"))
	default:
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Missing lookup parameters", "provide orderId or orderNumber and phone"))
		return
	}
	if err != nil {
		sendError(w, err, "Order not found")
		return
	}

	sendJSON(w, http.StatusOK, utils.SuccessResponse("Tracking retrieved", h.OrderService.GetTracking(ord)))
}

func (h *Handler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	resp, err := h.OrderService.GetFeedback(r.Context(), orderID)
	if err != nil {
		sendError(w, err, "Could not load feedback")
		return
	}
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Feedback retrieved", resp))
}

func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req models.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	resp, err := h.OrderService.SubmitFeedback(r.Context(), orderID, req)
	if err != nil {
		// Duplicate feedback still returns the alreadyReviewed flag and the
		// existing review so the page can render it.
		if resp != nil && resp.AlreadyReviewed {
			out := utils.ErrorResponse("Feedback already submitted", err.Error())
			out.Data = resp
			sendJSON(w, http.StatusConflict, out)
			return
		}
		sendError(w, err, "Could not submit feedback")
		return
	}
	sendJSON(w, http.StatusCreated, utils.SuccessResponse("Feedback submitted", resp))
}

func (h *Handler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req models.PromoValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.Code == "" {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Promo code cannot be empty", ""))
		return
	}

	resp, err := h.OrderService.ValidatePromo(r.Context(), req.Code, req.OrderTotal)
	if err != nil {
		sendError(w, err, "Promo code rejected")
		return
	}
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Promo code valid", resp))
}

// CaptureCart stores a pre-checkout snapshot so an abandoned cart can get a
// reminder email once the hold expires.
func (h *Handler) CaptureCart(w http.ResponseWriter, r *http.Request) {
	var cart models.Cart
	if err := json.NewDecoder(r.Body).Decode(&cart); err != nil {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if cart.Email == "" {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Email is required", ""))
		return
	}
	if cart.CartID == "" {
		cart.CartID = utils.GenerateCartID()
	}
	cart.CreatedAt = time.Now()

	if err := h.Carts.Capture(r.Context(), cart); err != nil {
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not capture cart", err.Error()))
		return
	}
	sendJSON(w, http.StatusCreated, utils.SuccessResponse("Cart captured", map[string]string{"cartId": cart.CartID}))
}

func (h *Handler) UnsubscribeCart(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("Email is required", ""))
		return
	}

	if err := h.Carts.Unsubscribe(r.Context(), email); err != nil {
		sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not unsubscribe", err.Error()))
		return
	}
	sendJSON(w, http.StatusOK, utils.SuccessResponse("Unsubscribed from cart reminders", nil))
}
