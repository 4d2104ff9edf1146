package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"ramen-orders/internal/config"
	"ramen-orders/internal/kafka"
	"ramen-orders/internal/logger"
	"ramen-orders/internal/models"
	"ramen-orders/internal/payment/storage"
	"ramen-orders/internal/status"
	"ramen-orders/internal/utils"
)

// OrderService is the slice of the order service the webhook needs.
type OrderService interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ApplyTransition(ctx context.Context, orderID string, target status.OrderStatus, note, changedBy string) (*models.Order, error)
}

// PaymentMarker flips the payment status on the order row.
type PaymentMarker interface {
	SetPaymentStatus(ctx context.Context, id string, ps models.PaymentStatus) error
}

type StripeHandler struct {
	cfg          config.StripeConfig
	topics       config.TopicConfig
	paymentStore storage.Store
	producer     *kafka.Producer
	orderService OrderService
	marker       PaymentMarker
	logger       *logger.Logger
}

func NewStripeHandler(cfg config.StripeConfig, topics config.TopicConfig, paymentStore storage.Store, producer *kafka.Producer, orderService OrderService, marker PaymentMarker, log *logger.Logger) *StripeHandler {
	return &StripeHandler{
		cfg:          cfg,
		topics:       topics,
		paymentStore: paymentStore,
		producer:     producer,
		orderService: orderService,
		marker:       marker,
		logger:       log,
	}
}

// Routes returns a gin engine serving the Stripe webhook; main mounts it
// under /api/payments.
func (h *StripeHandler) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/webhook", h.HandleWebhook)
	return r
}

// HandleWebhook verifies the Stripe signature and settles the order:
// completed sessions confirm the PENDING order, failed or expired ones mark
// the payment FAILED and leave the order for staff follow-up.
func (h *StripeHandler) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 65536))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid payload", err.Error()))
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.cfg.WebhookSecret)
	if err != nil {
		h.logger.Error("PAYMENT", fmt.Sprintf("Webhook signature verification failed: %v", err))
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid signature", err.Error()))
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCompleted(c, event)
	case "checkout.session.expired", "payment_intent.payment_failed":
		h.handleFailed(c, event)
	default:
		h.logger.Debug("PAYMENT", fmt.Sprintf("Ignoring webhook event type: %s", event.Type))
		c.JSON(http.StatusOK, utils.SuccessResponse("Event ignored", nil))
	}
}

func (h *StripeHandler) handleCompleted(c *gin.Context, event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Malformed session payload", err.Error()))
		return
	}
	orderID := sess.ClientReferenceID
	if orderID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Missing client reference", "no order id on session"))
		return
	}

	ctx := c.Request.Context()
	order, err := h.orderService.GetOrder(ctx, orderID)
	if err != nil {
		h.logger.Error("PAYMENT", fmt.Sprintf("Webhook for unknown order %s: %v", orderID, err))
		c.JSON(http.StatusNotFound, utils.ErrorResponse("Order not found", orderID))
		return
	}

	if err := h.marker.SetPaymentStatus(ctx, orderID, models.PaymentPaid); err != nil {
		h.logger.Error("PAYMENT", fmt.Sprintf("Failed to mark order %s paid: %v", order.OrderNumber, err))
	}
	h.recordPayment(order, models.PaymentPaid, sess.ID)

	// Payment capture is what moves PENDING to CONFIRMED.
	if _, err := h.orderService.ApplyTransition(ctx, orderID, status.Confirmed, "Payment captured", "stripe-webhook"); err != nil {
		h.logger.Error("PAYMENT", fmt.Sprintf("Failed to confirm order %s after payment: %v", order.OrderNumber, err))
	}

	h.publish(h.topics.PaymentSucceeded, order, sess.ID)
	c.JSON(http.StatusOK, utils.SuccessResponse("Payment processed", nil))
}

func (h *StripeHandler) handleFailed(c *gin.Context, event stripe.Event) {
	var orderID, ref string

	// Intent-level events carry a PaymentIntent, not a CheckoutSession, and
	// a PaymentIntent has no client reference; the order id is resolved
	// from the metadata set at session creation.
	switch event.Type {
	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Malformed payment intent payload", err.Error()))
			return
		}
		orderID = intent.Metadata["order_id"]
		ref = intent.ID
	default:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Malformed session payload", err.Error()))
			return
		}
		orderID = sess.ClientReferenceID
		if orderID == "" {
			orderID = sess.Metadata["order_id"]
		}
		ref = sess.ID
	}

	if orderID == "" {
		h.logger.Warn("PAYMENT", fmt.Sprintf("Failed-payment event %s carries no order id", event.Type))
		c.JSON(http.StatusOK, utils.SuccessResponse("No order attached", nil))
		return
	}

	ctx := c.Request.Context()
	if err := h.marker.SetPaymentStatus(ctx, orderID, models.PaymentFailed); err != nil {
		h.logger.Error("PAYMENT", fmt.Sprintf("Failed to mark order %s payment failed: %v", orderID, err))
	}
	if order, err := h.orderService.GetOrder(ctx, orderID); err == nil {
		h.recordPayment(order, models.PaymentFailed, ref)
		h.publish(h.topics.PaymentFailed, order, ref)
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment failure recorded", nil))
}

func (h *StripeHandler) recordPayment(order *models.Order, ps models.PaymentStatus, sessionID string) {
	if h.paymentStore == nil {
		return
	}
	existing, err := h.paymentStore.GetPaymentByOrderID(order.OrderID)
	if err == nil && existing != nil {
		if err := h.paymentStore.UpdatePaymentStatus(order.OrderID, ps, sessionID); err != nil {
			h.logger.Error("PAYMENT", fmt.Sprintf("Failed to update payment row for %s: %v", order.OrderNumber, err))
		}
		return
	}
	p := storage.Payment{
		PaymentID:     uuid.NewString(),
		OrderID:       order.OrderID,
		Status:        ps,
		Amount:        order.Total,
		StripeSession: sessionID,
		CreatedAt:     time.Now(),
	}
	if err := h.paymentStore.CreatePayment(p); err != nil {
		h.logger.Error("PAYMENT", fmt.Sprintf("Failed to insert payment row for %s: %v", order.OrderNumber, err))
	}
}

func (h *StripeHandler) publish(topic string, order *models.Order, sessionID string) {
	if h.producer == nil {
		return
	}
	if err := h.producer.PublishOrderEvent(topic, "payment", order); err != nil {
		h.logger.Error("KAFKA", fmt.Sprintf("Failed to publish payment event for %s (session %s): %v", order.OrderNumber, sessionID, err))
	}
}
