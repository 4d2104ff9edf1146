package order

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ramen-orders/internal/config"
	"ramen-orders/internal/logger"
	"ramen-orders/internal/models"
	"ramen-orders/internal/notify"
	"ramen-orders/internal/order/db"
	"ramen-orders/internal/qr"
	"ramen-orders/internal/status"
	"ramen-orders/internal/tracking"
	"ramen-orders/internal/utils"
)

// DBLayer is the persistence port consumed by the service; implemented by
// the bun repository and by mocks in tests.
type DBLayer interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem, initial models.StatusHistoryEntry) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber, phone string) (*models.Order, error)
	ListOrders(ctx context.Context, filter db.ListFilter) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, expected, target status.OrderStatus) (int64, error)
	MarkDeleted(ctx context.Context, id string) error
	PermanentDelete(ctx context.Context, id string) error
	SetPaymentStatus(ctx context.Context, id string, ps models.PaymentStatus) error
	SetFeedbackRequested(ctx context.Context, id string, at time.Time) error
	AppendHistory(ctx context.Context, entry models.StatusHistoryEntry) error
	AddNote(ctx context.Context, note models.OrderNote) error
	GetNotes(ctx context.Context, orderID string) ([]models.OrderNote, error)
	GetPromoByCode(ctx context.Context, code string) (*models.PromoCode, error)
	GetReviewByOrder(ctx context.Context, orderID string) (*models.Review, error)
	CreateReview(ctx context.Context, review models.Review) error
}

// CartReleaser releases a captured cart once checkout succeeds.
type CartReleaser interface {
	Release(ctx context.Context, cartID string) error
}

// KafkaPublisher streams lifecycle events; failures are logged, never
// propagated.
type KafkaPublisher interface {
	PublishOrderEvent(topic, eventType string, order *models.Order) error
}

type OrderService struct {
	DB       DBLayer
	Carts    CartReleaser
	Kafka    KafkaPublisher
	Notifier notify.Notifier
	Drivers  *DriverRoster
	QR       *qr.Generator
	Checkout config.CheckoutConfig
	Topics   config.TopicConfig
	Logger   *logger.Logger

	// CreatePaymentURL is set when Stripe is configured; nil means all
	// orders confirm without off-site payment.
	CreatePaymentURL func(ctx context.Context, order *models.Order) (string, error)
}

func NewOrderService(db DBLayer, carts CartReleaser, kafka KafkaPublisher, notifier notify.Notifier, drivers *DriverRoster, qrGen *qr.Generator, checkout config.CheckoutConfig, topics config.TopicConfig, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:       db,
		Carts:    carts,
		Kafka:    kafka,
		Notifier: notifier,
		Drivers:  drivers,
		QR:       qrGen,
		Checkout: checkout,
		Topics:   topics,
		Logger:   log,
	}
}

// ---------------- TRANSITIONS ----------------

// ApplyTransition validates and applies a single status transition, appends
// the history row and fires notifications. Re-applying the current status is
// a no-op success.
func (s *OrderService) ApplyTransition(ctx context.Context, orderID string, target status.OrderStatus, note, changedBy string) (*models.Order, error) {
	if !status.Valid(target) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}

	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	if order.Status == target {
		// Idempotent re-apply: acknowledge without a duplicate history row.
		return order, nil
	}
	if status.IsTerminal(order.Status) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyTerminal, order.Status)
	}
	if !status.CanTransition(order.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
	}
	// The fulfilment branch is fixed by order type: pickup orders never go
	// out for delivery and vice versa.
	if target == status.OutForDelivery && !order.IsDelivery() {
		return nil, fmt.Errorf("%w: pickup order cannot go out for delivery", ErrInvalidTransition)
	}
	if target == status.PickedUp && order.IsDelivery() {
		return nil, fmt.Errorf("%w: delivery order cannot be picked up", ErrInvalidTransition)
	}

	rows, err := s.DB.UpdateOrderStatus(ctx, orderID, order.Status, target)
	if err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: %s", ErrConflict, orderID)
	}

	entry := models.StatusHistoryEntry{
		EntryID:   uuid.NewString(),
		OrderID:   orderID,
		Status:    target,
		Note:      note,
		ChangedBy: changedBy,
		CreatedAt: time.Now(),
	}
	if err := s.DB.AppendHistory(ctx, entry); err != nil {
		// The transition already committed; the audit gap is logged, not
		// rolled back.
		s.Logger.Error("ORDER", fmt.Sprintf("Failed to append history for %s: %v", order.OrderNumber, err))
	}

	order.Status = target
	order.History = append(order.History, entry)

	s.Logger.LogOrder("TRANSITION", order.OrderNumber, fmt.Sprintf("-> %s", target))
	s.notifyTransition(order)
	s.publishEvent(s.Topics.OrderStatus, "order.status", order)

	return order, nil
}

// BulkApplyTransition applies the single-order operation independently per
// id. Partial failure is expected; one bad id never aborts the batch.
func (s *OrderService) BulkApplyTransition(ctx context.Context, orderIDs []string, target status.OrderStatus, changedBy string) models.BulkTransitionResult {
	result := models.BulkTransitionResult{
		Succeeded: []string{},
		Failed:    map[string]string{},
	}
	for _, id := range orderIDs {
		if _, err := s.ApplyTransition(ctx, id, target, "", changedBy); err != nil {
			result.Failed[id] = err.Error()
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// CancelOrder soft-cancels by default: status CANCELLED plus the archive
// marker, reversible via REFUNDED. Permanent deletion is a separate,
// irreversible path and not a status transition.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string, permanent bool, changedBy string) error {
	if permanent {
		order, err := s.DB.GetOrderByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrNotFound, orderID)
			}
			return fmt.Errorf("failed to load order %s: %w", orderID, err)
		}
		if err := s.DB.PermanentDelete(ctx, orderID); err != nil {
			return fmt.Errorf("failed to permanently delete order %s: %w", orderID, err)
		}
		s.Logger.LogOrder("DELETE", order.OrderNumber, "permanently deleted with all child records")
		s.publishEvent(s.Topics.OrderCancelled, "order.deleted", order)
		return nil
	}

	order, err := s.ApplyTransition(ctx, orderID, status.Cancelled, "", changedBy)
	if err != nil {
		return err
	}
	if err := s.DB.MarkDeleted(ctx, orderID); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("Failed to set archive marker for %s: %v", order.OrderNumber, err))
	}
	s.publishEvent(s.Topics.OrderCancelled, "order.cancelled", order)
	return nil
}

// ---------------- CHECKOUT ----------------

func (s *OrderService) PlaceOrder(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	orderType := status.OrderType(strings.ToUpper(req.OrderType))
	if err := validateCheckout(req, orderType); err != nil {
		return nil, err
	}

	subtotal := 0.0
	items := make([]models.OrderItem, 0, len(req.Items))
	orderID := uuid.NewString()
	for _, ci := range req.Items {
		item := models.OrderItem{
			ItemID:              uuid.NewString(),
			OrderID:             orderID,
			Name:                ci.Name,
			Quantity:            ci.Quantity,
			UnitPrice:           ci.UnitPrice,
			Toppings:            ci.Toppings,
			BrothRichness:       ci.BrothRichness,
			NoodleFirmness:      ci.NoodleFirmness,
			SpiceLevel:          ci.SpiceLevel,
			SpecialInstructions: ci.SpecialInstructions,
		}
		subtotal += item.LineTotal()
		items = append(items, item)
	}
	subtotal = utils.Round2(subtotal)

	discount := 0.0
	freeDelivery := false
	promoCode := ""
	if req.PromoCode != "" {
		validation, err := s.ValidatePromo(ctx, req.PromoCode, subtotal)
		if err != nil {
			return nil, err
		}
		discount = validation.DiscountAmount
		freeDelivery = validation.PromoCode.FreeDelivery
		promoCode = validation.PromoCode.Code
	}

	deliveryFee := 0.0
	if orderType == status.Delivery && !freeDelivery {
		deliveryFee = s.Checkout.DeliveryFee
	}
	tax := utils.Round2((subtotal - discount) * s.Checkout.TaxRate)
	total := utils.Round2(subtotal + deliveryFee + tax - discount)

	now := time.Now()
	order := &models.Order{
		OrderID:       orderID,
		OrderNumber:   utils.GenerateOrderNumber(),
		Status:        status.Pending,
		PaymentStatus: models.PaymentPending,
		OrderType:     orderType,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Subtotal:      subtotal,
		DeliveryFee:   deliveryFee,
		Discount:      discount,
		Tax:           tax,
		Total:         total,
		PromoCode:     promoCode,
		Notes:         req.Notes,
		ScheduledAt:   req.ScheduledAt,
		CreatedAt:     now,
	}
	if orderType == status.Delivery {
		order.AddressStreet = &req.Street
		order.AddressCity = &req.City
		order.AddressPostalCode = &req.PostalCode
	}

	initial := models.StatusHistoryEntry{
		EntryID:   uuid.NewString(),
		OrderID:   orderID,
		Status:    status.Pending,
		Note:      "Order placed",
		CreatedAt: now,
	}
	if err := s.DB.CreateOrder(ctx, order, items, initial); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	order.Items = items
	order.History = []models.StatusHistoryEntry{initial}

	s.Logger.LogOrder("CREATED", order.OrderNumber, fmt.Sprintf("%s order, total %.2f", orderType, total))

	if req.CartID != "" && s.Carts != nil {
		if err := s.Carts.Release(ctx, req.CartID); err != nil {
			s.Logger.Warn("CART", fmt.Sprintf("Failed to release cart %s: %v", req.CartID, err))
		}
	}
	s.publishEvent(s.Topics.OrderCreated, "order.created", order)

	if req.PaymentMethod == "card" && s.CreatePaymentURL != nil {
		url, err := s.CreatePaymentURL(ctx, order)
		if err != nil {
			return nil, fmt.Errorf("failed to create payment session: %w", err)
		}
		return &models.CheckoutResponse{PaymentURL: url}, nil
	}

	return &models.CheckoutResponse{Order: order}, nil
}

func validateCheckout(req models.CheckoutRequest, orderType status.OrderType) error {
	if orderType != status.Delivery && orderType != status.Pickup {
		return fmt.Errorf("%w: order_type must be DELIVERY or PICKUP", ErrValidation)
	}
	if req.CustomerName == "" || req.CustomerEmail == "" || req.CustomerPhone == "" {
		return fmt.Errorf("%w: customer name, email and phone are required", ErrValidation)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %q quantity must be at least 1", ErrValidation, item.Name)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: item %q price cannot be negative", ErrValidation, item.Name)
		}
		if item.SpiceLevel < 0 || item.SpiceLevel > 3 {
			return fmt.Errorf("%w: item %q spice level must be 0-3", ErrValidation, item.Name)
		}
	}
	if orderType == status.Delivery && (req.Street == "" || req.City == "" || req.PostalCode == "") {
		return fmt.Errorf("%w: delivery orders require street, city and postal code", ErrValidation)
	}
	return nil
}

// ---------------- PROMO ----------------

func (s *OrderService) ValidatePromo(ctx context.Context, code string, orderTotal float64) (*models.PromoValidationResponse, error) {
	promo, err := s.DB.GetPromoByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: code %q not found", ErrInvalidPromo, code)
		}
		return nil, fmt.Errorf("failed to look up promo code: %w", err)
	}
	if !promo.Active {
		return nil, fmt.Errorf("%w: code is no longer active", ErrInvalidPromo)
	}
	if promo.ExpiresAt != nil && time.Now().After(*promo.ExpiresAt) {
		return nil, fmt.Errorf("%w: code has expired", ErrInvalidPromo)
	}
	if orderTotal < promo.MinOrderTotal {
		return nil, fmt.Errorf("%w: order minimum of %.2f not met", ErrInvalidPromo, promo.MinOrderTotal)
	}

	return &models.PromoValidationResponse{
		PromoCode:      *promo,
		DiscountAmount: utils.Round2(promo.DiscountFor(orderTotal)),
	}, nil
}

// ---------------- NOTES & FEEDBACK ----------------

func (s *OrderService) AddNote(ctx context.Context, orderID, content, author string) (*models.OrderNote, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: note content cannot be empty", ErrValidation)
	}
	if _, err := s.DB.GetOrderByID(ctx, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
		}
		return nil, err
	}
	note := models.OrderNote{
		NoteID:    uuid.NewString(),
		OrderID:   orderID,
		Content:   content,
		Author:    author,
		CreatedAt: time.Now(),
	}
	if err := s.DB.AddNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to add note: %w", err)
	}
	return &note, nil
}

func (s *OrderService) GetFeedback(ctx context.Context, orderID string) (*models.FeedbackResponse, error) {
	review, err := s.DB.GetReviewByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.FeedbackResponse{AlreadyReviewed: false}, nil
		}
		return nil, err
	}
	return &models.FeedbackResponse{Review: review, AlreadyReviewed: true}, nil
}

func (s *OrderService) SubmitFeedback(ctx context.Context, orderID string, req models.FeedbackRequest) (*models.FeedbackResponse, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be 1-5", ErrValidation)
	}
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
		}
		return nil, err
	}
	if order.Status != status.Delivered && order.Status != status.PickedUp {
		return nil, fmt.Errorf("%w: feedback is only accepted after the order is completed", ErrValidation)
	}
	if existing, err := s.DB.GetReviewByOrder(ctx, orderID); err == nil && existing != nil {
		return &models.FeedbackResponse{Review: existing, AlreadyReviewed: true}, ErrAlreadyReviewed
	}

	review := models.Review{
		ReviewID:  uuid.NewString(),
		OrderID:   orderID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	}
	if err := s.DB.CreateReview(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to save review: %w", err)
	}
	return &models.FeedbackResponse{Review: &review, AlreadyReviewed: false}, nil
}

// ---------------- SIDE EFFECTS ----------------

// notifyTransition maps a freshly applied status to its customer email.
// Every branch is fire-and-forget: a failed send is logged and never
// reverses the transition.
func (s *OrderService) notifyTransition(order *models.Order) {
	if s.Notifier == nil {
		return
	}
	var err error
	switch order.Status {
	case status.Confirmed:
		err = s.Notifier.OrderConfirmed(order)
	case status.Preparing, status.Cancelled:
		err = s.Notifier.StatusChanged(order)
	case status.Ready:
		if order.OrderType == status.Pickup {
			var png []byte
			if s.QR != nil {
				png, _ = s.QR.GeneratePickupQR(qr.PickupPass{
					OrderNumber:  order.OrderNumber,
					CustomerName: order.CustomerName,
					IssuedAt:     time.Now(),
				})
			}
			err = s.Notifier.ReadyForPickup(order, s.Checkout.PickupAddress, png)
		} else {
			err = s.Notifier.StatusChanged(order)
		}
	case status.OutForDelivery:
		var driver *models.Driver
		if s.Drivers != nil {
			driver = s.Drivers.DriverFor(order.OrderID)
		}
		eta := 0
		if est, _ := tracking.Estimate(order, time.Now()); est != nil {
			eta = est.Max
		}
		err = s.Notifier.OutForDelivery(order, driver, eta)
	case status.Delivered, status.PickedUp:
		err = s.Notifier.StatusChanged(order)
		s.requestFeedbackOnce(order)
	}
	if err != nil {
		s.Logger.Error("NOTIFY", fmt.Sprintf("Notification for %s (%s) failed: %v", order.OrderNumber, order.Status, err))
	}
}

// requestFeedbackOnce sends the feedback email exactly once per order, using
// the feedback_requested_at column as the guard.
func (s *OrderService) requestFeedbackOnce(order *models.Order) {
	if order.FeedbackRequestedAt != nil {
		return
	}
	now := time.Now()
	if err := s.DB.SetFeedbackRequested(context.Background(), order.OrderID, now); err != nil {
		s.Logger.Error("NOTIFY", fmt.Sprintf("Failed to mark feedback requested for %s: %v", order.OrderNumber, err))
		return
	}
	order.FeedbackRequestedAt = &now
	if err := s.Notifier.FeedbackRequest(order); err != nil {
		s.Logger.Error("NOTIFY", fmt.Sprintf("Feedback request for %s failed: %v", order.OrderNumber, err))
	}
}

func (s *OrderService) publishEvent(topic, eventType string, order *models.Order) {
	if s.Kafka == nil {
		return
	}
	if err := s.Kafka.PublishOrderEvent(topic, eventType, order); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Publish %s for %s failed: %v", eventType, order.OrderNumber, err))
	}
}

// ---------------- READS ----------------

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber, phone string) (*models.Order, error) {
	order, err := s.DB.GetOrderByNumber(ctx, orderNumber, phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, orderNumber)
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) GetNotes(ctx context.Context, orderID string) ([]models.OrderNote, error) {
	return s.DB.GetNotes(ctx, orderID)
}

func (s *OrderService) ListOrders(ctx context.Context, filter db.ListFilter) ([]models.Order, error) {
	return s.DB.ListOrders(ctx, filter)
}

// GetTracking assembles the customer tracking payload for one order. Pickup
// orders that are ready also get their encrypted pickup pass attached.
func (s *OrderService) GetTracking(order *models.Order) *models.TrackingData {
	var driver *models.Driver
	if order.IsDelivery() && s.Drivers != nil {
		driver = s.Drivers.DriverFor(order.OrderID)
	}

	data := &models.TrackingData{
		Order:    order,
		Tracking: tracking.NewProjector().Project(order, driver, time.Now()),
	}

	if !order.IsDelivery() {
		if png, err := s.pickupQR(order); err == nil {
			data.PickupQR = base64.StdEncoding.EncodeToString(png)
		}
	}
	return data
}

func (s *OrderService) pickupQR(order *models.Order) ([]byte, error) {
	if s.QR == nil || order.IsDelivery() {
		return nil, fmt.Errorf("no pickup pass for order %s", order.OrderNumber)
	}
	if order.Status != status.Ready && order.Status != status.PickedUp {
		return nil, fmt.Errorf("order %s is not ready for pickup", order.OrderNumber)
	}
	return s.QR.GeneratePickupQR(qr.PickupPass{
		OrderNumber:  order.OrderNumber,
		CustomerName: order.CustomerName,
		IssuedAt:     time.Now(),
	})
}

// PickupQR exposes the pass bytes for the receipt PDF.
func (s *OrderService) PickupQR(order *models.Order) ([]byte, error) {
	return s.pickupQR(order)
}

// VerifyPickupPass decodes a payload scanned off a customer's pickup QR. A
// payload that does not decrypt under our key is treated as a validation
// failure, not a server error.
func (s *OrderService) VerifyPickupPass(payload string) (qr.PickupPass, error) {
	if s.QR == nil {
		return qr.PickupPass{}, fmt.Errorf("%w: pickup passes are not enabled", ErrValidation)
	}
	pass, err := s.QR.DecodePickupPass(payload)
	if err != nil {
		return qr.PickupPass{}, fmt.Errorf("%w: unreadable pickup pass", ErrValidation)
	}
	return pass, nil
}
