package order_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"ramen-orders/internal/config"
	"ramen-orders/internal/logger"
	"ramen-orders/internal/models"
	"ramen-orders/internal/order"
	"ramen-orders/internal/order/db"
	"ramen-orders/internal/status"
)

// Mock implementations for testing

type MockOrderDB struct {
	orders       map[string]*models.Order
	history      map[string][]models.StatusHistoryEntry
	notes        map[string][]models.OrderNote
	promos       map[string]*models.PromoCode
	reviews      map[string]*models.Review
	deleted      map[string]bool
	shouldFailOn string
	errorMsg     string
	// forceZeroRows makes the compare-and-set report a lost race.
	forceZeroRows bool
}

func NewMockOrderDB() *MockOrderDB {
	return &MockOrderDB{
		orders:  make(map[string]*models.Order),
		history: make(map[string][]models.StatusHistoryEntry),
		notes:   make(map[string][]models.OrderNote),
		promos:  make(map[string]*models.PromoCode),
		reviews: make(map[string]*models.Review),
		deleted: make(map[string]bool),
	}
}

func (m *MockOrderDB) CreateOrder(_ context.Context, o *models.Order, items []models.OrderItem, initial models.StatusHistoryEntry) error {
	if m.shouldFailOn == "CreateOrder" {
		return errors.New(m.errorMsg)
	}
	cp := *o
	cp.Items = items
	m.orders[o.OrderID] = &cp
	m.history[o.OrderID] = []models.StatusHistoryEntry{initial}
	return nil
}

func (m *MockOrderDB) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	if m.shouldFailOn == "GetOrderByID" {
		return nil, errors.New(m.errorMsg)
	}
	o, exists := m.orders[id]
	if !exists {
		return nil, sql.ErrNoRows
	}
	cp := *o
	cp.History = m.history[id]
	return &cp, nil
}

func (m *MockOrderDB) GetOrderByNumber(_ context.Context, number, phone string) (*models.Order, error) {
	for _, o := range m.orders {
		if o.OrderNumber == number && o.CustomerPhone == phone {
			cp := *o
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *MockOrderDB) ListOrders(_ context.Context, _ db.ListFilter) ([]models.Order, error) {
	out := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (m *MockOrderDB) UpdateOrderStatus(_ context.Context, id string, expected, target status.OrderStatus) (int64, error) {
	if m.shouldFailOn == "UpdateOrderStatus" {
		return 0, errors.New(m.errorMsg)
	}
	if m.forceZeroRows {
		return 0, nil
	}
	o, exists := m.orders[id]
	if !exists || o.Status != expected {
		return 0, nil
	}
	o.Status = target
	return 1, nil
}

func (m *MockOrderDB) MarkDeleted(_ context.Context, id string) error {
	m.deleted[id] = true
	return nil
}

func (m *MockOrderDB) PermanentDelete(_ context.Context, id string) error {
	delete(m.orders, id)
	delete(m.history, id)
	return nil
}

func (m *MockOrderDB) SetPaymentStatus(_ context.Context, id string, ps models.PaymentStatus) error {
	if o, exists := m.orders[id]; exists {
		o.PaymentStatus = ps
	}
	return nil
}

func (m *MockOrderDB) SetFeedbackRequested(_ context.Context, id string, at time.Time) error {
	if o, exists := m.orders[id]; exists && o.FeedbackRequestedAt == nil {
		o.FeedbackRequestedAt = &at
	}
	return nil
}

func (m *MockOrderDB) AppendHistory(_ context.Context, entry models.StatusHistoryEntry) error {
	if m.shouldFailOn == "AppendHistory" {
		return errors.New(m.errorMsg)
	}
	m.history[entry.OrderID] = append(m.history[entry.OrderID], entry)
	return nil
}

func (m *MockOrderDB) AddNote(_ context.Context, note models.OrderNote) error {
	m.notes[note.OrderID] = append(m.notes[note.OrderID], note)
	return nil
}

func (m *MockOrderDB) GetNotes(_ context.Context, orderID string) ([]models.OrderNote, error) {
	return m.notes[orderID], nil
}

func (m *MockOrderDB) GetPromoByCode(_ context.Context, code string) (*models.PromoCode, error) {
	p, exists := m.promos[code]
	if !exists {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (m *MockOrderDB) GetReviewByOrder(_ context.Context, orderID string) (*models.Review, error) {
	r, exists := m.reviews[orderID]
	if !exists {
		return nil, sql.ErrNoRows
	}
	return r, nil
}

func (m *MockOrderDB) CreateReview(_ context.Context, review models.Review) error {
	m.reviews[review.OrderID] = &review
	return nil
}

type MockCartReleaser struct {
	released []string
}

func (m *MockCartReleaser) Release(_ context.Context, cartID string) error {
	m.released = append(m.released, cartID)
	return nil
}

type MockKafkaPublisher struct {
	events map[string][]string
}

func NewMockKafkaPublisher() *MockKafkaPublisher {
	return &MockKafkaPublisher{events: make(map[string][]string)}
}

func (m *MockKafkaPublisher) PublishOrderEvent(topic, eventType string, _ *models.Order) error {
	m.events[topic] = append(m.events[topic], eventType)
	return nil
}

// MockNotifier records which notifications fired; failNext makes every send
// error to prove sends never block transitions.
type MockNotifier struct {
	calls    []string
	failNext bool
}

func (m *MockNotifier) record(name string) error {
	m.calls = append(m.calls, name)
	if m.failNext {
		return errors.New("smtp unavailable")
	}
	return nil
}

func (m *MockNotifier) OrderConfirmed(*models.Order) error { return m.record("confirmed") }
func (m *MockNotifier) StatusChanged(*models.Order) error  { return m.record("status") }
func (m *MockNotifier) OutForDelivery(*models.Order, *models.Driver, int) error {
	return m.record("out_for_delivery")
}
func (m *MockNotifier) ReadyForPickup(*models.Order, string, []byte) error {
	return m.record("ready_for_pickup")
}
func (m *MockNotifier) FeedbackRequest(*models.Order) error     { return m.record("feedback") }
func (m *MockNotifier) AbandonedCart(models.Cart, string) error { return m.record("abandoned") }

func testCheckoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		TaxRate:           0.09,
		DeliveryFee:       3.50,
		RecoveryPromoCode: "COMEBACK10",
		PickupAddress:     "Menya Kotetsu, Tokyo",
	}
}

func setupService() (*order.OrderService, *MockOrderDB, *MockKafkaPublisher, *MockNotifier) {
	mockDB := NewMockOrderDB()
	kafka := NewMockKafkaPublisher()
	notifier := &MockNotifier{}
	svc := order.NewOrderService(
		mockDB,
		&MockCartReleaser{},
		kafka,
		notifier,
		order.NewDriverRoster(),
		nil,
		testCheckoutConfig(),
		config.TopicConfig{
			OrderCreated:   "ramen.order.created",
			OrderStatus:    "ramen.order.status",
			OrderCancelled: "ramen.order.cancelled",
		},
		logger.NewTestLogger(),
	)
	return svc, mockDB, kafka, notifier
}

func seedOrder(m *MockOrderDB, id string, s status.OrderStatus, t status.OrderType) {
	street := "2-14-3 Sakuragaoka"
	o := &models.Order{
		OrderID:       id,
		OrderNumber:   "RMN-20260828-" + id,
		Status:        s,
		OrderType:     t,
		CustomerName:  "Aiko Tanaka",
		CustomerEmail: "aiko@example.com",
		CustomerPhone: "+81-90-1234-5678",
		CreatedAt:     time.Now(),
	}
	if t == status.Delivery {
		o.AddressStreet = &street
	}
	m.orders[id] = o
	m.history[id] = []models.StatusHistoryEntry{{OrderID: id, Status: s, CreatedAt: time.Now()}}
}

func TestApplyTransitionHappyPath(t *testing.T) {
	svc, mockDB, kafka, notifier := setupService()
	seedOrder(mockDB, "o1", status.Pending, status.Delivery)

	ord, err := svc.ApplyTransition(context.Background(), "o1", status.Confirmed, "", "staff-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ord.Status != status.Confirmed {
		t.Errorf("Expected status CONFIRMED, got %s", ord.Status)
	}
	if len(mockDB.history["o1"]) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(mockDB.history["o1"]))
	}
	last := mockDB.history["o1"][1]
	if last.Status != status.Confirmed || last.ChangedBy != "staff-1" {
		t.Errorf("Unexpected history entry: %+v", last)
	}
	if len(kafka.events["ramen.order.status"]) != 1 {
		t.Errorf("Expected a status event on Kafka, got %v", kafka.events)
	}
	if len(notifier.calls) != 1 || notifier.calls[0] != "confirmed" {
		t.Errorf("Expected confirmation email, got %v", notifier.calls)
	}
}

func TestApplyTransitionInvalidLeavesOrderUnchanged(t *testing.T) {
	svc, mockDB, _, _ := setupService()
	seedOrder(mockDB, "o1", status.Pending, status.Delivery)

	_, err := svc.ApplyTransition(context.Background(), "o1", status.Ready, "", "staff-1")
	if !errors.Is(err, order.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}
	if mockDB.orders["o1"].Status != status.Pending {
		t.Errorf("Order status changed on rejected transition: %s", mockDB.orders["o1"].Status)
	}
	if len(mockDB.history["o1"]) != 1 {
		t.Errorf("History grew on rejected transition: %d entries", len(mockDB.history["o1"]))
	}
}

func TestApplyTransitionIdempotentReapply(t *testing.T) {
	svc, mockDB, kafka, _ := setupService()
	seedOrder(mockDB, "o1", status.Preparing, status.Delivery)

	ord, err := svc.ApplyTransition(context.Background(), "o1", status.Preparing, "", "staff-1")
	if err != nil {
		t.Fatalf("Re-applying the current status should succeed, got %v", err)
	}
	if ord.Status != status.Preparing {
		t.Errorf("Expected status PREPARING, got %s", ord.Status)
	}
	if len(mockDB.history["o1"]) != 1 {
		t.Errorf("Idempotent re-apply must not append history, got %d entries", len(mockDB.history["o1"]))
	}
	if len(kafka.events["ramen.order.status"]) != 0 {
		t.Errorf("Idempotent re-apply must not publish events, got %v", kafka.events)
	}
}

func TestApplyTransitionTerminalRejected(t *testing.T) {
	svc, mockDB, _, _ := setupService()
	seedOrder(mockDB, "o1", status.Delivered, status.Delivery)

	_, err := svc.ApplyTransition(context.Background(), "o1", status.Preparing, "", "staff-1")
	if !errors.Is(err, order.ErrAlreadyTerminal) {
		t.Fatalf("Expected ErrAlreadyTerminal, got %v", err)
	}
}

func TestApplyTransitionUnknownOrder(t *testing.T) {
	svc, _, _, _ := setupService()

	_, err := svc.ApplyTransition(context.Background(), "missing", status.Confirmed, "", "staff-1")
	if !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestApplyTransitionFulfilmentBranchGuards(t *testing.T) {
	svc, mockDB, _, _ := setupService()
	seedOrder(mockDB, "pickup", status.Ready, status.Pickup)
	seedOrder(mockDB, "delivery", status.Ready, status.Delivery)

	if _, err := svc.ApplyTransition(context.Background(), "pickup", status.OutForDelivery, "", "s"); !errors.Is(err, order.ErrInvalidTransition) {
		t.Errorf("Pickup order must not go out for delivery, got %v", err)
	}
	if _, err := svc.ApplyTransition(context.Background(), "delivery", status.PickedUp, "", "s"); !errors.Is(err, order.ErrInvalidTransition) {
		t.Errorf("Delivery order must not be picked up, got %v", err)
	}
}

func TestApplyTransitionConflictOnLostRace(t *testing.T) {
	svc, mockDB, _, _ := setupService()
	seedOrder(mockDB, "o1", status.Pending, status.Delivery)
	mockDB.forceZeroRows = true

	_, err := svc.ApplyTransition(context.Background(), "o1", status.Confirmed, "", "staff-1")
	if !errors.Is(err, order.ErrConflict) {
		t.Fatalf("Expected ErrConflict when compare-and-set misses, got %v", err)
	}
	if len(mockDB.history["o1"]) != 1 {
		t.Errorf("History must not grow on a lost race")
	}
}

func TestApplyTransitionNotifierFailureDoesNotBlock(t *testing.T) {
	svc, mockDB, _, notifier := setupService()
	seedOrder(mockDB, "o1", status.Pending, status.Delivery)
	notifier.failNext = true

	ord, err := svc.ApplyTransition(context.Background(), "o1", status.Confirmed, "", "staff-1")
	if err != nil {
		t.Fatalf("Notification failure must not fail the transition, got %v", err)
	}
	if ord.Status != status.Confirmed {
		t.Errorf("Expected status CONFIRMED, got %s", ord.Status)
	}
}

func TestApplyTransitionFeedbackRequestedOnce(t *testing.T) {
	svc, mockDB, _, notifier := setupService()
	seedOrder(mockDB, "o1", status.OutForDelivery, status.Delivery)

	if _, err := svc.ApplyTransition(context.Background(), "o1", status.Delivered, "", "s"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	feedbackCount := 0
	for _, c := range notifier.calls {
		if c == "feedback" {
			feedbackCount++
		}
	}
	if feedbackCount != 1 {
		t.Fatalf("Expected exactly one feedback request, got %d", feedbackCount)
	}

	// Re-applying DELIVERED is a no-op and must not re-send.
	if _, err := svc.ApplyTransition(context.Background(), "o1", status.Delivered, "", "s"); err != nil {
		t.Fatalf("Expected idempotent success, got %v", err)
	}
	for _, c := range notifier.calls[len(notifier.calls)-1:] {
		if c == "feedback" {
			t.Error("Feedback request sent twice")
		}
	}
	if mockDB.orders["o1"].FeedbackRequestedAt == nil {
		t.Error("Expected feedback_requested_at guard to be set")
	}
}

func TestBulkApplyTransitionPartialFailure(t *testing.T) {
	svc, mockDB, _, _ := setupService()
	seedOrder(mockDB, "a", status.Preparing, status.Delivery)
	seedOrder(mockDB, "b", status.Pending, status.Delivery)

	result := svc.BulkApplyTransition(context.Background(), []string{"a", "b"}, status.Ready, "staff-1")

	if len(result.Succeeded) != 1 || result.Succeeded[0] != "a" {
		t.Errorf("Expected order a to succeed, got %v", result.Succeeded)
	}
	if _, failed := result.Failed["b"]; !failed {
		t.Errorf("Expected order b to fail, got %v", result.Failed)
	}
	if mockDB.orders["a"].Status != status.Ready {
		t.Errorf("Order a should have transitioned, got %s", mockDB.orders["a"].Status)
	}
	if mockDB.orders["b"].Status != status.Pending {
		t.Errorf("Order b should be unchanged, got %s", mockDB.orders["b"].Status)
	}
}

func TestCancelOrderSoft(t *testing.T) {
	svc, mockDB, kafka, _ := setupService()
	seedOrder(mockDB, "o1", status.Confirmed, status.Delivery)

	if err := svc.CancelOrder(context.Background(), "o1", false, "staff-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if mockDB.orders["o1"].Status != status.Cancelled {
		t.Errorf("Expected CANCELLED, got %s", mockDB.orders["o1"].Status)
	}
	if !mockDB.deleted["o1"] {
		t.Error("Expected soft-delete marker to be set")
	}
	if len(kafka.events["ramen.order.cancelled"]) != 1 {
		t.Errorf("Expected a cancel event, got %v", kafka.events)
	}
}

func TestCancelOrderPermanent(t *testing.T) {
	svc, mockDB, _, _ := setupService()
	seedOrder(mockDB, "o1", status.Confirmed, status.Delivery)

	if err := svc.CancelOrder(context.Background(), "o1", true, "staff-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, exists := mockDB.orders["o1"]; exists {
		t.Error("Expected order to be gone after permanent delete")
	}
}

func checkoutRequest() models.CheckoutRequest {
	return models.CheckoutRequest{
		OrderType:     "DELIVERY",
		CustomerName:  "Aiko Tanaka",
		CustomerEmail: "aiko@example.com",
		CustomerPhone: "+81-90-1234-5678",
		Street:        "2-14-3 Sakuragaoka",
		City:          "Shibuya",
		PostalCode:    "150-0031",
		PaymentMethod: "on_arrival",
		Items: []models.CheckoutItem{
			{Name: "Tonkotsu Ramen", Quantity: 1, UnitPrice: 12.50, SpiceLevel: 1,
				Toppings: []models.Topping{{Name: "Ajitama", Price: 1.50}, {Name: "Chashu", Price: 2.50}}},
			{Name: "Gyoza (6pc)", Quantity: 1, UnitPrice: 3.50},
		},
	}
}

func TestPlaceOrderTotals(t *testing.T) {
	svc, _, kafka, _ := setupService()

	// Subtotal: (12.50 + 1.50 + 2.50) + 3.50 = 20.00
	resp, err := svc.PlaceOrder(context.Background(), checkoutRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	ord := resp.Order
	if ord == nil {
		t.Fatal("Expected an order in the response")
	}
	if ord.Subtotal != 20.00 {
		t.Errorf("Expected subtotal 20.00, got %.2f", ord.Subtotal)
	}
	if ord.DeliveryFee != 3.50 {
		t.Errorf("Expected delivery fee 3.50, got %.2f", ord.DeliveryFee)
	}
	if ord.Tax != 1.80 {
		t.Errorf("Expected tax 1.80, got %.2f", ord.Tax)
	}
	if ord.Total != 25.30 {
		t.Errorf("Expected total 25.30, got %.2f", ord.Total)
	}
	if ord.Status != status.Pending {
		t.Errorf("New orders start PENDING, got %s", ord.Status)
	}
	if len(kafka.events["ramen.order.created"]) != 1 {
		t.Errorf("Expected order.created event, got %v", kafka.events)
	}
}

func TestPlaceOrderPickupHasNoDeliveryFee(t *testing.T) {
	svc, _, _, _ := setupService()

	req := checkoutRequest()
	req.OrderType = "PICKUP"
	req.Street, req.City, req.PostalCode = "", "", ""

	resp, err := svc.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.Order.DeliveryFee != 0 {
		t.Errorf("Pickup orders must not carry a delivery fee, got %.2f", resp.Order.DeliveryFee)
	}
	if resp.Order.AddressStreet != nil {
		t.Error("Pickup orders must not carry an address")
	}
}

func TestPlaceOrderWithPercentPromo(t *testing.T) {
	svc, mockDB, _, _ := setupService()
	mockDB.promos["WELCOME10"] = &models.PromoCode{
		Code: "WELCOME10", DiscountType: models.DiscountPercent, DiscountValue: 10, Active: true,
	}

	req := checkoutRequest()
	req.PromoCode = "WELCOME10"

	resp, err := svc.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	ord := resp.Order
	if ord.Discount != 2.00 {
		t.Errorf("Expected discount 2.00, got %.2f", ord.Discount)
	}
	// Tax on (20.00 - 2.00) at 9%.
	if ord.Tax != 1.62 {
		t.Errorf("Expected tax 1.62, got %.2f", ord.Tax)
	}
	if ord.Total != 23.12 {
		t.Errorf("Expected total 23.12, got %.2f", ord.Total)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	svc, _, _, _ := setupService()

	cases := []struct {
		name   string
		mutate func(*models.CheckoutRequest)
	}{
		{"bad order type", func(r *models.CheckoutRequest) { r.OrderType = "DINE_IN" }},
		{"missing contact", func(r *models.CheckoutRequest) { r.CustomerEmail = "" }},
		{"no items", func(r *models.CheckoutRequest) { r.Items = nil }},
		{"zero quantity", func(r *models.CheckoutRequest) { r.Items[0].Quantity = 0 }},
		{"spice out of range", func(r *models.CheckoutRequest) { r.Items[0].SpiceLevel = 4 }},
		{"delivery without address", func(r *models.CheckoutRequest) { r.Street = "" }},
	}

	for _, c := range cases {
		req := checkoutRequest()
		c.mutate(&req)
		if _, err := svc.PlaceOrder(context.Background(), req); !errors.Is(err, order.ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", c.name, err)
		}
	}
}

func TestValidatePromo(t *testing.T) {
	svc, mockDB, _, _ := setupService()
	expired := time.Now().Add(-time.Hour)
	mockDB.promos["OLD"] = &models.PromoCode{Code: "OLD", DiscountType: models.DiscountPercent, DiscountValue: 10, Active: true, ExpiresAt: &expired}
	mockDB.promos["OFF"] = &models.PromoCode{Code: "OFF", DiscountType: models.DiscountFixed, DiscountValue: 5, Active: false}
	mockDB.promos["BIG"] = &models.PromoCode{Code: "BIG", DiscountType: models.DiscountFixed, DiscountValue: 5, Active: true, MinOrderTotal: 50}

	for _, c := range []struct {
		code  string
		total float64
	}{
		{"NOPE", 30},
		{"OLD", 30},
		{"OFF", 30},
		{"BIG", 30},
	} {
		if _, err := svc.ValidatePromo(context.Background(), c.code, c.total); !errors.Is(err, order.ErrInvalidPromo) {
			t.Errorf("Code %s: expected ErrInvalidPromo, got %v", c.code, err)
		}
	}

	mockDB.promos["GOOD"] = &models.PromoCode{Code: "GOOD", DiscountType: models.DiscountFixed, DiscountValue: 5, Active: true}
	resp, err := svc.ValidatePromo(context.Background(), "GOOD", 30)
	if err != nil {
		t.Fatalf("Expected valid code, got %v", err)
	}
	if resp.DiscountAmount != 5.00 {
		t.Errorf("Expected discount 5.00, got %.2f", resp.DiscountAmount)
	}
}

func TestSubmitFeedback(t *testing.T) {
	svc, mockDB, _, _ := setupService()
	seedOrder(mockDB, "done", status.Delivered, status.Delivery)
	seedOrder(mockDB, "open", status.Preparing, status.Delivery)

	if _, err := svc.SubmitFeedback(context.Background(), "open", models.FeedbackRequest{Rating: 5}); !errors.Is(err, order.ErrValidation) {
		t.Errorf("Feedback before completion should be rejected, got %v", err)
	}
	if _, err := svc.SubmitFeedback(context.Background(), "done", models.FeedbackRequest{Rating: 6}); !errors.Is(err, order.ErrValidation) {
		t.Errorf("Rating above 5 should be rejected, got %v", err)
	}

	resp, err := svc.SubmitFeedback(context.Background(), "done", models.FeedbackRequest{Rating: 5, Comment: "Best tonkotsu in town"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.Review == nil || resp.Review.Rating != 5 {
		t.Fatalf("Unexpected review: %+v", resp.Review)
	}

	dup, err := svc.SubmitFeedback(context.Background(), "done", models.FeedbackRequest{Rating: 1})
	if !errors.Is(err, order.ErrAlreadyReviewed) {
		t.Fatalf("Expected ErrAlreadyReviewed, got %v", err)
	}
	if dup == nil || !dup.AlreadyReviewed || dup.Review.Rating != 5 {
		t.Errorf("Duplicate submission should return the original review, got %+v", dup)
	}
}

func TestAddNote(t *testing.T) {
	svc, mockDB, _, _ := setupService()
	seedOrder(mockDB, "o1", status.Preparing, status.Delivery)

	if _, err := svc.AddNote(context.Background(), "o1", "", "staff-1"); !errors.Is(err, order.ErrValidation) {
		t.Errorf("Empty note should be rejected, got %v", err)
	}

	note, err := svc.AddNote(context.Background(), "o1", "Extra chashu requested by phone", "staff-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if note.Author != "staff-1" {
		t.Errorf("Expected author staff-1, got %s", note.Author)
	}
	if len(mockDB.notes["o1"]) != 1 {
		t.Errorf("Expected 1 stored note, got %d", len(mockDB.notes["o1"]))
	}
}

func TestGetTrackingPickupNeverHasDriver(t *testing.T) {
	svc, mockDB, _, _ := setupService()
	seedOrder(mockDB, "p1", status.Ready, status.Pickup)
	svc.Drivers.Assign("p1", models.Driver{Name: "Haruto"})

	ord, err := svc.GetOrder(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	data := svc.GetTracking(ord)
	if data.Tracking.Driver != nil {
		t.Error("Pickup tracking must never surface a driver")
	}
}
