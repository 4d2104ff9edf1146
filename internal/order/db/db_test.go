package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ramen-orders/internal/models"
	"ramen-orders/internal/order/db"
	"ramen-orders/internal/status"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open SQLite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, m := range []interface{}{
		(*models.Order)(nil),
		(*models.OrderItem)(nil),
		(*models.StatusHistoryEntry)(nil),
		(*models.OrderNote)(nil),
		(*models.PromoCode)(nil),
		(*models.Review)(nil),
	} {
		if err := bunDB.ResetModel(ctx, m); err != nil {
			t.Fatalf("Failed to reset model %T: %v", m, err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return &db.DB{Bun: bunDB}
}

func sampleOrder() (*models.Order, []models.OrderItem, models.StatusHistoryEntry) {
	orderID := uuid.NewString()
	now := time.Now()
	order := &models.Order{
		OrderID:       orderID,
		OrderNumber:   "RMN-20260828-" + orderID[:4],
		Status:        status.Pending,
		PaymentStatus: models.PaymentPending,
		OrderType:     status.Pickup,
		CustomerName:  "Kenji Mori",
		CustomerEmail: "kenji@example.com",
		CustomerPhone: "+81-80-9876-5432",
		Subtotal:      14.00,
		Tax:           1.26,
		Total:         15.26,
		CreatedAt:     now,
	}
	items := []models.OrderItem{
		{
			ItemID:    uuid.NewString(),
			OrderID:   orderID,
			Name:      "Shoyu Ramen",
			Quantity:  1,
			UnitPrice: 11.00,
			Toppings:  []models.Topping{{Name: "Menma", Price: 1.00}},
		},
		{
			ItemID:    uuid.NewString(),
			OrderID:   orderID,
			Name:      "Edamame",
			Quantity:  1,
			UnitPrice: 3.00,
		},
	}
	initial := models.StatusHistoryEntry{
		EntryID:   uuid.NewString(),
		OrderID:   orderID,
		Status:    status.Pending,
		Note:      "Order placed",
		CreatedAt: now,
	}
	return order, items, initial
}

func TestCreateAndGetOrder(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	order, items, initial := sampleOrder()
	if err := d.CreateOrder(ctx, order, items, initial); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}

	got, err := d.GetOrderByID(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("Failed to get order: %v", err)
	}
	if got.OrderNumber != order.OrderNumber {
		t.Errorf("Expected order number %s, got %s", order.OrderNumber, got.OrderNumber)
	}
	if len(got.Items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(got.Items))
	}
	if len(got.History) != 1 || got.History[0].Status != status.Pending {
		t.Errorf("Expected initial PENDING history entry, got %+v", got.History)
	}
}

func TestGetOrderByNumberRequiresMatchingPhone(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	order, items, initial := sampleOrder()
	if err := d.CreateOrder(ctx, order, items, initial); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}

	if _, err := d.GetOrderByNumber(ctx, order.OrderNumber, order.CustomerPhone); err != nil {
		t.Errorf("Expected lookup with correct phone to succeed: %v", err)
	}

	_, err := d.GetOrderByNumber(ctx, order.OrderNumber, "+81-00-0000-0000")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows with wrong phone, got %v", err)
	}
}

func TestUpdateOrderStatusCompareAndSet(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	order, items, initial := sampleOrder()
	if err := d.CreateOrder(ctx, order, items, initial); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}

	rows, err := d.UpdateOrderStatus(ctx, order.OrderID, status.Pending, status.Confirmed)
	if err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}
	if rows != 1 {
		t.Errorf("Expected 1 row updated, got %d", rows)
	}

	// The expected status no longer matches: the write must be a no-op.
	rows, err = d.UpdateOrderStatus(ctx, order.OrderID, status.Pending, status.Preparing)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rows != 0 {
		t.Errorf("Expected stale compare-and-set to update 0 rows, got %d", rows)
	}

	got, err := d.GetOrderByID(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("Failed to reload order: %v", err)
	}
	if got.Status != status.Confirmed {
		t.Errorf("Expected status CONFIRMED, got %s", got.Status)
	}
}

func TestListOrdersFilters(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	a, itemsA, initA := sampleOrder()
	a.CustomerName = "Aiko Tanaka"
	a.Status = status.Preparing
	if err := d.CreateOrder(ctx, a, itemsA, initA); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}

	b, itemsB, initB := sampleOrder()
	b.Status = status.Pending
	if err := d.CreateOrder(ctx, b, itemsB, initB); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}

	all, err := d.ListOrders(ctx, db.ListFilter{})
	if err != nil {
		t.Fatalf("Failed to list orders: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 orders, got %d", len(all))
	}

	preparing, err := d.ListOrders(ctx, db.ListFilter{Status: status.Preparing})
	if err != nil {
		t.Fatalf("Failed to list by status: %v", err)
	}
	if len(preparing) != 1 || preparing[0].OrderID != a.OrderID {
		t.Errorf("Status filter returned wrong rows: %d", len(preparing))
	}

	search, err := d.ListOrders(ctx, db.ListFilter{Search: "aiko"})
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(search) != 1 || search[0].CustomerName != "Aiko Tanaka" {
		t.Errorf("Search filter returned wrong rows: %d", len(search))
	}
}

func TestListOrdersHidesSoftDeleted(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	order, items, initial := sampleOrder()
	if err := d.CreateOrder(ctx, order, items, initial); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	if err := d.MarkDeleted(ctx, order.OrderID); err != nil {
		t.Fatalf("Failed to mark deleted: %v", err)
	}

	visible, err := d.ListOrders(ctx, db.ListFilter{})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(visible) != 0 {
		t.Errorf("Soft-deleted order should be hidden, got %d rows", len(visible))
	}

	archived, err := d.ListOrders(ctx, db.ListFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("Failed to list with deleted: %v", err)
	}
	if len(archived) != 1 {
		t.Errorf("Expected archived order to show with IncludeDeleted, got %d rows", len(archived))
	}
}

func TestPermanentDeleteRemovesChildren(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	order, items, initial := sampleOrder()
	if err := d.CreateOrder(ctx, order, items, initial); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	if err := d.AddNote(ctx, models.OrderNote{
		NoteID: uuid.NewString(), OrderID: order.OrderID, Content: "VIP", Author: "staff", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Failed to add note: %v", err)
	}

	if err := d.PermanentDelete(ctx, order.OrderID); err != nil {
		t.Fatalf("Failed to permanently delete: %v", err)
	}

	if _, err := d.GetOrderByID(ctx, order.OrderID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected order to be gone, got %v", err)
	}
	notes, err := d.GetNotes(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("Failed to get notes: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("Expected notes to be gone, got %d", len(notes))
	}
}

func TestSetFeedbackRequestedOnlyOnce(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	order, items, initial := sampleOrder()
	if err := d.CreateOrder(ctx, order, items, initial); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}

	first := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	if err := d.SetFeedbackRequested(ctx, order.OrderID, first); err != nil {
		t.Fatalf("Failed to set feedback marker: %v", err)
	}
	// Second write must not move the timestamp.
	if err := d.SetFeedbackRequested(ctx, order.OrderID, time.Now()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, err := d.GetOrderByID(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if got.FeedbackRequestedAt == nil {
		t.Fatal("Expected feedback_requested_at to be set")
	}
	if !got.FeedbackRequestedAt.UTC().Truncate(time.Second).Equal(first) {
		t.Errorf("Expected first timestamp to stick, got %v", got.FeedbackRequestedAt)
	}
}

func TestPromoLookupIsCaseInsensitive(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	promo := &models.PromoCode{
		Code:          "WELCOME15",
		DiscountType:  models.DiscountPercent,
		DiscountValue: 15,
		Active:        true,
	}
	if _, err := d.Bun.NewInsert().Model(promo).Exec(ctx); err != nil {
		t.Fatalf("Failed to insert promo: %v", err)
	}

	got, err := d.GetPromoByCode(ctx, "welcome15")
	if err != nil {
		t.Fatalf("Expected lower-case lookup to resolve: %v", err)
	}
	if got.DiscountValue != 15 {
		t.Errorf("Expected discount 15, got %.0f", got.DiscountValue)
	}
}

func TestReviewRoundTrip(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	order, items, initial := sampleOrder()
	if err := d.CreateOrder(ctx, order, items, initial); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}

	if _, err := d.GetReviewByOrder(ctx, order.OrderID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("Expected no review yet, got %v", err)
	}

	review := models.Review{
		ReviewID:  uuid.NewString(),
		OrderID:   order.OrderID,
		Rating:    5,
		Comment:   "Perfect noodles",
		CreatedAt: time.Now(),
	}
	if err := d.CreateReview(ctx, review); err != nil {
		t.Fatalf("Failed to create review: %v", err)
	}

	got, err := d.GetReviewByOrder(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("Failed to load review: %v", err)
	}
	if got.Rating != 5 {
		t.Errorf("Expected rating 5, got %d", got.Rating)
	}
}
