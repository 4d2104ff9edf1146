package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ramen-orders/internal/models"
	"ramen-orders/internal/status"
)

type DB struct {
	Bun *bun.DB
}

// ListFilter narrows the admin order listing. Zero values mean "no filter".
type ListFilter struct {
	Status         status.OrderStatus
	OrderType      status.OrderType
	Search         string
	IncludeDeleted bool
}

// ---------------- ORDERS ----------------

// CreateOrder inserts the order, its item snapshots and the initial history
// row in one transaction.
func (d *DB) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem, initial models.StatusHistoryEntry) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		if len(items) > 0 {
			if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
				return err
			}
		}
		_, err := tx.NewInsert().Model(&initial).Exec(ctx)
		return err
	})
}

// GetOrderByID fetches one order with items and history. Soft-deleted orders
// are returned too; callers that must hide them check DeletedAt.
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Relation("Items").
		Relation("History", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("created_at ASC")
		}).
		Where("order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNumber resolves the customer tracking lookup. The phone check is
// the only credential a guest has.
func (d *DB) GetOrderByNumber(ctx context.Context, orderNumber, phone string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Relation("Items").
		Relation("History", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("created_at ASC")
		}).
		Where("order_number = ?", orderNumber).
		Where("customer_phone = ?", phone).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns orders newest-first, filtered for the admin console.
func (d *DB) ListOrders(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	var orders []models.Order
	q := d.Bun.NewSelect().
		Model(&orders).
		Relation("Items").
		Relation("History", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("created_at ASC")
		}).
		Order("created_at DESC")

	if !filter.IncludeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.OrderType != "" {
		q = q.Where("order_type = ?", filter.OrderType)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Where("(lower(customer_name) LIKE ? OR lower(order_number) LIKE ?)", pattern, pattern)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// UpdateOrderStatus is the compare-and-set transition write: the row only
// changes if it is still in the expected status. Returns the number of rows
// updated; zero means a concurrent writer got there first.
func (d *DB) UpdateOrderStatus(ctx context.Context, id string, expected, target status.OrderStatus) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", target).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", id).
		Where("status = ?", expected).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkDeleted sets the soft-delete marker used by cancellation.
func (d *DB) MarkDeleted(ctx context.Context, id string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("deleted_at = ?", time.Now()).
		Where("order_id = ?", id).
		Exec(ctx)
	return err
}

// PermanentDelete removes the order and every child record. Irreversible;
// gated behind an explicit admin path.
func (d *DB) PermanentDelete(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.OrderItem)(nil)).Where("order_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.StatusHistoryEntry)(nil)).Where("order_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.OrderNote)(nil)).Where("order_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.Review)(nil)).Where("order_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*models.Order)(nil)).Where("order_id = ?", id).Exec(ctx)
		return err
	})
}

func (d *DB) SetPaymentStatus(ctx context.Context, id string, ps models.PaymentStatus) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_status = ?", ps).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) SetFeedbackRequested(ctx context.Context, id string, at time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("feedback_requested_at = ?", at).
		Where("order_id = ?", id).
		Where("feedback_requested_at IS NULL").
		Exec(ctx)
	return err
}

// ---------------- HISTORY & NOTES ----------------

func (d *DB) AppendHistory(ctx context.Context, entry models.StatusHistoryEntry) error {
	_, err := d.Bun.NewInsert().Model(&entry).Exec(ctx)
	return err
}

func (d *DB) AddNote(ctx context.Context, note models.OrderNote) error {
	_, err := d.Bun.NewInsert().Model(&note).Exec(ctx)
	return err
}

func (d *DB) GetNotes(ctx context.Context, orderID string) ([]models.OrderNote, error) {
	var notes []models.OrderNote
	err := d.Bun.NewSelect().
		Model(&notes).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []models.OrderNote{}
	}
	return notes, nil
}

// ---------------- PROMO & REVIEWS ----------------

func (d *DB) GetPromoByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := d.Bun.NewSelect().
		Model(&promo).
		Where("code = ?", strings.ToUpper(code)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (d *DB) GetReviewByOrder(ctx context.Context, orderID string) (*models.Review, error) {
	var review models.Review
	err := d.Bun.NewSelect().
		Model(&review).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (d *DB) CreateReview(ctx context.Context, review models.Review) error {
	_, err := d.Bun.NewInsert().Model(&review).Exec(ctx)
	return err
}
