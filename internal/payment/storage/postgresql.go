package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"ramen-orders/internal/logger"
	"ramen-orders/internal/models"
)

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB wraps an existing connection; the service shares
// one pool between bun and the payment store.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	store := &PostgreSQLStore{db: db, log: log}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize payment tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize payment tables: %w", err)
	}

	log.LogDatabase("INIT", "payments", "payment storage ready")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS payments (
		payment_id     TEXT PRIMARY KEY,
		order_id       TEXT NOT NULL,
		status         TEXT NOT NULL,
		amount         NUMERIC(10,2) NOT NULL,
		stripe_session TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments(order_id);`
	_, err := s.db.Exec(query)
	return err
}

func (s *PostgreSQLStore) CreatePayment(p Payment) error {
	_, err := s.db.Exec(
		`INSERT INTO payments (payment_id, order_id, status, amount, stripe_session, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.PaymentID, p.OrderID, p.Status, p.Amount, p.StripeSession, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) GetPaymentByOrderID(orderID string) (*Payment, error) {
	row := s.db.QueryRow(
		`SELECT payment_id, order_id, status, amount, COALESCE(stripe_session, ''), created_at, COALESCE(updated_at, created_at)
		 FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`,
		orderID,
	)
	var p Payment
	if err := row.Scan(&p.PaymentID, &p.OrderID, &p.Status, &p.Amount, &p.StripeSession, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgreSQLStore) UpdatePaymentStatus(orderID string, status models.PaymentStatus, stripeSession string) error {
	_, err := s.db.Exec(
		`UPDATE payments SET status = $1, stripe_session = $2, updated_at = $3 WHERE order_id = $4`,
		status, stripeSession, time.Now(), orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}
