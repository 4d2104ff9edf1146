package analytics

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ramen-orders/internal/models"
	"ramen-orders/internal/status"
)

// Service handles dashboard analytics queries
type Service struct {
	db *bun.DB
}

// NewService creates a new analytics service
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// DashboardStats is the aggregate view the admin dashboard renders
type DashboardStats struct {
	Today         PeriodMetrics      `json:"today"`
	Week          PeriodMetrics      `json:"week"`
	Month         PeriodMetrics      `json:"month"`
	StatusCounts  map[string]int     `json:"status_counts"`
	DailySales    []DailySalesMetric `json:"daily_sales"`
	TopItems      []ItemSalesMetric  `json:"top_items"`
	RecentOrders  []models.Order     `json:"recent_orders"`
	PendingOrders int                `json:"pending_orders"`
}

// PeriodMetrics contains order counts and revenue for one time window.
// Revenue only counts orders that actually completed.
type PeriodMetrics struct {
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

// DailySalesMetric contains metrics for a single day
type DailySalesMetric struct {
	Date    string  `json:"date"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

// ItemSalesMetric tracks how often a menu item was ordered
type ItemSalesMetric struct {
	ItemName string  `json:"item_name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

var completedStatuses = []string{string(status.Delivered), string(status.PickedUp)}

// GetDashboardStats returns the full dashboard payload in one call.
func (s *Service) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfWeek := startOfDay.AddDate(0, 0, -6)
	startOfMonth := startOfDay.AddDate(0, 0, -29)

	stats := &DashboardStats{StatusCounts: map[string]int{}}

	for _, window := range []struct {
		since time.Time
		dst   *PeriodMetrics
	}{
		{startOfDay, &stats.Today},
		{startOfWeek, &stats.Week},
		{startOfMonth, &stats.Month},
	} {
		m, err := s.periodMetrics(ctx, window.since)
		if err != nil {
			return nil, err
		}
		*window.dst = *m
	}

	counts, err := s.statusCounts(ctx)
	if err != nil {
		return nil, err
	}
	stats.StatusCounts = counts
	stats.PendingOrders = counts[string(status.Pending)] + counts[string(status.Confirmed)]

	if stats.DailySales, err = s.dailySales(ctx, startOfWeek); err != nil {
		return nil, err
	}
	if stats.TopItems, err = s.topItems(ctx, startOfMonth); err != nil {
		return nil, err
	}
	if stats.RecentOrders, err = s.recentOrders(ctx, 10); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Service) periodMetrics(ctx context.Context, since time.Time) (*PeriodMetrics, error) {
	var m PeriodMetrics
	count, err := s.db.NewSelect().
		Model((*models.Order)(nil)).
		Where("created_at >= ?", since).
		Where("deleted_at IS NULL").
		Count(ctx)
	if err != nil {
		return nil, err
	}
	m.Orders = count

	err = s.db.NewRaw(`
		SELECT COALESCE(SUM(total), 0)
		FROM orders
		WHERE created_at >= ?
		  AND deleted_at IS NULL
		  AND status IN (?)
	`, since, bun.In(completedStatuses)).Scan(ctx, &m.Revenue)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) statusCounts(ctx context.Context) (map[string]int, error) {
	type statusCountRaw struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}
	var rows []statusCountRaw
	err := s.db.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("status, COUNT(*) AS count").
		Where("deleted_at IS NULL").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (s *Service) dailySales(ctx context.Context, since time.Time) ([]DailySalesMetric, error) {
	type dailySalesRaw struct {
		SalesDate    time.Time `bun:"sales_date"`
		OrderCount   int       `bun:"order_count"`
		DailyRevenue float64   `bun:"daily_revenue"`
	}
	var rows []dailySalesRaw
	err := s.db.NewRaw(`
		SELECT
			DATE(created_at) AS sales_date,
			COUNT(*) AS order_count,
			COALESCE(SUM(CASE WHEN status IN (?) THEN total ELSE 0 END), 0) AS daily_revenue
		FROM orders
		WHERE created_at >= ?
		  AND deleted_at IS NULL
		GROUP BY DATE(created_at)
		ORDER BY sales_date
	`, bun.In(completedStatuses), since).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]DailySalesMetric, 0, len(rows))
	for _, row := range rows {
		out = append(out, DailySalesMetric{
			Date:    row.SalesDate.Format("2006-01-02"),
			Orders:  row.OrderCount,
			Revenue: row.DailyRevenue,
		})
	}
	return out, nil
}

func (s *Service) topItems(ctx context.Context, since time.Time) ([]ItemSalesMetric, error) {
	type itemSalesRaw struct {
		ItemName string  `bun:"item_name"`
		Quantity int     `bun:"quantity"`
		Revenue  float64 `bun:"revenue"`
	}
	var rows []itemSalesRaw
	err := s.db.NewRaw(`
		SELECT
			i.name AS item_name,
			SUM(i.quantity) AS quantity,
			SUM(i.unit_price * i.quantity) AS revenue
		FROM order_items i
		JOIN orders o ON i.order_id = o.order_id
		WHERE o.created_at >= ?
		  AND o.deleted_at IS NULL
		  AND o.status IN (?)
		GROUP BY i.name
		ORDER BY quantity DESC
		LIMIT 5
	`, since, bun.In(completedStatuses)).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]ItemSalesMetric, 0, len(rows))
	for _, row := range rows {
		out = append(out, ItemSalesMetric(row))
	}
	return out, nil
}

func (s *Service) recentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.NewSelect().
		Model(&orders).
		Where("deleted_at IS NULL").
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}
