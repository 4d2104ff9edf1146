// Dev database bootstrap: drops and recreates the schema from the bun
// models, then seeds promo codes and a couple of orders. Production uses the
// SQL migrations under ./migrations instead.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ramen-orders/internal/config"
	"ramen-orders/internal/models"
	"ramen-orders/internal/status"
	"ramen-orders/internal/utils"
)

func main() {
	drop := flag.Bool("drop", false, "drop existing tables first")
	seed := flag.Bool("seed", true, "seed promo codes and sample orders")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN()))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	if *drop {
		log.Println("Dropping tables...")
		dropTables(ctx, db)
	}

	log.Println("Creating tables...")
	createTables(ctx, db)

	if *seed {
		log.Println("Seeding sample data...")
		seedData(ctx, db)
	}

	log.Println("Done.")
}

var tableModels = []interface{}{
	(*models.Order)(nil),
	(*models.OrderItem)(nil),
	(*models.StatusHistoryEntry)(nil),
	(*models.OrderNote)(nil),
	(*models.PromoCode)(nil),
	(*models.Review)(nil),
}

func dropTables(ctx context.Context, db *bun.DB) {
	for i := len(tableModels) - 1; i >= 0; i-- {
		_, _ = db.NewDropTable().Model(tableModels[i]).IfExists().Cascade().Exec(ctx)
	}
}

func createTables(ctx context.Context, db *bun.DB) {
	for _, m := range tableModels {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}
}

func seedData(ctx context.Context, db *bun.DB) {
	promos := []models.PromoCode{
		{Code: "WELCOME15", DiscountType: models.DiscountPercent, DiscountValue: 15, MinOrderTotal: 20, Active: true},
		{Code: "COMEBACK10", DiscountType: models.DiscountPercent, DiscountValue: 10, Active: true},
		{Code: "FREESHIP", DiscountType: models.DiscountFixed, DiscountValue: 0, FreeDelivery: true, MinOrderTotal: 25, Active: true},
	}
	if _, err := db.NewInsert().Model(&promos).Ignore().Exec(ctx); err != nil {
		log.Fatalf("Failed to seed promo codes: %v", err)
	}

	street := "2-14-3 Sakuragaoka"
	city := "Shibuya"
	postal := "150-0031"
	now := time.Now()

	orders := []struct {
		order models.Order
		items []models.OrderItem
	}{
		{
			order: models.Order{
				OrderID:       uuid.NewString(),
				OrderNumber:   utils.GenerateOrderNumber(),
				Status:        status.Preparing,
				PaymentStatus: models.PaymentPaid,
				OrderType:     status.Delivery,
				CustomerName:  "Aiko Tanaka",
				CustomerEmail: "aiko@example.com",
				CustomerPhone: "+81-90-1234-5678",
				AddressStreet: &street,
				AddressCity:   &city,

				AddressPostalCode: &postal,
				Subtotal:          28.50,
				DeliveryFee:       3.50,
				Tax:               2.57,
				Total:             34.57,
				CreatedAt:         now,
			},
			items: []models.OrderItem{
				{Name: "Tonkotsu Ramen", Quantity: 2, UnitPrice: 12.50, NoodleFirmness: "firm", SpiceLevel: 1,
					Toppings: []models.Topping{{Name: "Ajitama", Price: 1.50}}},
				{Name: "Gyoza (6pc)", Quantity: 1, UnitPrice: 5.50},
			},
		},
		{
			order: models.Order{
				OrderID:       uuid.NewString(),
				OrderNumber:   utils.GenerateOrderNumber(),
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
			},
			items: []models.OrderItem{
				{Name: "Shoyu Ramen", Quantity: 1, UnitPrice: 11.00, BrothRichness: "light"},
				{Name: "Edamame", Quantity: 1, UnitPrice: 3.00},
			},
		},
	}

	for _, o := range orders {
		if _, err := db.NewInsert().Model(&o.order).Exec(ctx); err != nil {
			log.Fatalf("Failed to seed order: %v", err)
		}
		for i := range o.items {
			o.items[i].ItemID = uuid.NewString()
			o.items[i].OrderID = o.order.OrderID
		}
		if _, err := db.NewInsert().Model(&o.items).Exec(ctx); err != nil {
			log.Fatalf("Failed to seed order items: %v", err)
		}
		history := models.StatusHistoryEntry{
			EntryID:   uuid.NewString(),
			OrderID:   o.order.OrderID,
			Status:    o.order.Status,
			ChangedBy: "seed",
			CreatedAt: now,
		}
		if _, err := db.NewInsert().Model(&history).Exec(ctx); err != nil {
			log.Fatalf("Failed to seed status history: %v", err)
		}
	}
}
