package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/techstore/internal/domain/auth"
	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/voucher"
	"github.com/xenking/techstore/internal/storage/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or TECHSTORE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or TECHSTORE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("TECHSTORE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or TECHSTORE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("TECHSTORE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedVouchers(ctx, postgres.NewVoucherRepository(pool), time.Now()); err != nil {
		return errors.Wrap(err, "seed vouchers")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var rows []productJSON
	if err := json.Unmarshal(data, &rows); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	products := make([]product.Product, len(rows))
	for i, p := range rows {
		products[i] = product.Product(p)
	}

	slog.Info("upserting products", slog.Int("count", len(products)))
	return repo.Upsert(ctx, products)
}

// sampleVouchers covers every eligibility outcome relative to now.
func sampleVouchers(now time.Time) []voucher.Voucher {
	day := 24 * time.Hour
	past := now.Add(-30 * day).Truncate(day)
	future := now.Add(90 * day).Truncate(day)
	soon := now.Add(7 * day).Truncate(day)

	return []voucher.Voucher{
		{
			Code: "GIAM50K", Description: "Giảm 50.000đ cho đơn từ 500.000đ",
			DiscountType: voucher.DiscountFixed, DiscountValue: decimal.NewFromInt(50000),
			MinOrderValue: decimal.NewFromInt(500000),
			StartDate:     &past, EndDate: future, UsageLimit: 1000, IsActive: true,
		},
		{
			Code: "TECH10", Description: "Giảm 10% tối đa 500.000đ",
			DiscountType: voucher.DiscountPercentage, DiscountValue: decimal.NewFromInt(10),
			MaxDiscount: decimal.NewFromInt(500000), MinOrderValue: decimal.NewFromInt(2000000),
			EndDate: future, UsageLimit: 500, IsActive: true,
		},
		{
			Code: "LAPTOP1TR", Description: "Giảm 1.000.000đ cho laptop từ 15 triệu",
			DiscountType: voucher.DiscountFixed, DiscountValue: decimal.NewFromInt(1000000),
			MinOrderValue: decimal.NewFromInt(15000000),
			EndDate:       future, UsageLimit: 100, IsActive: true,
		},
		{
			Code: "FLASH20", Description: "Flash sale 20%, bắt đầu tuần sau",
			DiscountType: voucher.DiscountPercentage, DiscountValue: decimal.NewFromInt(20),
			MaxDiscount: decimal.NewFromInt(1000000),
			StartDate:   &soon, EndDate: future, UsageLimit: 200, IsActive: true,
		},
		{
			Code: "TET2024", Description: "Khuyến mãi Tết đã kết thúc",
			DiscountType: voucher.DiscountFixed, DiscountValue: decimal.NewFromInt(100000),
			EndDate: past, UsageLimit: 1000, IsActive: true,
		},
		{
			Code: "VIP200K", Description: "Ưu đãi khách hàng thân thiết (tạm ngưng)",
			DiscountType: voucher.DiscountFixed, DiscountValue: decimal.NewFromInt(200000),
			EndDate: future, UsageLimit: 50, IsActive: false,
		},
	}
}

func seedVouchers(ctx context.Context, repo *postgres.VoucherRepository, now time.Time) error {
	vs := sampleVouchers(now)
	for i := range vs {
		if err := vs[i].Validate(); err != nil {
			return errors.Wrapf(err, "voucher %s", vs[i].Code)
		}
	}

	n, err := repo.Upsert(ctx, vs)
	if err != nil {
		return err
	}
	slog.Info("upserted vouchers", slog.Int("count", n))
	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default admin API key")

	if err := repo.Save(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey(apiKey, []byte(pepper)),
		Name:    "Default admin key",
		Scopes:  []string{"admin"},
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))
	return nil
}
