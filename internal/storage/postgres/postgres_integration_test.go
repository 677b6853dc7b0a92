//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/techstore/internal/domain/auth"
	"github.com/xenking/techstore/internal/domain/order"
	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/voucher"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "techstore",
				"POSTGRES_PASSWORD": "techstore",
				"POSTGRES_DB":       "techstore",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := c.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := c.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://techstore:techstore@%s:%s/techstore?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	// Idempotent schema.
	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations (second run): %v", err)
	}

	return m.Run()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newVoucher(code string, limit int) *voucher.Voucher {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &voucher.Voucher{
		Code:          code,
		Description:   "Giảm 50.000đ",
		DiscountType:  voucher.DiscountFixed,
		DiscountValue: dec("50000"),
		MinOrderValue: dec("100000"),
		StartDate:     &start,
		EndDate:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		UsageLimit:    limit,
		IsActive:      true,
	}
}

func TestVoucherRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewVoucherRepository(testPool)

	v := newVoucher("REPO50", 10)
	require.NoError(t, repo.Create(ctx, v))
	require.ErrorIs(t, repo.Create(ctx, v), voucher.ErrAlreadyExists)

	got, err := repo.FindByCode(ctx, "repo50")
	require.NoError(t, err)
	assert.Equal(t, "REPO50", got.Code)
	assert.Equal(t, voucher.DiscountFixed, got.DiscountType)
	assert.True(t, dec("50000").Equal(got.DiscountValue))
	require.NotNil(t, got.StartDate)
	assert.True(t, v.StartDate.Equal(*got.StartDate))
	assert.True(t, v.EndDate.Equal(got.EndDate))

	got.Description = "updated"
	got.UsageLimit = 20
	require.NoError(t, repo.Update(ctx, got))

	require.NoError(t, repo.SetActive(ctx, "REPO50", false))
	got, err = repo.FindByCode(ctx, "REPO50")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)
	assert.Equal(t, 20, got.UsageLimit)
	assert.False(t, got.IsActive)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	require.NoError(t, repo.Delete(ctx, "REPO50"))
	_, err = repo.FindByCode(ctx, "REPO50")
	require.ErrorIs(t, err, voucher.ErrCodeNotFound)
	require.ErrorIs(t, repo.Delete(ctx, "REPO50"), voucher.ErrCodeNotFound)
	require.ErrorIs(t, repo.SetActive(ctx, "REPO50", true), voucher.ErrCodeNotFound)
	require.ErrorIs(t, repo.Update(ctx, got), voucher.ErrCodeNotFound)
}

func TestVoucherRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewVoucherRepository(testPool)

	v := newVoucher("IMPORT1", 5)
	v.UsedCount = 3
	n, err := repo.Upsert(ctx, []voucher.Voucher{*v})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v.UsedCount = 1
	v.Description = "refreshed"
	_, err = repo.Upsert(ctx, []voucher.Voucher{*v})
	require.NoError(t, err)

	got, err := repo.FindByCode(ctx, "IMPORT1")
	require.NoError(t, err)
	assert.Equal(t, "refreshed", got.Description)
	assert.Equal(t, 3, got.UsedCount, "import must not lower usage")
}

func TestOrderRepository_Redemption(t *testing.T) {
	ctx := context.Background()
	vouchers := NewVoucherRepository(testPool)
	orders := NewOrderRepository(testPool)

	require.NoError(t, vouchers.Create(ctx, newVoucher("LIMIT3", 3)))

	newOrder := func(code string) *order.Order {
		return &order.Order{
			ID:          uuid.NewString(),
			Items:       []order.OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: dec("200000")}},
			Subtotal:    dec("200000"),
			Discount:    dec("50000"),
			Total:       dec("150000"),
			VoucherCode: code,
			CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
		}
	}
	redeem := func(v *voucher.Voucher) error {
		return voucher.Evaluate(v, dec("200000"), time.Now())
	}

	// More concurrent orders than redemptions left: exactly three succeed.
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		placed   int
		rejected int
	)
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := orders.Create(ctx, newOrder("LIMIT3"), redeem)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case voucher.ReasonOf(err) == voucher.ReasonUsageLimitReached:
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, placed)
	assert.Equal(t, 3, rejected)

	v, err := vouchers.FindByCode(ctx, "LIMIT3")
	require.NoError(t, err)
	assert.Equal(t, 3, v.UsedCount)

	err = orders.Create(ctx, newOrder("GHOST"), redeem)
	require.ErrorIs(t, err, voucher.ErrCodeNotFound)

	o := newOrder("")
	require.NoError(t, orders.Create(ctx, o, nil))
	got, err := orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Items[0].ProductID, got.Items[0].ProductID)
	assert.True(t, o.Total.Equal(got.Total))
	assert.True(t, o.CreatedAt.Equal(got.CreatedAt))

	_, err = orders.GetByID(ctx, "missing")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testPool)

	require.NoError(t, repo.Upsert(ctx, []product.Product{
		{ID: "laptop-1", Name: "Laptop Văn Phòng", Brand: "Dell", Category: "laptop", Price: dec("15990000")},
		{ID: "mouse-1", Name: "Chuột không dây", Brand: "Logitech", Category: "accessory", Price: dec("390000")},
	}))

	p, err := repo.GetByID(ctx, "laptop-1")
	require.NoError(t, err)
	assert.Equal(t, "Dell", p.Brand)
	assert.True(t, dec("15990000").Equal(p.Price))

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, product.ErrNotFound)

	got, err := repo.GetByIDs(ctx, []string{"laptop-1", "mouse-1", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAPIKeyRepository(testPool)
	pepper := []byte("pepper")

	require.NoError(t, repo.Save(ctx, auth.APIKeyInfo{
		ID:      "admin",
		KeyHash: auth.HashKey("secret", pepper),
		Name:    "Admin",
	}))

	info, err := auth.NewAuthenticator(repo, pepper).Authenticate(ctx, "secret")
	require.NoError(t, err)
	assert.Equal(t, "admin", info.ID)

	_, err = repo.FindByHash(ctx, "nope")
	require.ErrorIs(t, err, auth.ErrKeyNotFound)
}
