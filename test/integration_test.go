//go:build integration

package test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/addresses"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/auth"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/cart"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/catalog"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/donations"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/orders"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/saved"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/worker"
)

func seedProduct(ctx context.Context, t *testing.T, repo *catalog.ProductRepository, sellerID string, price string, quantity int) *domain.Product {
	t.Helper()

	p := &domain.Product{
		SellerID: sellerID,
		Name:     "Basmati Rice 5kg",
		Price:    decimal.RequireFromString(price),
		Category: "groceries",
		Priority: domain.PriorityLow,
		Quantity: quantity,
	}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return p
}

func seedAddress(ctx context.Context, t *testing.T, repo *addresses.AddressRepository, userID string) *domain.Address {
	t.Helper()

	a := &domain.Address{
		UserID:     userID,
		Line1:      "12 Market Street",
		City:       "Pune",
		PostalCode: "411001",
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("failed to seed address: %v", err)
	}
	return a
}

func TestCartAccumulatesDuplicateAdds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	productRepo := catalog.NewProductRepository(db)
	cartRepo := cart.NewCartRepository(db)

	product := seedProduct(ctx, t, productRepo, "seller-1", "3.50", 10)

	if err := cartRepo.Add(ctx, "user-1", product.ID, 1); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := cartRepo.Add(ctx, "user-1", product.ID, 1); err != nil {
		t.Fatalf("second add failed: %v", err)
	}

	c, err := cartRepo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get cart: %v", err)
	}
	if len(c.Items) != 1 {
		t.Fatalf("expected 1 cart line, got %d", len(c.Items))
	}
	if c.Items[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", c.Items[0].Quantity)
	}
	if !c.Total.Equal(decimal.RequireFromString("7.00")) {
		t.Fatalf("expected total 7.00, got %s", c.Total)
	}

	// A quantity of zero removes the line instead of keeping a dead row.
	removed, err := cartRepo.UpdateQuantity(ctx, "user-1", c.Items[0].ID, 0)
	if err != nil {
		t.Fatalf("failed to update quantity: %v", err)
	}
	if !removed {
		t.Fatal("expected cart line to be affected")
	}

	c, err = cartRepo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get cart: %v", err)
	}
	if len(c.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(c.Items))
	}

	// Negative quantities behave the same as zero.
	if err := cartRepo.Add(ctx, "user-1", product.ID, 1); err != nil {
		t.Fatalf("failed to re-add: %v", err)
	}
	c, err = cartRepo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get cart: %v", err)
	}
	removed, err = cartRepo.UpdateQuantity(ctx, "user-1", c.Items[0].ID, -1)
	if err != nil {
		t.Fatalf("failed to update quantity to -1: %v", err)
	}
	if !removed {
		t.Fatal("expected cart line to be affected")
	}
	c, err = cartRepo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get cart: %v", err)
	}
	if len(c.Items) != 0 {
		t.Fatalf("expected empty cart after negative quantity, got %d lines", len(c.Items))
	}
}

func TestCartAddUnknownProduct(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cartHandler := cart.NewHandler(cart.NewCartRepository(db), logger)
	savedHandler := saved.NewHandler(saved.NewSavedRepository(db), logger)

	body := `{"product_id":"` + uuid.NewString() + `"}`

	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(body))
	req.Header.Set(auth.HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	cartHandler.HandleAdd(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown product, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/saved", strings.NewReader(body))
	req.Header.Set(auth.HeaderUserID, "user-1")
	rec = httptest.NewRecorder()
	savedHandler.HandleSave(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown product, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOrderPlacementSnapshotsPrices(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	productRepo := catalog.NewProductRepository(db)
	cartRepo := cart.NewCartRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	addressRepo := addresses.NewAddressRepository(db)

	product := seedProduct(ctx, t, productRepo, "seller-1", "10.00", 8)
	address := seedAddress(ctx, t, addressRepo, "user-1")

	if err := cartRepo.Add(ctx, "user-1", product.ID, 3); err != nil {
		t.Fatalf("failed to add to cart: %v", err)
	}

	order, err := orderRepo.Place(ctx, "user-1", address.ID, "cash_on_delivery")
	if err != nil {
		t.Fatalf("failed to place order: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if !order.Total.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("expected total 30.00, got %s", order.Total)
	}

	// Placement consumed the cart and the stock.
	c, err := cartRepo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get cart: %v", err)
	}
	if len(c.Items) != 0 {
		t.Fatalf("expected cart cleared, got %d lines", len(c.Items))
	}

	updated, err := productRepo.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	if updated.Quantity != 5 {
		t.Fatalf("expected stock 5, got %d", updated.Quantity)
	}

	// A later price edit must not touch the placed order.
	product.Price = decimal.RequireFromString("99.99")
	if _, err := productRepo.Update(ctx, "seller-1", product); err != nil {
		t.Fatalf("failed to update product: %v", err)
	}

	fetched, err := orderRepo.GetByID(ctx, "user-1", order.ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if fetched == nil {
		t.Fatal("order not found")
	}
	if !fetched.Total.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("expected total still 30.00, got %s", fetched.Total)
	}
	if len(fetched.Items) != 1 {
		t.Fatalf("expected 1 order item, got %d", len(fetched.Items))
	}
	if !fetched.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("expected snapshot unit price 10.00, got %s", fetched.Items[0].UnitPrice)
	}
}

func TestOrderPlacementInsufficientStock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	productRepo := catalog.NewProductRepository(db)
	cartRepo := cart.NewCartRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	addressRepo := addresses.NewAddressRepository(db)

	product := seedProduct(ctx, t, productRepo, "seller-1", "5.00", 2)
	address := seedAddress(ctx, t, addressRepo, "user-1")

	if err := cartRepo.Add(ctx, "user-1", product.ID, 5); err != nil {
		t.Fatalf("failed to add to cart: %v", err)
	}

	if _, err := orderRepo.Place(ctx, "user-1", address.ID, "cash_on_delivery"); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// The failed placement must leave both the stock and the cart untouched.
	updated, err := productRepo.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	if updated.Quantity != 2 {
		t.Fatalf("expected stock unchanged at 2, got %d", updated.Quantity)
	}

	c, err := cartRepo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get cart: %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 5 {
		t.Fatalf("expected cart unchanged, got %+v", c.Items)
	}

	var orderCount int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = 'user-1'`).Scan(&orderCount); err != nil {
		t.Fatalf("failed to count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("expected no orders, got %d", orderCount)
	}
}

func TestOrderPlacementAddressValidation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	productRepo := catalog.NewProductRepository(db)
	cartRepo := cart.NewCartRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	addressRepo := addresses.NewAddressRepository(db)

	product := seedProduct(ctx, t, productRepo, "seller-1", "5.00", 10)
	otherAddress := seedAddress(ctx, t, addressRepo, "user-2")

	if err := cartRepo.Add(ctx, "user-1", product.ID, 1); err != nil {
		t.Fatalf("failed to add to cart: %v", err)
	}

	t.Run("rejects an unknown address", func(t *testing.T) {
		if _, err := orderRepo.Place(ctx, "user-1", uuid.NewString(), "cash_on_delivery"); !errors.Is(err, orders.ErrAddressNotFound) {
			t.Fatalf("expected ErrAddressNotFound, got %v", err)
		}
	})

	t.Run("rejects another user's address", func(t *testing.T) {
		if _, err := orderRepo.Place(ctx, "user-1", otherAddress.ID, "cash_on_delivery"); !errors.Is(err, orders.ErrAddressNotFound) {
			t.Fatalf("expected ErrAddressNotFound, got %v", err)
		}
	})

	// The rejected placements must not have consumed the cart or the stock.
	c, err := cartRepo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get cart: %v", err)
	}
	if len(c.Items) != 1 {
		t.Fatalf("expected cart intact, got %d lines", len(c.Items))
	}

	updated, err := productRepo.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	if updated.Quantity != 10 {
		t.Fatalf("expected stock unchanged at 10, got %d", updated.Quantity)
	}
}

func TestOrderPaymentCapture(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	productRepo := catalog.NewProductRepository(db)
	cartRepo := cart.NewCartRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	addressRepo := addresses.NewAddressRepository(db)
	orderHandler := orders.NewHandler(orderRepo, nil, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /orders/{id}/payment", orderHandler.HandleUpdatePayment)

	product := seedProduct(ctx, t, productRepo, "seller-1", "8.00", 10)
	address := seedAddress(ctx, t, addressRepo, "user-1")

	if err := cartRepo.Add(ctx, "user-1", product.ID, 1); err != nil {
		t.Fatalf("failed to add to cart: %v", err)
	}
	order, err := orderRepo.Place(ctx, "user-1", address.ID, "cash_on_delivery")
	if err != nil {
		t.Fatalf("failed to place order: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("expected payment pending, got %s", order.PaymentStatus)
	}

	t.Run("buyers may not record payment", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/orders/"+order.ID+"/payment", strings.NewReader(`{"payment_status":"paid"}`))
		req.Header.Set(auth.HeaderUserRole, "buyer")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("logistics records cash collection", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/orders/"+order.ID+"/payment", strings.NewReader(`{"payment_status":"paid"}`))
		req.Header.Set(auth.HeaderUserRole, "logistics")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		fetched, err := orderRepo.GetByID(ctx, "user-1", order.ID)
		if err != nil {
			t.Fatalf("failed to get order: %v", err)
		}
		if fetched.PaymentStatus != domain.PaymentStatusPaid {
			t.Fatalf("expected payment paid, got %s", fetched.PaymentStatus)
		}
	})

	t.Run("unknown order is a 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/orders/"+uuid.NewString()+"/payment", strings.NewReader(`{"payment_status":"paid"}`))
		req.Header.Set(auth.HeaderUserRole, "admin")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("unknown payment status is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/orders/"+order.ID+"/payment", strings.NewReader(`{"payment_status":"refunded"}`))
		req.Header.Set(auth.HeaderUserRole, "admin")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestOrderCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	productRepo := catalog.NewProductRepository(db)
	cartRepo := cart.NewCartRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	addressRepo := addresses.NewAddressRepository(db)

	product := seedProduct(ctx, t, productRepo, "seller-1", "4.00", 10)
	address := seedAddress(ctx, t, addressRepo, "user-1")

	placeOrder := func() *domain.Order {
		if err := cartRepo.Add(ctx, "user-1", product.ID, 2); err != nil {
			t.Fatalf("failed to add to cart: %v", err)
		}
		order, err := orderRepo.Place(ctx, "user-1", address.ID, "cash_on_delivery")
		if err != nil {
			t.Fatalf("failed to place order: %v", err)
		}
		return order
	}

	t.Run("cancelling a pending order restores stock", func(t *testing.T) {
		order := placeOrder()

		cancelled, err := orderRepo.Cancel(ctx, "user-1", order.ID)
		if err != nil {
			t.Fatalf("failed to cancel order: %v", err)
		}
		if cancelled.Status != domain.OrderStatusCancelled {
			t.Fatalf("expected cancelled, got %s", cancelled.Status)
		}

		updated, err := productRepo.GetByID(ctx, product.ID)
		if err != nil {
			t.Fatalf("failed to get product: %v", err)
		}
		if updated.Quantity != 10 {
			t.Fatalf("expected stock restored to 10, got %d", updated.Quantity)
		}
	})

	t.Run("delivered orders can no longer be cancelled", func(t *testing.T) {
		order := placeOrder()

		for _, next := range []domain.OrderStatus{
			domain.OrderStatusProcessing,
			domain.OrderStatusReadyForPickup,
			domain.OrderStatusDispatched,
			domain.OrderStatusDelivered,
		} {
			if _, err := orderRepo.UpdateStatus(ctx, order.ID, next); err != nil {
				t.Fatalf("failed to advance to %s: %v", next, err)
			}
		}

		if _, err := orderRepo.Cancel(ctx, "user-1", order.ID); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("skipping a status is rejected", func(t *testing.T) {
		order := placeOrder()

		if _, err := orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusDelivered); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestSavedProductsIdempotent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	productRepo := catalog.NewProductRepository(db)
	savedRepo := saved.NewSavedRepository(db)

	product := seedProduct(ctx, t, productRepo, "seller-1", "2.00", 5)

	if err := savedRepo.Save(ctx, "user-1", product.ID); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := savedRepo.Save(ctx, "user-1", product.ID); err != nil {
		t.Fatalf("repeated save failed: %v", err)
	}

	list, err := savedRepo.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to list saved products: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 saved product, got %d", len(list))
	}

	isSaved, err := savedRepo.IsSaved(ctx, "user-1", product.ID)
	if err != nil {
		t.Fatalf("failed to check saved: %v", err)
	}
	if !isSaved {
		t.Fatal("expected product to be saved")
	}

	removed, err := savedRepo.Unsave(ctx, "user-1", list[0].ID)
	if err != nil {
		t.Fatalf("failed to unsave: %v", err)
	}
	if !removed {
		t.Fatal("expected unsave to remove a row")
	}
}

func TestDonationAcceptance(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	productRepo := catalog.NewProductRepository(db)
	donationRepo := donations.NewDonationRepository(db)

	product := seedProduct(ctx, t, productRepo, "seller-1", "1.00", 20)

	submit := func() *domain.DonationRequest {
		req := &domain.DonationRequest{
			Organization: "Food Bank",
			ContactName:  "Asha",
			ContactEmail: "asha@foodbank.org",
			FoodTypes:    []string{"grains"},
			Urgency:      domain.PriorityHigh,
		}
		if err := donationRepo.Submit(ctx, req); err != nil {
			t.Fatalf("failed to submit request: %v", err)
		}
		return req
	}

	t.Run("accepting decrements stock and fulfills the request", func(t *testing.T) {
		req := submit()

		fulfillment, err := donationRepo.Accept(ctx, req.ID, "seller-1", []domain.DonationAllocation{
			{ProductID: product.ID, Quantity: 5},
		})
		if err != nil {
			t.Fatalf("failed to accept request: %v", err)
		}
		if fulfillment == nil {
			t.Fatal("expected fulfillment")
		}

		updated, err := productRepo.GetByID(ctx, product.ID)
		if err != nil {
			t.Fatalf("failed to get product: %v", err)
		}
		if updated.Quantity != 15 {
			t.Fatalf("expected stock 15, got %d", updated.Quantity)
		}

		fetched, err := donationRepo.GetByID(ctx, req.ID)
		if err != nil {
			t.Fatalf("failed to get request: %v", err)
		}
		if fetched.Status != domain.DonationStatusFulfilled {
			t.Fatalf("expected fulfilled, got %s", fetched.Status)
		}
	})

	t.Run("an already fulfilled request cannot be accepted again", func(t *testing.T) {
		req := submit()

		if _, err := donationRepo.Accept(ctx, req.ID, "seller-1", []domain.DonationAllocation{
			{ProductID: product.ID, Quantity: 1},
		}); err != nil {
			t.Fatalf("first accept failed: %v", err)
		}

		if _, err := donationRepo.Accept(ctx, req.ID, "seller-1", []domain.DonationAllocation{
			{ProductID: product.ID, Quantity: 1},
		}); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("over-allocation rolls the whole acceptance back", func(t *testing.T) {
		req := submit()

		before, err := productRepo.GetByID(ctx, product.ID)
		if err != nil {
			t.Fatalf("failed to get product: %v", err)
		}

		if _, err := donationRepo.Accept(ctx, req.ID, "seller-1", []domain.DonationAllocation{
			{ProductID: product.ID, Quantity: before.Quantity + 1},
		}); !errors.Is(err, domain.ErrInsufficientStock) {
			t.Fatalf("expected ErrInsufficientStock, got %v", err)
		}

		after, err := productRepo.GetByID(ctx, product.ID)
		if err != nil {
			t.Fatalf("failed to get product: %v", err)
		}
		if after.Quantity != before.Quantity {
			t.Fatalf("expected stock unchanged at %d, got %d", before.Quantity, after.Quantity)
		}

		fetched, err := donationRepo.GetByID(ctx, req.ID)
		if err != nil {
			t.Fatalf("failed to get request: %v", err)
		}
		if fetched.Status != domain.DonationStatusPending {
			t.Fatalf("expected request still pending, got %s", fetched.Status)
		}

		var fulfillments int
		if err := db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM donation_fulfillments WHERE request_id = $1
		`, req.ID).Scan(&fulfillments); err != nil {
			t.Fatalf("failed to count fulfillments: %v", err)
		}
		if fulfillments != 0 {
			t.Fatalf("expected no fulfillment rows, got %d", fulfillments)
		}
	})
}

type emailCapture struct {
	mu     sync.Mutex
	emails []map[string]string
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.emails = append(e.emails, req)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"sent"}`)
}

func (e *emailCapture) getEmails() []map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]map[string]string, len(e.emails))
	copy(result, e.emails)
	return result
}

func TestOrderNotificationFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	productRepo := catalog.NewProductRepository(db)
	cartRepo := cart.NewCartRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	orderHandler := orders.NewHandler(orderRepo, nil, logger)

	storefrontMux := http.NewServeMux()
	storefrontMux.HandleFunc("PATCH /orders/{id}/status", orderHandler.HandleUpdateStatus)
	storefrontServer := httptest.NewServer(storefrontMux)
	defer storefrontServer.Close()

	emailCap := &emailCapture{}
	emailMux := http.NewServeMux()
	emailMux.HandleFunc("POST /send", emailCap.handler)
	emailServer := httptest.NewServer(emailMux)
	defer emailServer.Close()

	notificationHandler := worker.NewNotificationHandler(
		emailServer.URL,
		storefrontServer.URL,
		&http.Client{Timeout: 10 * time.Second},
		logger,
	)

	product := seedProduct(ctx, t, productRepo, "seller-1", "6.00", 10)
	address := seedAddress(ctx, t, addresses.NewAddressRepository(db), "user-1")
	if err := cartRepo.Add(ctx, "user-1", product.ID, 2); err != nil {
		t.Fatalf("failed to add to cart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"address_id":"`+address.ID+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	orderHandler.HandlePlace(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var placed domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&placed); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}

	event := domain.OrderPlacedEvent{
		OrderID:   placed.ID,
		UserID:    placed.UserID,
		Total:     placed.Total.String(),
		Items:     placed.Items,
		Timestamp: placed.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	if err := notificationHandler.HandleOrderPlaced(ctx, payload); err != nil {
		t.Fatalf("worker handler failed: %v", err)
	}

	finalOrder, err := orderRepo.GetByID(ctx, "user-1", placed.ID)
	if err != nil {
		t.Fatalf("failed to get order: %v", err)
	}
	if finalOrder.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected order status %s, got %s", domain.OrderStatusProcessing, finalOrder.Status)
	}

	emails := emailCap.getEmails()
	if len(emails) != 1 {
		t.Fatalf("expected 1 email, got %d", len(emails))
	}
	if !strings.Contains(emails[0]["subject"], placed.ID) {
		t.Fatalf("expected email subject to contain order ID %s, got: %s", placed.ID, emails[0]["subject"])
	}
}

func TestKafkaConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	if len(brokers) == 0 {
		t.Fatal("expected at least one broker")
	}

	t.Logf("kafka brokers: %v", brokers)
}
