package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/utafrali/commerce-engine/internal/auth"
	"github.com/utafrali/commerce-engine/internal/discount"
	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/internal/event"
	"github.com/utafrali/commerce-engine/internal/repository/memory"
	"github.com/utafrali/commerce-engine/internal/totals"
	"github.com/utafrali/commerce-engine/internal/webhook"
	"github.com/utafrali/commerce-engine/pkg/lock"
	"github.com/utafrali/commerce-engine/pkg/logger"
)

const (
	testSecret        = "test-transfer-secret-with-at-least-32-bytes"
	testWebhookSecret = "whsec_test"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- Recording collaborators ---

type sentNotification struct {
	Template  string
	Recipient string
	Data      map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, templateID, recipient string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Template: templateID, Recipient: recipient, Data: data})
	return n.err
}

func (n *recordingNotifier) last(template string) (sentNotification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Template == template {
			return n.sent[i], true
		}
	}
	return sentNotification{}, false
}

// --- Fixture ---

type fixture struct {
	regions   *memory.RegionRepository
	variants  *memory.VariantRepository
	giftCards *memory.GiftCardRepository
	discounts *memory.DiscountRepository
	carts     *memory.CartRepository
	payments  *memory.PaymentSessionRepository
	orders    *memory.OrderRepository
	transfers *memory.TransferRequestRepository
	ledger    *memory.EventLedger
	locker    *lock.MemoryLocker
	notifier  *recordingNotifier

	cartSvc     *CartService
	transferSvc *TransferService
	webhookSvc  *WebhookService
	orderSvc    *OrderService
	priceSvc    *PriceService
}

func usRegion() domain.Region {
	return domain.Region{ID: "reg_us", Name: "United States", CurrencyCode: "USD", Countries: []string{"US", "CA"}}
}

func tieredVariant() domain.ProductVariant {
	return domain.ProductVariant{
		ID: "var_1", ProductID: "prod_1", SKU: "TSHIRT-M", Title: "T-Shirt M",
		Prices: []domain.Price{
			{ID: "price_1", Amount: 1000, CurrencyCode: "USD", MinQuantity: 1, MaxQuantity: 4},
			{ID: "price_2", Amount: 800, CurrencyCode: "USD", MinQuantity: 5},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()

	f := &fixture{
		regions: memory.NewRegionRepository(
			usRegion(),
			domain.Region{ID: "reg_eu", Name: "Europe", CurrencyCode: "EUR", Countries: []string{"DE", "FR"}},
		),
		variants: memory.NewVariantRepository(
			tieredVariant(),
			domain.ProductVariant{ID: "var_eur", ProductID: "prod_2", Title: "Mug", Prices: []domain.Price{
				{ID: "price_eur", Amount: 1200, CurrencyCode: "EUR"},
			}},
		),
		giftCards: memory.NewGiftCardRepository(
			domain.GiftCard{ID: "gc_1", Code: "GC-SMALL", Balance: 1500, CurrencyCode: "USD"},
			domain.GiftCard{ID: "gc_2", Code: "GC-BIG", Balance: 100_000, CurrencyCode: "USD"},
			domain.GiftCard{ID: "gc_3", Code: "GC-EUR", Balance: 5000, CurrencyCode: "EUR"},
		),
		discounts: memory.NewDiscountRepository(
			domain.Discount{ID: "d_1", Code: "SAVE10", Type: domain.DiscountTypePercentage, Value: 1000, IsActive: true},
			domain.Discount{ID: "d_2", Code: "BIGSPENDER", Type: domain.DiscountTypeFixedAmount, Value: 500, MinOrderAmount: 100_000, IsActive: true},
		),
		carts:    memory.NewCartRepository(),
		payments: memory.NewPaymentSessionRepository(),
		orders:   memory.NewOrderRepository(),
		ledger:   memory.NewEventLedger(),
		locker:   lock.NewMemoryLocker(),
		notifier: &recordingNotifier{},
	}
	f.transfers = memory.NewTransferRequestRepository(f.orders)
	shipping := memory.NewShippingOptionRepository(
		domain.ShippingOption{ID: "so_std", RegionID: "reg_us", Name: "Standard", Amount: 500},
		domain.ShippingOption{ID: "so_eu", RegionID: "reg_eu", Name: "DHL", Amount: 700},
	)
	producer := event.NewProducer(nil, log)

	f.cartSvc = NewCartService(CartDeps{
		Carts:     f.carts,
		Regions:   f.regions,
		Variants:  f.variants,
		Shipping:  shipping,
		GiftCards: f.giftCards,
		Payments:  f.payments,
		Discounts: discount.NewRuleEvaluator(f.discounts, func() time.Time { return fixedNow }),
		Locker:    f.locker,
		Producer:  producer,
		Tax:       totals.RegionRateTax(map[string]int64{"reg_us": 1000}),
	}, log, 24*time.Hour)
	f.cartSvc.now = func() time.Time { return fixedNow }

	f.transferSvc = NewTransferService(TransferDeps{
		Orders:    f.orders,
		Transfers: f.transfers,
		Locker:    f.locker,
		Notifier:  f.notifier,
		Producer:  producer,
		Tokens:    auth.NewTokenManager(testSecret),
	}, log, 72*time.Hour)
	f.transferSvc.now = func() time.Time { return fixedNow }

	registry, err := webhook.NewRegistryFromSecrets(map[string]string{
		"stripe": testWebhookSecret,
		"manual": testWebhookSecret,
	}, 5*time.Minute)
	require.NoError(t, err)
	f.webhookSvc = NewWebhookService(WebhookDeps{
		Providers: registry,
		Payments:  f.payments,
		Ledger:    f.ledger,
		Locker:    f.locker,
		Producer:  producer,
		Readiness: f.cartSvc,
	}, log)

	f.orderSvc = NewOrderService(f.orders, f.discounts, f.cartSvc, log)
	f.priceSvc = NewPriceService(f.regions, f.variants)
	return f
}

func validAddress() domain.Address {
	return domain.Address{
		FirstName: "Ada", LastName: "Lovelace", Address1: "1 Main St",
		City: "Springfield", PostalCode: "12345", CountryCode: "US",
	}
}

// newCart creates a cart with quantity units of var_1.
func (f *fixture) newCart(t *testing.T, quantity int) *CartView {
	t.Helper()
	ctx := context.Background()
	view, err := f.cartSvc.CreateCart(ctx, CreateCartInput{RegionID: "reg_us", Email: "guest@example.com"}, nil)
	require.NoError(t, err)
	if quantity > 0 {
		view, err = f.cartSvc.AddLineItem(ctx, view.Cart.ID, AddLineItemInput{VariantID: "var_1", Quantity: quantity})
		require.NoError(t, err)
	}
	return view
}

// readyForPayment returns a cart with items, an address and a shipping method.
func (f *fixture) readyForPayment(t *testing.T) *CartView {
	t.Helper()
	ctx := context.Background()
	view := f.newCart(t, 2)
	_, err := f.cartSvc.SetShippingAddress(ctx, view.Cart.ID, validAddress())
	require.NoError(t, err)
	view, err = f.cartSvc.AddShippingMethod(ctx, view.Cart.ID, "so_std")
	require.NoError(t, err)
	return view
}

func (f *fixture) seedOrder(t *testing.T, order domain.Order) {
	t.Helper()
	created, err := f.orders.Create(context.Background(), &order)
	require.NoError(t, err)
	require.True(t, created)
}
