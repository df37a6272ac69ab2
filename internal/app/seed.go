package app

import (
	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/internal/repository/memory"
)

// seedMemoryRepositories returns in-memory repositories holding a small
// catalog, enough to walk a cart through checkout locally.
func seedMemoryRepositories() *repositories {
	orders := memory.NewOrderRepository()

	return &repositories{
		regions: memory.NewRegionRepository(
			domain.Region{ID: "reg_us", Name: "United States", CurrencyCode: "USD", Countries: []string{"US", "CA"}},
			domain.Region{ID: "reg_eu", Name: "Europe", CurrencyCode: "EUR", Countries: []string{"DE", "FR", "NL", "TR"}},
		),
		variants: memory.NewVariantRepository(
			domain.ProductVariant{
				ID: "var_tshirt_m", ProductID: "prod_tshirt", SKU: "TSHIRT-M", Title: "T-Shirt / M",
				Prices: []domain.Price{
					{ID: "price_tshirt_usd", Amount: 2500, CurrencyCode: "USD"},
					{ID: "price_tshirt_usd_bulk", Amount: 2000, CurrencyCode: "USD", MinQuantity: 10},
					{ID: "price_tshirt_eur", Amount: 2300, CurrencyCode: "EUR"},
					{ID: "price_tshirt_sale", Amount: 1900, CurrencyCode: "EUR", RegionID: "reg_eu", PriceListID: "pl_summer_sale"},
				},
			},
			domain.ProductVariant{
				ID: "var_mug", ProductID: "prod_mug", SKU: "MUG-01", Title: "Mug",
				Prices: []domain.Price{
					{ID: "price_mug_usd", Amount: 1200, CurrencyCode: "USD"},
					{ID: "price_mug_eur", Amount: 1100, CurrencyCode: "EUR"},
				},
			},
		),
		shipping: memory.NewShippingOptionRepository(
			domain.ShippingOption{ID: "so_us_standard", RegionID: "reg_us", Name: "Standard", Amount: 500},
			domain.ShippingOption{ID: "so_us_express", RegionID: "reg_us", Name: "Express", Amount: 1500},
			domain.ShippingOption{ID: "so_eu_standard", RegionID: "reg_eu", Name: "Standard", Amount: 700},
		),
		giftCards: memory.NewGiftCardRepository(
			domain.GiftCard{ID: "gc_welcome", Code: "WELCOME-25", Balance: 2500, CurrencyCode: "USD"},
		),
		discounts: memory.NewDiscountRepository(
			domain.Discount{ID: "disc_save10", Code: "SAVE10", Type: domain.DiscountTypePercentage, Value: 1000, IsActive: true},
			domain.Discount{ID: "disc_freeship", Code: "FREESHIP", Type: domain.DiscountTypeFreeShipping, MinOrderAmount: 5000, IsActive: true},
		),
		carts:     memory.NewCartRepository(),
		payments:  memory.NewPaymentSessionRepository(),
		orders:    orders,
		transfers: memory.NewTransferRequestRepository(orders),
		ledger:    memory.NewEventLedger(),
	}
}
