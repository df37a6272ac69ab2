package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/utafrali/commerce-engine/internal/checkout"
	"github.com/utafrali/commerce-engine/internal/discount"
	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/internal/event"
	"github.com/utafrali/commerce-engine/internal/pricing"
	"github.com/utafrali/commerce-engine/internal/repository"
	"github.com/utafrali/commerce-engine/internal/totals"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
	"github.com/utafrali/commerce-engine/pkg/lock"
	"github.com/utafrali/commerce-engine/pkg/validator"
)

// Association recovery retries.
const (
	reconcileMaxTries        = 4
	reconcileInitialInterval = 50 * time.Millisecond
)

// errUnchanged lets a mutation report that the cart is already in the
// requested state, so nothing is saved.
var errUnchanged = errors.New("cart unchanged")

// CreateCartInput holds the parameters for creating a cart.
type CreateCartInput struct {
	RegionID     string `json:"region_id" validate:"required"`
	CurrencyCode string `json:"currency_code,omitempty" validate:"omitempty,iso4217"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
}

// AddLineItemInput holds the parameters for adding a variant to the cart.
type AddLineItemInput struct {
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// CreatePaymentSessionInput holds the parameters for opening a payment session.
type CreatePaymentSessionInput struct {
	ProviderCode      string          `json:"provider_code" validate:"required,max=50"`
	ProviderReference string          `json:"provider_reference,omitempty" validate:"max=255"`
	Data              json.RawMessage `json:"data,omitempty"`
}

// CartView is a cart together with everything derived from it.
type CartView struct {
	Cart             *domain.Cart            `json:"cart"`
	Totals           domain.Totals           `json:"totals"`
	Checkout         checkout.Evaluation     `json:"checkout"`
	PaymentSessions  []domain.PaymentSession `json:"payment_sessions"`
	CustomerMismatch bool                    `json:"customer_mismatch"`
}

// CartDeps are the collaborators of CartService.
type CartDeps struct {
	Carts     repository.CartRepository
	Regions   repository.RegionRepository
	Variants  repository.VariantRepository
	Shipping  repository.ShippingOptionRepository
	GiftCards repository.GiftCardRepository
	Payments  repository.PaymentSessionRepository
	Discounts discount.Evaluator
	Locker    lock.Locker
	Producer  *event.Producer
	Tax       totals.TaxFunc
}

// CartService implements the business logic for cart operations.
type CartService struct {
	carts     repository.CartRepository
	regions   repository.RegionRepository
	variants  repository.VariantRepository
	shipping  repository.ShippingOptionRepository
	giftCards repository.GiftCardRepository
	payments  repository.PaymentSessionRepository
	discounts discount.Evaluator
	locker    lock.Locker
	producer  *event.Producer
	tax       totals.TaxFunc
	logger    *slog.Logger
	cartTTL   time.Duration
	now       func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(deps CartDeps, logger *slog.Logger, cartTTL time.Duration) *CartService {
	return &CartService{
		carts:     deps.Carts,
		regions:   deps.Regions,
		variants:  deps.Variants,
		shipping:  deps.Shipping,
		giftCards: deps.GiftCards,
		payments:  deps.Payments,
		discounts: deps.Discounts,
		locker:    deps.Locker,
		producer:  deps.Producer,
		tax:       deps.Tax,
		logger:    logger,
		cartTTL:   cartTTL,
		now:       utcNow,
	}
}

// CreateCart creates an empty cart in a region. The currency defaults to the
// region's and must match it when given.
func (s *CartService) CreateCart(ctx context.Context, input CreateCartInput, customer *domain.Customer) (*CartView, error) {
	if strings.TrimSpace(input.RegionID) == "" {
		return nil, apperrors.InvalidInput("region id is required")
	}

	region, err := s.regions.Get(ctx, input.RegionID)
	if err != nil {
		return nil, fmt.Errorf("get region: %w", err)
	}

	currency := strings.ToUpper(strings.TrimSpace(input.CurrencyCode))
	if currency == "" {
		currency = region.CurrencyCode
	}
	if !strings.EqualFold(currency, region.CurrencyCode) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("currency %s is not the currency of region %s", currency, region.ID))
	}

	now := s.now()
	cart := &domain.Cart{
		ID:              uuid.New().String(),
		RegionID:        region.ID,
		CurrencyCode:    strings.ToUpper(region.CurrencyCode),
		Email:           domain.NormalizeEmail(input.Email),
		LineItems:       []domain.LineItem{},
		ShippingMethods: []domain.ShippingMethod{},
		DiscountCodes:   []string{},
		GiftCardCodes:   []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(s.cartTTL),
	}
	if customer != nil && customer.ID != "" {
		cart.CustomerID = customer.ID
		if cart.Email == "" {
			cart.Email = domain.NormalizeEmail(customer.Email)
		}
	}

	if err := s.carts.Create(ctx, cart); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	s.logger.InfoContext(ctx, "cart created",
		slog.String("cart_id", cart.ID),
		slog.String("region_id", cart.RegionID),
	)
	return s.buildView(ctx, cart, customer)
}

// GetCart returns the cart with freshly computed totals and checkout state.
func (s *CartService) GetCart(ctx context.Context, cartID string, customer *domain.Customer) (*CartView, error) {
	if cartID == "" {
		return nil, apperrors.InvalidInput("cart id is required")
	}
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return s.buildView(ctx, cart, customer)
}

// AddLineItem adds a variant to the cart, merging with an existing line of
// the same variant. The unit price is resolved at the resulting quantity.
func (s *CartService) AddLineItem(ctx context.Context, cartID string, input AddLineItemInput) (*CartView, error) {
	if input.VariantID == "" {
		return nil, apperrors.InvalidInput("variant id is required")
	}
	if err := checkQuantity(input.Quantity); err != nil {
		return nil, err
	}

	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		idx := cart.FindLineItemByVariant(input.VariantID)
		quantity := input.Quantity
		if idx >= 0 {
			quantity += cart.LineItems[idx].Quantity
			if quantity > domain.MaxQuantityPerItem {
				return apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", domain.MaxQuantityPerItem))
			}
		} else if len(cart.LineItems) >= domain.MaxItemsPerCart {
			return apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", domain.MaxItemsPerCart))
		}

		variant, err := s.variants.Get(ctx, input.VariantID)
		if err != nil {
			return fmt.Errorf("get variant: %w", err)
		}
		res, err := resolveFor(cart, variant, quantity)
		if err != nil {
			return err
		}

		if idx >= 0 {
			applyPrice(&cart.LineItems[idx], res)
			cart.LineItems[idx].Quantity = quantity
			return nil
		}

		li := domain.LineItem{
			ID:        uuid.New().String(),
			VariantID: variant.ID,
			ProductID: variant.ProductID,
			Title:     variant.Title,
			SKU:       variant.SKU,
			Quantity:  quantity,
			CreatedAt: s.now(),
		}
		applyPrice(&li, res)
		cart.LineItems = append(cart.LineItems, li)
		return nil
	})
}

// UpdateLineItem sets the quantity of a line and reprices it.
func (s *CartService) UpdateLineItem(ctx context.Context, cartID, lineItemID string, quantity int) (*CartView, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}

	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		idx := cart.FindLineItem(lineItemID)
		if idx < 0 {
			return apperrors.NotFound("line item", lineItemID)
		}
		li := &cart.LineItems[idx]
		if li.Quantity == quantity {
			return errUnchanged
		}

		variant, err := s.variants.Get(ctx, li.VariantID)
		if err != nil {
			return fmt.Errorf("get variant: %w", err)
		}
		res, err := resolveFor(cart, variant, quantity)
		if err != nil {
			return err
		}
		applyPrice(li, res)
		li.Quantity = quantity
		return nil
	})
}

// RemoveLineItem removes a line from the cart.
func (s *CartService) RemoveLineItem(ctx context.Context, cartID, lineItemID string) (*CartView, error) {
	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		idx := cart.FindLineItem(lineItemID)
		if idx < 0 {
			return apperrors.NotFound("line item", lineItemID)
		}
		cart.LineItems = append(cart.LineItems[:idx], cart.LineItems[idx+1:]...)
		return nil
	})
}

// SetShippingAddress validates and stores the shipping address. The country
// must be served by the cart's region.
func (s *CartService) SetShippingAddress(ctx context.Context, cartID string, addr domain.Address) (*CartView, error) {
	addr.CountryCode = strings.ToUpper(strings.TrimSpace(addr.CountryCode))
	if err := validator.Validate(addr); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		region, err := s.regions.Get(ctx, cart.RegionID)
		if err != nil {
			return fmt.Errorf("get region: %w", err)
		}
		if !region.HasCountry(addr.CountryCode) {
			return apperrors.InvalidInput(fmt.Sprintf("country %s is not served by region %s", addr.CountryCode, region.ID))
		}
		cart.ShippingAddress = &addr
		return nil
	})
}

// AddShippingMethod adds a shipping option of the cart's region. It is only
// allowed once the address step is satisfied.
func (s *CartService) AddShippingMethod(ctx context.Context, cartID, optionID string) (*CartView, error) {
	if optionID == "" {
		return nil, apperrors.InvalidInput("shipping option id is required")
	}

	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		if cart.HasShippingOption(optionID) {
			return errUnchanged
		}
		option, err := s.shipping.Get(ctx, optionID)
		if err != nil {
			return fmt.Errorf("get shipping option: %w", err)
		}
		if option.RegionID != cart.RegionID {
			return apperrors.InvalidInput(fmt.Sprintf("shipping option %s is not available in region %s", option.ID, cart.RegionID))
		}
		if err := s.requireStep(ctx, cart, checkout.StepDelivery); err != nil {
			return err
		}

		cart.ShippingMethods = append(cart.ShippingMethods, domain.ShippingMethod{
			ID:               uuid.New().String(),
			ShippingOptionID: option.ID,
			Name:             option.Name,
			Amount:           option.Amount,
		})
		return nil
	})
}

// RemoveShippingMethod removes the method created from a shipping option.
func (s *CartService) RemoveShippingMethod(ctx context.Context, cartID, optionID string) (*CartView, error) {
	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		for i, m := range cart.ShippingMethods {
			if m.ShippingOptionID == optionID {
				cart.ShippingMethods = append(cart.ShippingMethods[:i], cart.ShippingMethods[i+1:]...)
				return nil
			}
		}
		return apperrors.NotFound("shipping method", optionID)
	})
}

// ApplyDiscount applies a discount code after checking it against the
// current cart. Applying an applied code is a no-op.
func (s *CartService) ApplyDiscount(ctx context.Context, cartID, code string) (*CartView, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, apperrors.InvalidInput("discount code is required")
	}
	if s.discounts == nil {
		return nil, apperrors.InvalidInput("discounts are not enabled")
	}

	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		if cart.HasDiscount(code) {
			return errUnchanged
		}
		base, err := s.base(ctx, cart)
		if err != nil {
			return err
		}
		if _, err := s.discounts.Evaluate(ctx, code, cart, base); err != nil {
			return err
		}
		cart.DiscountCodes = append(cart.DiscountCodes, code)
		return nil
	})
}

// RemoveDiscount removes an applied discount code.
func (s *CartService) RemoveDiscount(ctx context.Context, cartID, code string) (*CartView, error) {
	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		if !cart.RemoveDiscount(code) {
			return apperrors.NotFound("discount", code)
		}
		return nil
	})
}

// ApplyGiftCard applies a gift card. The card must be usable and issued in
// the cart's currency and region.
func (s *CartService) ApplyGiftCard(ctx context.Context, cartID, code string) (*CartView, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.InvalidInput("gift card code is required")
	}

	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		if cart.HasGiftCard(code) {
			return errUnchanged
		}
		gc, err := s.giftCards.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.InvalidInput(fmt.Sprintf("gift card %s is not valid", code))
			}
			return fmt.Errorf("get gift card: %w", err)
		}
		if !giftCardFits(gc, cart, s.now()) {
			return apperrors.InvalidInput(fmt.Sprintf("gift card %s cannot be used on this cart", code))
		}
		cart.GiftCardCodes = append(cart.GiftCardCodes, gc.Code)
		return nil
	})
}

// RemoveGiftCard removes an applied gift card.
func (s *CartService) RemoveGiftCard(ctx context.Context, cartID, code string) (*CartView, error) {
	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		if !cart.RemoveGiftCard(code) {
			return apperrors.NotFound("gift card", code)
		}
		return nil
	})
}

// CreatePaymentSession opens a payment session for the current grand total.
// The first session of a cart is selected automatically.
func (s *CartService) CreatePaymentSession(ctx context.Context, cartID string, input CreatePaymentSessionInput) (*domain.PaymentSession, error) {
	provider := strings.ToLower(strings.TrimSpace(input.ProviderCode))
	if provider == "" {
		return nil, apperrors.InvalidInput("provider code is required")
	}

	release, cart, err := s.lockCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	defer release()

	view, err := s.buildView(ctx, cart, nil)
	if err != nil {
		return nil, err
	}
	if !view.Checkout.Current.CanProceedTo(checkout.StepPayment) {
		return nil, apperrors.StateConflict(string(view.Checkout.Current), "delivery must be completed before payment")
	}

	now := s.now()
	session := &domain.PaymentSession{
		ID:                uuid.New().String(),
		CartID:            cart.ID,
		ProviderCode:      provider,
		ProviderReference: strings.TrimSpace(input.ProviderReference),
		Data:              input.Data,
		Amount:            view.Totals.GrandTotal,
		CurrencyCode:      cart.CurrencyCode,
		Status:            domain.PaymentStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.payments.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create payment session: %w", err)
	}

	if cart.Payment.Selected() == nil {
		if err := s.payments.Select(ctx, cart.ID, session.ID); err != nil {
			return nil, fmt.Errorf("select payment session: %w", err)
		}
		session.IsSelected = true
	}

	s.logger.InfoContext(ctx, "payment session created",
		slog.String("cart_id", cart.ID),
		slog.String("session_id", session.ID),
		slog.String("provider", provider),
		slog.Int64("amount", session.Amount),
	)
	return session, nil
}

// SelectPaymentSession makes a session the selected one of its cart.
// Selecting a failed or canceled session is a state conflict.
func (s *CartService) SelectPaymentSession(ctx context.Context, cartID, sessionID string) (*CartView, error) {
	release, cart, err := s.lockCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.payments.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get payment session: %w", err)
	}
	if session.CartID != cart.ID {
		return nil, apperrors.NotFound("payment session", sessionID)
	}
	if session.Status.IsTerminal() {
		return nil, apperrors.StateConflict(string(session.Status), fmt.Sprintf("payment session is %s", session.Status))
	}

	if !session.IsSelected {
		if err := s.payments.Select(ctx, cart.ID, session.ID); err != nil {
			return nil, fmt.Errorf("select payment session: %w", err)
		}
	}
	return s.buildView(ctx, cart, nil)
}

// AssociateCustomer attaches a customer to a cart exactly once. Associating
// the same customer again is a no-op; a cart owned by someone else is a
// state conflict. Carts are never merged.
func (s *CartService) AssociateCustomer(ctx context.Context, cartID string, customer *domain.Customer) (*domain.Cart, error) {
	if customer == nil || strings.TrimSpace(customer.ID) == "" {
		return nil, apperrors.InvalidInput("customer is required")
	}

	release, err := acquire(ctx, s.locker, lock.CartKey(cartID))
	if err != nil {
		return nil, err
	}
	defer release()

	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	switch {
	case cart.CustomerID == customer.ID:
		return cart, nil
	case cart.CustomerID != "":
		return nil, apperrors.StateConflict("associated", "cart belongs to another customer")
	case cart.IsCompleted():
		return nil, apperrors.StateConflict("completed", "cart is already completed")
	}

	expectedVersion := cart.Version
	cart.CustomerID = customer.ID
	if cart.Email == "" {
		cart.Email = domain.NormalizeEmail(customer.Email)
	}
	cart.UpdatedAt = s.now()

	ok, err := s.carts.SaveIfVersion(ctx, cart, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict("cart was modified concurrently, please retry")
	}

	if err := s.producer.PublishCustomerAssociated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish customer associated event",
			slog.String("cart_id", cart.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "customer associated with cart",
		slog.String("cart_id", cart.ID),
		slog.String("customer_id", customer.ID),
	)
	return cart, nil
}

// ReconcileCustomer repairs a cart the customer is acting on but which was
// never associated with them. The association is retried with exponential
// backoff while it fails with an upstream error.
func (s *CartService) ReconcileCustomer(ctx context.Context, cartID string, customer *domain.Customer) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if !domain.DetectMismatch(cart, customer) {
		if customer != nil && cart.CustomerID != "" && cart.CustomerID != customer.ID {
			return nil, apperrors.StateConflict("associated", "cart belongs to another customer")
		}
		return cart, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = reconcileInitialInterval

	cart, err = backoff.Retry(ctx, func() (*domain.Cart, error) {
		c, err := s.AssociateCustomer(ctx, cartID, customer)
		if err != nil && !apperrors.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return c, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(reconcileMaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.WarnContext(ctx, "retrying customer association",
				slog.String("cart_id", cartID),
				slog.String("error", err.Error()),
				slog.Duration("next_attempt_in", next),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("reconcile customer: %w", err)
	}
	return cart, nil
}

// MarkCompleted records that an order was created from the cart. Marking
// again with the same order is a no-op.
func (s *CartService) MarkCompleted(ctx context.Context, cartID, orderID string, at time.Time) error {
	release, err := acquire(ctx, s.locker, lock.CartKey(cartID))
	if err != nil {
		return err
	}
	defer release()

	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if cart.IsCompleted() {
		if cart.OrderID == orderID {
			return nil
		}
		return apperrors.StateConflict("completed", fmt.Sprintf("cart already completed by order %s", cart.OrderID))
	}

	expectedVersion := cart.Version
	completedAt := at.UTC()
	cart.OrderID = orderID
	cart.CompletedAt = &completedAt
	cart.UpdatedAt = s.now()

	ok, err := s.carts.SaveIfVersion(ctx, cart, expectedVersion)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if !ok {
		return apperrors.Conflict("cart was modified concurrently, please retry")
	}

	s.logger.InfoContext(ctx, "cart completed",
		slog.String("cart_id", cartID),
		slog.String("order_id", orderID),
	)
	return nil
}

// PaymentReady reports whether the payment gate of the cart is satisfied.
func (s *CartService) PaymentReady(ctx context.Context, cartID string) (bool, error) {
	view, err := s.GetCart(ctx, cartID, nil)
	if err != nil {
		return false, err
	}
	return view.Checkout.PaymentReady(), nil
}

// lockCart locks a cart and loads it. Completed carts are rejected.
func (s *CartService) lockCart(ctx context.Context, cartID string) (lock.Release, *domain.Cart, error) {
	if cartID == "" {
		return nil, nil, apperrors.InvalidInput("cart id is required")
	}
	release, err := acquire(ctx, s.locker, lock.CartKey(cartID))
	if err != nil {
		return nil, nil, err
	}

	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("get cart: %w", err)
	}
	if cart.IsCompleted() {
		release()
		return nil, nil, apperrors.StateConflict("completed", "cart is already completed")
	}
	return release, cart, nil
}

// mutate runs fn on the locked cart and saves the result with an optimistic
// version check.
func (s *CartService) mutate(ctx context.Context, cartID string, fn func(cart *domain.Cart) error) (*CartView, error) {
	release, cart, err := s.lockCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	defer release()

	expectedVersion := cart.Version
	if err := fn(cart); err != nil {
		if errors.Is(err, errUnchanged) {
			return s.buildView(ctx, cart, nil)
		}
		return nil, err
	}

	now := s.now()
	cart.UpdatedAt = now
	cart.ExpiresAt = now.Add(s.cartTTL)

	ok, err := s.carts.SaveIfVersion(ctx, cart, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict("cart was modified concurrently, please retry")
	}
	return s.buildView(ctx, cart, nil)
}

func (s *CartService) requireStep(ctx context.Context, cart *domain.Cart, target checkout.Step) error {
	view, err := s.buildView(ctx, cart, nil)
	if err != nil {
		return err
	}
	if !view.Checkout.Current.CanProceedTo(target) {
		return apperrors.StateConflict(string(view.Checkout.Current),
			fmt.Sprintf("cart is at the %s step and cannot proceed to %s", view.Checkout.Current, target))
	}
	return nil
}

// buildView loads everything the cart refers to and computes totals and the
// checkout evaluation. It leaves cart.Payment populated.
func (s *CartService) buildView(ctx context.Context, cart *domain.Cart, customer *domain.Customer) (*CartView, error) {
	in, err := s.totalsInput(ctx, cart)
	if err != nil {
		return nil, err
	}

	if s.discounts != nil && len(cart.DiscountCodes) > 0 {
		base := totals.ComputeBase(in)
		for _, code := range cart.DiscountCodes {
			amount, err := s.discounts.Evaluate(ctx, code, cart, base)
			if err != nil {
				if errors.Is(err, apperrors.ErrInvalidInput) {
					s.logger.WarnContext(ctx, "discount no longer applies",
						slog.String("cart_id", cart.ID),
						slog.String("code", code),
						slog.String("reason", err.Error()),
					)
					continue
				}
				return nil, fmt.Errorf("evaluate discount %s: %w", code, err)
			}
			in.Discounts = append(in.Discounts, domain.DiscountLine{Code: code, Amount: amount})
		}
	}

	if len(cart.GiftCardCodes) > 0 {
		cards, err := s.giftCards.GetManyByCode(ctx, cart.GiftCardCodes)
		if err != nil {
			return nil, fmt.Errorf("get gift cards: %w", err)
		}
		now := s.now()
		for i := range cards {
			if giftCardFits(&cards[i], cart, now) {
				in.GiftCards = append(in.GiftCards, cards[i])
			}
		}
	}

	t := totals.Compute(in)
	sessions := []domain.PaymentSession{}
	if cart.Payment != nil {
		sessions = cart.Payment.Sessions
	}
	return &CartView{
		Cart:             cart,
		Totals:           t,
		Checkout:         checkout.Evaluate(cart, in.Region, t),
		PaymentSessions:  sessions,
		CustomerMismatch: domain.DetectMismatch(cart, customer),
	}, nil
}

// totalsInput loads the region, variants and payment sessions of a cart.
func (s *CartService) totalsInput(ctx context.Context, cart *domain.Cart) (totals.Input, error) {
	region, err := s.regions.Get(ctx, cart.RegionID)
	if err != nil {
		return totals.Input{}, fmt.Errorf("get region: %w", err)
	}

	variants := map[string]*domain.ProductVariant{}
	if ids := cart.VariantIDs(); len(ids) > 0 {
		variants, err = s.variants.GetMany(ctx, ids)
		if err != nil {
			return totals.Input{}, fmt.Errorf("get variants: %w", err)
		}
	}

	sessions, err := s.payments.ListByCart(ctx, cart.ID)
	if err != nil {
		return totals.Input{}, fmt.Errorf("list payment sessions: %w", err)
	}
	cart.Payment = &domain.PaymentCollection{CartID: cart.ID, Sessions: sessions}

	return totals.Input{
		Cart:     cart,
		Region:   region,
		Variants: variants,
		Tax:      s.tax,
	}, nil
}

func (s *CartService) base(ctx context.Context, cart *domain.Cart) (totals.Base, error) {
	in, err := s.totalsInput(ctx, cart)
	if err != nil {
		return totals.Base{}, err
	}
	return totals.ComputeBase(in), nil
}

func checkQuantity(q int) error {
	if q < 1 {
		return apperrors.InvalidInput("quantity must be at least 1")
	}
	if q > domain.MaxQuantityPerItem {
		return apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", domain.MaxQuantityPerItem))
	}
	return nil
}

func resolveFor(cart *domain.Cart, variant *domain.ProductVariant, quantity int) (pricing.Result, error) {
	res := pricing.Resolve(variant, pricing.Context{
		RegionID: cart.RegionID,
		Currency: cart.CurrencyCode,
		Quantity: quantity,
	})
	if !res.Available {
		return res, apperrors.InvalidInput(fmt.Sprintf("variant %s has no price in %s for quantity %d", variant.ID, cart.CurrencyCode, quantity))
	}
	return res, nil
}

func applyPrice(li *domain.LineItem, res pricing.Result) {
	li.UnitPrice = res.CalculatedAmount
	li.OriginalUnitPrice = res.OriginalAmount
	li.PriceID = res.CalculatedPriceID
}

func giftCardFits(gc *domain.GiftCard, cart *domain.Cart, now time.Time) bool {
	if !gc.Usable(now) || !strings.EqualFold(gc.CurrencyCode, cart.CurrencyCode) {
		return false
	}
	return gc.RegionID == "" || gc.RegionID == cart.RegionID
}
