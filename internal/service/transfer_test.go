package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/commerce-engine/internal/auth"
	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/internal/notify"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

var (
	owner     = &domain.Customer{ID: "cus_owner", Email: "owner@example.com"}
	requester = &domain.Customer{ID: "cus_req", Email: "req@example.com"}
)

func newOrder(id string) domain.Order {
	return domain.Order{
		ID: id, CartID: "cart_" + id, CustomerID: owner.ID, Email: owner.Email,
		RegionID: "reg_us", CurrencyCode: "USD", CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}
}

// requestWithToken creates a transfer request and returns the token sent to
// the owner.
func requestWithToken(t *testing.T, f *fixture, orderID string) (*domain.TransferRequest, string) {
	t.Helper()
	req, err := f.transferSvc.RequestTransfer(context.Background(), orderID, "", requester)
	require.NoError(t, err)
	sent, ok := f.notifier.last(notify.TemplateTransferRequested)
	require.True(t, ok)
	require.Equal(t, req.ID, sent.Data["request_id"])
	return req, sent.Data["token"]
}

func TestRequestTransfer(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, newOrder("order_1"))

	req, token := requestWithToken(t, f, "order_1")

	assert.Equal(t, domain.TransferStatusPending, req.Status)
	assert.Equal(t, "cus_req", req.RequesterCustomerID)
	assert.Equal(t, "req@example.com", req.RequesterEmail)
	assert.Equal(t, "owner@example.com", req.OwnerEmail)
	assert.Equal(t, fixedNow.Add(72*time.Hour), req.ExpiresAt)
	assert.Equal(t, auth.Digest(token), req.TokenDigest)

	sent, _ := f.notifier.last(notify.TemplateTransferRequested)
	assert.Equal(t, "owner@example.com", sent.Recipient)

	stored, err := f.transfers.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.NotEqual(t, token, stored.TokenDigest)
}

func TestRequestTransfer_SameRequesterGetsExistingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, newOrder("order_1"))

	first, _ := requestWithToken(t, f, "order_1")
	second, err := f.transferSvc.RequestTransfer(ctx, "order_1", "", requester)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.notifier.sent, 1)
}

func TestRequestTransfer_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, newOrder("order_1"))

	_, err := f.transferSvc.RequestTransfer(ctx, "order_1", "", nil)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = f.transferSvc.RequestTransfer(ctx, "order_1", "", owner)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.transferSvc.RequestTransfer(ctx, "order_missing", "", requester)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, _ = requestWithToken(t, f, "order_1")
	_, err = f.transferSvc.RequestTransfer(ctx, "order_1", "", &domain.Customer{ID: "cus_other", Email: "other@example.com"})
	requireState(t, err, string(domain.TransferStatusPending))
}

func TestRequestTransfer_ReplacesExpiredPendingRequest(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, newOrder("order_1"))
	first, _ := requestWithToken(t, f, "order_1")

	f.transferSvc.now = func() time.Time { return fixedNow.Add(73 * time.Hour) }
	other := &domain.Customer{ID: "cus_other", Email: "other@example.com"}
	second, err := f.transferSvc.RequestTransfer(context.Background(), "order_1", "", other)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	stored, err := f.transfers.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusExpired, stored.Status)
}

func TestAccept_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, newOrder("order_1"))
	req, token := requestWithToken(t, f, "order_1")

	first, err := f.transferSvc.Accept(ctx, req.ID, token)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusAccepted, first.Status)
	orderAfterFirst, err := f.orders.Get(ctx, "order_1")
	require.NoError(t, err)
	notified := len(f.notifier.sent)

	second, err := f.transferSvc.Accept(ctx, req.ID, token)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusAccepted, second.Status)
	orderAfterSecond, err := f.orders.Get(ctx, "order_1")
	require.NoError(t, err)

	assert.Equal(t, orderAfterFirst, orderAfterSecond)
	assert.Equal(t, "cus_req", orderAfterSecond.CustomerID)
	assert.Equal(t, "req@example.com", orderAfterSecond.Email)
	assert.Equal(t, notified, len(f.notifier.sent))

	toRequester, ok := f.notifier.last(notify.TemplateTransferAccepted)
	require.True(t, ok)
	assert.Equal(t, "req@example.com", toRequester.Recipient)
	assert.Equal(t, 3, notified)
}

func TestAccept_WrongTokenLeavesOwnershipUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, newOrder("order_1"))
	f.seedOrder(t, newOrder("order_2"))
	req, _ := requestWithToken(t, f, "order_1")
	_, otherToken := requestWithToken(t, f, "order_2")

	forged, err := auth.NewTokenManager("another-secret-that-is-long-enough-123").
		Generate(req.ID, req.OrderID, fixedNow, fixedNow.Add(time.Hour))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"forged signature":     forged,
		"token of another one": otherToken,
		"garbage":              "not-a-jwt",
		"empty":                "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.transferSvc.Accept(ctx, req.ID, token)
			assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		})
	}

	order, err := f.orders.Get(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, order.CustomerID)
	stored, err := f.transfers.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, stored.Status)
}

func TestAccept_ValidTokenForUnknownRequest(t *testing.T) {
	f := newFixture(t)
	token, err := auth.NewTokenManager(testSecret).Generate("req_missing", "order_1", fixedNow, fixedNow.Add(time.Hour))
	require.NoError(t, err)

	_, err = f.transferSvc.Accept(context.Background(), "req_missing", token)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDecline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, newOrder("order_1"))
	req, token := requestWithToken(t, f, "order_1")

	declined, err := f.transferSvc.Decline(ctx, req.ID, token)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusDeclined, declined.Status)

	_, err = f.transferSvc.Decline(ctx, req.ID, token)
	require.NoError(t, err)

	_, err = f.transferSvc.Accept(ctx, req.ID, token)
	requireState(t, err, string(domain.TransferStatusDeclined))

	order, err := f.orders.Get(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, order.CustomerID)
}

func TestAccept_AfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, newOrder("order_1"))
	req, token := requestWithToken(t, f, "order_1")

	f.transferSvc.now = func() time.Time { return fixedNow.Add(72 * time.Hour) }

	_, err := f.transferSvc.Accept(ctx, req.ID, token)
	requireState(t, err, string(domain.TransferStatusExpired))

	_, err = f.transferSvc.Decline(ctx, req.ID, token)
	requireState(t, err, string(domain.TransferStatusExpired))

	order, err := f.orders.Get(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, order.CustomerID)
}

func TestExpire_RefusedBeforeExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, newOrder("order_1"))
	req, token := requestWithToken(t, f, "order_1")

	f.transferSvc.now = func() time.Time { return fixedNow.Add(71 * time.Hour) }
	_, err := f.transferSvc.Expire(ctx, req.ID)
	requireState(t, err, string(domain.TransferStatusPending))

	stored, err := f.transfers.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, stored.Status)

	accepted, err := f.transferSvc.Accept(ctx, req.ID, token)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusAccepted, accepted.Status)
}

func TestExpire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, newOrder("order_1"))
	req, token := requestWithToken(t, f, "order_1")

	f.transferSvc.now = func() time.Time { return fixedNow.Add(72 * time.Hour) }
	expired, err := f.transferSvc.Expire(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusExpired, expired.Status)

	_, err = f.transferSvc.Expire(ctx, req.ID)
	require.NoError(t, err)

	_, err = f.transferSvc.Accept(ctx, req.ID, token)
	requireState(t, err, string(domain.TransferStatusExpired))

	_, err = f.transferSvc.Expire(ctx, "req_missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"order_1", "order_2", "order_3"} {
		f.seedOrder(t, newOrder(id))
		_, _ = requestWithToken(t, f, id)
	}
	third, _ := f.transfers.GetPendingByOrder(ctx, "order_3")
	_, err := f.transferSvc.Decline(ctx, third.ID, f.notifier.sent[2].Data["token"])
	require.NoError(t, err)

	f.transferSvc.now = func() time.Time { return fixedNow.Add(80 * time.Hour) }
	n, err := f.transferSvc.ExpireStale(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.transferSvc.ExpireStale(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRequestTransfer_NotificationFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("notification service down")
	f.seedOrder(t, newOrder("order_1"))

	req, err := f.transferSvc.RequestTransfer(context.Background(), "order_1", "", requester)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, req.Status)
}
