package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evmarket/internal/domain"
	"evmarket/internal/domain/payments"
)

func TestQuoteSumsPagePrices(t *testing.T) {
	f := newFixture()

	q, err := f.placement.Quote([]string{domain.PageHome, domain.PageStore, domain.PageHome})
	require.NoError(t, err)
	assert.Equal(t, int64(4999+3499), q.Total)
	assert.Len(t, q.Pages, 2)
	assert.Equal(t, "INR", q.Currency)

	_, err = f.placement.Quote(nil)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.placement.Quote([]string{"Checkout"})
	assert.ErrorAs(t, err, &verr)
}

func TestPlacementPurchaseNeedsNoSubscription(t *testing.T) {
	f := newFixture()
	acc := f.store.addAccount("volt", domain.Entitlement{})

	req, err := f.placement.Purchase(context.Background(), PlacementInput{
		AccountID: acc.ID,
		Content:   validContent(domain.PageAbout, domain.PagePricing),
	})
	require.NoError(t, err)

	stored := f.store.request(req.ID)
	assert.Equal(t, domain.AdStatusPending, stored.Status)
	assert.Equal(t, domain.PlanPlacement, stored.Plan)
	assert.Equal(t, int64(1999+2999), stored.Amount)
	assert.NotEmpty(t, stored.PaymentRef)
	assert.Nil(t, stored.ExpiresAt)

	charges := f.provider.Charges()
	require.Len(t, charges, 1)
	assert.Equal(t, int64(1999+2999), charges[0].Amount)
}

func TestPlacementPurchaseSendsIdempotencyKey(t *testing.T) {
	f := newFixture()
	acc := f.store.addAccount("volt", domain.Entitlement{})

	_, err := f.placement.Purchase(context.Background(), PlacementInput{
		AccountID:      acc.ID,
		Content:        validContent(domain.PageStore),
		IdempotencyKey: "cart-9",
	})
	require.NoError(t, err)
	require.Len(t, f.provider.Charges(), 1)
	assert.Equal(t, "placement:"+acc.ID+":cart-9", f.provider.Charges()[0].IdempotencyKey)
}

func TestPlacementPurchaseUnknownOutcome(t *testing.T) {
	f := newFixture()
	acc := f.store.addAccount("volt", domain.Entitlement{})
	f.provider.SetOutcome(payments.OutcomeUnknown)

	_, err := f.placement.Purchase(context.Background(), PlacementInput{AccountID: acc.ID, Content: validContent()})
	assert.ErrorIs(t, err, domain.ErrPaymentOutcomeUnknown)
	assert.Equal(t, 0, f.store.adWrites)
}

func TestPlacementPurchaseInvalidContentIsNotCharged(t *testing.T) {
	f := newFixture()
	acc := f.store.addAccount("volt", domain.Entitlement{})

	_, err := f.placement.Purchase(context.Background(), PlacementInput{AccountID: acc.ID, Content: domain.AdContent{Title: "x"}})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, f.provider.Charges())
}

func TestPlacementPurchasePersistFailure(t *testing.T) {
	f := newFixture()
	acc := f.store.addAccount("volt", domain.Entitlement{})
	f.store.failAdCreate = errors.New("disk full")

	_, err := f.placement.Purchase(context.Background(), PlacementInput{AccountID: acc.ID, Content: validContent()})
	var perr *domain.PaymentPersistError
	require.ErrorAs(t, err, &perr)
	assert.NotEmpty(t, perr.PaymentRef)
	assert.Contains(t, f.logs.String(), perr.PaymentRef)
}
