package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evmarket/internal/domain"
)

func TestYearlyPlanToLiveAd(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acc := f.store.addAccount("volt", domain.Entitlement{})

	res, err := f.renewal.Purchase(ctx, PurchaseInput{AccountID: acc.ID, PlanTier: domain.PlanYearly})
	require.NoError(t, err)
	assert.Equal(t, int64(44999), f.provider.Charges()[0].Amount)
	yearOut := t0.AddDate(1, 0, 0)
	assert.Equal(t, yearOut, *res.Entitlement.ExpiresAt)
	assert.True(t, res.Entitlement.IsActive(t0))

	req, err := f.submission.Submit(ctx, acc.ID, validContent(domain.PageHome))
	require.NoError(t, err)
	assert.Equal(t, domain.AdStatusPending, req.Status)
	assert.Equal(t, yearOut, *req.ExpiresAt)

	f.clock.Advance(6 * time.Hour)
	publishAt := f.clock.Now()
	slot, err := f.review.Publish(ctx, req.ID, PublishInput{
		TargetPages:  []string{domain.PageHome, domain.PagePricing},
		DurationDays: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, publishAt.Add(30*24*time.Hour), slot.ExpiresAt)
	assert.Equal(t, domain.AdStatusActive, f.store.request(req.ID).Status)

	f.clock.Set(publishAt.Add(10 * 24 * time.Hour))
	shown, err := f.visibility.ActiveAdFor(ctx, domain.PagePricing)
	require.NoError(t, err)
	require.NotNil(t, shown)
	assert.Equal(t, req.ID, shown.SourceRequestID)

	f.clock.Set(publishAt.Add(31 * 24 * time.Hour))
	shown, err = f.visibility.ActiveAdFor(ctx, domain.PagePricing)
	require.NoError(t, err)
	assert.Nil(t, shown)
}
