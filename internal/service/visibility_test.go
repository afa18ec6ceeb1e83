package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evmarket/internal/domain"
)

func TestActiveAdFor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	slot, err := f.visibility.ActiveAdFor(ctx, domain.PageHome)
	require.NoError(t, err)
	assert.Nil(t, slot, "no slot")

	require.NoError(t, f.store.repos().AdSlot.Put(ctx, &domain.GlobalAdSlot{
		Title:       "Live",
		TargetPages: []string{domain.PageHome},
		ActivatedAt: t0,
		ExpiresAt:   t0.Add(24 * time.Hour),
	}))

	slot, err = f.visibility.ActiveAdFor(ctx, domain.PageHome)
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, "Live", slot.Title)

	slot, err = f.visibility.ActiveAdFor(ctx, domain.PagePricing)
	require.NoError(t, err)
	assert.Nil(t, slot, "page not targeted")

	f.clock.Advance(24 * time.Hour)
	slot, err = f.visibility.ActiveAdFor(ctx, domain.PageHome)
	require.NoError(t, err)
	assert.Nil(t, slot, "expired")
}

func TestActiveAdForReadsFresh(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	put := func(title string) {
		require.NoError(t, f.store.repos().AdSlot.Put(ctx, &domain.GlobalAdSlot{
			Title: title, TargetPages: []string{domain.PageHome}, ActivatedAt: t0, ExpiresAt: t0.Add(time.Hour),
		}))
	}

	put("first")
	slot, err := f.visibility.ActiveAdFor(ctx, domain.PageHome)
	require.NoError(t, err)
	assert.Equal(t, "first", slot.Title)

	put("second")
	slot, err = f.visibility.ActiveAdFor(ctx, domain.PageHome)
	require.NoError(t, err)
	assert.Equal(t, "second", slot.Title)
	assert.Equal(t, 2, f.store.slotWrites)
}

func TestLiveIgnoresPages(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.store.repos().AdSlot.Put(ctx, &domain.GlobalAdSlot{
		Title: "Live", TargetPages: []string{domain.PageStore}, ActivatedAt: t0, ExpiresAt: t0.Add(time.Hour),
	}))

	slot, err := f.visibility.Live(ctx)
	require.NoError(t, err)
	require.NotNil(t, slot)

	f.clock.Advance(time.Hour)
	slot, err = f.visibility.Live(ctx)
	require.NoError(t, err)
	assert.Nil(t, slot)

	stored, err := f.history.Slot(ctx)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}
