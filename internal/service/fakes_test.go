package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"evmarket/internal/domain"
	"evmarket/internal/domain/notifications"
	"evmarket/internal/domain/payments"
	"evmarket/internal/repository"
)

// memStore is an in-memory document store with per-operation failure hooks
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	ads      map[string]*domain.AdRequest
	slot     *domain.GlobalAdSlot
	version  int64
	claims   map[string]bool
	settings map[string]string

	slotWrites int
	adWrites   int

	failMerge         error
	failAdCreate      error
	failMarkPublished error
	failUpdateStatus  error
	failSlotPut       error
	failSlotDelete    error
	failClaim         error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]*domain.Account{},
		ads:      map[string]*domain.AdRequest{},
		claims:   map[string]bool{},
		settings: map[string]string{},
	}
}

func (m *memStore) repos() *repository.Repositories {
	return &repository.Repositories{
		Accounts:     memAccounts{m},
		Entitlements: memEntitlements{m},
		AdRequests:   memAds{m},
		AdSlot:       memSlot{m},
		PaymentGuard: memGuard{m},
		Settings:     memSettings{m},
	}
}

func (m *memStore) addAccount(brand string, ent domain.Entitlement) *domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	if ent.PlanTier == "" {
		ent.PlanTier = domain.PlanNone
	}
	if ent.Status == "" {
		ent.Status = domain.EntitlementInactive
	}
	ent.AccountID = id
	acc := &domain.Account{ID: id, Email: brand + "@example.com", Name: brand, Brand: brand, Role: domain.RoleBusiness, Entitlement: ent}
	m.accounts[id] = acc
	return acc
}

func (m *memStore) request(id string) domain.AdRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRequest(*m.ads[id])
}

func (m *memStore) entitlement(accountID string) domain.Entitlement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[accountID].Entitlement
}

func (m *memStore) currentSlot() *domain.GlobalAdSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slot == nil {
		return nil
	}
	s := *m.slot
	return &s
}

func (m *memStore) rowsByStatus(status domain.AdStatus) []domain.AdRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AdRequest
	for _, r := range m.ads {
		if r.Status == status {
			out = append(out, cloneRequest(*r))
		}
	}
	return out
}

func cloneRequest(r domain.AdRequest) domain.AdRequest {
	r.TargetPages = slices.Clone(r.TargetPages)
	return r
}

type memAccounts struct{ m *memStore }

func (a memAccounts) Create(_ context.Context, acc *domain.Account) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	c := *acc
	a.m.accounts[acc.ID] = &c
	return nil
}

func (a memAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	acc, ok := a.m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}
	c := *acc
	return &c, nil
}

func (a memAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	for _, acc := range a.m.accounts {
		if acc.Email == email {
			c := *acc
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, email)
}

func (a memAccounts) Count(_ context.Context, role string) (int, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	n := 0
	for _, acc := range a.m.accounts {
		if role == "" || acc.Role == role {
			n++
		}
	}
	return n, nil
}

type memEntitlements struct{ m *memStore }

func (e memEntitlements) Get(_ context.Context, accountID string) (*domain.Entitlement, error) {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	acc, ok := e.m.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, accountID)
	}
	ent := acc.Entitlement
	return &ent, nil
}

func (e memEntitlements) Merge(_ context.Context, ent *domain.Entitlement) error {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	if e.m.failMerge != nil {
		return e.m.failMerge
	}
	acc, ok := e.m.accounts[ent.AccountID]
	if !ok {
		return fmt.Errorf("%w: account %s", domain.ErrNotFound, ent.AccountID)
	}
	acc.Entitlement = *ent
	return nil
}

type memAds struct{ m *memStore }

func (a memAds) Create(_ context.Context, req *domain.AdRequest) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if a.m.failAdCreate != nil {
		return a.m.failAdCreate
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	c := cloneRequest(*req)
	a.m.ads[req.ID] = &c
	a.m.adWrites++
	return nil
}

func (a memAds) GetByID(_ context.Context, id string) (*domain.AdRequest, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	r, ok := a.m.ads[id]
	if !ok {
		return nil, fmt.Errorf("%w: ad request %s", domain.ErrNotFound, id)
	}
	c := cloneRequest(*r)
	return &c, nil
}

func (a memAds) Update(_ context.Context, req *domain.AdRequest) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if _, ok := a.m.ads[req.ID]; !ok {
		return fmt.Errorf("%w: ad request %s", domain.ErrNotFound, req.ID)
	}
	c := cloneRequest(*req)
	a.m.ads[req.ID] = &c
	a.m.adWrites++
	return nil
}

func (a memAds) UpdateStatus(_ context.Context, id string, status domain.AdStatus) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if a.m.failUpdateStatus != nil {
		return a.m.failUpdateStatus
	}
	r, ok := a.m.ads[id]
	if !ok {
		return fmt.Errorf("%w: ad request %s", domain.ErrNotFound, id)
	}
	r.Status = status
	a.m.adWrites++
	return nil
}

func (a memAds) MarkPublished(_ context.Context, id string, pages []string, at time.Time) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if a.m.failMarkPublished != nil {
		return a.m.failMarkPublished
	}
	r, ok := a.m.ads[id]
	if !ok {
		return fmt.Errorf("%w: ad request %s", domain.ErrNotFound, id)
	}
	r.Status = domain.AdStatusActive
	r.TargetPages = slices.Clone(pages)
	r.PublishedAt = &at
	a.m.adWrites++
	return nil
}

func (a memAds) filter(keep func(*domain.AdRequest) bool) []domain.AdRequest {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	var out []domain.AdRequest
	for _, r := range a.m.ads {
		if keep(r) {
			out = append(out, cloneRequest(*r))
		}
	}
	return out
}

func (a memAds) ListByStatus(_ context.Context, status domain.AdStatus) ([]domain.AdRequest, error) {
	return a.filter(func(r *domain.AdRequest) bool { return r.Status == status }), nil
}

func (a memAds) ListByAccount(_ context.Context, accountID string) ([]domain.AdRequest, error) {
	return a.filter(func(r *domain.AdRequest) bool { return r.AccountID == accountID }), nil
}

func (a memAds) List(_ context.Context) ([]domain.AdRequest, error) {
	return a.filter(func(*domain.AdRequest) bool { return true }), nil
}

func (a memAds) FindByPaymentRef(_ context.Context, ref string) (*domain.AdRequest, error) {
	rows := a.filter(func(r *domain.AdRequest) bool { return r.PaymentRef == ref })
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: payment %s", domain.ErrNotFound, ref)
	}
	return &rows[0], nil
}

type memSlot struct{ m *memStore }

func (s memSlot) Get(context.Context) (*domain.GlobalAdSlot, error) {
	return s.m.currentSlot(), nil
}

func (s memSlot) Put(_ context.Context, slot *domain.GlobalAdSlot) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.failSlotPut != nil {
		return s.m.failSlotPut
	}
	s.m.version++
	slot.Version = s.m.version
	c := *slot
	s.m.slot = &c
	s.m.slotWrites++
	return nil
}

func (s memSlot) Delete(context.Context) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.failSlotDelete != nil {
		return s.m.failSlotDelete
	}
	s.m.slot = nil
	s.m.slotWrites++
	return nil
}

type memGuard struct{ m *memStore }

func (g memGuard) Claim(_ context.Context, ref string) (bool, error) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	if g.m.failClaim != nil {
		return false, g.m.failClaim
	}
	if g.m.claims[ref] {
		return false, nil
	}
	g.m.claims[ref] = true
	return true, nil
}

func (g memGuard) Release(_ context.Context, ref string) error {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	delete(g.m.claims, ref)
	return nil
}

type memSettings struct{ m *memStore }

func (s memSettings) Get(_ context.Context, key string) (string, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.settings[key], nil
}

func (s memSettings) Set(_ context.Context, key, value string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.settings[key] = value
	return nil
}

// fakeClock is a settable clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *memStore
	clock    *fakeClock
	provider *payments.MockProvider
	mail     *notifications.MockEmailProvider
	logs     *bytes.Buffer
	opts     Options
	pricing  Pricing

	submission   *SubmissionService
	renewal      *RenewalEngine
	placement    *PlacementService
	review       *ReviewService
	cancellation *CancellationService
	visibility   *VisibilityService
	reconciler   *Reconciler
	history      *HistoryService
}

var t0 = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		store:    newMemStore(),
		clock:    newFakeClock(t0),
		provider: payments.NewMockProvider(),
		mail:     &notifications.MockEmailProvider{},
		logs:     &bytes.Buffer{},
		pricing: Pricing{
			Currency: "INR",
			Plans: map[domain.PlanTier]int64{
				domain.PlanMonthly:   4999,
				domain.PlanQuarterly: 12999,
				domain.PlanYearly:    44999,
			},
			Pages: map[string]int64{
				domain.PageHome:      4999,
				domain.PageAbout:     1999,
				domain.PagePricing:   2999,
				domain.PageDashboard: 3999,
				domain.PageStore:     3499,
			},
		},
	}
	f.opts = Options{
		Logger:   slog.New(slog.NewJSONHandler(f.logs, nil)),
		Notifier: notifications.NewEmailNotifier(f.mail, "ops@evmarket.example"),
		Now:      f.clock.Now,
	}
	repos := f.store.repos()
	f.submission = NewSubmissionService(repos, f.opts)
	f.renewal = NewRenewalEngine(repos, f.provider, f.submission, f.pricing, f.opts)
	f.placement = NewPlacementService(repos, f.provider, f.pricing, f.opts)
	f.review = NewReviewService(repos, domain.MaxPublishDays, f.opts)
	f.cancellation = NewCancellationService(repos, f.opts)
	f.visibility = NewVisibilityService(repos, f.opts)
	f.reconciler = NewReconciler(repos, f.opts)
	f.history = NewHistoryService(repos)
	return f
}

func validContent(pages ...string) domain.AdContent {
	if len(pages) == 0 {
		pages = []string{domain.PageHome}
	}
	return domain.AdContent{
		Title:       "Ride electric",
		Description: "Zero-emission scooters",
		TargetLink:  "https://volt.example",
		ImageURL:    "https://cdn.example/volt.png",
		TargetPages: pages,
	}
}

func activeEntitlement(expires time.Time) domain.Entitlement {
	return domain.Entitlement{PlanTier: domain.PlanMonthly, Status: domain.EntitlementActive, ExpiresAt: &expires}
}
