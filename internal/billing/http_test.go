// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package billing

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/payhub/internal/platform/apperr"
	"github.com/taibuivan/payhub/pkg/pagination"
)

// memoryRepository is a map-backed Repository for handler tests.
type memoryRepository struct {
	mu            sync.Mutex
	nextID        int64
	plans         map[int64]*Plan
	subscriptions []*Subscription
}

func newMemoryRepository(plans ...*Plan) *memoryRepository {
	repo := &memoryRepository{plans: map[int64]*Plan{}}
	for _, plan := range plans {
		_ = repo.CreatePlan(context.Background(), plan)
	}
	return repo
}

func (repo *memoryRepository) ListPlans(context.Context) ([]*Plan, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	plans := make([]*Plan, 0, len(repo.plans))
	for _, plan := range repo.plans {
		copied := *plan
		plans = append(plans, &copied)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return plans, nil
}

func (repo *memoryRepository) CreatePlan(_ context.Context, plan *Plan) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.nextID++
	plan.ID = repo.nextID
	copied := *plan
	repo.plans[plan.ID] = &copied
	return nil
}

func (repo *memoryRepository) UpdatePlan(_ context.Context, plan *Plan) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, found := repo.plans[plan.ID]; !found {
		return apperr.NotFound("Plan")
	}
	copied := *plan
	repo.plans[plan.ID] = &copied
	return nil
}

func (repo *memoryRepository) DeletePlan(_ context.Context, id int64) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, found := repo.plans[id]; !found {
		return apperr.NotFound("Plan")
	}
	for _, subscription := range repo.subscriptions {
		if subscription.PlanID == id {
			return ErrPlanInUse
		}
	}
	delete(repo.plans, id)
	return nil
}

func (repo *memoryRepository) ListSubscriptions(_ context.Context, params pagination.Params) ([]*Subscription, int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	total := len(repo.subscriptions)
	start, end := params.Window(total)
	return repo.subscriptions[start:end], total, nil
}

func starterPlan() *Plan {
	return &Plan{Name: "Starter", Price: 29, BillingCycle: CycleMonth, Features: []string{"Basic fraud protection"}}
}

func newTestRouter(repo Repository) http.Handler {
	handler := NewHandler(NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil))))

	router := chi.NewRouter()
	router.Route("/api", func(api chi.Router) {
		handler.RegisterRoutes(api)
		api.Route("/admin", handler.RegisterAdminRoutes)
	})
	return router
}

func TestHandler_PublicPlans(t *testing.T) {
	repo := newMemoryRepository(starterPlan())

	apitest.New().
		Handler(newTestRouter(repo)).
		Get("/api/plans").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$.data", 1)).
		Assert(jsonpath.Equal("$.data[0].name", "Starter")).
		Assert(jsonpath.Equal("$.data[0].billingCycle", "month")).
		Assert(jsonpath.Equal("$.data[0].isPopular", false)).
		End()
}

func TestHandler_CreatePlan(t *testing.T) {
	repo := newMemoryRepository()

	apitest.New().
		Handler(newTestRouter(repo)).
		Post("/api/admin/plans").
		JSON(`{"name": " Growth ", "price": 129, "billingCycle": "year", "features": ["Priority support", "  "], "isPopular": true}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.data.id", float64(1))).
		Assert(jsonpath.Equal("$.data.name", "Growth")).
		Assert(jsonpath.Len("$.data.features", 1)).
		End()

	plans, err := repo.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, []string{"Priority support"}, plans[0].Features)
}

func TestHandler_CreatePlan_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing_name", `{"price": 10, "billingCycle": "month"}`},
		{"negative_price", `{"name": "Free", "price": -1, "billingCycle": "month"}`},
		{"unknown_cycle", `{"name": "Weekly", "price": 5, "billingCycle": "week"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apitest.New().
				Handler(newTestRouter(newMemoryRepository())).
				Post("/api/admin/plans").
				JSON(tt.body).
				Expect(t).
				Status(http.StatusBadRequest).
				Assert(jsonpath.Equal("$.code", "VALIDATION_ERROR")).
				End()
		})
	}
}

func TestHandler_UpdatePlan(t *testing.T) {
	repo := newMemoryRepository(starterPlan())
	router := newTestRouter(repo)

	apitest.New().
		Handler(router).
		Put("/api/admin/plans/1").
		JSON(`{"name": "Starter", "price": 39, "billingCycle": "month", "features": []}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.data.price", float64(39))).
		End()

	apitest.New().
		Handler(router).
		Put("/api/admin/plans/42").
		JSON(`{"name": "Ghost", "price": 1, "billingCycle": "month"}`).
		Expect(t).
		Status(http.StatusNotFound).
		Assert(jsonpath.Equal("$.error", "Plan not found")).
		End()

	apitest.New().
		Handler(router).
		Put("/api/admin/plans/abc").
		JSON(`{"name": "Ghost", "price": 1, "billingCycle": "month"}`).
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func TestHandler_DeletePlan(t *testing.T) {
	repo := newMemoryRepository(starterPlan(), starterPlan())
	repo.subscriptions = []*Subscription{{ID: 1, UserID: 1, Username: "ana", PlanID: 2, PlanName: "Starter", Status: "active"}}
	router := newTestRouter(repo)

	apitest.New().
		Handler(router).
		Delete("/api/admin/plans/1").
		Expect(t).
		Status(http.StatusNoContent).
		End()

	apitest.New().
		Handler(router).
		Delete("/api/admin/plans/1").
		Expect(t).
		Status(http.StatusNotFound).
		End()

	apitest.New().
		Handler(router).
		Delete("/api/admin/plans/2").
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.code", "PLAN_IN_USE")).
		End()
}

func TestHandler_ListSubscriptions(t *testing.T) {
	repo := newMemoryRepository(starterPlan())
	repo.subscriptions = []*Subscription{
		{ID: 1, UserID: 1, Username: "ana", PlanID: 1, PlanName: "Starter", Status: "active"},
		{ID: 2, UserID: 2, Username: "bao", PlanID: 1, PlanName: "Starter", Status: "cancelled"},
	}

	apitest.New().
		Handler(newTestRouter(repo)).
		Get("/api/admin/subscriptions").
		Query("limit", "1").
		Query("page", "2").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$.data", 1)).
		Assert(jsonpath.Equal("$.data[0].username", "bao")).
		Assert(jsonpath.Equal("$.meta.total", float64(2))).
		Assert(jsonpath.Equal("$.meta.total_pages", float64(2))).
		End()
}
