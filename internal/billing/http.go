// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/taibuivan/payhub/internal/platform/request"
	"github.com/taibuivan/payhub/internal/platform/respond"
	"github.com/taibuivan/payhub/pkg/pagination"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes binds the public catalogue.
func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/plans", handler.listPlans)
}

// RegisterAdminRoutes binds plan management and the subscription listing. The
// caller guards router with [middleware.RequireAdmin].
func (handler *Handler) RegisterAdminRoutes(router chi.Router) {
	router.Route("/plans", func(plans chi.Router) {
		plans.Get("/", handler.listPlans)
		plans.Post("/", handler.createPlan)
		plans.Put("/{id}", handler.updatePlan)
		plans.Delete("/{id}", handler.deletePlan)
	})
	router.Get("/subscriptions", handler.listSubscriptions)
}

type planRequest struct {
	Name         string   `json:"name"`
	Price        int      `json:"price"`
	BillingCycle string   `json:"billingCycle"`
	Features     []string `json:"features"`
	IsPopular    bool     `json:"isPopular"`
}

func (input planRequest) plan() *Plan {
	return &Plan{
		Name:         input.Name,
		Price:        input.Price,
		BillingCycle: input.BillingCycle,
		Features:     input.Features,
		IsPopular:    input.IsPopular,
	}
}

func (handler *Handler) listPlans(writer http.ResponseWriter, request *http.Request) {
	plans, err := handler.service.ListPlans(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, plans)
}

func (handler *Handler) createPlan(writer http.ResponseWriter, request *http.Request) {
	var input planRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	plan := input.plan()
	if err := handler.service.CreatePlan(request.Context(), plan); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, plan)
}

func (handler *Handler) updatePlan(writer http.ResponseWriter, request *http.Request) {
	planID, err := requestutil.IntParam(request, "id", "Plan")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input planRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	plan := input.plan()
	if err := handler.service.UpdatePlan(request.Context(), planID, plan); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, plan)
}

func (handler *Handler) deletePlan(writer http.ResponseWriter, request *http.Request) {
	planID, err := requestutil.IntParam(request, "id", "Plan")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.DeletePlan(request.Context(), planID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

func (handler *Handler) listSubscriptions(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	subscriptions, total, err := handler.service.ListSubscriptions(request.Context(), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, subscriptions, pagination.NewMeta(params.Page, params.Limit, total))
}
