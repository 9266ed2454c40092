// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taibuivan/payhub/internal/platform/validate"
	"github.com/taibuivan/payhub/pkg/pagination"
	"github.com/taibuivan/payhub/pkg/slice"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (service *Service) ListPlans(context context.Context) ([]*Plan, error) {
	return service.repo.ListPlans(context)
}

func (service *Service) CreatePlan(context context.Context, plan *Plan) error {
	if err := normalizeAndValidate(plan); err != nil {
		return err
	}

	if err := service.repo.CreatePlan(context, plan); err != nil {
		return err
	}

	service.logger.Info("plan_created", slog.Int64("plan_id", plan.ID), slog.String("name", plan.Name))
	return nil
}

func (service *Service) UpdatePlan(context context.Context, id int64, plan *Plan) error {
	plan.ID = id
	if err := normalizeAndValidate(plan); err != nil {
		return err
	}

	if err := service.repo.UpdatePlan(context, plan); err != nil {
		return err
	}

	service.logger.Info("plan_updated", slog.Int64("plan_id", plan.ID))
	return nil
}

func (service *Service) DeletePlan(context context.Context, id int64) error {
	if err := service.repo.DeletePlan(context, id); err != nil {
		return err
	}

	service.logger.Warn("plan_deleted", slog.Int64("plan_id", id))
	return nil
}

func (service *Service) ListSubscriptions(context context.Context, params pagination.Params) ([]*Subscription, int, error) {
	return service.repo.ListSubscriptions(context, params)
}

// normalizeAndValidate trims the plan's text fields, drops blank features and
// checks the result.
func normalizeAndValidate(plan *Plan) error {
	plan.Name = strings.TrimSpace(plan.Name)
	plan.BillingCycle = strings.TrimSpace(plan.BillingCycle)

	plan.Features = slice.Filter(slice.Map(plan.Features, strings.TrimSpace), func(feature string) bool {
		return feature != ""
	})

	validator := &validate.Validator{}
	validator.Required(FieldName, plan.Name).
		MaxLen(FieldName, plan.Name, NameMaxLength).
		Range(FieldPrice, plan.Price, 0, MaxPrice).
		OneOf(FieldBillingCycle, plan.BillingCycle, CycleMonth, CycleYear).
		Custom(FieldFeatures, len(plan.Features) > MaxFeatures, fmt.Sprintf("At most %d features", MaxFeatures))

	for _, feature := range plan.Features {
		validator.MaxLen(FieldFeatures, feature, FeatureMaxLength)
	}

	return validator.Err()
}
