package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/yicheng0/tryveo4/app/models"
	"github.com/yicheng0/tryveo4/app/repository"
)

type planRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Interval       string `json:"interval"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	StripePriceID  string `json:"stripe_price_id"`
	OneTimeCredits int64  `json:"one_time_credits"`
	MonthlyCredits int64  `json:"monthly_credits"`
	TotalMonths    int    `json:"total_months"`
	IsActive       bool   `json:"is_active"`
	SortOrder      int    `json:"sort_order"`
}

func (r *planRequest) apply(plan *models.PricingPlan) error {
	plan.Name = r.Name
	plan.Description = r.Description
	plan.Interval = r.Interval
	plan.AmountCents = r.AmountCents
	plan.Currency = strings.ToLower(strings.TrimSpace(r.Currency))
	plan.StripePriceID = strings.TrimSpace(r.StripePriceID)
	plan.IsActive = r.IsActive
	plan.SortOrder = r.SortOrder
	return plan.SetBenefits(models.PlanBenefits{
		OneTimeCredits: r.OneTimeCredits,
		MonthlyCredits: r.MonthlyCredits,
		TotalMonths:    r.TotalMonths,
	})
}

// HandleAdminListPlans returns every plan including inactive ones.
func HandleAdminListPlans(c *fiber.Ctx) error {
	plans, err := repository.GetGlobalFactory().GetPlanRepository().GetAll()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load plans")
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// HandleAdminCreatePlan creates a pricing plan.
func HandleAdminCreatePlan(c *fiber.Ctx) error {
	var req planRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}

	plan := &models.PricingPlan{}
	if err := req.apply(plan); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid benefits")
	}
	if err := plan.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	if err := repository.GetGlobalFactory().GetPlanRepository().Create(plan); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create plan")
	}
	return c.Status(fiber.StatusCreated).JSON(plan)
}

// HandleAdminUpdatePlan updates a pricing plan. The billing flow only reads
// plans, so edits never rewrite past orders.
func HandleAdminUpdatePlan(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid plan id")
	}

	var req planRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}

	planRepo := repository.GetGlobalFactory().GetPlanRepository()
	plan, err := planRepo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Plan not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load plan")
	}

	if err := req.apply(plan); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid benefits")
	}
	if err := plan.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	if err := planRepo.Update(plan); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update plan")
	}
	return c.JSON(plan)
}

// HandleAdminDeletePlan soft-deletes a plan. Existing orders keep their
// plan_id references.
func HandleAdminDeletePlan(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid plan id")
	}
	if err := repository.GetGlobalFactory().GetPlanRepository().Delete(uint(id)); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to delete plan")
	}
	return c.JSON(fiber.Map{"ok": true})
}
