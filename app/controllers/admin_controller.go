package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/yicheng0/tryveo4/app/models"
	"github.com/yicheng0/tryveo4/app/repository"
	"github.com/yicheng0/tryveo4/internal/pkg/credits"
	"github.com/yicheng0/tryveo4/internal/pkg/database"
)

// HandleAdminDashboard returns the headline counts plus recent orders.
func HandleAdminDashboard(c *fiber.Ctx) error {
	repos := repository.GetGlobalFactory()

	userCount, err := repos.GetUserRepository().Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count users")
	}
	postCount, err := repos.GetPostRepository().Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count posts")
	}
	orderCount, err := repos.GetOrderRepository().Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count orders")
	}
	subCount, err := repos.GetSubscriptionRepository().Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count subscriptions")
	}
	recentOrders, err := repos.GetOrderRepository().List(0, 10)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load orders")
	}

	return c.JSON(fiber.Map{
		"counts": fiber.Map{
			"users":         userCount,
			"posts":         postCount,
			"orders":        orderCount,
			"subscriptions": subCount,
		},
		"recent_orders": recentOrders,
	})
}

// HandleAdminListUsers returns users, optionally filtered by ?q=.
func HandleAdminListUsers(c *fiber.Ctx) error {
	userRepo := repository.GetGlobalFactory().GetUserRepository()

	if query := c.Query("q"); query != "" {
		users, err := userRepo.Search(query)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Search failed")
		}
		return c.JSON(fiber.Map{"users": users, "total": len(users)})
	}

	offset, limit := parsePagination(c)
	users, err := userRepo.List(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load users")
	}
	total, err := userRepo.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count users")
	}
	return c.JSON(fiber.Map{"users": users, "total": total})
}

// HandleAdminGetUser returns one user with balances and billing state.
func HandleAdminGetUser(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid user id")
	}

	repos := repository.GetGlobalFactory()
	user, err := repos.GetUserRepository().GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	creditSvc := credits.NewServiceFromDB(database.GetDB())
	usage, err := creditSvc.GetUsage(c.UserContext(), user.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load balances")
	}
	orders, err := repos.GetOrderRepository().GetByUserID(user.ID, 0, 20)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load orders")
	}
	subs, err := repos.GetSubscriptionRepository().GetByUserID(user.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscriptions")
	}
	logs, err := creditSvc.ListLogs(c.UserContext(), user.ID, 50)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load credit history")
	}

	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":                 user.ID,
			"name":               user.Name,
			"email":              user.Email,
			"role":               user.Role,
			"status":             user.Status,
			"stripe_customer_id": user.StripeCustomerID,
			"created_at":         user.CreatedAt.UTC(),
		},
		"credits": fiber.Map{
			"one_time":     usage.OneTimeCredits,
			"subscription": usage.SubscriptionCredits,
			"total":        usage.TotalCredits(),
		},
		"orders":        orders,
		"subscriptions": subs,
		"credit_log":    logs,
	})
}

// HandleAdminAdjustCredits applies a manual signed credit adjustment with a
// required note for the audit log.
func HandleAdminAdjustCredits(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid user id")
	}

	var req struct {
		CreditType  string `json:"credit_type"`
		Delta       int64  `json:"delta"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if req.Delta == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "delta must be non-zero")
	}
	if req.Description == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "description is required")
	}
	if req.CreditType != models.CreditTypeOneTime && req.CreditType != models.CreditTypeSubscription {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "credit_type must be one_time or subscription")
	}

	creditSvc := credits.NewServiceFromDB(database.GetDB())
	usage, err := creditSvc.AdminAdjust(c.UserContext(), uint(id), req.CreditType, req.Delta, req.Description)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Adjustment failed")
	}

	return c.JSON(fiber.Map{
		"credits": fiber.Map{
			"one_time":     usage.OneTimeCredits,
			"subscription": usage.SubscriptionCredits,
			"total":        usage.TotalCredits(),
		},
	})
}

// HandleAdminListOrders returns the full order ledger.
func HandleAdminListOrders(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	orderRepo := repository.GetGlobalFactory().GetOrderRepository()

	orders, err := orderRepo.List(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load orders")
	}
	total, err := orderRepo.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count orders")
	}
	return c.JSON(fiber.Map{"orders": orders, "total": total})
}

// HandleAdminListSubscriptions returns the subscription mirrors.
func HandleAdminListSubscriptions(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	subRepo := repository.GetGlobalFactory().GetSubscriptionRepository()

	subs, err := subRepo.List(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscriptions")
	}
	total, err := subRepo.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count subscriptions")
	}
	return c.JSON(fiber.Map{"subscriptions": subs, "total": total})
}
