package controllers

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yicheng0/tryveo4/app/models"
	"github.com/yicheng0/tryveo4/internal/pkg/ai"
	"github.com/yicheng0/tryveo4/internal/pkg/credits"
	"github.com/yicheng0/tryveo4/internal/pkg/database"
	"github.com/yicheng0/tryveo4/internal/pkg/usercontext"
)

// creditsPerGeneration is the flat price of one AI demo call.
const creditsPerGeneration = 1

var (
	aiSvc   *ai.Service
	aiSvcMu sync.Mutex
)

func getAIService(c *fiber.Ctx) (*ai.Service, error) {
	aiSvcMu.Lock()
	defer aiSvcMu.Unlock()
	if aiSvc != nil {
		return aiSvc, nil
	}
	svc, err := ai.NewService(c.UserContext())
	if err != nil {
		return nil, err
	}
	aiSvc = svc
	return aiSvc, nil
}

// HandleAIGenerate runs the text generation demo. Pending yearly drip months
// are credited first, then one credit is deducted before the model call.
func HandleAIGenerate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := c.BodyParser(&req); err != nil || req.Prompt == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "prompt is required")
	}

	svc, err := getAIService(c)
	if err != nil {
		log.Printf("ai service unavailable: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "ai_unavailable", "AI generation is not configured")
	}

	creditSvc := credits.NewServiceFromDB(database.GetDB())
	ctx := c.UserContext()

	// Catch up the yearly drip schedule before checking the balance.
	if _, err := creditSvc.AllocateDueMonths(ctx, userCtx.UserID, time.Now()); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Credit allocation failed")
	}

	if _, err := creditSvc.Deduct(ctx, userCtx.UserID, creditsPerGeneration, "ai_generation"); err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			return jsonError(c, fiber.StatusPaymentRequired, "insufficient_credits", "Not enough credits")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Credit deduction failed")
	}

	result, err := svc.Generate(ctx, req.Prompt)
	if err != nil {
		// The credit is spent; refund it since nothing was delivered.
		if _, refundErr := creditSvc.AdminAdjust(ctx, userCtx.UserID, models.CreditTypeOneTime, creditsPerGeneration, "refund: ai generation failed"); refundErr != nil {
			log.Printf("ai credit refund failed for user %d: %v", userCtx.UserID, refundErr)
		}
		log.Printf("ai generation failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusBadGateway, "generation_failed", "AI generation failed")
	}

	usage, err := creditSvc.GetUsage(ctx, userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load balance")
	}

	return c.JSON(fiber.Map{
		"result":            result,
		"credits_remaining": usage.TotalCredits(),
	})
}
