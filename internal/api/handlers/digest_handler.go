package handlers

import (
	"errors"

	"topli_chat/internal/chat/domain"
	notifyapp "topli_chat/internal/notify/app"
	"topli_chat/pkg/logger"
	"topli_chat/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DigestHandler manual digest trigger
type DigestHandler struct {
	runner notifyapp.DigestRunner
}

// NewDigestHandler create DigestHandler
func NewDigestHandler(runner notifyapp.DigestRunner) *DigestHandler {
	return &DigestHandler{runner: runner}
}

// Run 手動觸發每日摘要，與排程共用同一把鎖
// @Summary Run daily digest now
// @Tags Digest
// @Produce json
// @Success 200 {object} notifydomain.DigestReport
// @Failure 409 {object} ErrorResponse "already executed within the cooldown"
// @Security BearerAuth
// @Router /digest/run [post]
func (h *DigestHandler) Run(c *fiber.Ctx) error {
	uid, _ := middlewares.Caller(c)
	logger.Log.Info("manual digest requested", zap.String("uid", uid))

	report, err := h.runner.Run(c.UserContext())
	if errors.Is(err, domain.ErrAlreadyExecuted) {
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: "digest already executed"})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(report)
}
