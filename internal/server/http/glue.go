package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"reverc/internal/server/core"
	"reverc/internal/server/service"
	"reverc/internal/server/storage"
)

// serviceError maps service errors; unknown ones are logged and hidden
func (h *HTTPHandler) serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrStorageDisabled):
		return fail(c, &core.ErrorResponse{Error: err.Error(), Code: core.ErrStorageDisabled})
	case errors.Is(err, service.ErrSetupNotFound):
		return fail(c, &core.ErrorResponse{Error: err.Error(), Code: core.ErrNotFound})
	case errors.Is(err, service.ErrAdminDisabled), errors.Is(err, service.ErrInvalidCredentials):
		return fail(c, &core.ErrorResponse{Error: err.Error(), Code: core.ErrUnauthorized})
	default:
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("service call failed")
		return fail(c, &core.ErrorResponse{Error: "internal error", Code: core.ErrInternalError})
	}
}

// SaveSetup stores the opaque match setup
func (h *HTTPHandler) SaveSetup(c *fiber.Ctx) error {
	req, errResp := validatedBody[core.SetupRequest](c)
	if errResp != nil {
		return fail(c, errResp)
	}
	if err := h.svc.SaveSetup(req.MatchID, req.SetupData); err != nil {
		if errors.Is(err, service.ErrStorageDisabled) {
			return h.serviceError(c, err)
		}
		return badRequest(c, "invalid setup", err.Error())
	}
	return c.JSON(fiber.Map{"success": "ok"})
}

// GetSetup returns the setup object exactly as stored
func (h *HTTPHandler) GetSetup(c *fiber.Ctx) error {
	matchID := c.Params("matchId")
	if matchID == "" || len(matchID) > 64 {
		return badRequest(c, "invalid match id", "")
	}
	data, err := h.svc.GetSetup(matchID)
	if err != nil {
		return h.serviceError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

func (h *HTTPHandler) GetStats(c *fiber.Ctx) error {
	rec, err := h.svc.GetStats()
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(statsResponse(rec))
}

// IncrementStats counts one finished game and returns the new totals
func (h *HTTPHandler) IncrementStats(c *fiber.Ctx) error {
	rec, err := h.svc.IncrementStats()
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(statsResponse(rec))
}

func statsResponse(rec *storage.StatsRecord) core.StatsResponse {
	resp := core.StatsResponse{TotalGames: rec.TotalGames}
	if !rec.LastUpdated.IsZero() {
		resp.LastUpdated = rec.LastUpdated.UTC().Format(time.RFC3339)
	}
	return resp
}
