package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"reverc/internal/server/core"
	"reverc/internal/server/processor"
)

// AdminLogin exchanges the admin password for a bearer token
func (h *HTTPHandler) AdminLogin(c *fiber.Ctx) error {
	req, errResp := validatedBody[core.AdminLoginRequest](c)
	if errResp != nil {
		return fail(c, errResp)
	}

	token, expiresAt, err := h.svc.AdminLogin(req.Password)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(core.TokenResponse{Token: token, ExpiresAt: expiresAt.Unix()})
}

// StoreArchive writes curated source into the archive and runs the
// pipeline inline, answering with the terminal status
func (h *HTTPHandler) StoreArchive(c *fiber.Ctx) error {
	src, errResp := h.readSource(c)
	if errResp != nil {
		return fail(c, errResp)
	}

	cmd := processor.NewStoreArchiveCommand(c.Params("group"), c.Params("id"), src)
	resp := h.proc.Execute(c.UserContext(), cmd)
	if !resp.Success {
		return fail(c, resp.Error)
	}
	h.logger.Info().Str("group", c.Params("group")).Str("id", c.Params("id")).Msg("archive stored")
	return c.Status(fiber.StatusCreated).JSON(resp.Data)
}

// ListInvocations returns the newest live invocations, optionally
// filtered by class and artifact id
func (h *HTTPHandler) ListInvocations(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultQueryLimit)
	if limit <= 0 || limit > 1000 {
		return badRequest(c, "invalid limit", "limit must be between 1 and 1000")
	}

	recs, err := h.svc.Invocations(c.Query("class"), c.Query("id"), limit)
	if err != nil {
		return h.serviceError(c, err)
	}

	out := make([]core.InvocationResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, core.InvocationResponse{
			InvocationID: r.InvocationID,
			Class:        r.Class,
			Group:        r.ArchiveGroup,
			ArtifactID:   r.ArtifactID,
			BoardSize:    r.BoardSize,
			Turn:         r.Turn,
			Row:          r.Row,
			Col:          r.Col,
			ReturnValue:  r.ReturnValue,
			Elapsed:      r.ElapsedMicros,
			TimedOut:     r.TimedOut,
			Fault:        r.Fault,
			InvokedAt:    r.InvokedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(out)
}
