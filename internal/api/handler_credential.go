package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dairy-collection-backend/internal/parse"
	"dairy-collection-backend/internal/render"
)

// DevicePassword delivers a machine credential once its status flag is
// set. An unset flag yields the sentinel even when a value is stored.
func (h *Handler) DevicePassword(c *gin.Context) {
	p := policyPassword
	tc, cmd, err := h.deviceRequest(c)
	if err != nil {
		h.fail(c, p, err)
		return
	}

	req, err := parse.ParseCredential(cmd, parse.GrammarNumericFirst, false)
	if err != nil {
		h.fail(c, p, err)
		return
	}

	ctx := c.Request.Context()
	soc, err := h.store.FindSociety(ctx, tc, req.Society)
	if err != nil {
		h.fail(c, p, err)
		return
	}
	mach, err := h.store.FindMachine(ctx, tc, soc.ID, req.Machine, true)
	if err != nil {
		h.fail(c, p, err)
		return
	}

	password, err := h.store.Credential(ctx, tc, mach.ID, req.Role)
	if err != nil {
		h.fail(c, p, err)
		return
	}
	c.String(http.StatusOK, render.Credential(byte(req.Role), password))
}

// DevicePasswordClear acknowledges that the device retrieved the
// credential: the flag flips to "not set". Idempotent.
func (h *Handler) DevicePasswordClear(c *gin.Context) {
	p := policyPassword
	tc, cmd, err := h.deviceRequest(c)
	if err != nil {
		h.fail(c, p, err)
		return
	}

	req, err := parse.ParseCredential(cmd, parse.GrammarNumericFirst, true)
	if err != nil {
		h.fail(c, p, err)
		return
	}

	ctx := c.Request.Context()
	soc, err := h.store.FindSociety(ctx, tc, req.Society)
	if err != nil {
		h.fail(c, p, err)
		return
	}
	mach, err := h.store.FindMachine(ctx, tc, soc.ID, req.Machine, false)
	if err != nil {
		h.fail(c, p, err)
		return
	}

	if err := h.store.ClearCredential(ctx, tc, mach.ID, req.Role); err != nil {
		h.fail(c, p, err)
		return
	}
	c.String(http.StatusOK, "Success")
}
