package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dairy-collection-backend/internal/parse"
	"dairy-collection-backend/internal/render"
)

// DeviceRoster serves the farmer roster: the 4-field grammar yields the
// full CSV export, the 5-field grammar one page of five farmers.
func (h *Handler) DeviceRoster(c *gin.Context) {
	p := policyRoster
	tc, cmd, err := h.deviceRequest(c)
	if err != nil {
		h.fail(c, p, err)
		return
	}

	req, err := parse.ParseRoster(cmd, parse.GrammarNumericFirst)
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

	if req.Page > 0 {
		farmers, err := h.store.ListFarmersPage(ctx, tc, soc.ID, mach.ID, req.Page)
		if err != nil {
			h.fail(c, p, err)
			return
		}
		// An empty first page means the society has no farmers at all;
		// an empty later page is just a device walking past the end.
		if len(farmers) == 0 && req.Page == 1 {
			c.String(http.StatusOK, p.Sentinel)
			return
		}
		c.String(http.StatusOK, render.RosterPage(farmers))
		return
	}

	farmers, err := h.store.ListFarmers(ctx, tc, soc.ID, mach.ID)
	if err != nil {
		h.fail(c, p, err)
		return
	}
	if len(farmers) == 0 {
		c.String(http.StatusOK, p.Sentinel)
		return
	}
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(render.RosterCSV(farmers)))
}
