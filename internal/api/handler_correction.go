package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dairy-collection-backend/internal/notification"
	"dairy-collection-backend/internal/parse"
	"dairy-collection-backend/internal/render"
)

// DeviceCorrection serves the machine's active calibration offsets.
func (h *Handler) DeviceCorrection(c *gin.Context) {
	p := policyCorrection
	tc, cmd, err := h.deviceRequest(c)
	if err != nil {
		h.fail(c, p, err)
		return
	}

	req, err := parse.ParseRead(cmd, parse.GrammarNumericFirst)
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

	cor, err := h.store.ActiveCorrection(ctx, tc, mach.ID)
	if err != nil {
		h.fail(c, p, err)
		return
	}
	c.String(http.StatusOK, render.Correction(cor))
}

// DeviceCorrectionSave applies a device-originated correction write for
// one channel. Suspended machines are still accepted: a terminal keeps
// reporting against rows an admin may have since disabled.
func (h *Handler) DeviceCorrectionSave(c *gin.Context) {
	p := policyCorrection
	tc, cmd, err := h.deviceRequest(c)
	if err != nil {
		h.fail(c, p, err)
		return
	}

	req, err := parse.ParseCorrectionWrite(cmd, parse.GrammarNumericFirst)
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

	if err := h.store.SaveCorrection(ctx, tc, mach.ID, req.Channel, req.Values, time.Now()); err != nil {
		h.fail(c, p, err)
		return
	}

	h.notify(notification.Event{
		TenantID:  tc.ID,
		MachineID: mach.ID,
		Message:   fmt.Sprintf("Machine %s uploaded a %s correction", machineLabel(mach), req.Channel),
	})
	c.String(http.StatusOK, "Success")
}

// DeviceCorrectionReset is the device's "correction applied"
// acknowledgement: all active rows for the machine go inactive.
func (h *Handler) DeviceCorrectionReset(c *gin.Context) {
	p := policyCorrection
	tc, cmd, err := h.deviceRequest(c)
	if err != nil {
		h.fail(c, p, err)
		return
	}

	req, err := parse.ParseRead(cmd, parse.GrammarNumericFirst)
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

	if err := h.store.InvalidateCorrections(ctx, tc, mach.ID); err != nil {
		h.fail(c, p, err)
		return
	}
	c.String(http.StatusOK, "Success")
}
