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

// DeviceRateChart serves the active price chart for the machine's society
// and channel as CSV, recording the download. Safe to call repeatedly:
// the history upsert absorbs device retries.
func (h *Handler) DeviceRateChart(c *gin.Context) {
	p := policyChart
	tc, cmd, err := h.deviceRequest(c)
	if err != nil {
		h.fail(c, p, err)
		return
	}

	req, err := parse.ParseRateChart(cmd, parse.GrammarLetterInfix)
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

	chart, err := h.store.ActiveRateChart(ctx, tc, soc.ID, req.Channel)
	if err != nil {
		h.fail(c, p, err)
		return
	}
	prices, err := h.store.ChartPrices(ctx, tc, chart.ID)
	if err != nil {
		h.fail(c, p, err)
		return
	}
	if err := h.store.RecordChartDownload(ctx, tc, chart.ID, mach.ID, time.Now()); err != nil {
		h.fail(c, p, err)
		return
	}

	h.notify(notification.Event{
		TenantID:  tc.ID,
		MachineID: mach.ID,
		Message:   fmt.Sprintf("Machine %s downloaded rate chart %q (%s)", machineLabel(mach), chart.Name, req.Channel),
	})
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(render.RateChartCSV(prices)))
}
