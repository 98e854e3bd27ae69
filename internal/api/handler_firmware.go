package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dairy-collection-backend/internal/parse"
	"dairy-collection-backend/internal/render"
)

// DeviceFirmware is the firmware-update handshake. There is no update
// channel wired yet, so a valid request always reports "No update" —
// but tenant, society, and machine shape are still validated. The
// endpoint must never surface a non-200 to the device: any failure,
// including a panic, yields a well-formed "|Error" line at HTTP 200.
func (h *Handler) DeviceFirmware(c *gin.Context) {
	now := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logDeviceError(c, fmt.Errorf("firmware handshake panic: %v", r))
			c.String(http.StatusOK, render.Handshake(now, render.HandshakeError))
		}
	}()

	if err := h.firmwareCheck(c); err != nil {
		logDeviceError(c, err)
		c.String(http.StatusOK, render.Handshake(now, render.HandshakeError))
		return
	}
	c.String(http.StatusOK, render.Handshake(now, render.HandshakeNoUpdate))
}

func (h *Handler) firmwareCheck(c *gin.Context) error {
	tc, cmd, err := h.deviceRequest(c)
	if err != nil {
		return err
	}
	req, err := parse.ParseHandshake(cmd, parse.GrammarLetterInfix)
	if err != nil {
		return err
	}

	ctx := c.Request.Context()
	soc, err := h.store.FindSociety(ctx, tc, req.Society)
	if err != nil {
		return err
	}
	if _, err := h.store.FindMachine(ctx, tc, soc.ID, req.Machine, true); err != nil {
		return err
	}
	return nil
}
