package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dairy-collection-backend/internal/logs"
	"dairy-collection-backend/internal/mw"
	"dairy-collection-backend/internal/parse"
	"dairy-collection-backend/internal/store"
	"dairy-collection-backend/internal/tenant"
)

// Fixed sentinel bodies the firmware parses instead of HTTP status codes.
const (
	sentinelFarmers    = "Farmer details not found."
	sentinelCorrection = "Machine correction not found."
	sentinelPassword   = "Machine password not found."
	sentinelChart      = "Price chart not found."
)

// ResponsePolicy makes each endpoint's legacy failure behavior an explicit
// configuration: real HTTP status codes, or HTTP 200 with a fixed sentinel
// body for every failure class. The embedded clients that need the latter
// cannot branch on status codes and parse the body text instead.
type ResponsePolicy struct {
	Sentinel     string
	SentinelOnly bool
}

var (
	policyRoster     = ResponsePolicy{Sentinel: sentinelFarmers}
	policyCorrection = ResponsePolicy{Sentinel: sentinelCorrection, SentinelOnly: true}
	policyPassword   = ResponsePolicy{Sentinel: sentinelPassword, SentinelOnly: true}
	policyChart      = ResponsePolicy{Sentinel: sentinelChart, SentinelOnly: true}
)

// fail terminates the request per the endpoint's policy. Internal errors
// are logged with request context but never reflected to the device.
func (h *Handler) fail(c *gin.Context, p ResponsePolicy, err error) {
	logDeviceError(c, err)

	if p.SentinelOnly {
		c.String(http.StatusOK, p.Sentinel)
		return
	}

	switch {
	case errors.Is(err, parse.ErrDecode), errors.Is(err, parse.ErrMalformed):
		c.String(http.StatusBadRequest, "Invalid command.")
	case errors.Is(err, tenant.ErrNotFound):
		c.String(http.StatusNotFound, "Organization not found.")
	case errors.Is(err, store.ErrSocietyNotFound), errors.Is(err, store.ErrMachineNotFound):
		c.String(http.StatusNotFound, p.Sentinel)
	default:
		c.String(http.StatusInternalServerError, "Internal error.")
	}
}

func expectedError(err error) bool {
	for _, known := range []error{
		parse.ErrDecode,
		parse.ErrMalformed,
		tenant.ErrNotFound,
		store.ErrSocietyNotFound,
		store.ErrMachineNotFound,
		store.ErrCorrectionNotFound,
		store.ErrCredentialNotSet,
		store.ErrChartNotFound,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

func logDeviceError(c *gin.Context, err error) {
	entry := logs.Logger.WithFields(logrus.Fields{
		"path":       c.FullPath(),
		"org":        orgKey(c),
		"request_id": c.GetString(mw.RequestIDKey),
	})
	if expectedError(err) {
		entry.WithError(err).Debug("device request rejected")
		return
	}
	entry.WithError(err).Error("device request failed")
}
