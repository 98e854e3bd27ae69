package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dairy-collection-backend/internal/model"
	"dairy-collection-backend/internal/tenant"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
	OrgKey   string `json:"org_key" binding:"required"`
	Machines []uint `json:"machines"`
}

// PutSubscription creates or replaces an operator's push subscription and
// the set of machines it watches.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	tc, err := h.tenants.Resolve(c.Request.Context(), req.OrgKey)
	if err == tenant.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	targets := make([]model.SubscriptionTarget, 0, len(req.Machines))
	for _, machineID := range req.Machines {
		targets = append(targets, model.SubscriptionTarget{
			TenantID:  tc.ID,
			MachineID: machineID,
		})
	}

	sub := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.store.UpsertSubscription(c.Request.Context(), sub, targets); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription removes a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// rawQueryParam reads a query value without URL decoding; push endpoints
// contain characters gin's binding would mangle.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

type subscriptionTargetResponse struct {
	TenantID  uint `json:"tenant_id"`
	MachineID uint `json:"machine_id"`
}

// GetSubscription returns what a subscription currently watches.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	targets, err := h.store.SubscriptionTargets(c.Request.Context(), raw)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]subscriptionTargetResponse, len(targets))
	for i, t := range targets {
		out[i] = subscriptionTargetResponse{TenantID: t.TenantID, MachineID: t.MachineID}
	}
	c.JSON(http.StatusOK, gin.H{"targets": out})
}
