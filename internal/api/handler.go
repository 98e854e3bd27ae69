package api

import (
	"context"
	"fmt"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"dairy-collection-backend/internal/model"
	"dairy-collection-backend/internal/notification"
	"dairy-collection-backend/internal/parse"
	"dairy-collection-backend/internal/store"
	"dairy-collection-backend/internal/tenant"
)

// TenantResolver maps an opaque tenant key to its schema context.
type TenantResolver interface {
	Resolve(ctx context.Context, key string) (tenant.Context, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	tenants TenantResolver
	webpush *webpush.Options
	pool    *notification.WorkerPool
}

// NewHandler creates a new API handler. pool may be nil when push
// notifications are not configured.
func NewHandler(s store.Store, tenants TenantResolver, webpushOptions *webpush.Options, pool *notification.WorkerPool) *Handler {
	return &Handler{
		store:   s,
		tenants: tenants,
		webpush: webpushOptions,
		pool:    pool,
	}
}

// orgKey extracts the tenant key from a device request.
func orgKey(c *gin.Context) string {
	if k := c.Query("OrgId"); k != "" {
		return k
	}
	return c.PostForm("OrgId")
}

// deviceRequest decodes the command payload and resolves the tenant for
// one device request. The two are independent; decode runs first so a
// missing payload fails fast.
func (h *Handler) deviceRequest(c *gin.Context) (tenant.Context, parse.Command, error) {
	raw, err := parse.ExtractCommand(c.Request)
	if err != nil {
		return tenant.Context{}, parse.Command{}, err
	}
	tc, err := h.tenants.Resolve(c.Request.Context(), orgKey(c))
	if err != nil {
		return tenant.Context{}, parse.Command{}, err
	}
	return tc, parse.Split(raw), nil
}

func (h *Handler) notify(ev notification.Event) {
	if h.pool != nil {
		h.pool.Dispatch(ev)
	}
}

// machineLabel names a machine in operator-facing messages.
func machineLabel(m *model.Machine) string {
	if m.Code != "" {
		return "M" + m.Code
	}
	return fmt.Sprintf("M%d", m.ID)
}
