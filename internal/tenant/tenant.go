// Package tenant resolves opaque organization keys to relational schemas.
// Tenant isolation is structural: every tenant-scoped query takes a
// Context value, and only the resolver produces them.
package tenant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"dairy-collection-backend/internal/model"
)

// ErrNotFound is returned for unknown and malformed keys alike, so a
// probing client cannot distinguish the two.
var ErrNotFound = errors.New("tenant not found")

// Context carries the resolved tenant for one request.
type Context struct {
	ID     uint
	Name   string
	Schema string
}

// Table returns the schema-qualified name for a tenant table. An empty
// schema leaves the name unqualified (single-schema test databases).
func (c Context) Table(name string) string {
	if c.Schema == "" {
		return name
	}
	return c.Schema + "." + name
}

// SchemaName derives the relational schema name for a tenant: the display
// name reduced to its alphanumeric characters and lowercased, concatenated
// with the lowercased key. Derivation instead of storage keeps schema
// naming reproducible and auditable.
func SchemaName(displayName, key string) string {
	var b strings.Builder
	for _, r := range displayName {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	b.WriteString(strings.ToLower(key))
	return b.String()
}

// Resolver maps tenant keys to schema contexts, caching hits. Tenant rows
// are immutable after provisioning, so cached entries cannot go stale in a
// way that matters.
type Resolver struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewResolver creates a resolver backed by the given database handle.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{
		db:    db,
		cache: cache.New(10*time.Minute, 30*time.Minute),
	}
}

// Resolve maps an opaque, case-insensitive tenant key to its schema
// context.
func (r *Resolver) Resolve(ctx context.Context, key string) (Context, error) {
	k := strings.ToUpper(strings.TrimSpace(key))
	if k == "" {
		return Context{}, ErrNotFound
	}

	if v, ok := r.cache.Get(k); ok {
		return v.(Context), nil
	}

	var t model.Tenant
	err := r.db.WithContext(ctx).Where("org_key = ? AND active = ?", k, true).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Context{}, ErrNotFound
	}
	if err != nil {
		return Context{}, err
	}

	tc := Context{ID: t.ID, Name: t.Name, Schema: SchemaName(t.Name, t.OrgKey)}
	r.cache.Set(k, tc, cache.DefaultExpiration)
	return tc, nil
}
