package repository

import (
	"context"
	"time"

	"github.com/AzielCF/az-flow/domains/tenant"
	gocache "github.com/patrickmn/go-cache"
)

// CachedTenantRepository keeps tenant lookups of the webhook hot path in a TTL cache.
// Misses and errors are never cached.
type CachedTenantRepository struct {
	inner tenant.ITenantRepository
	cache *gocache.Cache
}

func NewCachedTenantRepository(inner tenant.ITenantRepository, ttl time.Duration) *CachedTenantRepository {
	return &CachedTenantRepository{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (r *CachedTenantRepository) GetTenant(ctx context.Context, id string) (tenant.Tenant, error) {
	key := "tenant:" + id
	if v, ok := r.cache.Get(key); ok {
		return v.(tenant.Tenant), nil
	}
	t, err := r.inner.GetTenant(ctx, id)
	if err != nil {
		return t, err
	}
	r.cache.SetDefault(key, t)
	return t, nil
}

func (r *CachedTenantRepository) GetBotConfig(ctx context.Context, tenantID string) (tenant.BotConfig, error) {
	key := "bot:" + tenantID
	if v, ok := r.cache.Get(key); ok {
		return v.(tenant.BotConfig), nil
	}
	c, err := r.inner.GetBotConfig(ctx, tenantID)
	if err != nil {
		return c, err
	}
	r.cache.SetDefault(key, c)
	return c, nil
}

func (r *CachedTenantRepository) GetInstance(ctx context.Context, tenantID string) (tenant.WhatsAppInstance, error) {
	key := "instance:" + tenantID
	if v, ok := r.cache.Get(key); ok {
		return v.(tenant.WhatsAppInstance), nil
	}
	inst, err := r.inner.GetInstance(ctx, tenantID)
	if err != nil {
		return inst, err
	}
	r.cache.SetDefault(key, inst)
	return inst, nil
}

func (r *CachedTenantRepository) EnsureBotConfig(ctx context.Context, tenantID string, engine tenant.EngineType) (tenant.BotConfig, error) {
	r.cache.Delete("bot:" + tenantID)
	return r.inner.EnsureBotConfig(ctx, tenantID, engine)
}

func (r *CachedTenantRepository) UpdateInstanceStatus(ctx context.Context, tenantID string, status tenant.InstanceStatus) error {
	r.cache.Delete("instance:" + tenantID)
	return r.inner.UpdateInstanceStatus(ctx, tenantID, status)
}

// Invalidate drops every cached entry of a tenant (called after admin writes).
func (r *CachedTenantRepository) Invalidate(tenantID string) {
	r.cache.Delete("tenant:" + tenantID)
	r.cache.Delete("bot:" + tenantID)
	r.cache.Delete("instance:" + tenantID)
}
