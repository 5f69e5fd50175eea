// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
	"github.com/carterperez-dev/templates/go-auth-api/internal/user"
)

type UserStats interface {
	Stats(ctx context.Context) (user.Stats, error)
}

type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID string) error
}

type Handler struct {
	driver     string
	users      UserStats
	sessions   SessionRevoker
	storePing  func(ctx context.Context) error
	dbStats    func() sql.DBStats
	redisPing  func(ctx context.Context) error
	redisStats func() *redis.PoolStats
}

// HandlerConfig wires the admin endpoints. DBStats is only set for the
// postgres store and the redis fields only when redis is configured.
type HandlerConfig struct {
	Driver     string
	Users      UserStats
	Sessions   SessionRevoker
	StorePing  func(ctx context.Context) error
	DBStats    func() sql.DBStats
	RedisPing  func(ctx context.Context) error
	RedisStats func() *redis.PoolStats
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		driver:     cfg.Driver,
		users:      cfg.Users,
		sessions:   cfg.Sessions,
		storePing:  cfg.StorePing,
		dbStats:    cfg.DBStats,
		redisPing:  cfg.RedisPing,
		redisStats: cfg.RedisStats,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
		r.Post("/users/{userID}/revoke-sessions", h.RevokeSessions)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	store := StoreStatus{
		Driver:  h.driver,
		Healthy: ping(ctx, h.storePing),
		Pool:    h.getDBStats(),
	}

	if h.users != nil {
		stats, err := h.users.Stats(ctx)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		store.Users = &stats
	}

	response := SystemStatsResponse{
		Store:   store,
		Runtime: readRuntimeStats(),
	}

	if h.redisPing != nil {
		response.Redis = &RedisStatus{
			Healthy: ping(ctx, h.redisPing),
			Stats:   h.getRedisStats(),
		}
	}

	core.OK(w, response)
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, readRuntimeStats())
}

func (h *Handler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		core.BadRequest(w, "user ID required")
		return
	}

	if err := h.sessions.RevokeUserSessions(r.Context(), userID); err != nil {
		writeStoreError(w, err)
		return
	}

	core.OK(w, nil)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	case errors.Is(err, core.ErrTransient):
		core.JSONError(w, core.ServiceUnavailableError("store unavailable"))
	default:
		core.InternalServerError(w, err)
	}
}

func ping(ctx context.Context, fn func(ctx context.Context) error) bool {
	if fn == nil {
		return false
	}
	return fn(ctx) == nil
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}

type SystemStatsResponse struct {
	Store   StoreStatus  `json:"store"`
	Redis   *RedisStatus `json:"redis,omitempty"`
	Runtime RuntimeStats `json:"runtime"`
}

type StoreStatus struct {
	Driver  string       `json:"driver"`
	Healthy bool         `json:"healthy"`
	Users   *user.Stats  `json:"users,omitempty"`
	Pool    *DBPoolStats `json:"pool,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"maxOpenConnections"`
	OpenConnections    int    `json:"openConnections"`
	InUse              int    `json:"inUse"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"waitCount"`
	WaitDuration       string `json:"waitDuration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"totalConns"`
	IdleConns  uint32 `json:"idleConns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
	NumCPU       int    `json:"numCPU"`
	MemAlloc     uint64 `json:"memAllocBytes"`
	MemSys       uint64 `json:"memSysBytes"`
	NumGC        uint32 `json:"numGC"`
}
