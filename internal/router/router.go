package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/udv-group/stand-control-bot/internal/config"
	"github.com/udv-group/stand-control-bot/internal/handler"
	"github.com/udv-group/stand-control-bot/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance.  Currently it exposes only a health
// check, used by load balancers to verify that the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAPI registers the authenticated /v1 surface.  Every route in
// the group runs the JWT middleware first; the mutating lease routes
// additionally pass through the Redis token bucket, which degrades to
// a pass-through when rdb is nil.
func RegisterAPI(e *echo.Echo, hosts *handler.HostsHandler, groups *handler.GroupsHandler, users *handler.UsersHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))

	v1.GET("/hosts", hosts.GetHosts)
	v1.GET("/hosts/available", hosts.GetAvailableHosts)
	v1.GET("/hosts/leased", hosts.GetLeasedHosts)
	v1.GET("/groups", groups.GetGroups)

	limited := middleware.NewTokenBucket(rlCfg, rdb)
	v1.POST("/hosts/lease", hosts.Lease, limited)
	v1.POST("/hosts/lease-random", hosts.LeaseRandom, limited)
	v1.POST("/hosts/free", hosts.Free, limited)
	v1.POST("/hosts/free-all", hosts.FreeAll, limited)

	v1.POST("/users/link", users.Link)
}
