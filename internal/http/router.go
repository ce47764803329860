package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/banlist/internal/access"
	"github.com/router-for-me/banlist/internal/bans"
	"github.com/router-for-me/banlist/internal/config"
	authapi "github.com/router-for-me/banlist/internal/http/api/auth"
	bansapi "github.com/router-for-me/banlist/internal/http/api/bans"
	"github.com/router-for-me/banlist/internal/logging"
	"gorm.io/gorm"
)

// RouterDeps carries the components routes are built from.
type RouterDeps struct {
	DB      *gorm.DB
	Service *bans.Service
	Tokens  access.TokenSource
	JWT     config.JWTConfig
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	engine := gin.New()
	engine.Use(logging.GinLogger(), gin.Recovery())
	RegisterRoutes(engine, deps)
	return engine
}

// RegisterRoutes mounts health, auth and ban routes on r.
func RegisterRoutes(r *gin.Engine, deps RouterDeps) {
	if r == nil {
		return
	}

	r.GET("/healthz", healthz(deps.DB))

	if deps.DB != nil {
		authHandler := authapi.NewHandler(deps.DB, deps.JWT)
		r.POST("/auth/login", authHandler.Login)
	}

	if deps.Service != nil {
		banHandler := bansapi.NewHandler(deps.Service, deps.Tokens)
		r.GET("/bans", banHandler.List)
		r.POST("/bans", banHandler.Create)
		r.GET("/bans/:id", banHandler.Get)
		r.DELETE("/bans/:id", banHandler.Delete)
	}
}

func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		if errPing := sqlDB.PingContext(c.Request.Context()); errPing != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
