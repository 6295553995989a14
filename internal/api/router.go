package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/Nexus/internal/handler"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterOptions struct {
	Mode        string // gin 模式: debug, release, test
	MetricsPath string
}

// NewRouter 创建 gin.Engine 并注册全部路由
func NewRouter(mw *MiddlewareManager, guildHandler *handler.GuildHandler, store Pinger, opts RouterOptions) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	r := gin.New()

	// 顺序: Recovery 和 ErrorHandler 之后的中间件产生的错误都会被统一写回
	r.Use(
		mw.TraceID(),
		mw.Logger(),
		mw.Metrics(),
		mw.Recovery(),
		mw.ErrorHandler(),
		mw.CORS(),
	)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "UNAVAILABLE",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "OK",
		})
	})

	if mw.metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(mw.metrics.Handler()))
	}

	RegisterGuildRoutes(r, mw, guildHandler)
	return r
}

// RegisterGuildRoutes 公会接口
func RegisterGuildRoutes(r *gin.Engine, mw *MiddlewareManager, guildHandler *handler.GuildHandler) {
	guilds := r.Group("/api/guilds")
	guilds.Use(mw.RateLimit())
	{
		guilds.GET("", guildHandler.ListGuilds)
		guilds.POST("", guildHandler.CreateGuild)
		guilds.PATCH("/deleteAll", guildHandler.DeleteAllGuilds)
		guilds.GET("/:id", ValidateObjectID("id"), guildHandler.GetGuild)
		guilds.DELETE("/:id", ValidateObjectID("id"), guildHandler.DeleteGuild)
	}
}
