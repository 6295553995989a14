package api

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/Nexus/internal/apperr"
	"github.com/Gopher0727/Nexus/internal/model"
	logger "github.com/Gopher0727/Nexus/middleware/log"
	"github.com/Gopher0727/Nexus/utils/ratelimit"
)

// RequestIDHeader 请求头中的 trace id，没有时生成一个新的
const RequestIDHeader = "X-Request-ID"

type MiddlewareManager struct {
	log         *logger.Logger
	rateLimiter ratelimit.Limiter
	rule        ratelimit.Rule
	metrics     *Metrics
}

// NewMiddlewareManager builds the shared middleware set.
// rateLimiter and metrics may be nil, which turns those middlewares into no-ops.
func NewMiddlewareManager(log *logger.Logger, rateLimiter ratelimit.Limiter, rule ratelimit.Rule, metrics *Metrics) *MiddlewareManager {
	if log == nil {
		log = logger.NewNop()
	}
	return &MiddlewareManager{
		log:         log.Named("http"),
		rateLimiter: rateLimiter,
		rule:        rule,
		metrics:     metrics,
	}
}

// TraceID 把 trace id 写入请求 context 和响应头
func (m *MiddlewareManager) TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(RequestIDHeader)
		if traceID == "" {
			traceID = logger.NewTraceID()
		}
		c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), traceID))
		c.Header(RequestIDHeader, traceID)
		c.Next()
	}
}

func (m *MiddlewareManager) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}

		ctx := c.Request.Context()
		switch {
		case statusCode >= 500:
			m.log.ErrorContext(ctx, "server error", fields...)
		case statusCode >= 400:
			m.log.WarnContext(ctx, "client error", fields...)
		default:
			m.log.InfoContext(ctx, "request completed", fields...)
		}
	}
}

// CORS 允许任意来源，覆盖本服务用到的方法
func (m *MiddlewareManager) CORS() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", RequestIDHeader}
	cfg.ExposeHeaders = []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	return cors.New(cfg)
}

// Recovery turns a panic into the regular 500 error path.
func (m *MiddlewareManager) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				m.log.ErrorContext(c.Request.Context(), "panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
					zap.ByteString("stack", debug.Stack()),
				)
				_ = c.Error(errors.New("internal server error"))
				m.writeError(c)
				c.Abort()
			}
		}()

		c.Next()
	}
}

// ErrorHandler writes the last error attached with c.Error.
// Domain errors keep their status; anything else is logged and answered with 500.
func (m *MiddlewareManager) ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		m.writeError(c)
	}
}

func (m *MiddlewareManager) writeError(c *gin.Context) {
	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}
	err := c.Errors.Last().Err

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body := gin.H{
			"error": appErr.Message,
			"code":  appErr.Code,
		}
		if len(appErr.Fields) > 0 {
			body["fields"] = appErr.Fields
		}
		c.JSON(appErr.Status, body)
		return
	}

	m.log.ErrorContext(c.Request.Context(), "request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": err.Error(),
		"code":  apperr.CodeInternal,
	})
}

// RateLimit 按客户端 IP 限流
func (m *MiddlewareManager) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.rateLimiter == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := "ip:" + c.ClientIP()

		allowed, err := m.rateLimiter.Allow(ctx, key, m.rule)
		if err != nil {
			// 限流器自身失败时按 fail-closed 处理，fail-open 已在限流器内部放行
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(m.rule.Limit))
		if remaining, err := m.rateLimiter.Remaining(ctx, key, m.rule); err == nil {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(m.rule.RetryAfter(time.Now())))
			_ = c.Error(apperr.RateLimited())
			c.Abort()
			return
		}

		c.Next()
	}
}

// Metrics records request counts and latency per route.
func (m *MiddlewareManager) Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.metrics == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.metrics.Observe(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// ValidateObjectID rejects a malformed id path parameter before the handler runs.
func ValidateObjectID(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.Param(param); !model.ValidID(id) {
			_ = c.Error(apperr.InvalidID(id))
			c.Abort()
			return
		}
		c.Next()
	}
}
