// Package httpapi is the thin HTTP shell: static demo assets plus the
// websocket upgrade endpoint.
package httpapi

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bubble-chat/server/internal/adapters/ws"
	"github.com/bubble-chat/server/internal/config"
)

// ClientTokenMiddleware hands every browser a long-lived token cookie. The
// token doubles as the reconnect secret: presenting the same one on a later
// connection resolves to the same bubble identity.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *ws.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("BubbleSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.httpapi").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.GET("/ws/chat", func(c *gin.Context) {
		ctl.HandleChat(ctx, c)
	})

	return r
}
