package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/youpick/internal/auth"
	"github.com/yourusername/youpick/internal/config"
	"github.com/yourusername/youpick/internal/logging"
	"github.com/yourusername/youpick/internal/users"
	"github.com/yourusername/youpick/internal/web"
)

// newRouter はミドルウェアとルーティングを組み立てます。
func newRouter(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*gin.Engine, error) {
	router := gin.New()
	router.Use(logging.RequestID(), logging.AccessLog(logger), gin.Recovery())

	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	// CORS は許可オリジンが設定されている場合のみ有効にする
	if cfg.CORSAllowedOrigins != "" {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
		corsConfig.AllowCredentials = true
		corsConfig.AllowHeaders = []string{
			"Origin",
			"Content-Type",
			"Accept",
			"X-CSRF-Token",
			logging.RequestIDHeader,
		}
		router.Use(cors.New(corsConfig))
	}

	// セッションストアの設定（クッキー署名鍵は必須）
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   auth.SessionMaxAgeSeconds(),
		HttpOnly: true,
		Secure:   cfg.IsRelease(),
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	authManager := auth.NewManager(users.NewSQLRepository(db), cfg, logger)
	router.Use(authManager.LoadUser())

	setupRoutes(router, authManager, db)
	return router, nil
}

// setupRoutes はページと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, authManager *auth.Manager, db *sql.DB) {
	router.GET("/health", healthHandler(db))
	router.GET(auth.HomePath, handleHome)

	authRoutes := router.Group("/auth", auth.VerifyCSRF())
	{
		authRoutes.GET("/register", authManager.RegisterForm)
		authRoutes.POST("/register", authManager.Register)
		authRoutes.GET("/login", authManager.LoginForm)
		authRoutes.POST("/login", authManager.Login)
		authRoutes.GET("/logout", authManager.Logout)
	}

	router.GET(auth.LandingPath, auth.LoginRequired(handlePicks))
}

func handleHome(c *gin.Context) {
	renderPage(c, web.HomePage)
}

func handlePicks(c *gin.Context) {
	renderPage(c, web.PicksPage)
}

func renderPage(c *gin.Context, view func(web.Page) templ.Component) {
	page, err := auth.PageData(c)
	if err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	web.Render(c, http.StatusOK, view(page))
}

// healthHandler はヘルスチェックエンドポイントのハンドラーを返します。
func healthHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unavailable",
				"service": "youpick",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "youpick",
		})
	}
}
