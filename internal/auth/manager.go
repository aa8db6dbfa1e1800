// Package auth はセッションベースの認証（登録・ログイン・ログアウト・ログイン必須ガード）を提供します。
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/youpick/internal/config"
	"github.com/yourusername/youpick/internal/logging"
	"github.com/yourusername/youpick/internal/users"
	"github.com/yourusername/youpick/internal/web"
)

const (
	SessionCookieName = "youpick_session"
	sessionKeyUserID  = "user_id"
	sessionKeyCSRF    = "csrf_token"

	csrfHeader = "X-CSRF-Token"
)

// リダイレクト先のパスです。
const (
	LoginPath   = "/auth/login"
	LandingPath = "/picks"
	HomePath    = "/"
)

var maxSessionLifetime = 12 * time.Hour

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(maxSessionLifetime.Seconds())
}

// ContextUserKey は、ハンドラー間でログイン済みユーザーを共有するためのキーです。
const ContextUserKey = "auth.user"

// Manager は認証処理に必要な依存をまとめた構造体です。
type Manager struct {
	users      users.Repository
	bcryptCost int
	logger     *slog.Logger
}

// NewManager は認証マネージャーを作成します。
func NewManager(repo users.Repository, cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		users:      repo,
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// PageData はセッションからフラッシュメッセージを取り出し、CSRF トークンと
// ログイン中のユーザー名を詰めたページデータを返します。
// フラッシュは取り出した時点で破棄されます。
func PageData(c *gin.Context) (web.Page, error) {
	session := sessions.Default(c)

	var page web.Page
	for _, f := range session.Flashes() {
		if msg, ok := f.(string); ok {
			page.Flashes = append(page.Flashes, msg)
		}
	}

	token, ok := session.Get(sessionKeyCSRF).(string)
	if !ok || token == "" {
		var err error
		if token, err = generateToken(); err != nil {
			return page, fmt.Errorf("generate csrf token: %w", err)
		}
		session.Set(sessionKeyCSRF, token)
	}
	page.CSRFToken = token

	if user, ok := CurrentUser(c); ok {
		page.Username = user.Username
	}

	if err := session.Save(); err != nil {
		return page, fmt.Errorf("save session: %w", err)
	}
	return page, nil
}

// render はページデータを組み立てて描画します。
func (m *Manager) render(c *gin.Context, view func(web.Page) templ.Component) {
	page, err := PageData(c)
	if err != nil {
		m.fail(c, err)
		return
	}
	web.Render(c, http.StatusOK, view(page))
}

// renderWithFlash はメッセージを1件フラッシュしてフォームを再描画します。
func (m *Manager) renderWithFlash(c *gin.Context, view func(web.Page) templ.Component, msg string) {
	sessions.Default(c).AddFlash(msg)
	m.render(c, view)
}

// fail は想定外のエラーを記録して 500 を返します。
func (m *Manager) fail(c *gin.Context, err error) {
	logging.FromContext(c, m.logger).ErrorContext(c.Request.Context(), "request failed",
		"path", c.Request.URL.Path,
		"error", err,
	)
	_ = c.Error(err)
	c.String(http.StatusInternalServerError, "Internal Server Error")
	c.Abort()
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// readUserID はセッションに保存したユーザー ID を取り出します。
// cookie ストアは gob でエンコードするため int64 のまま戻ります。
func readUserID(v interface{}) (int64, bool) {
	switch id := v.(type) {
	case int64:
		return id, true
	case int:
		return int64(id), true
	default:
		return 0, false
	}
}
