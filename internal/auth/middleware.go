package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/youpick/internal/users"
	"github.com/yourusername/youpick/internal/web"
)

// LoadUser は全リクエストの前に実行し、セッションの user_id からユーザーを読み込みます。
// キャッシュはしないため、削除済みユーザーは次のリクエストで未ログイン扱いになります。
func (m *Manager) LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, ok := readUserID(session.Get(sessionKeyUserID))
		if !ok {
			c.Next()
			return
		}

		user, err := m.users.GetByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				c.Next()
				return
			}
			m.fail(c, fmt.Errorf("load session user: %w", err))
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// CurrentUser はリクエストに紐づくログイン済みユーザーを返します。
func CurrentUser(c *gin.Context) (*users.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*users.User)
	return user, ok && user != nil
}

// LoginRequired は view をラップし、未ログインならログイン画面へリダイレクトします。
// ログイン済みなら view をそのまま呼び出します。
func LoginRequired(view gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
			return
		}
		view(c)
	}
}

// RequireLogin はルートグループ用の LoginRequired です。
func RequireLogin() gin.HandlerFunc {
	return LoginRequired(func(c *gin.Context) {
		c.Next()
	})
}

// VerifyCSRF はフォームの csrf_token または X-CSRF-Token ヘッダーを検証するミドルウェアです。
func VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		session := sessions.Default(c)
		expected, ok := session.Get(sessionKeyCSRF).(string)
		if !ok || expected == "" {
			c.String(http.StatusForbidden, "CSRF token missing")
			c.Abort()
			return
		}

		received := c.PostForm(web.CSRFField)
		if received == "" {
			received = c.GetHeader(csrfHeader)
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			c.String(http.StatusForbidden, "CSRF token mismatch")
			c.Abort()
			return
		}

		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
