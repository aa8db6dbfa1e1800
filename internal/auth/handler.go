package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/youpick/internal/logging"
	"github.com/yourusername/youpick/internal/users"
	"github.com/yourusername/youpick/internal/web"
)

// フォームに表示するメッセージです。
const (
	msgUsernameRequired     = "Please enter a username"
	msgPasswordRequired     = "Please enter a password"
	msgConfirmationRequired = "Please confirm your password"
	msgConfirmationMismatch = "Confirmation password entered incorrectly"
	msgPasswordTooLong      = "Password must be at most 72 bytes"
	msgIncorrectUsername    = "Incorrect username."
	msgIncorrectPassword    = "Incorrect password."
	msgLoginSuccessful      = "Login successful!"
)

type registerForm struct {
	Username     string `form:"username"`
	Password     string `form:"password"`
	Confirmation string `form:"confirmation"`
}

// validate は最初に見つかったエラーのメッセージを返します。問題が無ければ空文字です。
// 空欄判定と一致判定は前後の空白を除いた値で行います。
func (f registerForm) validate() string {
	password := strings.TrimSpace(f.Password)
	confirmation := strings.TrimSpace(f.Confirmation)

	switch {
	case strings.TrimSpace(f.Username) == "":
		return msgUsernameRequired
	case password == "":
		return msgPasswordRequired
	case confirmation == "":
		return msgConfirmationRequired
	case password != confirmation:
		return msgConfirmationMismatch
	case len(f.Password) > maxPasswordBytes:
		return msgPasswordTooLong
	}
	return ""
}

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// RegisterForm は GET /auth/register のハンドラーです。
func (m *Manager) RegisterForm(c *gin.Context) {
	m.render(c, web.RegisterPage)
}

// Register は POST /auth/register のハンドラーです。
// 成功時は自動ログインせずログイン画面へリダイレクトします。
func (m *Manager) Register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		c.String(http.StatusBadRequest, "invalid form submission")
		return
	}

	if msg := form.validate(); msg != "" {
		m.renderWithFlash(c, web.RegisterPage, msg)
		return
	}

	hash, err := HashPassword(form.Password, m.bcryptCost)
	if err != nil {
		m.fail(c, fmt.Errorf("hash password: %w", err))
		return
	}

	user, err := m.users.Create(c.Request.Context(), form.Username, hash)
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			m.renderWithFlash(c, web.RegisterPage, fmt.Sprintf("User %s is already registered.", form.Username))
			return
		}
		m.fail(c, fmt.Errorf("create user: %w", err))
		return
	}

	logging.FromContext(c, m.logger).InfoContext(c.Request.Context(), "user registered", "user_id", user.ID)
	c.Redirect(http.StatusFound, LoginPath)
}

// LoginForm は GET /auth/login のハンドラーです。
func (m *Manager) LoginForm(c *gin.Context) {
	m.render(c, web.LoginPage)
}

// Login は POST /auth/login のハンドラーです。
// ユーザー名が存在しない場合とパスワード不一致の場合でメッセージを分けています。
func (m *Manager) Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		c.String(http.StatusBadRequest, "invalid form submission")
		return
	}

	log := logging.FromContext(c, m.logger)

	user, err := m.users.GetByUsername(c.Request.Context(), form.Username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			log.InfoContext(c.Request.Context(), "login failed", "reason", "unknown username")
			m.renderWithFlash(c, web.LoginPage, msgIncorrectUsername)
			return
		}
		m.fail(c, fmt.Errorf("lookup user: %w", err))
		return
	}

	if !CheckPassword(user.Password, form.Password) {
		log.InfoContext(c.Request.Context(), "login failed", "reason", "wrong password", "user_id", user.ID)
		m.renderWithFlash(c, web.LoginPage, msgIncorrectPassword)
		return
	}

	// 既存のセッション内容は引き継がない
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionKeyUserID, user.ID)
	session.AddFlash(msgLoginSuccessful)
	if err := session.Save(); err != nil {
		m.fail(c, fmt.Errorf("save session: %w", err))
		return
	}

	log.InfoContext(c.Request.Context(), "user logged in", "user_id", user.ID)
	c.Redirect(http.StatusFound, LandingPath)
}

// Logout は GET /auth/logout のハンドラーです。セッションを丸ごと破棄します。
func (m *Manager) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		m.fail(c, fmt.Errorf("clear session: %w", err))
		return
	}
	c.Redirect(http.StatusFound, HomePath)
}
