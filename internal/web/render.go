// Package web は templ コンポーネントによる HTML ページを提供します。
package web

import (
	"bytes"
	"net/http"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
)

// CSRFField はフォームに埋め込む CSRF トークンのフィールド名です。
// pages.templ の hidden input と一致させること。
const CSRFField = "csrf_token"

// Page はレイアウトに渡す共通データです。
type Page struct {
	Username  string // 空ならログインしていない
	Flashes   []string
	CSRFToken string
}

// LoggedIn はログイン済みかどうかを返します。
func (p Page) LoggedIn() bool {
	return p.Username != ""
}

// Render は templ コンポーネントを HTML として書き出します。
// 途中まで書いたレスポンスを返さないよう、一度バッファに描画します。
func Render(c *gin.Context, status int, component templ.Component) {
	var buf bytes.Buffer
	if err := component.Render(c.Request.Context(), &buf); err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "Template rendering error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
