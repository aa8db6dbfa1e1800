package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var sb strings.Builder
	if err := c.Render(context.Background(), &sb); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	return sb.String()
}

func TestLoginPageContainsFormAndToken(t *testing.T) {
	html := renderString(t, LoginPage(Page{CSRFToken: "tok123"}))

	for _, want := range []string{
		`<title>Log In - YouPick</title>`,
		`action="/auth/login"`,
		`name="username"`,
		`name="password"`,
		`name="csrf_token" value="tok123"`,
		`href="/auth/register"`,
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in output:\n%s", want, html)
		}
	}
}

func TestRegisterPageHasConfirmation(t *testing.T) {
	html := renderString(t, RegisterPage(Page{}))
	if !strings.Contains(html, `name="confirmation"`) {
		t.Fatalf("confirmation field missing:\n%s", html)
	}
}

func TestFlashesAreEscaped(t *testing.T) {
	html := renderString(t, RegisterPage(Page{Flashes: []string{"User <b>x</b> is already registered."}}))
	if strings.Contains(html, "<b>x</b>") {
		t.Fatalf("flash was not escaped:\n%s", html)
	}
	if !strings.Contains(html, `<div class="flash">User &lt;b&gt;x&lt;/b&gt; is already registered.</div>`) {
		t.Fatalf("escaped flash missing:\n%s", html)
	}
}

func TestPicksPageShowsUserAndLogout(t *testing.T) {
	html := renderString(t, PicksPage(Page{Username: "alice"}))
	if !strings.Contains(html, "Signed in as alice.") {
		t.Fatalf("username missing:\n%s", html)
	}
	if !strings.Contains(html, `href="/auth/logout"`) {
		t.Fatalf("logout link missing:\n%s", html)
	}
}

func TestHomePageAnonymous(t *testing.T) {
	html := renderString(t, HomePage(Page{}))
	if strings.Contains(html, "/auth/logout") {
		t.Fatalf("anonymous page should not offer logout:\n%s", html)
	}
}

func TestHomePageLoggedIn(t *testing.T) {
	html := renderString(t, HomePage(Page{Username: "alice"}))
	for _, want := range []string{`<span>alice</span>`, `href="/picks"`, `href="/auth/logout"`} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in output:\n%s", want, html)
		}
	}
	if strings.Contains(html, `href="/auth/register"`) {
		t.Fatalf("logged in page should not offer registration:\n%s", html)
	}
}

func TestFormsUseCSRFField(t *testing.T) {
	for name, c := range map[string]templ.Component{
		"register": RegisterPage(Page{CSRFToken: "tok"}),
		"login":    LoginPage(Page{CSRFToken: "tok"}),
	} {
		html := renderString(t, c)
		if !strings.Contains(html, `name="`+CSRFField+`" value="tok"`) {
			t.Fatalf("%s: csrf field missing:\n%s", name, html)
		}
	}
}

func TestAttributeAndTextValuesAreEscaped(t *testing.T) {
	html := renderString(t, PicksPage(Page{Username: `<i>"bob"</i>`}))
	if strings.Contains(html, `<i>`) {
		t.Fatalf("username was not escaped:\n%s", html)
	}
	if !strings.Contains(html, "Signed in as &lt;i&gt;&#34;bob&#34;&lt;/i&gt;.") {
		t.Fatalf("escaped username missing:\n%s", html)
	}

	html = renderString(t, LoginPage(Page{CSRFToken: `a"b`}))
	if !strings.Contains(html, `value="a&#34;b"`) {
		t.Fatalf("csrf token was not escaped:\n%s", html)
	}
}

func TestRenderWritesHTML(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Render(c, http.StatusOK, HomePage(Page{}))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Fatalf("unexpected content-type: %s", ct)
	}
}

func TestRenderFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	broken := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, _ = io.WriteString(w, "<partial")
		return errors.New("boom")
	})
	Render(c, http.StatusOK, broken)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<partial") {
		t.Fatalf("partial output leaked: %s", rec.Body.String())
	}
}
