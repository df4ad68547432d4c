// Package session はリクエスト単位のセッションCookieコンテキストを提供する。
// Cookieはリクエスト到着時に一度だけ読み取り、レスポンス送出前に一度だけ書き込む。
package session

import (
	"net/http"
	"time"
)

const (
	// CookieName はセッショントークンを保持するCookie名。
	CookieName = "session"
	// MaxAge はセッションCookieとセッショントークンの有効期間。
	MaxAge = 7 * 24 * time.Hour
)

// CookieConfig はセッションCookieの属性設定。
type CookieConfig struct {
	// Secure は本番環境でtrueにする。
	Secure bool
	// Domain はCookieのDomain属性。空の場合はホスト限定となる。
	Domain string
}

// Context は1リクエスト分のセッションCookieの状態を保持する。
// アクションはこの値を経由してのみCookieを参照・変更する。
type Context struct {
	token   string
	changed bool
	cleared bool
}

// FromRequest はリクエストのセッションCookieを読み取ってContextを生成する。
// Cookieが無い場合はトークン空のContextを返す。
func FromRequest(r *http.Request) *Context {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return &Context{}
	}
	return &Context{token: cookie.Value}
}

// New は指定トークンを保持するContextを生成する。
func New(token string) *Context {
	return &Context{token: token}
}

// Token は現在のセッショントークンを返す。未ログインの場合は空文字を返す。
func (c *Context) Token() string {
	return c.token
}

// Set は新しいセッショントークンを記録する。
func (c *Context) Set(token string) {
	c.token = token
	c.changed = true
	c.cleared = false
}

// Clear はセッションを破棄する。
func (c *Context) Clear() {
	c.token = ""
	c.changed = true
	c.cleared = true
}

// Changed はレスポンスでCookieの書き込みが必要かどうかを返す。
func (c *Context) Changed() bool {
	return c.changed
}

// WriteTo は変更があればSet-Cookieヘッダーを書き込む。
// ヘッダー送出前に呼び出すこと。
func (c *Context) WriteTo(w http.ResponseWriter, cfg CookieConfig) {
	if !c.changed {
		return
	}

	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    c.token,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   int(MaxAge / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if c.cleared {
		cookie.Value = ""
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}
