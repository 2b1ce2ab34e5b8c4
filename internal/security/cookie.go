package security

import (
	"net/http"
	"strings"
	"time"
)

type CookieManager struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func NewCookieManager(domain string, secure bool, sameSite string) *CookieManager {
	mode := http.SameSiteLaxMode
	switch strings.ToLower(sameSite) {
	case "strict":
		mode = http.SameSiteStrictMode
	case "none":
		mode = http.SameSiteNoneMode
	}
	return &CookieManager{Domain: domain, Secure: secure, SameSite: mode}
}

// SetTokenCookies installs the session cookie triple. The access token
// is capped at 15 minutes independent of the refresh TTL; the refresh
// token is scoped to the auth routes; the CSRF token is readable by the
// frontend (double-submit pattern), so it is not HttpOnly.
func (m *CookieManager) SetTokenCookies(w http.ResponseWriter, access, refresh, csrf string, refreshTTL time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name: "access_token", Value: access, Path: "/",
		HttpOnly: true, Secure: m.Secure, SameSite: m.SameSite, Domain: m.Domain,
		MaxAge: int((15 * time.Minute).Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name: "refresh_token", Value: refresh, Path: "/api/v1/auth",
		HttpOnly: true, Secure: m.Secure, SameSite: m.SameSite, Domain: m.Domain,
		MaxAge: int(refreshTTL.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name: "csrf_token", Value: csrf, Path: "/",
		HttpOnly: false, Secure: m.Secure, SameSite: m.SameSite, Domain: m.Domain,
		MaxAge: int(refreshTTL.Seconds()),
	})
}

func (m *CookieManager) ClearTokenCookies(w http.ResponseWriter) {
	clear := func(name, path string, httpOnly bool) {
		http.SetCookie(w, &http.Cookie{
			Name: name, Value: "", Path: path,
			HttpOnly: httpOnly, Secure: m.Secure, SameSite: m.SameSite, Domain: m.Domain,
			MaxAge: -1,
		})
	}
	clear("access_token", "/", true)
	clear("refresh_token", "/api/v1/auth", true)
	clear("csrf_token", "/", false)
	clear("oauth_state", "/api/v1/auth/google", true)
}

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
