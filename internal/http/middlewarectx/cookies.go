package middlewarectx

import (
	"net/http"
	"time"

	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sessiontransport"
)

const (
	// CookieSessionToken — cookie с токеном сессии.
	CookieSessionToken = "session_token"
	// CookieAccessToken — cookie с токеном identity.
	CookieAccessToken = "access_token"
	// HeaderSessionToken — заголовок с токеном сессии.
	HeaderSessionToken = sessiontransport.HeaderSessionToken
)

// Cookies выставляет и стирает cookie сессии.
type Cookies struct {
	TTL       time.Duration
	CrossSite bool
}

func (c Cookies) cookie(name, value string, maxAge int) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if c.CrossSite {
		ck.SameSite = http.SameSiteNoneMode
		ck.Secure = true
	}
	return ck
}

// Set выставляет cookie с токеном сессии и, если передан, с токеном identity.
func (c Cookies) Set(w http.ResponseWriter, accessToken, sessionToken string) {
	maxAge := int(c.TTL / time.Second)
	http.SetCookie(w, c.cookie(CookieSessionToken, sessionToken, maxAge))
	if accessToken != "" {
		http.SetCookie(w, c.cookie(CookieAccessToken, accessToken, maxAge))
	}
}

// Expire просит клиента удалить cookie сессии и identity.
func (c Cookies) Expire(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(CookieSessionToken, "", -1))
	http.SetCookie(w, c.cookie(CookieAccessToken, "", -1))
}

// SessionToken возвращает предъявленный токен сессии: cookie важнее заголовка.
func SessionToken(r *http.Request) string {
	if ck, err := r.Cookie(CookieSessionToken); err == nil && ck.Value != "" {
		return ck.Value
	}
	return r.Header.Get(HeaderSessionToken)
}
