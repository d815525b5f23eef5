// Package sessiontransport содержит http.RoundTripper для клиентов API,
// который прикладывает к каждому запросу токен сессии и bearer‑токен.
package sessiontransport

import (
	"net/http"
	"sync"
)

// HeaderSessionToken — заголовок, в котором передается токен сессии.
const HeaderSessionToken = "x-session-token"

// Transport добавляет заголовки сессии к исходящим запросам.
// Токены можно менять на лету: после входа и после выхода.
type Transport struct {
	Base http.RoundTripper

	mu           sync.RWMutex
	sessionToken string
	accessToken  string
}

// New создает Transport поверх base. Если base nil, используется http.DefaultTransport.
func New(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

// SetTokens запоминает токены для последующих запросов.
func (t *Transport) SetTokens(accessToken, sessionToken string) {
	t.mu.Lock()
	t.accessToken = accessToken
	t.sessionToken = sessionToken
	t.mu.Unlock()
}

// Clear забывает токены.
func (t *Transport) Clear() {
	t.SetTokens("", "")
}

// RoundTrip реализует http.RoundTripper. Исходный запрос не изменяется,
// заголовки, выставленные вызывающим, не перезаписываются.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.RLock()
	access, session := t.accessToken, t.sessionToken
	t.mu.RUnlock()

	if access != "" || session != "" {
		req = req.Clone(req.Context())
		if session != "" && req.Header.Get(HeaderSessionToken) == "" {
			req.Header.Set(HeaderSessionToken, session)
		}
		if access != "" && req.Header.Get("Authorization") == "" {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// Client возвращает http.Client с этим транспортом.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}
