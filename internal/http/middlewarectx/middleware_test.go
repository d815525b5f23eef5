package middlewarectx_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/pivot-calculator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/jwt"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/session"
)

const testSecret = "identity-secret"

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type recorder struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recorder) AccessDenied(reason string) {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	r.mu.Unlock()
}

type SessionValidatorMock struct {
	mock.Mock
}

func (m *SessionValidatorMock) ValidateSession(ctx context.Context, userID, presented string) (session.Verdict, error) {
	args := m.Called(ctx, userID, presented)
	return args.Get(0).(session.Verdict), args.Error(1)
}

type RevokerMock struct {
	mock.Mock
}

func (m *RevokerMock) SignOut(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

type CheckerMock struct {
	mock.Mock
}

func (m *CheckerMock) IsActive(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func withUser(r *http.Request, userID, token string) *http.Request {
	return r.WithContext(middlewarectx.WithIdentity(r.Context(), userID, "u@example.com", token))
}

func TestAuthenticate(t *testing.T) {
	maker := jwt.NewJWTMaker(testSecret, time.Hour)
	valid, err := maker.GenerateToken("user-1", "u@example.com", "user")
	require.NoError(t, err)
	foreign, err := jwt.NewJWTMaker("other-secret", time.Hour).GenerateToken("user-1", "u@example.com", "user")
	require.NoError(t, err)

	tests := []struct {
		name       string
		prepare    func(r *http.Request)
		wantStatus int
	}{
		{
			name:       "no credential",
			prepare:    func(*http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "non bearer header",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "token signed by another secret",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+foreign) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bearer header",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) },
			wantStatus: http.StatusOK,
		},
		{
			name: "access token cookie",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: middlewarectx.CookieAccessToken, Value: valid})
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			var gotUser, gotToken string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = middlewarectx.UserID(r.Context())
				gotToken = middlewarectx.Credential(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			h := middlewarectx.Authenticate(newNoopLogger(), maker, rec)(next)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "user-1", gotUser)
				assert.Equal(t, valid, gotToken)
				assert.Empty(t, rec.reasons)
			} else {
				assert.Equal(t, "unauthenticated", decode(t, rr)["reason"])
				assert.Equal(t, []string{"unauthenticated"}, rec.reasons)
			}
		})
	}
}

func TestSessionGuard_Allows(t *testing.T) {
	guard := new(SessionValidatorMock)
	revoker := new(RevokerMock)
	guard.On("ValidateSession", mock.Anything, "user-1", "cookie-token").Return(session.Verdict{Valid: true}, nil)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	h := middlewarectx.SessionGuard(newNoopLogger(), guard, revoker, middlewarectx.Cookies{}, nil)(next)

	req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), "user-1", "jwt")
	req.AddCookie(&http.Cookie{Name: middlewarectx.CookieSessionToken, Value: "cookie-token"})
	req.Header.Set(middlewarectx.HeaderSessionToken, "header-token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, called)
	revoker.AssertNotCalled(t, "SignOut", mock.Anything, mock.Anything)
	guard.AssertExpectations(t)
}

func TestSessionGuard_HeaderFallback(t *testing.T) {
	guard := new(SessionValidatorMock)
	guard.On("ValidateSession", mock.Anything, "user-1", "header-token").Return(session.Verdict{Valid: true}, nil)

	h := middlewarectx.SessionGuard(newNoopLogger(), guard, nil, middlewarectx.Cookies{}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), "user-1", "jwt")
	req.Header.Set(middlewarectx.HeaderSessionToken, "header-token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	guard.AssertExpectations(t)
}

func TestSessionGuard_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		verdict    session.Verdict
		wantReason string
	}{
		{"token mismatch", session.Verdict{Reason: session.ReasonTokenMismatch}, "session_mismatch"},
		{"missing token", session.Verdict{Reason: session.ReasonMissingToken}, "session_mismatch"},
		{"profile not found", session.Verdict{Reason: session.ReasonProfileNotFound}, "profile_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard := new(SessionValidatorMock)
			revoker := new(RevokerMock)
			rec := &recorder{}
			guard.On("ValidateSession", mock.Anything, "user-1", "old-token").Return(tt.verdict, nil)
			revoker.On("SignOut", mock.Anything, "jwt-1").Return(errors.New("provider down"))

			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler must not be reached")
			})
			h := middlewarectx.SessionGuard(newNoopLogger(), guard, revoker, middlewarectx.Cookies{TTL: time.Hour}, rec)(next)

			req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), "user-1", "jwt-1")
			req.Header.Set(middlewarectx.HeaderSessionToken, "old-token")
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, tt.wantReason, decode(t, rr)["reason"])
			assert.Equal(t, []string{tt.wantReason}, rec.reasons)
			revoker.AssertExpectations(t)

			expired := map[string]bool{}
			for _, ck := range rr.Result().Cookies() {
				if ck.MaxAge < 0 {
					expired[ck.Name] = true
				}
			}
			assert.True(t, expired[middlewarectx.CookieSessionToken])
			assert.True(t, expired[middlewarectx.CookieAccessToken])
		})
	}
}

func TestSessionGuard_StoreErrorFailsClosed(t *testing.T) {
	guard := new(SessionValidatorMock)
	revoker := new(RevokerMock)
	guard.On("ValidateSession", mock.Anything, "user-1", "tok").Return(session.Verdict{}, errors.New("db down"))

	h := middlewarectx.SessionGuard(newNoopLogger(), guard, revoker, middlewarectx.Cookies{}, nil)(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatal("handler must not be reached") }))

	req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), "user-1", "jwt")
	req.Header.Set(middlewarectx.HeaderSessionToken, "tok")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "server_error", decode(t, rr)["reason"])
	assert.NotContains(t, rr.Body.String(), "db down")
	revoker.AssertNotCalled(t, "SignOut", mock.Anything, mock.Anything)
}

func TestRequireSubscription(t *testing.T) {
	tests := []struct {
		name         string
		active       bool
		err          error
		wantStatus   int
		wantReason   string
		wantRedirect string
		wantCalled   bool
	}{
		{name: "active", active: true, wantStatus: http.StatusOK, wantCalled: true},
		{name: "inactive", wantStatus: http.StatusForbidden, wantReason: "subscription_required", wantRedirect: "/subscribe"},
		{name: "store error fails closed", active: true, err: errors.New("timeout"), wantStatus: http.StatusInternalServerError, wantReason: "server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := new(CheckerMock)
			checker.On("IsActive", mock.Anything, "user-1").Return(tt.active, tt.err)

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})
			h := middlewarectx.RequireSubscription(newNoopLogger(), checker, nil)(next)

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/", nil), "user-1", "jwt"))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCalled, called)
			if tt.wantReason != "" {
				body := decode(t, rr)
				assert.Equal(t, tt.wantReason, body["reason"])
				if tt.wantRedirect != "" {
					assert.Equal(t, tt.wantRedirect, body["redirect"])
				}
			}
		})
	}
}

func TestRequireSubscription_NoUser(t *testing.T) {
	checker := new(CheckerMock)
	h := middlewarectx.RequireSubscription(newNoopLogger(), checker, nil)(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatal("handler must not be reached") }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	checker.AssertNotCalled(t, "IsActive", mock.Anything, mock.Anything)
}

func TestRateLimiter(t *testing.T) {
	limiter := middlewarectx.NewRateLimiter(0.001, 2)
	h := limiter.Middleware(newNoopLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000"), "other clients have their own budget")
}

func TestCookies(t *testing.T) {
	rr := httptest.NewRecorder()
	middlewarectx.Cookies{TTL: 24 * time.Hour, CrossSite: true}.Set(rr, "jwt", "sess")

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, ck := range cookies {
		assert.Equal(t, "/", ck.Path)
		assert.Equal(t, 86400, ck.MaxAge)
		assert.True(t, ck.HttpOnly)
		assert.True(t, ck.Secure)
		assert.Equal(t, http.SameSiteNoneMode, ck.SameSite)
	}

	rr = httptest.NewRecorder()
	middlewarectx.Cookies{TTL: time.Hour}.Set(rr, "", "sess")
	cookies = rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middlewarectx.CookieSessionToken, cookies[0].Name)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.False(t, cookies[0].Secure)
}
