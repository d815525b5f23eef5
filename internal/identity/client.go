// Package identity — клиент внешнего провайдера аутентификации с REST API
// в формате GoTrue: вход по паролю и отзыв токена доступа.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrInvalidCredentials = errors.New("invalid login credentials")

// User — пользователь провайдера.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session — пара токенов, выданная провайдером.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	User         User   `json:"user"`
}

// Client обращается к провайдеру. anonKey передается в заголовке apikey.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewClient создает клиент провайдера.
func NewClient(baseURL, anonKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	return req, nil
}

// SignInWithPassword выполняет вход по email и паролю.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	const op = "identity.SignInWithPassword"

	req, err := c.newRequest(ctx, http.MethodPost, "/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	var s Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.AccessToken == "" || s.User.ID == "" {
		return nil, fmt.Errorf("%s: incomplete session in response", op)
	}
	return &s, nil
}

// SignOut отзывает токен доступа у провайдера. Уже недействительный токен не ошибка.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	const op = "identity.SignOut"

	if accessToken == "" {
		return nil
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/logout", nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return nil
	}
	return fmt.Errorf("%s: unexpected status %s", op, resp.Status)
}
