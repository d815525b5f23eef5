// Package session реализует вход с одного устройства: у пользователя есть
// ровно один действующий токен сессии, последний выданный вытесняет прежние.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/storage"
)

// Reason — причина отказа в сессии.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNoCredential    Reason = "no_credential"
	ReasonProfileNotFound Reason = "profile_not_found"
	ReasonMissingToken    Reason = "missing_token"
	ReasonTokenMismatch   Reason = "token_mismatch"
)

// Verdict — результат проверки токена сессии.
// Fresh означает, что у профиля еще нет токена (первый вход после регистрации).
type Verdict struct {
	Valid  bool
	Reason Reason
	Fresh  bool
}

// Store — хранилище профилей и блокировок устройств.
type Store interface {
	UpsertProfile(ctx context.Context, userID, email string) (*models.Profile, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SetSessionToken(ctx context.Context, userID string, token *string) error
	UpsertDeviceLock(ctx context.Context, userID, token string) error
	DeleteDeviceLock(ctx context.Context, userID string) error
}

// Recorder учитывает проверки сессий.
type Recorder interface {
	SessionIssued()
	SessionRejected(reason string)
}

// Guard выдает и проверяет токены сессий.
type Guard struct {
	log      *slog.Logger
	store    Store
	recorder Recorder
	newToken func() (string, error)
}

// New создает Guard. recorder может быть nil.
func New(log *slog.Logger, store Store, recorder Recorder) *Guard {
	return &Guard{
		log:      log,
		store:    store,
		recorder: recorder,
		newToken: randomToken,
	}
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// IssueSession создает профиль при первом входе и записывает новый токен.
// Запись в профиль обязательна, ошибка блокировки устройства только логируется.
func (g *Guard) IssueSession(ctx context.Context, userID, email string) (string, error) {
	const op = "services.session.IssueSession"

	if userID == "" {
		return "", fmt.Errorf("%s: empty user id", op)
	}
	if _, err := g.store.UpsertProfile(ctx, userID, email); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := g.newToken()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := g.store.SetSessionToken(ctx, userID, &token); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := g.store.UpsertDeviceLock(ctx, userID, token); err != nil {
		g.log.Warn("failed to update device lock",
			slog.String("op", op), slog.String("user_id", userID), sl.Err(err))
	}

	if g.recorder != nil {
		g.recorder.SessionIssued()
	}
	return token, nil
}

// ValidateSession сравнивает предъявленный токен с сохраненным в профиле.
// Ошибки хранилища возвращаются как есть, вызывающий должен отказать.
func (g *Guard) ValidateSession(ctx context.Context, userID, presented string) (Verdict, error) {
	const op = "services.session.ValidateSession"

	if userID == "" {
		return g.reject(ReasonNoCredential), nil
	}

	profile, err := g.store.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrProfileNotFound) {
		return g.reject(ReasonProfileNotFound), nil
	}
	if err != nil {
		return Verdict{}, fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case profile.LastSessionToken == nil:
		return Verdict{Valid: true, Fresh: true}, nil
	case presented == "":
		return g.reject(ReasonMissingToken), nil
	case presented != *profile.LastSessionToken:
		return g.reject(ReasonTokenMismatch), nil
	}
	return Verdict{Valid: true}, nil
}

func (g *Guard) reject(reason Reason) Verdict {
	if g.recorder != nil {
		g.recorder.SessionRejected(string(reason))
	}
	return Verdict{Reason: reason}
}

// ClearSession сбрасывает токен и удаляет блокировку устройства.
// Повторный вызов и отсутствующий профиль не ошибка.
func (g *Guard) ClearSession(ctx context.Context, userID string) error {
	const op = "services.session.ClearSession"

	if userID == "" {
		return nil
	}
	err := g.store.SetSessionToken(ctx, userID, nil)
	if err != nil && !errors.Is(err, storage.ErrProfileNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := g.store.DeleteDeviceLock(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
