package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lumen.app/companion/common/id"
	"lumen.app/companion/internal/model"
	"lumen.app/companion/internal/store"
)

// SessionTTL is the lifetime of a login session.
const SessionTTL = 7 * 24 * time.Hour

type AuthService interface {
	GetAuthorizationURL(state string) (string, error)
	HandleCallback(ctx context.Context, code string) (*model.User, *model.Session, error)
	ValidateSession(ctx context.Context, sessionID int64) (*model.User, error)
	Logout(ctx context.Context, sessionID int64) error
}

type authService struct {
	identity     IdentityProvider
	txRunner     TxRunner
	userStore    store.UserStore
	sessionStore store.SessionStore
	now          func() time.Time
}

func NewAuthService(
	identity IdentityProvider,
	txRunner TxRunner,
	userStore store.UserStore,
	sessionStore store.SessionStore,
) AuthService {
	return &authService{
		identity:     identity,
		txRunner:     txRunner,
		userStore:    userStore,
		sessionStore: sessionStore,
		now:          time.Now,
	}
}

func (s *authService) GetAuthorizationURL(state string) (string, error) {
	return s.identity.AuthorizationURL(state)
}

// HandleCallback exchanges the code, upserts the user by email and opens a
// login session. Both writes share one transaction.
func (s *authService) HandleCallback(ctx context.Context, code string) (*model.User, *model.Session, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil, ErrInvalidCode
	}

	identity, err := s.identity.ExchangeCode(ctx, code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to authenticate with code", "error", err)
		return nil, nil, ErrInvalidCode
	}
	if identity.Email == "" {
		slog.ErrorContext(ctx, "identity provider returned no email", "subject", identity.SubjectID)
		return nil, nil, ErrInvalidCode
	}

	var avatarURL *string
	if identity.Picture != "" {
		avatarURL = &identity.Picture
	}

	user := &model.User{
		ID:              id.New(),
		Name:            identity.Name,
		Email:           identity.Email,
		AvatarURL:       avatarURL,
		ProviderSubject: identity.SubjectID,
	}
	session := &model.Session{
		ID:        id.New(),
		ExpiresAt: s.now().Add(SessionTTL),
	}

	err = s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Users().Upsert(ctx, user); err != nil {
			return fmt.Errorf("upserting user: %w", err)
		}
		session.UserID = user.ID
		if err := stores.Sessions().Create(ctx, session); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to sign user in",
			"error", err,
			"email", user.Email)
		return nil, nil, err
	}

	slog.InfoContext(ctx, "user authenticated",
		"user_id", user.ID,
		"email", user.Email,
		"session_id", session.ID,
	)

	return user, session, nil
}

func (s *authService) ValidateSession(ctx context.Context, sessionID int64) (*model.User, error) {
	session, err := s.sessionStore.GetValid(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}
	if session.Expired(s.now()) {
		return nil, ErrSessionExpired
	}

	user, err := s.userStore.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	return user, nil
}

func (s *authService) Logout(ctx context.Context, sessionID int64) error {
	if err := s.sessionStore.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
