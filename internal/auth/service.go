package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tildaslashalef/fieldsync/internal/loggy"
	"github.com/tildaslashalef/fieldsync/internal/remote"
)

// ErrInvalidCredentials is returned when the supplied password does not
// match the cached verifier during offline authentication
var ErrInvalidCredentials = errors.New("invalid credentials")

// authenticator is the remote authentication surface the service depends on
type authenticator interface {
	Authenticate(ctx context.Context, username, password string) (string, *remote.Profile, error)
	SetToken(token string)
}

// connectivityChecker reports current reachability
type connectivityChecker interface {
	CurrentStatus(ctx context.Context, forceRefresh bool) bool
}

// Service handles online and offline authentication
type Service struct {
	repo    Repository
	client  authenticator
	monitor connectivityChecker
	logger  *loggy.Logger
}

// NewService creates a new auth service
func NewService(repo Repository, client authenticator, monitor connectivityChecker, logger *loggy.Logger) *Service {
	return &Service{
		repo:    repo,
		client:  client,
		monitor: monitor,
		logger:  logger,
	}
}

// Login authenticates the user. When the service is reachable the remote
// round-trip is authoritative and the credential verifier is refreshed;
// the offline path is only taken when the monitor reports unreachable.
func (s *Service) Login(ctx context.Context, username, password string) (*remote.Profile, error) {
	if s.monitor.CurrentStatus(ctx, false) {
		return s.loginOnline(ctx, username, password)
	}

	s.logger.Info("Service unreachable, attempting offline authentication", "username", username)
	return s.authenticateOffline(ctx, username, password)
}

func (s *Service) loginOnline(ctx context.Context, username, password string) (*remote.Profile, error) {
	token, profile, err := s.client.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	// Cache a non-reversible verifier so the user can authenticate while
	// the service is unreachable
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing credential: %w", err)
	}

	if err := s.repo.SaveCredential(ctx, &CachedCredential{
		Username:     username,
		PasswordHash: string(hash),
		Profile:      profile,
		UpdatedAt:    time.Now().UTC(),
	}); err != nil {
		// A failed cache write must not fail an otherwise successful login
		s.logger.Warn("Failed to cache credential", "username", username, "error", err)
	}

	if err := s.repo.SaveSession(ctx, &Session{Token: token, Username: username}); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	s.client.SetToken(token)
	s.logger.Info("Authenticated online", "username", username)
	return profile, nil
}

// authenticateOffline recomputes the verifier for the supplied password and
// compares it against the cached one. Reachable only when the monitor
// reports offline; online authentication is authoritative otherwise.
func (s *Service) authenticateOffline(ctx context.Context, username, password string) (*remote.Profile, error) {
	cred, err := s.repo.GetCredential(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNoCachedCredential) {
			return nil, fmt.Errorf("%w: no prior online login for %s", ErrInvalidCredentials, username)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("Authenticated offline", "username", username)
	return cred.Profile, nil
}

// CurrentSession returns the active session, restoring the client token
func (s *Service) CurrentSession(ctx context.Context) (*Session, error) {
	session, err := s.repo.GetSession(ctx)
	if err != nil {
		return nil, err
	}

	s.client.SetToken(session.Token)
	return session, nil
}

// Logout clears the active session token. The cached credential verifier
// and profile are kept so offline authentication remains possible.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.repo.DeleteSession(ctx); err != nil {
		return err
	}

	s.client.SetToken("")
	s.logger.Info("Logged out")
	return nil
}
