package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/fieldsync/internal/loggy"
	"github.com/tildaslashalef/fieldsync/internal/remote"
)

// fakeRepo is an in-memory credential and session store
type fakeRepo struct {
	credentials map[string]*CachedCredential
	session     *Session

	saveCredentialErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{credentials: make(map[string]*CachedCredential)}
}

func (f *fakeRepo) SaveCredential(ctx context.Context, cred *CachedCredential) error {
	if f.saveCredentialErr != nil {
		return f.saveCredentialErr
	}
	f.credentials[cred.Username] = cred
	return nil
}

func (f *fakeRepo) GetCredential(ctx context.Context, username string) (*CachedCredential, error) {
	cred, ok := f.credentials[username]
	if !ok {
		return nil, ErrNoCachedCredential
	}
	return cred, nil
}

func (f *fakeRepo) SaveSession(ctx context.Context, session *Session) error {
	f.session = session
	return nil
}

func (f *fakeRepo) GetSession(ctx context.Context) (*Session, error) {
	if f.session == nil {
		return nil, ErrNoSession
	}
	return f.session, nil
}

func (f *fakeRepo) DeleteSession(ctx context.Context) error {
	f.session = nil
	return nil
}

// fakeAuthenticator simulates the remote authentication endpoint
type fakeAuthenticator struct {
	token   string
	profile *remote.Profile
	err     error

	currentToken string
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, username, password string) (string, *remote.Profile, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.token, f.profile, nil
}

func (f *fakeAuthenticator) SetToken(token string) {
	f.currentToken = token
}

type fakeChecker struct {
	online bool
}

func (f *fakeChecker) CurrentStatus(ctx context.Context, forceRefresh bool) bool {
	return f.online
}

func newTestService(repo *fakeRepo, client *fakeAuthenticator, online bool) *Service {
	return NewService(repo, client, &fakeChecker{online: online}, loggy.NewNoopLogger())
}

func TestLoginOnline(t *testing.T) {
	repo := newFakeRepo()
	client := &fakeAuthenticator{
		token:   "jwt-token",
		profile: &remote.Profile{ID: 1, Username: "jane"},
	}
	svc := newTestService(repo, client, true)

	profile, err := svc.Login(context.Background(), "jane", "secret")
	require.NoError(t, err)

	assert.Equal(t, "jane", profile.Username)
	assert.Equal(t, "jwt-token", client.currentToken)

	require.NotNil(t, repo.session)
	assert.Equal(t, "jwt-token", repo.session.Token)

	cred, ok := repo.credentials["jane"]
	require.True(t, ok, "online login caches a credential verifier")
	assert.NotEqual(t, "secret", cred.PasswordHash, "verifier must not be the plaintext password")
}

func TestLoginOnlineFailure(t *testing.T) {
	repo := newFakeRepo()
	client := &fakeAuthenticator{err: errors.New("401 unauthorized")}
	svc := newTestService(repo, client, true)

	_, err := svc.Login(context.Background(), "jane", "wrong")
	require.Error(t, err)
	assert.Nil(t, repo.session)
	assert.Empty(t, repo.credentials, "failed login must not cache a verifier")
}

func TestLoginOnlineCacheWriteFailureIsNotFatal(t *testing.T) {
	repo := newFakeRepo()
	repo.saveCredentialErr = errors.New("disk full")
	client := &fakeAuthenticator{token: "jwt-token", profile: &remote.Profile{Username: "jane"}}
	svc := newTestService(repo, client, true)

	_, err := svc.Login(context.Background(), "jane", "secret")
	assert.NoError(t, err, "a failed cache write must not fail an otherwise successful login")
	require.NotNil(t, repo.session)
}

func TestLoginOfflineWithCachedCredential(t *testing.T) {
	repo := newFakeRepo()
	client := &fakeAuthenticator{token: "jwt-token", profile: &remote.Profile{Username: "jane", Role: "agent"}}

	// Login online first to seed the cached verifier
	online := newTestService(repo, client, true)
	_, err := online.Login(context.Background(), "jane", "secret")
	require.NoError(t, err)

	// Same password succeeds offline with the cached profile
	offline := newTestService(repo, client, false)
	profile, err := offline.Login(context.Background(), "jane", "secret")
	require.NoError(t, err)
	assert.Equal(t, "agent", profile.Role)

	// Wrong password is rejected offline
	_, err = offline.Login(context.Background(), "jane", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginOfflineWithoutCachedCredential(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeAuthenticator{}, false)

	_, err := svc.Login(context.Background(), "nobody", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutPreservesCachedCredential(t *testing.T) {
	repo := newFakeRepo()
	client := &fakeAuthenticator{token: "jwt-token", profile: &remote.Profile{Username: "jane"}}
	svc := newTestService(repo, client, true)

	_, err := svc.Login(context.Background(), "jane", "secret")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background()))

	assert.Nil(t, repo.session, "logout clears the session")
	assert.Empty(t, client.currentToken, "logout clears the client token")
	assert.Contains(t, repo.credentials, "jane", "the cached verifier survives logout")

	// Offline login still works after logout
	offline := newTestService(repo, client, false)
	_, err = offline.Login(context.Background(), "jane", "secret")
	assert.NoError(t, err)
}

func TestCurrentSessionRestoresToken(t *testing.T) {
	repo := newFakeRepo()
	repo.session = &Session{Token: "persisted-token", Username: "jane"}
	client := &fakeAuthenticator{}
	svc := newTestService(repo, client, true)

	session, err := svc.CurrentSession(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "jane", session.Username)
	assert.Equal(t, "persisted-token", client.currentToken)
}

func TestCurrentSessionNone(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeAuthenticator{}, true)

	_, err := svc.CurrentSession(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}
