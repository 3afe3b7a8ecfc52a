package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tildaslashalef/fieldsync/internal/loggy"
)

var (
	// ErrNoCachedCredential is returned when no credential has been cached
	// for the given username
	ErrNoCachedCredential = errors.New("no cached credential")

	// ErrNoSession is returned when no active session exists
	ErrNoSession = errors.New("no active session")
)

// Repository defines persistence for cached credentials and the active session
type Repository interface {
	SaveCredential(ctx context.Context, cred *CachedCredential) error
	GetCredential(ctx context.Context, username string) (*CachedCredential, error)
	SaveSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context) (*Session, error)
	DeleteSession(ctx context.Context) error
}

// SQLRepository implements Repository using SQLite
type SQLRepository struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRepository creates a new auth SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) *SQLRepository {
	return &SQLRepository{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// SaveCredential stores or replaces the cached credential for a username
func (r *SQLRepository) SaveCredential(ctx context.Context, cred *CachedCredential) error {
	profileJSON, err := json.Marshal(cred.Profile)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}

	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = time.Now().UTC()
	}

	query, args, err := r.builder.
		Insert("credentials").
		Options("OR REPLACE").
		Columns("username", "password_hash", "profile", "updated_at").
		Values(cred.Username, cred.PasswordHash, string(profileJSON), cred.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("building save credential query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}

	r.logger.Debug("Cached credential verifier", "username", cred.Username)
	return nil
}

// GetCredential retrieves the cached credential for a username
func (r *SQLRepository) GetCredential(ctx context.Context, username string) (*CachedCredential, error) {
	query, args, err := r.builder.
		Select("username", "password_hash", "profile", "updated_at").
		From("credentials").
		Where(sq.Eq{"username": username}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get credential query: %w", err)
	}

	var (
		cred        CachedCredential
		profileJSON string
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&cred.Username,
		&cred.PasswordHash,
		&profileJSON,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoCachedCredential
		}
		return nil, fmt.Errorf("getting credential: %w", err)
	}

	if err := json.Unmarshal([]byte(profileJSON), &cred.Profile); err != nil {
		return nil, fmt.Errorf("unmarshaling profile: %w", err)
	}

	return &cred, nil
}

// SaveSession stores the active session, replacing any previous one
func (r *SQLRepository) SaveSession(ctx context.Context, session *Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	query, args, err := r.builder.
		Insert("sessions").
		Options("OR REPLACE").
		Columns("id", "token", "username", "created_at").
		Values(1, session.Token, session.Username, session.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("building save session query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	return nil
}

// GetSession retrieves the active session
func (r *SQLRepository) GetSession(ctx context.Context) (*Session, error) {
	query, args, err := r.builder.
		Select("token", "username", "created_at").
		From("sessions").
		Where(sq.Eq{"id": 1}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get session query: %w", err)
	}

	var session Session
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&session.Token,
		&session.Username,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}

	return &session, nil
}

// DeleteSession clears the active session. The cached credential verifier
// is preserved so offline authentication keeps working after logout.
func (r *SQLRepository) DeleteSession(ctx context.Context) error {
	query, args, err := r.builder.
		Delete("sessions").
		Where(sq.Eq{"id": 1}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete session query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	return nil
}
