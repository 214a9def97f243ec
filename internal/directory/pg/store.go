package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"

	"tiergate.org/internal/directory"
	"tiergate.org/internal/ids"
	"tiergate.org/internal/obs"
)

// Store implements directory.Directory on PostgreSQL. Uniqueness constraints
// on usernames and provider identities stand in for locks: concurrent
// creations surface as ErrUsernameExists / ErrAlreadyLinked and callers
// recover locally.
type Store struct {
	db *sql.DB
}

var _ directory.Directory = (*Store)(nil)

// Open connects to PostgreSQL and waits for the database to become
// reachable, retrying the ping with exponential backoff.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute

	err = backoff.RetryNotify(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}, bo, func(err error, next time.Duration) {
		obs.Log(map[string]any{
			"level":    "warn",
			"msg":      "directory db not ready, retrying",
			"error":    err.Error(),
			"retry_in": next.String(),
		})
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle. Used by tests and by callers
// that manage the connection themselves.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) ListUsersByEmail(ctx context.Context, email string, limit int) ([]directory.User, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		select username, subject_id, email, given_name, family_name, confirmed, created_at
		from directory_users
		where email = $1
		order by created_at asc, username asc
		limit $2`, email, limit)
	if err != nil {
		return nil, mapError(err, nil)
	}
	defer rows.Close()

	var users []directory.User
	for rows.Next() {
		var u directory.User
		if err := rows.Scan(&u.Username, &u.SubjectID, &u.Email, &u.GivenName, &u.FamilyName, &u.Confirmed, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, nu directory.NewUser) (directory.User, error) {
	u := directory.User{
		Username:   nu.Username,
		SubjectID:  uuid.NewString(),
		Email:      nu.Email,
		GivenName:  nu.GivenName,
		FamilyName: nu.FamilyName,
	}
	err := s.db.QueryRowContext(ctx, `
		insert into directory_users(username, subject_id, email, given_name, family_name, confirmed)
		values ($1, $2, $3, $4, $5, false)
		returning created_at`,
		u.Username, u.SubjectID, u.Email, u.GivenName, u.FamilyName,
	).Scan(&u.CreatedAt)
	if err != nil {
		return directory.User{}, mapError(err, directory.ErrUsernameExists)
	}
	if !nu.SuppressMessage {
		// Welcome delivery is fire-and-forget; shadow accounts suppress it.
		obs.Log(map[string]any{
			"level":    "info",
			"msg":      "welcome_notification_queued",
			"username": u.Username,
		})
	}
	return u, nil
}

func (s *Store) SetUserPassword(ctx context.Context, username, password string, permanent bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update directory_users
		set password_hash = $2, confirmed = confirmed or $3, updated_at = now()
		where username = $1`,
		username, string(hash), permanent)
	if err != nil {
		return mapError(err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (s *Store) AddUserToGroup(ctx context.Context, user, group string) error {
	username, err := s.resolveUsername(ctx, user)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into directory_group_members(id, username, group_name)
		values ($1, $2, $3)
		on conflict (username, group_name) do nothing`,
		ids.New(), username, group)
	return mapError(err, nil)
}

func (s *Store) RemoveUserFromGroup(ctx context.Context, user, group string) error {
	username, err := s.resolveUsername(ctx, user)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		delete from directory_group_members where username = $1 and group_name = $2`,
		username, group)
	return mapError(err, nil)
}

func (s *Store) ListGroupsForUser(ctx context.Context, user string) ([]string, error) {
	username, err := s.resolveUsername(ctx, user)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select group_name from directory_group_members
		where username = $1
		order by group_name asc`, username)
	if err != nil {
		return nil, mapError(err, nil)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *Store) LinkProviderIdentity(ctx context.Context, destUser string, src directory.ProviderIdentity) error {
	if src.ProviderName == directory.NativeProvider {
		return fmt.Errorf("directory: cannot link the %s provider to itself", directory.NativeProvider)
	}
	username, err := s.resolveUsername(ctx, destUser)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into directory_identities(id, username, provider_name, attribute_name, provider_user_id)
		values ($1, $2, $3, $4, $5)`,
		ids.New(), username, src.ProviderName, src.AttributeName, src.UserID)
	return mapError(err, directory.ErrAlreadyLinked)
}

// resolveUsername accepts a username or a subject id and returns the
// canonical username.
func (s *Store) resolveUsername(ctx context.Context, user string) (string, error) {
	var username string
	err := s.db.QueryRowContext(ctx, `
		select username from directory_users
		where username = $1 or subject_id = $1`, user).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", directory.ErrNotFound
	}
	if err != nil {
		return "", mapError(err, nil)
	}
	return username, nil
}

// mapError translates PostgreSQL failures into the directory error kinds.
// conflict is returned for unique violations; pass nil when a duplicate is
// impossible for the statement.
func mapError(err error, conflict error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if conflict != nil {
				return conflict
			}
		case "23503": // foreign_key_violation: unknown user or group
			return directory.ErrNotFound
		case "42501": // insufficient_privilege
			return directory.ErrAccessDenied
		}
		return err
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", directory.ErrUnavailable, err)
	}
	return err
}
