package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tiergate.org/internal/tier"
)

const pgUniqueViolation = "23505"

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const profileColumns = `subject_id, email, given_name, family_name, display_name, avatar_url, tier, active, last_login_at, created_at, updated_at`

func (s *PGStore) Get(ctx context.Context, subjectID string) (Profile, error) {
	if strings.TrimSpace(subjectID) == "" {
		return Profile{}, fmt.Errorf("%w: empty subject id", ErrInvalidInput)
	}
	row := s.db.QueryRowContext(ctx,
		`select `+profileColumns+` from user_profiles where subject_id = $1`, subjectID)
	return scanProfile(row)
}

func (s *PGStore) Create(ctx context.Context, p Profile) error {
	if strings.TrimSpace(p.SubjectID) == "" {
		return fmt.Errorf("%w: empty subject id", ErrInvalidInput)
	}
	if p.Tier != "" && !p.Tier.Valid() {
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, p.Tier)
	}
	_, err := s.db.ExecContext(ctx, `
		insert into user_profiles(subject_id, email, given_name, family_name, display_name, avatar_url, tier, active, last_login_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.SubjectID, p.Email, p.GivenName, p.FamilyName, p.DisplayName, p.AvatarURL, string(p.Tier), p.Active, p.LastLoginAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *PGStore) Update(ctx context.Context, subjectID string, upd Update) error {
	if strings.TrimSpace(subjectID) == "" {
		return fmt.Errorf("%w: empty subject id", ErrInvalidInput)
	}
	if upd.Tier != nil && !upd.Tier.Valid() {
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, *upd.Tier)
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.GivenName != nil {
		add("given_name", *upd.GivenName)
	}
	if upd.FamilyName != nil {
		add("family_name", *upd.FamilyName)
	}
	if upd.DisplayName != nil {
		add("display_name", *upd.DisplayName)
	}
	if upd.AvatarURL != nil {
		add("avatar_url", *upd.AvatarURL)
	}
	if upd.Tier != nil {
		add("tier", string(*upd.Tier))
	}
	if upd.Active != nil {
		add("active", *upd.Active)
	}
	if upd.LastLoginAt != nil {
		add("last_login_at", *upd.LastLoginAt)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`update user_profiles set %s where subject_id = $%d`, strings.Join(sets, ", "), idx)
	args = append(args, subjectID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) List(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+profileColumns+` from user_profiles order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var (
		p         Profile
		tierValue string
		lastLogin sql.NullTime
	)
	err := row.Scan(&p.SubjectID, &p.Email, &p.GivenName, &p.FamilyName, &p.DisplayName, &p.AvatarURL,
		&tierValue, &p.Active, &lastLogin, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	p.Tier = tier.Tier(tierValue)
	if lastLogin.Valid {
		p.LastLoginAt = lastLogin.Time
	}
	return p, nil
}
