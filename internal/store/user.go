package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cambosugarscan/apiserver/types"
	"github.com/google/uuid"
)

// User columns accepted by UserRepository.CountGroups.
const (
	UserGroupRole     = "role"
	UserGroupStatus   = "status"
	UserGroupAgeGroup = "age_group"
)

const userColumns = `id, name, email, password_hash, role, status, age, birth_year, age_group,
		daily_sugar_limit_g, profile_image, created_at, updated_at`

var userSearchColumns = []string{"name", "email", "role", "status", "age_group"}

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// List returns users matching q (case-insensitive, any searchable column),
// newest first, together with the total number of matches.
func (r *UserRepository) List(ctx context.Context, q string, offset, limit int) ([]types.User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where := searchClause(q, userSearchColumns...)
	args := []any{}
	if where != "" {
		args = append(args, containsPattern(q))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT ` + userColumns + ` FROM users` + where +
		` ORDER BY created_at DESC, id OFFSET $` + itoa(len(args)+1) + ` LIMIT $` + itoa(len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	if !validID(id) {
		return types.User{}, ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, name, email, password_hash, role, status, age, birth_year, age_group,
			daily_sugar_limit_g, profile_image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.Age,
		user.BirthYear,
		user.AgeGroup,
		user.DailySugarLimitG,
		user.ProfileImage,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, translateError(err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	if !validID(user.ID) {
		return types.User{}, ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE users
		SET name = $1,
			email = $2,
			password_hash = $3,
			role = $4,
			status = $5,
			age = $6,
			birth_year = $7,
			age_group = $8,
			daily_sugar_limit_g = $9,
			profile_image = $10,
			updated_at = $11
		WHERE id = $12`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.Age,
		user.BirthYear,
		user.AgeGroup,
		user.DailySugarLimitG,
		user.ProfileImage,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, translateError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// CountByRole returns the number of users holding role.
func (r *UserRepository) CountByRole(ctx context.Context, role types.Role) (int, error) {
	const query = `SELECT COUNT(1) FROM users WHERE role = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, query, role).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// CountGroups counts users per value of column, one of the UserGroup constants.
func (r *UserRepository) CountGroups(ctx context.Context, column string) (map[string]int, error) {
	switch column {
	case UserGroupRole, UserGroupStatus, UserGroupAgeGroup:
	default:
		return nil, errors.New("unsupported user group column")
	}
	return countGroups(ctx, r.db, "users", column)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var age, birthYear sql.NullInt64
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&age,
		&birthYear,
		&user.AgeGroup,
		&user.DailySugarLimitG,
		&user.ProfileImage,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, err
	}
	user.Age = nullIntPtr(age)
	user.BirthYear = nullIntPtr(birthYear)
	return user, nil
}
