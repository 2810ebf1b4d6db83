package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cambosugarscan/apiserver/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"
)

var userRowColumns = []string{
	"id", "name", "email", "password_hash", "role", "status", "age", "birth_year", "age_group",
	"daily_sugar_limit_g", "profile_image", "created_at", "updated_at",
}

type UserRepositorySuite struct {
	suite.Suite
	mock sqlmock.Sqlmock
	repo *UserRepository
}

func TestUserRepositorySuite(t *testing.T) {
	suite.Run(t, new(UserRepositorySuite))
}

func (s *UserRepositorySuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })
	s.mock = mock
	s.repo = NewUserRepository(db)
}

func (s *UserRepositorySuite) TearDownTest() {
	s.Require().NoError(s.mock.ExpectationsWereMet())
}

func (s *UserRepositorySuite) TestGetByEmail() {
	now := time.Now().UTC()
	id := uuid.NewString()

	s.Run("scans nullable age columns", func() {
		s.mock.ExpectQuery(`FROM users WHERE email = \$1`).
			WithArgs("a@example.com").
			WillReturnRows(sqlmock.NewRows(userRowColumns).
				AddRow(id, "A", "a@example.com", "hash", "admin", "active", nil, nil, "adult", 25, "", now, now))

		user, err := s.repo.GetByEmail(context.Background(), "a@example.com")
		s.Require().NoError(err)
		s.Equal(types.RoleAdmin, user.Role)
		s.Nil(user.Age)
		s.Nil(user.BirthYear)
		s.Equal("hash", user.PasswordHash)
	})

	s.Run("scans set age columns", func() {
		s.mock.ExpectQuery(`FROM users WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(userRowColumns).
				AddRow(id, "B", "b@example.com", "hash", "user", "blocked", 9, 2017, "children", 15, "", now, now))

		user, err := s.repo.GetByID(context.Background(), id)
		s.Require().NoError(err)
		s.Require().NotNil(user.Age)
		s.Equal(9, *user.Age)
		s.Equal(2017, *user.BirthYear)
		s.Equal(types.StatusBlocked, user.Status)
	})

	s.Run("returns ErrNotFound", func() {
		s.mock.ExpectQuery(`FROM users WHERE email = \$1`).
			WithArgs("nobody@example.com").
			WillReturnRows(sqlmock.NewRows(userRowColumns))

		_, err := s.repo.GetByEmail(context.Background(), "nobody@example.com")
		s.Require().ErrorIs(err, ErrNotFound)
	})
}

func (s *UserRepositorySuite) TestCreateDuplicateEmail() {
	s.mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	_, err := s.repo.Create(context.Background(), types.User{Email: "a@example.com"})
	s.Require().ErrorIs(err, ErrDuplicate)
}

func (s *UserRepositorySuite) TestUpdateDuplicateEmail() {
	s.mock.ExpectExec(`UPDATE users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	_, err := s.repo.Update(context.Background(), types.User{ID: uuid.NewString(), Email: "a@example.com"})
	s.Require().ErrorIs(err, ErrDuplicate)
}

func (s *UserRepositorySuite) TestMalformedIDIsNotFound() {
	ctx := context.Background()
	for _, id := range []string{"abc", "", "123", "' OR 1=1 --"} {
		_, err := s.repo.GetByID(ctx, id)
		s.Require().ErrorIs(err, ErrNotFound, id)

		_, err = s.repo.Update(ctx, types.User{ID: id, Email: "a@example.com"})
		s.Require().ErrorIs(err, ErrNotFound, id)

		s.Require().ErrorIs(s.repo.Delete(ctx, id), ErrNotFound, id)
	}
}

func (s *UserRepositorySuite) TestCountByRole() {
	s.mock.ExpectQuery(`SELECT COUNT\(1\) FROM users WHERE role = \$1`).
		WithArgs(types.RoleAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := s.repo.CountByRole(context.Background(), types.RoleAdmin)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *UserRepositorySuite) TestListSearchesAllColumns() {
	s.mock.ExpectQuery(`FROM users WHERE name ILIKE \$1 OR email ILIKE \$1 OR role ILIKE \$1 OR status ILIKE \$1 OR age_group ILIKE \$1`).
		WithArgs(`%child%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	s.mock.ExpectQuery(`FROM users WHERE .* ORDER BY created_at DESC`).
		WithArgs(`%child%`, 0, 20).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	items, total, err := s.repo.List(context.Background(), "child", 0, 20)
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(items)
}
