package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cambosugarscan/apiserver/internal/events"
	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/cambosugarscan/apiserver/internal/metrics"
	"github.com/cambosugarscan/apiserver/internal/rules"
	"github.com/cambosugarscan/apiserver/internal/store"
	"github.com/cambosugarscan/apiserver/types"
	"golang.org/x/sync/errgroup"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context, q string, offset, limit int) ([]types.User, int, error)
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountByRole(ctx context.Context, role types.Role) (int, error)
	CountGroups(ctx context.Context, column string) (map[string]int, error)
}

// UserService encapsulates account use-cases.
//
// The last-admin guard counts admins and then writes without a transaction,
// so two concurrent demotions of different admins can both succeed.
type UserService struct {
	repo      UserRepository
	hasher    PasswordHasher
	publisher EventPublisher
	metrics   *metrics.Metrics
	log       logging.Logger
	now       func() time.Time
}

func NewUserService(repo UserRepository, hasher PasswordHasher, publisher EventPublisher, m *metrics.Metrics, log logging.Logger) *UserService {
	return &UserService{
		repo:      repo,
		hasher:    hasher,
		publisher: publisher,
		metrics:   m,
		log:       log.With("component", "users"),
		now:       time.Now,
	}
}

func (s *UserService) List(ctx context.Context, q string, offset, limit int) ([]types.User, int, error) {
	return s.repo.List(ctx, q, offset, limit)
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Create adds an account with the role and status given in in.
func (s *UserService) Create(ctx context.Context, in rules.UserInput) (types.User, error) {
	draft, err := rules.BuildUserCreate(in, s.now())
	if err != nil {
		s.metrics.Rejected("user", "invalid")
		return types.User{}, err
	}
	return s.insert(ctx, draft)
}

// Register is the public sign-up path: the account is always an active user.
func (s *UserService) Register(ctx context.Context, in rules.UserInput) (types.User, error) {
	in.Role = types.NewValue(string(types.RoleUser))
	in.Status = types.NewValue(string(types.StatusActive))
	return s.Create(ctx, in)
}

func (s *UserService) Update(ctx context.Context, id string, in rules.UserInput) (types.User, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	draft, err := rules.BuildUserUpdate(in, existing, s.now())
	if err != nil {
		s.metrics.Rejected("user", "invalid")
		return types.User{}, err
	}
	if err := s.ensureAdminRetained(ctx, existing, draft.User.Role); err != nil {
		return types.User{}, err
	}
	return s.save(ctx, draft)
}

// UpdateProfile applies a self-service change. Role, status and age are
// never touched here.
func (s *UserService) UpdateProfile(ctx context.Context, id string, in rules.ProfileInput) (types.User, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	draft, err := rules.BuildUserProfile(in, existing)
	if err != nil {
		s.metrics.Rejected("user", "invalid")
		return types.User{}, err
	}
	return s.save(ctx, draft)
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureAdminRetained(ctx, existing, ""); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.metrics.UserWritten("delete")
	s.publish(ctx, events.UserDeleted, id, nil)
	return nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords both
// yield ErrInvalidCredentials; blocked accounts yield ErrAccountBlocked.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = rules.NormalizeEmail(email)
	if email == "" || password == "" {
		return types.User{}, &rules.ValidationError{Message: "email and password are required"}
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if user.Status == types.StatusBlocked {
		return types.User{}, ErrAccountBlocked
	}
	return user, nil
}

// AuthenticateAdmin is Authenticate restricted to admins.
func (s *UserService) AuthenticateAdmin(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return types.User{}, err
	}
	if !user.IsAdmin() {
		return types.User{}, ErrNotAdmin
	}
	return user, nil
}

// Stats counts accounts by role, status and age group.
func (s *UserService) Stats(ctx context.Context) (types.UserStats, error) {
	var (
		total                        int
		byRole, byStatus, byAgeGroup map[string]int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		byRole, err = s.repo.CountGroups(gctx, store.UserGroupRole)
		return err
	})
	g.Go(func() error {
		var err error
		byStatus, err = s.repo.CountGroups(gctx, store.UserGroupStatus)
		return err
	})
	g.Go(func() error {
		var err error
		byAgeGroup, err = s.repo.CountGroups(gctx, store.UserGroupAgeGroup)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.UserStats{}, fmt.Errorf("user stats: %w", err)
	}

	return types.UserStats{
		TotalUsers:    total,
		AdminCount:    byRole[string(types.RoleAdmin)],
		UserCount:     byRole[string(types.RoleUser)],
		ActiveCount:   byStatus[string(types.StatusActive)],
		BlockedCount:  byStatus[string(types.StatusBlocked)],
		ChildrenCount: byAgeGroup[string(types.AgeGroupChildren)],
		AdultCount:    byAgeGroup[string(types.AgeGroupAdult)],
		ElderlyCount:  byAgeGroup[string(types.AgeGroupElderly)],
	}, nil
}

func (s *UserService) insert(ctx context.Context, draft rules.UserDraft) (types.User, error) {
	user := draft.User
	hash, err := s.hasher.Hash(draft.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return types.User{}, s.writeError(err)
	}

	s.metrics.UserWritten("create")
	s.publish(ctx, events.UserCreated, created.ID, created)
	return created, nil
}

func (s *UserService) save(ctx context.Context, draft rules.UserDraft) (types.User, error) {
	user := draft.User
	if draft.Password != "" {
		hash, err := s.hasher.Hash(draft.Password)
		if err != nil {
			return types.User{}, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, s.writeError(err)
	}

	s.metrics.UserWritten("update")
	s.publish(ctx, events.UserUpdated, updated.ID, updated)
	return updated, nil
}

func (s *UserService) ensureAdminRetained(ctx context.Context, current types.User, nextRole types.Role) error {
	if !current.IsAdmin() || nextRole == types.RoleAdmin {
		return nil
	}
	admins, err := s.repo.CountByRole(ctx, types.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if err := rules.CheckAdminRetained(current, nextRole, admins); err != nil {
		s.metrics.LastAdminBlock.Inc()
		s.metrics.Rejected("user", "last_admin")
		return err
	}
	return nil
}

func (s *UserService) writeError(err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		s.metrics.Rejected("user", "duplicate_email")
		return fmt.Errorf("email already exists: %w", ErrConflict)
	}
	return err
}

func (s *UserService) publish(ctx context.Context, eventType, id string, data any) {
	ev, err := events.NewEvent(eventType, id, data, s.now())
	if err == nil {
		_, err = s.publisher.Publish(ctx, ev)
	}
	if err != nil {
		s.log.Warn(ctx, "event not published", "type", eventType, "id", id, "error", err)
	}
}
