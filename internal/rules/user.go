package rules

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cambosugarscan/apiserver/types"
)

// MaxProfileImageLength caps stored profile images (data URIs or URLs).
const MaxProfileImageLength = 1_500_000

// MinPasswordLength applies to self-service password changes.
const MinPasswordLength = 6

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// UserInput is a raw create or full-update submission for a user.
type UserInput struct {
	Name         types.Value `json:"name"`
	Email        types.Value `json:"email"`
	Password     types.Value `json:"password"`
	Role         types.Value `json:"role"`
	Status       types.Value `json:"status"`
	Age          types.Value `json:"age"`
	BirthYear    types.Value `json:"birthYear"`
	ProfileImage types.Value `json:"profileImage"`
}

// ProfileInput is a self-service profile change.
type ProfileInput struct {
	Name         types.Value `json:"name"`
	Email        types.Value `json:"email"`
	Password     types.Value `json:"password"`
	ProfileImage types.Value `json:"profileImage"`
}

// UserDraft is a normalized user ready to persist. Password holds the new
// plaintext password to hash; empty keeps the existing hash.
type UserDraft struct {
	User     types.User
	Password string
}

// BuildUserCreate validates a new account.
func BuildUserCreate(in UserInput, now time.Time) (UserDraft, error) {
	if in.Name.Blank() || in.Email.Blank() || in.Password.Blank() {
		return UserDraft{}, invalid("name, email and password are required")
	}
	if err := checkPasswordLength(in.Password.String()); err != nil {
		return UserDraft{}, err
	}

	age, err := NormalizeAge(in.Age, in.BirthYear, nil, now)
	if err != nil {
		return UserDraft{}, err
	}

	user := types.User{
		Name:         in.Name.Trimmed(),
		Email:        NormalizeEmail(in.Email.String()),
		Role:         NormalizeRole(in.Role.String()),
		Status:       NormalizeStatus(in.Status.String()),
		ProfileImage: NormalizeProfileImage(in.ProfileImage.String()),
	}
	applyAge(&user, age)

	return UserDraft{User: user, Password: in.Password.String()}, nil
}

// BuildUserUpdate validates a full update of existing. Role and status are
// always rewritten, so an omitted role demotes an admin to user.
func BuildUserUpdate(in UserInput, existing types.User, now time.Time) (UserDraft, error) {
	if in.Name.Blank() || in.Email.Blank() {
		return UserDraft{}, invalid("name and email are required")
	}

	age, err := NormalizeAge(in.Age, in.BirthYear, &existing, now)
	if err != nil {
		return UserDraft{}, err
	}

	user := existing
	user.Name = in.Name.Trimmed()
	user.Email = NormalizeEmail(in.Email.String())
	user.Role = NormalizeRole(in.Role.String())
	user.Status = NormalizeStatus(in.Status.String())
	if in.ProfileImage.Present() {
		user.ProfileImage = NormalizeProfileImage(in.ProfileImage.String())
	}
	applyAge(&user, age)

	draft := UserDraft{User: user}
	if !in.Password.Blank() {
		if err := checkPasswordLength(in.Password.String()); err != nil {
			return UserDraft{}, err
		}
		draft.Password = in.Password.String()
	}
	return draft, nil
}

// BuildUserProfile applies a self-service change to existing. Only name,
// email, password and profile image can change here.
func BuildUserProfile(in ProfileInput, existing types.User) (UserDraft, error) {
	if !in.Name.Present() && !in.Email.Present() && !in.Password.Present() && !in.ProfileImage.Present() {
		return UserDraft{}, invalid("no profile changes provided")
	}

	draft := UserDraft{User: existing}
	if in.Name.Present() {
		name := in.Name.Trimmed()
		if name == "" {
			return UserDraft{}, invalid("name is required")
		}
		draft.User.Name = name
	}
	if in.Email.Present() {
		email := NormalizeEmail(in.Email.String())
		if email == "" {
			return UserDraft{}, invalid("email is required")
		}
		draft.User.Email = email
	}
	if in.Password.Present() {
		password := in.Password.Trimmed()
		if len(password) < MinPasswordLength {
			return UserDraft{}, invalid("password must be at least 6 characters")
		}
		if err := checkPasswordLength(password); err != nil {
			return UserDraft{}, err
		}
		draft.Password = password
	}
	if in.ProfileImage.Present() {
		draft.User.ProfileImage = NormalizeProfileImage(in.ProfileImage.String())
	}
	return draft, nil
}

// CheckAdminRetained rejects a change that would remove the last admin.
// nextRole is the role after the change; pass "" when current is being deleted.
func CheckAdminRetained(current types.User, nextRole types.Role, adminCount int) error {
	if !current.IsAdmin() || nextRole == types.RoleAdmin {
		return nil
	}
	if adminCount <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizeRole maps raw to a role; anything but admin is user.
func NormalizeRole(raw string) types.Role {
	if types.Role(strings.ToLower(strings.TrimSpace(raw))) == types.RoleAdmin {
		return types.RoleAdmin
	}
	return types.RoleUser
}

// NormalizeStatus maps raw to a status; anything but blocked is active.
func NormalizeStatus(raw string) types.Status {
	if types.Status(strings.ToLower(strings.TrimSpace(raw))) == types.StatusBlocked {
		return types.StatusBlocked
	}
	return types.StatusActive
}

// NormalizeProfileImage trims raw and truncates it to at most
// MaxProfileImageLength bytes without splitting a character.
func NormalizeProfileImage(raw string) string {
	image := strings.TrimSpace(raw)
	if len(image) <= MaxProfileImageLength {
		return image
	}
	cut := MaxProfileImageLength
	for cut > 0 && !utf8.RuneStart(image[cut]) {
		cut--
	}
	return image[:cut]
}

func checkPasswordLength(password string) error {
	if len(password) > MaxPasswordBytes {
		return invalid("password must be at most 72 bytes")
	}
	return nil
}

func applyAge(user *types.User, age AgeFields) {
	user.Age = age.Age
	user.BirthYear = age.BirthYear
	user.AgeGroup = age.AgeGroup
	user.DailySugarLimitG = age.DailySugarLimitG
}
