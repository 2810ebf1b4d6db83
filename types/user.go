package types

import "time"

// Role is the authorization level of an account.
type Role string

// Supported roles.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Status tells whether an account may sign in.
type Status string

// Supported account statuses.
const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

// AgeGroup drives a person's daily sugar budget.
type AgeGroup string

// Supported age groups.
const (
	AgeGroupChildren AgeGroup = "children"
	AgeGroupAdult    AgeGroup = "adult"
	AgeGroupElderly  AgeGroup = "elderly"
)

// User represents an account in the system.
// It contains identity, role, sugar budget and audit metadata.
type User struct {
	// ID is the opaque identifier assigned by the store at creation.
	ID string `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the unique, lower-cased email address used to sign in.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the user's authorization level ("admin" or "user").
	Role Role `json:"role" db:"role"`

	// Status is "blocked" for accounts that may no longer sign in.
	Status Status `json:"status" db:"status"`

	// Age is the resolved age in years, when known.
	Age *int `json:"age" db:"age"`

	// BirthYear is the birth year the age was derived from, when supplied.
	BirthYear *int `json:"birthYear" db:"birth_year"`

	// AgeGroup is derived from Age.
	AgeGroup AgeGroup `json:"ageGroup" db:"age_group"`

	// DailySugarLimitG is the daily added-sugar budget in grams, derived from Age.
	DailySugarLimitG int `json:"dailySugarLimitG" db:"daily_sugar_limit_g"`

	// ProfileImage is an opaque data URI or URL.
	ProfileImage string `json:"profileImage" db:"profile_image"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserStats summarises accounts by role, status and age group.
type UserStats struct {
	TotalUsers    int `json:"totalUsers"`
	AdminCount    int `json:"adminCount"`
	UserCount     int `json:"userCount"`
	ActiveCount   int `json:"activeCount"`
	BlockedCount  int `json:"blockedCount"`
	ChildrenCount int `json:"childrenCount"`
	AdultCount    int `json:"adultCount"`
	ElderlyCount  int `json:"elderlyCount"`
}
