package user

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is a learner account on the platform. Accounts are provisioned from
// partner registration data, never self-registered, so the password is
// always a random unusable one; login happens through SSO only.
type User struct {
	ID           int       `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	Country      string    `json:"country" db:"country"`
	YearOfBirth  int       `json:"year_of_birth" db:"year_of_birth"`
	ReturnURL    string    `json:"return_url" db:"return_url"`   // partner classroom return URL
	StudentKey   string    `json:"student_key" db:"student_key"` // partner student correlation key
	IsActive     bool      `json:"is_active" db:"is_active"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login" db:"last_login"` // UTC
}

// SetRandomPassword assigns an unusable random password to the account.
func (u *User) SetRandomPassword() error {
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Username    string `json:"username" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Name        string `json:"name" validate:"required"`
	Country     string `json:"country"`
	YearOfBirth int    `json:"year_of_birth"`
	ReturnURL   string `json:"return_url"`
	StudentKey  string `json:"student_key"`
}

// UpdateUser defines the profile fields a registration update may modify.
type UpdateUser struct {
	Name        string `json:"name"`
	Country     string `json:"country"`
	YearOfBirth int    `json:"year_of_birth"`
	ReturnURL   string `json:"return_url"`
	StudentKey  string `json:"student_key"`
}
