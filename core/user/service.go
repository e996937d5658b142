package user

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		CreateUser(user User) (User, error)
		GetUserByID(id int) (User, error)
		GetUserByEmail(email string) (User, error)
		GetUserByUsername(username string) (User, error)
		UsernameExists(username string) (bool, error)
		UpdateUser(user User) (User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create provisions a new account with a generated unique username and a
// random unusable password.
func (svc *Service) Create(nu NewUser) (User, error) {
	if err := core.Validate.Struct(nu); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Username:    core.CleanString(nu.Username, true /* lower */),
		Email:       core.CleanString(nu.Email, true /* lower */),
		Name:        core.CleanString(nu.Name),
		Country:     nu.Country,
		YearOfBirth: nu.YearOfBirth,
		ReturnURL:   nu.ReturnURL,
		StudentKey:  nu.StudentKey,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := usr.SetRandomPassword(); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(usr)
}

func (svc *Service) GetByID(id int) (User, error) {
	return svc.repo.GetUserByID(id)
}

func (svc *Service) GetByEmail(email string) (User, error) {
	return svc.repo.GetUserByEmail(core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsername(uname string) (User, error) {
	return svc.repo.GetUserByUsername(core.CleanString(uname, true /* lower */))
}

// UpdateProfile applies the partner-updatable profile fields.
func (svc *Service) UpdateProfile(id int, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(id)
	if err != nil {
		return User{}, err
	}
	if name := core.CleanString(uu.Name); name != "" {
		usr.Name = name
	}
	if uu.Country != "" {
		usr.Country = uu.Country
	}
	if uu.YearOfBirth != 0 {
		usr.YearOfBirth = uu.YearOfBirth
	}
	if uu.ReturnURL != "" {
		usr.ReturnURL = uu.ReturnURL
	}
	if uu.StudentKey != "" {
		usr.StudentKey = uu.StudentKey
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(usr)
}

// RecordLogin bumps the user's last login timestamp.
func (svc *Service) RecordLogin(id int) (User, error) {
	usr, err := svc.repo.GetUserByID(id)
	if err != nil {
		return User{}, err
	}
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(usr)
}

// GenerateUsername returns a unique username derived from the given base;
// a random 4-digit suffix is appended until an unused name is found.
func (svc *Service) GenerateUsername(base string) (string, error) {
	base = core.CleanString(base, true /* lower */)
	exists, err := svc.repo.UsernameExists(base)
	if err != nil {
		return "", err
	}
	if !exists {
		return base, nil
	}
	for {
		candidate := fmt.Sprintf("%s%d", base, 1000+rand.Intn(9000))
		exists, err = svc.repo.UsernameExists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}
