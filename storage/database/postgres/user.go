// Package pgrepos implements the domain repositories on PostgreSQL via sqlx.
package pgrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	query := `
		INSERT INTO "user" (username, email, name, country, year_of_birth, return_url,
		                    student_key, is_active, password_hash, created_at, updated_at, last_login)
		VALUES (:username, :email, :name, :country, :year_of_birth, :return_url,
		        :student_key, :is_active, :password_hash, :created_at, :updated_at, :last_login)
		RETURNING id`
	rows, err := repo.db.NamedQuery(query, usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		if err = rows.Scan(&usr.ID); err != nil {
			return user.User{}, errors.Wrap(err, "creating user")
		}
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(id int) (user.User, error) {
	var usr user.User
	err := repo.db.Get(&usr, `SELECT * FROM "user" WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	return usr, errors.Wrap(err, "getting user by id")
}

func (repo *userRepository) GetUserByEmail(email string) (user.User, error) {
	var usr user.User
	err := repo.db.Get(&usr, `SELECT * FROM "user" WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	return usr, errors.Wrap(err, "getting user by email")
}

func (repo *userRepository) GetUserByUsername(username string) (user.User, error) {
	var usr user.User
	err := repo.db.Get(&usr, `SELECT * FROM "user" WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	return usr, errors.Wrap(err, "getting user by username")
}

func (repo *userRepository) UsernameExists(username string) (bool, error) {
	var exists bool
	err := repo.db.Get(&exists, `SELECT EXISTS (SELECT 1 FROM "user" WHERE username = $1)`, username)
	return exists, errors.Wrap(err, "checking username")
}

func (repo *userRepository) UpdateUser(usr user.User) (user.User, error) {
	query := `
		UPDATE "user"
		SET name = :name, country = :country, year_of_birth = :year_of_birth,
		    return_url = :return_url, student_key = :student_key, is_active = :is_active,
		    updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	if _, err := repo.db.NamedExec(query, usr); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}
