package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ticketing/entity"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) UserRepo {
	return UserRepo{
		db: db,
	}
}

func (r UserRepo) Add(ctx context.Context, user entity.User) (entity.User, error) {
	var added entity.User
	err := r.db.GetContext(ctx, &added, `INSERT INTO users
		(id, email, password_hash, role, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *;`,
		user.ID, user.Email, user.PasswordHash, user.Role, user.FirstName, user.LastName)
	if isUniqueViolation(err) {
		return entity.User{}, entity.Conflict("email_taken", "an account with this email already exists")
	}
	if err != nil {
		return entity.User{}, fmt.Errorf("inserting user: %w", err)
	}

	return added, nil
}

func (r UserRepo) Get(ctx context.Context, id string) (entity.User, error) {
	var user entity.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.User{}, entity.NotFound("user")
	}
	if err != nil {
		return entity.User{}, fmt.Errorf("selecting user: %w", err)
	}

	return user, nil
}

func (r UserRepo) GetByEmail(ctx context.Context, email string) (entity.User, error) {
	var user entity.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.User{}, entity.NotFound("user")
	}
	if err != nil {
		return entity.User{}, fmt.Errorf("selecting user by email: %w", err)
	}

	return user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
