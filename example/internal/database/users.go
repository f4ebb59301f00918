package database

import (
	"context"
	"fmt"
	"time"

	"github.com/kroma-labs/sentinel-orm/orm"
)

// User is a stored user.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewUser is the input of CreateUser.
type NewUser struct {
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

const (
	selectUsers = `SELECT id, name, email, created_at FROM users ORDER BY id LIMIT ?`
	selectUser  = `SELECT id, name, email, created_at FROM users WHERE id = ?`
	insertUser  = `INSERT INTO users (name, email) VALUES (:name, :email)`
)

// ListUsers returns up to limit users ordered by id.
func (s *Store) ListUsers(ctx context.Context, limit int) ([]User, error) {
	users := []User{}
	if err := s.pool.SelectContext(ctx, &users, selectUsers, limit); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUser returns the user with the given id, or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	var user User
	if err := s.pool.GetContext(ctx, &user, selectUser, id); err != nil {
		return User{}, fmt.Errorf("get user %d: %w", id, classify(err))
	}
	return user, nil
}

// CreateUser inserts a user and returns it as stored. It returns
// ErrConflict when the email is taken.
func (s *Store) CreateUser(ctx context.Context, in NewUser) (User, error) {
	var created User
	err := s.pool.Transaction(ctx, nil, func(tx *orm.Tx) error {
		result, err := tx.NamedExecContext(ctx, insertUser, in)
		if err != nil {
			return err
		}

		id, err := result.LastInsertId()
		if err != nil {
			return err
		}

		return tx.GetContext(ctx, &created, selectUser, id)
	})
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", classify(err))
	}

	s.logger.Info().Int64("user_id", created.ID).Msg("user created")
	return created, nil
}
