package sqlite

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// UserStore implements domain.UserStore using SQLite.
type UserStore struct {
	q querier
}

var _ domain.UserStore = (*UserStore)(nil)

// GetByID retrieves a user by primary key.
func (s *UserStore) GetByID(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := s.q.QueryRowContext(ctx,
		`SELECT id, email, accountnumber FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.AccountNumber)
	if err != nil {
		return domain.User{}, fmt.Errorf("sqlite: get user: %w", notFound(err, "User", id))
	}
	return u, nil
}

// Insert adds a user and returns it with its assigned ID.
func (s *UserStore) Insert(ctx context.Context, u domain.User) (domain.User, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO users (email, accountnumber) VALUES (?, ?)`, u.Email, u.AccountNumber,
	)
	if err != nil {
		return domain.User{}, fmt.Errorf("sqlite: insert user %s: %w", u.Email, err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return domain.User{}, fmt.Errorf("sqlite: insert user %s: %w", u.Email, err)
	}
	return u, nil
}
