package postgres

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	q querier
}

var _ domain.UserStore = (*UserStore)(nil)

// GetByID retrieves a user by primary key.
func (s *UserStore) GetByID(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := s.q.QueryRow(ctx,
		`SELECT id, email, accountnumber FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.AccountNumber)
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: get user: %w", notFound(err, "User", id))
	}
	return u, nil
}
