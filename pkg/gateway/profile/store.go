// Package profile reads user profile records from Postgres.
package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pathwise-app/conversation-service/pkg/gateway/apierror"
)

type Profile struct {
	UserID      string
	FirstName   string
	PrimaryGoal string
}

// Querier is the pgx surface the store needs; *pgxpool.Pool satisfies it.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db Querier
}

func NewStore(db Querier) *Store {
	return &Store{db: db}
}

// Fetch returns the profile for userID. A missing row and a row with blank
// required fields are both reported as not found: the caller-facing
// contract is deterministic even when the cause is a data inconsistency.
func (s *Store) Fetch(ctx context.Context, userID string) (Profile, error) {
	row := s.db.QueryRow(ctx,
		`SELECT first_name, primary_goal FROM user_profiles WHERE user_id = $1`,
		userID,
	)

	var firstName, primaryGoal *string
	if err := row.Scan(&firstName, &primaryGoal); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, errNotFound()
		}
		return Profile{}, err
	}
	if firstName == nil || primaryGoal == nil {
		return Profile{}, errNotFound()
	}
	if strings.TrimSpace(*firstName) == "" || strings.TrimSpace(*primaryGoal) == "" {
		return Profile{}, errNotFound()
	}

	return Profile{
		UserID:      userID,
		FirstName:   *firstName,
		PrimaryGoal: *primaryGoal,
	}, nil
}

func errNotFound() error {
	return apierror.E(apierror.KindNotFound, "user profile not found")
}
