package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"moodtrack/internal/domain"
	"moodtrack/internal/repository"
)

// UserFinder loads a user by id, returning repository.ErrNotFound when absent.
type UserFinder interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Resolver maps a presented session token to the live user it was issued for.
type Resolver struct {
	codec  *TokenCodec
	users  UserFinder
	maxAge time.Duration
	log    logrus.FieldLogger
}

func NewResolver(codec *TokenCodec, users UserFinder, maxAge time.Duration, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{
		codec:  codec,
		users:  users,
		maxAge: maxAge,
		log:    log,
	}
}

// Resolve returns the user owning credential. Missing, invalid and expired
// tokens, as well as tokens of deleted users, all yield ErrUnauthenticated.
// Any other error comes from the user store and is returned wrapped.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*domain.User, error) {
	if credential == "" {
		return nil, ErrUnauthenticated
	}

	userID, err := r.codec.Verify(credential, r.maxAge)
	if err != nil {
		r.log.WithError(err).Debug("session token rejected")
		return nil, ErrUnauthenticated
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.log.WithField("user_id", userID).Debug("session token for unknown user")
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}
	return user, nil
}
