package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shoppulse/dashsvc/internal/domain"
	"github.com/shoppulse/dashsvc/internal/messaging"
	"github.com/shoppulse/dashsvc/internal/router"
	"github.com/shoppulse/dashsvc/internal/storage"
)

// NewUser creates a user unless one with the same identity key exists.
// Producer-supplied userId is the preferred key; name is the weak fallback.
func (s *Set) NewUser(ctx context.Context, env *messaging.Envelope) (router.Outcome, error) {
	p, err := env.NewUser()
	if err != nil {
		return router.Skipped, err
	}

	if p.UserID == "" && p.Name != "" {
		_, err := s.store.FindUserByName(ctx, p.Name)
		if err == nil {
			s.log.Info("user already exists", "name", p.Name)
			return router.Skipped, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return router.Skipped, fmt.Errorf("find user %q: %w", p.Name, err)
		}
	}

	u := &domain.User{
		ID:        p.UserID,
		Name:      p.Name,
		Email:     p.Email,
		Phone:     p.Phone,
		Address:   p.Address,
		Avatar:    p.Avatar,
		CreatedAt: p.Timestamp,
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Name == "" {
		u.Name = guestName(u.ID)
	}

	created, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return router.Skipped, fmt.Errorf("create user: %w", err)
	}
	if !created {
		// Redelivery of an already-applied new_user.
		return router.Skipped, nil
	}
	s.log.Info("user created", "user_id", u.ID, "name", u.Name)
	return router.Applied, nil
}

// DeleteUser removes a user by id. Deleting an absent user is a no-op.
func (s *Set) DeleteUser(ctx context.Context, env *messaging.Envelope) (router.Outcome, error) {
	p, err := env.DeleteUser()
	if err != nil {
		return router.Skipped, err
	}
	deleted, err := s.store.DeleteUser(ctx, p.UserID)
	if err != nil {
		return router.Skipped, fmt.Errorf("delete user %s: %w", p.UserID, err)
	}
	if !deleted {
		return router.Skipped, nil
	}
	return router.Applied, nil
}

// guestName derives a stable placeholder name from a user id.
func guestName(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return "guest-" + short
}
