// Package store persists chat sessions, their messages and the user's health
// profile.
package store

import (
	"context"
	"errors"

	"recipeassistant"
)

var ErrSessionNotFound = errors.New("session not found")

// Store is the full storage surface used by the assistant and HTTP server.
type Store interface {
	recipeassistant.HistoryStore

	CreateSession(ctx context.Context) (string, error)
	SessionExists(ctx context.Context, sessionID string) (bool, error)
	GetProfile(ctx context.Context) (recipeassistant.Profile, error)
	SaveProfile(ctx context.Context, p recipeassistant.Profile) error
	Close() error
}

func validRole(role string) bool {
	return role == recipeassistant.RoleUser || role == recipeassistant.RoleAssistant
}
