package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"recipeassistant"
)

// Memory is a process-local Store for tests and the chat CLI.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string][]recipeassistant.Message
	profile  recipeassistant.Profile
}

func NewMemory() *Memory {
	return &Memory{sessions: map[string][]recipeassistant.Message{}}
}

func (m *Memory) CreateSession(context.Context) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = nil
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) SessionExists(_ context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok, nil
}

func (m *Memory) LoadHistory(_ context.Context, sessionID string) ([]recipeassistant.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := slices.Clone(msgs)
	if out == nil {
		out = []recipeassistant.Message{}
	}
	return out, nil
}

func (m *Memory) AppendMessage(_ context.Context, sessionID, role, content string) error {
	if !validRole(role) {
		return fmt.Errorf("invalid role %q", role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	m.sessions[sessionID] = append(msgs, recipeassistant.Message{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *Memory) AppendExchange(_ context.Context, sessionID, userMessage, reply string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	now := time.Now().UTC()
	m.sessions[sessionID] = append(msgs,
		recipeassistant.Message{Role: recipeassistant.RoleUser, Content: userMessage, CreatedAt: now},
		recipeassistant.Message{Role: recipeassistant.RoleAssistant, Content: reply, CreatedAt: now},
	)
	return nil
}

func (m *Memory) GetProfile(context.Context) (recipeassistant.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile, nil
}

func (m *Memory) SaveProfile(_ context.Context, p recipeassistant.Profile) error {
	m.mu.Lock()
	m.profile = p
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
