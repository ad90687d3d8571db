// Package session tracks the sessions hosted by this process and the
// presences inside them, and notifies listeners when a client closes.
package session

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/gridfed/hginventory/internal/logging"
	"github.com/gridfed/hginventory/pkg/types"
)

// CloseListener is invoked after a user's client closes in some session
type CloseListener func(ctx context.Context, user types.UserID)

// Host is an in-memory types.SessionHost
type Host struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	listeners []CloseListener
	logger    *zap.Logger
}

// Session is one hosted session and its presences
type Session struct {
	name string

	mu        sync.RWMutex
	presences map[types.UserID]types.Presence
}

// NewHost creates a host with no sessions
func NewHost(logger *zap.Logger) *Host {
	return &Host{
		sessions: make(map[string]*Session),
		logger:   logging.OrNop(logger),
	}
}

// Open returns the named session, creating it if needed
func (h *Host) Open(name string) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[name]; ok {
		return s
	}
	s := &Session{name: name, presences: make(map[types.UserID]types.Presence)}
	h.sessions[name] = s
	return s
}

// CloseSession removes a session without notifying listeners
func (h *Host) CloseSession(name string) {
	h.mu.Lock()
	delete(h.sessions, name)
	h.mu.Unlock()
}

// Sessions returns the hosted sessions ordered by name
func (h *Host) Sessions() []types.Session {
	h.mu.RLock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	sessions := make([]types.Session, len(out))
	for i, s := range out {
		sessions[i] = s
	}
	return sessions
}

// OnClientClosed registers a listener for client-close events
func (h *Host) OnClientClosed(l CloseListener) {
	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
}

// ClientClosed removes user's presence from the named session and then
// notifies listeners synchronously
func (h *Host) ClientClosed(ctx context.Context, name string, user types.UserID) {
	h.mu.RLock()
	s, ok := h.sessions[name]
	listeners := append([]CloseListener(nil), h.listeners...)
	h.mu.RUnlock()

	if ok {
		s.Leave(user)
	}
	h.logger.Debug("Client closed",
		zap.String("session", name),
		zap.String("user", user.String()))

	for _, l := range listeners {
		l(ctx, user)
	}
}

// Name returns the session name
func (s *Session) Name() string {
	return s.name
}

// Enter adds or replaces a presence
func (s *Session) Enter(p types.Presence) {
	s.mu.Lock()
	s.presences[p.UserID] = p
	s.mu.Unlock()
}

// Leave removes user's presence
func (s *Session) Leave(user types.UserID) {
	s.mu.Lock()
	delete(s.presences, user)
	s.mu.Unlock()
}

// Presence returns user's presence in this session
func (s *Session) Presence(user types.UserID) (types.Presence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.presences[user]
	return p, ok
}

var _ types.SessionHost = (*Host)(nil)
