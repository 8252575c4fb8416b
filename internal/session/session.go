// Package session models the request-scoped authentication state the
// login orchestrator operates on, plus an in-memory registry mapping
// browser session cookies to that state.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// State is the explicit session context passed into and out of each
// orchestrator operation. No ambient globals.
type State struct {
	// SubjectID of the currently authenticated subject, or "".
	SubjectID string

	// AuthenticatedViaKey marks sessions established by key redemption
	// as opposed to other auth methods.
	AuthenticatedViaKey bool

	// SSOBypass records a one-shot "skip SSO" request for the duration
	// of the browser session. SSOBypassSet distinguishes "no decision
	// recorded yet" from a recorded zero-value decision.
	SSOBypass    bool
	SSOBypassSet bool
}

func (s *State) Authenticated() bool {
	return s.SubjectID != ""
}

// Reset terminates the authentication state while keeping the browser
// session itself alive.
func (s *State) Reset() {
	s.SubjectID = ""
	s.AuthenticatedViaKey = false
}

// Registry tracks live browser sessions by opaque cookie value.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*State
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*State),
	}
}

// Start creates a new session and returns its ID and state.
func (r *Registry) Start() (string, *State) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("session id generation failed: " + err.Error())
	}
	id := hex.EncodeToString(b)

	st := &State{}
	r.mu.Lock()
	r.sessions[id] = st
	r.mu.Unlock()
	return id, st
}

func (r *Registry) Get(id string) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.sessions[id]
	return st, ok
}

// Terminate drops the session entirely.
func (r *Registry) Terminate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
}
