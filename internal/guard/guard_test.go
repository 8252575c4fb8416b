package guard

import (
	"errors"
	"testing"

	"github.com/catalyst/userkey/internal/core"
)

func TestCompileRejectsNonBoolExpression(t *testing.T) {
	if _, err := Compile(`"not a bool"`); err == nil {
		t.Fatal("expected compile error for non-boolean expression")
	}
}

func TestCompileRejectsSyntaxError(t *testing.T) {
	if _, err := Compile(`email endsWith`); err == nil {
		t.Fatal("expected compile error for invalid syntax")
	}
}

func TestAllow(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		payload core.UserPayload
		wantErr bool
	}{
		{
			name:    "empty guard allows everything",
			source:  "",
			payload: core.UserPayload{Email: "a@b.com"},
		},
		{
			name:    "domain restriction - pass",
			source:  `email endsWith "@example.com"`,
			payload: core.UserPayload{Email: "user@example.com"},
		},
		{
			name:    "domain restriction - deny",
			source:  `email endsWith "@example.com"`,
			payload: core.UserPayload{Email: "user@evil.com"},
			wantErr: true,
		},
		{
			name:    "combined condition",
			source:  `username != "" && ip startsWith "10."`,
			payload: core.UserPayload{Username: "alice", IP: "10.0.0.5"},
		},
		{
			name:    "combined condition - deny",
			source:  `username != "" && ip startsWith "10."`,
			payload: core.UserPayload{Username: "alice", IP: "192.168.1.1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Compile(tt.source)
			if err != nil {
				t.Fatalf("Compile(%q): %v", tt.source, err)
			}

			err = g.Allow(tt.payload)
			if tt.wantErr {
				if !errors.Is(err, core.ErrGuardDenied) {
					t.Fatalf("expected ErrGuardDenied, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
		})
	}
}

func TestNilGuardAllows(t *testing.T) {
	var g *Guard
	if err := g.Allow(core.UserPayload{}); err != nil {
		t.Fatalf("nil guard should allow, got %v", err)
	}
}
