package keys

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/catalyst/userkey/internal/core"
	"github.com/catalyst/userkey/internal/identity"
	"github.com/catalyst/userkey/internal/store"
)

func newSubject(t *testing.T, ids *identity.MemoryStore) *core.Subject {
	t.Helper()
	subj, err := ids.Create(context.Background(), core.Subject{
		Username:   "john",
		Email:      "john@example.com",
		FirstName:  "John",
		LastName:   "Doe",
		AuthMethod: core.AuthMethod,
		Confirmed:  true,
	})
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	return subj
}

func TestManager_Issue_SingleKeyPerSubject(t *testing.T) {
	ctx := context.Background()
	ks := store.NewMemoryKeyStore()
	ids := identity.NewMemoryStore()
	subj := newSubject(t, ids)

	m := NewManager(ks, ids, Options{})

	first, err := m.Issue(ctx, subj.ID, "10.0.0.1", "")
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("Issue() value length = %d, want 64", len(first))
	}

	second, err := m.Issue(ctx, subj.ID, "10.0.0.1", "")
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}
	if first == second {
		t.Error("Issue() returned the same value twice")
	}

	// the first key must be gone
	if _, err := ks.FindByValue(ctx, core.KeyScope, first); !errors.Is(err, core.ErrInvalidKey) {
		t.Errorf("FindByValue(first) error = %v, want ErrInvalidKey", err)
	}
	active, err := ks.ListActive(ctx, core.KeyScope)
	if err != nil {
		t.Fatalf("ListActive() unexpected error: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("ListActive() returned %d records, want 1", len(active))
	}
}

func TestManager_Issue_UnknownSubject(t *testing.T) {
	m := NewManager(store.NewMemoryKeyStore(), identity.NewMemoryStore(), Options{})

	if _, err := m.Issue(context.Background(), "42", "10.0.0.1", ""); !errors.Is(err, core.ErrSubjectNotFound) {
		t.Errorf("Issue() error = %v, want ErrSubjectNotFound", err)
	}
}

func TestManager_Redeem_Expiry(t *testing.T) {
	ctx := context.Background()
	ks := store.NewMemoryKeyStore()
	ids := identity.NewMemoryStore()
	subj := newSubject(t, ids)

	m := NewManager(ks, ids, Options{Lifetime: 30 * time.Second})

	issued := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	value, err := m.Issue(ctx, subj.ID, "", "")
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	// just inside the window
	m.now = func() time.Time { return issued.Add(29 * time.Second) }
	if _, err := m.Redeem(ctx, value, "10.0.0.1"); err != nil {
		t.Fatalf("Redeem() inside window unexpected error: %v", err)
	}

	// just past the window
	m.now = func() time.Time { return issued.Add(31 * time.Second) }
	if _, err := m.Redeem(ctx, value, "10.0.0.1"); !errors.Is(err, core.ErrExpiredKey) {
		t.Errorf("Redeem() past window error = %v, want ErrExpiredKey", err)
	}
}

func TestManager_Redeem_UnknownValue(t *testing.T) {
	m := NewManager(store.NewMemoryKeyStore(), identity.NewMemoryStore(), Options{})

	if _, err := m.Redeem(context.Background(), "no-such-key", "10.0.0.1"); !errors.Is(err, core.ErrInvalidKey) {
		t.Errorf("Redeem() error = %v, want ErrInvalidKey", err)
	}
}

func TestManager_Redeem_DeletedSubject(t *testing.T) {
	ctx := context.Background()
	ks := store.NewMemoryKeyStore()
	ids := identity.NewMemoryStore()
	subj := newSubject(t, ids)

	m := NewManager(ks, ids, Options{})
	value, err := m.Issue(ctx, subj.ID, "", "")
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	ids.Delete(subj.ID)

	if _, err := m.Redeem(ctx, value, "10.0.0.1"); !errors.Is(err, core.ErrInvalidSubject) {
		t.Errorf("Redeem() error = %v, want ErrInvalidSubject", err)
	}
}

func TestManager_Redeem_IPRestriction(t *testing.T) {
	tests := []struct {
		name         string
		allowedIPs   string
		remoteAddr   string
		redeemAddr   string
		whitelist    []string
		wantErr      error
		wantMismatch bool
	}{
		{
			name:       "Same Address",
			remoteAddr: "10.0.0.1",
			redeemAddr: "10.0.0.1",
		},
		{
			name:       "Different Address",
			remoteAddr: "10.0.0.1",
			redeemAddr:   "10.0.0.2",
			wantMismatch: true,
		},
		{
			name:       "Allowed Range",
			allowedIPs: "192.168.1.0/24",
			remoteAddr: "10.0.0.1",
			redeemAddr: "192.168.1.77",
		},
		{
			name:       "Outside Allowed Range",
			allowedIPs: "192.168.1.0/24",
			remoteAddr: "10.0.0.1",
			redeemAddr:   "192.168.2.1",
			wantMismatch: true,
		},
		{
			name:       "Whitelist Override",
			remoteAddr: "10.0.0.1",
			redeemAddr: "172.16.0.9",
			whitelist:  []string{"172.16.0.0/12"},
		},
		{
			name:       "Missing Client Address",
			remoteAddr: "10.0.0.1",
			redeemAddr: "",
			wantErr:    core.ErrNoClientIP,
		},
		{
			name:       "Unparseable Client Address",
			remoteAddr: "10.0.0.1",
			redeemAddr: "not-an-ip",
			wantErr:    core.ErrNoClientIP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ids := identity.NewMemoryStore()
			subj := newSubject(t, ids)

			var whitelist []netip.Prefix
			for _, raw := range tt.whitelist {
				whitelist = append(whitelist, netip.MustParsePrefix(raw))
			}

			m := NewManager(store.NewMemoryKeyStore(), ids, Options{
				IPRestriction: true,
				Whitelist:     whitelist,
			})

			value, err := m.Issue(ctx, subj.ID, tt.remoteAddr, tt.allowedIPs)
			if err != nil {
				t.Fatalf("Issue() unexpected error: %v", err)
			}

			_, err = m.Redeem(ctx, value, tt.redeemAddr)
			if tt.wantMismatch {
				var mismatch *core.IPMismatchError
				if !errors.As(err, &mismatch) {
					t.Fatalf("Redeem() error = %v, want IPMismatchError", err)
				}
				if mismatch.Observed != tt.redeemAddr {
					t.Errorf("IPMismatchError.Observed = %q, want %q", mismatch.Observed, tt.redeemAddr)
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Redeem() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Redeem() unexpected error: %v", err)
			}
		})
	}
}

func TestManager_Redeem_NoRestrictionIgnoresAddress(t *testing.T) {
	ctx := context.Background()
	ids := identity.NewMemoryStore()
	subj := newSubject(t, ids)

	m := NewManager(store.NewMemoryKeyStore(), ids, Options{})

	value, err := m.Issue(ctx, subj.ID, "10.0.0.1", "")
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}
	if _, err := m.Redeem(ctx, value, "203.0.113.5"); err != nil {
		t.Errorf("Redeem() unexpected error: %v", err)
	}
}

func TestManager_RevokeAll(t *testing.T) {
	ctx := context.Background()
	ks := store.NewMemoryKeyStore()
	ids := identity.NewMemoryStore()
	subj := newSubject(t, ids)

	m := NewManager(ks, ids, Options{})
	value, err := m.Issue(ctx, subj.ID, "", "")
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	if err := m.RevokeAll(ctx, subj.ID); err != nil {
		t.Fatalf("RevokeAll() unexpected error: %v", err)
	}
	if _, err := m.Redeem(ctx, value, "10.0.0.1"); !errors.Is(err, core.ErrInvalidKey) {
		t.Errorf("Redeem() after revoke error = %v, want ErrInvalidKey", err)
	}

	// revoking again is a no-op
	if err := m.RevokeAll(ctx, subj.ID); err != nil {
		t.Errorf("RevokeAll() second call unexpected error: %v", err)
	}
}

func TestManager_Consume(t *testing.T) {
	ctx := context.Background()
	ks := store.NewMemoryKeyStore()
	ids := identity.NewMemoryStore()
	subj := newSubject(t, ids)

	m := NewManager(ks, ids, Options{})
	if _, err := m.Issue(ctx, subj.ID, "", ""); err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	// the first consumer deletes the key
	if err := m.Consume(ctx, subj.ID); err != nil {
		t.Fatalf("Consume() unexpected error: %v", err)
	}

	// the second consumer finds nothing to delete and loses
	if err := m.Consume(ctx, subj.ID); !errors.Is(err, core.ErrInvalidKey) {
		t.Errorf("Consume() second call error = %v, want ErrInvalidKey", err)
	}
}
