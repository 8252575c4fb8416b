// Package keys implements the login key lifecycle: issuance with
// single-active-key semantics, validation with expiry and IP scoping,
// and revocation.
package keys

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/netip"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/catalyst/userkey/internal/core"
)

var _ core.KeyManager = (*Manager)(nil)

// Options carries the slice of service configuration the manager needs.
type Options struct {
	// Lifetime of issued keys. Zero means core.DefaultKeyLifetime.
	Lifetime time.Duration

	// IPRestriction pins issued keys to an address.
	IPRestriction bool

	// Whitelist lists CIDR ranges that may redeem any key regardless
	// of its IP restriction.
	Whitelist []netip.Prefix
}

type Manager struct {
	store core.KeyStore
	ids   core.IdentityStore
	opts  Options

	// overridable in tests
	now func() time.Time
}

func NewManager(store core.KeyStore, ids core.IdentityStore, opts Options) *Manager {
	if opts.Lifetime <= 0 {
		opts.Lifetime = core.DefaultKeyLifetime
	}
	return &Manager{
		store: store,
		ids:   ids,
		opts:  opts,
		now:   time.Now,
	}
}

// Issue creates a fresh single-use key for the subject, replacing any
// live keys first so at most one key exists per subject.
func (m *Manager) Issue(ctx context.Context, subjectID, remoteAddr, allowedIPs string) (string, error) {
	if _, err := m.ids.Get(ctx, subjectID); err != nil {
		return "", err
	}

	// only this subject's own keys are affected, so the lack of a
	// surrounding transaction is harmless
	if _, err := m.store.DeleteForSubject(ctx, core.KeyScope, subjectID); err != nil {
		return "", fmt.Errorf("deleting prior keys: %w", err)
	}

	var restriction string
	if m.opts.IPRestriction {
		restriction = allowedIPs
		if restriction == "" {
			restriction = remoteAddr
		}
	}

	value, err := generateKeyValue()
	if err != nil {
		return "", fmt.Errorf("generating key value: %w", err)
	}

	issuedAt := m.now()
	rec := core.KeyRecord{
		Scope:         core.KeyScope,
		Value:         value,
		SubjectID:     subjectID,
		IPRestriction: restriction,
		ValidUntil:    issuedAt.Add(m.opts.Lifetime),
		IssuedAt:      issuedAt,
	}
	if err := m.store.Insert(ctx, rec); err != nil {
		return "", fmt.Errorf("persisting key: %w", err)
	}

	log.Ctx(ctx).Debug().
		Str("subject", subjectID).
		Time("valid_until", rec.ValidUntil).
		Bool("ip_restricted", restriction != "").
		Msg("key issued")

	return value, nil
}

// RevokeAll deletes every key for the subject. Idempotent.
func (m *Manager) RevokeAll(ctx context.Context, subjectID string) error {
	if _, err := m.store.DeleteForSubject(ctx, core.KeyScope, subjectID); err != nil {
		return fmt.Errorf("revoking keys: %w", err)
	}
	return nil
}

// Consume deletes the subject's keys to finish a redemption. The
// store's rows-affected count is the serialization point: of two
// requests racing over the same key value, only the one whose delete
// removed a row may activate a session, the other gets ErrInvalidKey.
func (m *Manager) Consume(ctx context.Context, subjectID string) error {
	deleted, err := m.store.DeleteForSubject(ctx, core.KeyScope, subjectID)
	if err != nil {
		return fmt.Errorf("consuming key: %w", err)
	}
	if deleted == 0 {
		return core.ErrInvalidKey
	}
	return nil
}

// Redeem validates a key value and returns its record without deleting
// it. Callers must Consume the subject's keys immediately after a
// successful redemption.
func (m *Manager) Redeem(ctx context.Context, value, remoteAddr string) (*core.KeyRecord, error) {
	rec, err := m.store.FindByValue(ctx, core.KeyScope, value)
	if err != nil {
		return nil, err
	}

	if rec.ValidUntil.Before(m.now()) {
		return nil, core.ErrExpiredKey
	}

	if rec.IPRestriction != "" {
		if err := m.checkIP(rec.IPRestriction, remoteAddr); err != nil {
			return nil, err
		}
	}

	if _, err := m.ids.Get(ctx, rec.SubjectID); err != nil {
		return nil, core.ErrInvalidSubject
	}

	return rec, nil
}

// checkIP accepts the observed address if it lies within the key's
// restriction, or failing that, within any whitelisted range.
func (m *Manager) checkIP(restriction, remoteAddr string) error {
	if remoteAddr == "" {
		return core.ErrNoClientIP
	}
	observed, err := netip.ParseAddr(remoteAddr)
	if err != nil {
		return core.ErrNoClientIP
	}

	scope, err := parseRestriction(restriction)
	if err != nil {
		// an unparseable restriction can never match; fall through to
		// the whitelist
		log.Warn().Str("restriction", restriction).Msg("unparseable key ip restriction")
	} else if scope.Contains(observed) {
		return nil
	}

	for _, prefix := range m.opts.Whitelist {
		if prefix.Contains(observed) {
			return nil
		}
	}

	return &core.IPMismatchError{Observed: remoteAddr, Expected: restriction}
}

// parseRestriction interprets a bare address as a single-host prefix.
func parseRestriction(restriction string) (netip.Prefix, error) {
	if prefix, err := netip.ParsePrefix(restriction); err == nil {
		return prefix, nil
	}
	addr, err := netip.ParseAddr(restriction)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// generateKeyValue returns 32 bytes of cryptographic randomness as a
// 64 character hex string.
func generateKeyValue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
