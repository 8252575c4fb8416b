package core

import (
	"context"
	"time"
)

// KeyScope is the namespace tag under which this service writes key records.
// It isolates login keys from any other key consumer sharing the same store.
const KeyScope = "auth/userkey"

// DefaultKeyLifetime is used when no key lifetime is configured.
const DefaultKeyLifetime = 60 * time.Second

// KeyRecord is a single-use login key bound to a subject.
// Records are immutable once written; there is no update operation.
type KeyRecord struct {
	// Scope identifies the issuing subsystem (always KeyScope here).
	Scope string `json:"scope"`

	// Value is the bearer credential itself. Unique within Scope.
	Value string `json:"value"`

	// SubjectID is the user this key logs in.
	SubjectID string `json:"subject_id"`

	// IPRestriction, when non-empty, is the address or CIDR range the
	// redeeming request must originate from (whitelist override aside).
	IPRestriction string `json:"ip_restriction,omitempty"`

	// ValidUntil is the absolute expiry instant.
	ValidUntil time.Time `json:"valid_until"`

	// IssuedAt is the issuance instant. Diagnostic only.
	IssuedAt time.Time `json:"issued_at"`
}

// KeyManager issues, validates and revokes login keys.
// The login orchestrator depends on this interface only, never on a
// concrete implementation, so alternate backends can be substituted.
type KeyManager interface {
	// Issue deletes any live keys for the subject, then persists and
	// returns a fresh single-use key value. allowedIPs, if non-empty,
	// overrides the observed remote address as the key's IP restriction.
	Issue(ctx context.Context, subjectID, remoteAddr, allowedIPs string) (string, error)

	// RevokeAll deletes every key for the subject. Idempotent.
	RevokeAll(ctx context.Context, subjectID string) error

	// Consume deletes every key for the subject as the final step of a
	// redemption. Unlike RevokeAll it returns ErrInvalidKey when nothing
	// was deleted: a concurrent redemption won the race, and exactly one
	// of the two requests may proceed.
	Consume(ctx context.Context, subjectID string) error

	// Redeem validates a key value (existence, expiry, IP scope, bound
	// subject) and returns the record WITHOUT deleting it. Callers must
	// Consume the subject's keys right after a successful Redeem and
	// abandon the login if Consume fails.
	Redeem(ctx context.Context, value, remoteAddr string) (*KeyRecord, error)
}

// KeyStore persists key records. Implementations must guarantee that
// Value is unique within Scope and that DeleteForSubject reports how many
// rows it removed; the redemption path relies on both for single use.
type KeyStore interface {
	Insert(ctx context.Context, rec KeyRecord) error

	// FindByValue returns ErrInvalidKey when no record matches.
	FindByValue(ctx context.Context, scope, value string) (*KeyRecord, error)

	DeleteForSubject(ctx context.Context, scope, subjectID string) (int64, error)

	// DeleteExpired removes records whose ValidUntil has passed.
	// Housekeeping only; expired keys are otherwise discarded lazily.
	DeleteExpired(ctx context.Context, scope string) (int64, error)

	ListActive(ctx context.Context, scope string) ([]KeyRecord, error)
}
