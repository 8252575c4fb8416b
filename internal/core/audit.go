package core

import "time"

// Audit actions written by this service.
const (
	AuditActionLoginURL = "loginurl.request"
	AuditActionRedeem   = "key.redeem"
	AuditActionLogout   = "session.logout"
)

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "loginurl.request")
	Action string `json:"action"`

	// SubjectID identifies the subject the request acted on, if resolved.
	SubjectID string `json:"subject_id,omitempty"`

	// MappingField and MappingValue record how the subject was looked up.
	MappingField string `json:"mapping_field,omitempty"`
	MappingValue string `json:"mapping_value,omitempty"`

	// RemoteAddr is the observed client address.
	RemoteAddr string `json:"remote_addr,omitempty"`

	// KeyFingerprint identifies the key involved without storing its value.
	KeyFingerprint string `json:"key_fingerprint,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}

// AuditSearcher is an optional interface auditors may implement to
// support querying entries back out (the file auditor does not).
type AuditSearcher interface {
	GetRecent(limit int) ([]AuditEntry, error)
	Find(filter func(entry AuditEntry) bool, limit int) ([]AuditEntry, error)
}
