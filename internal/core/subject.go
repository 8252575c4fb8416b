package core

import (
	"context"

	"github.com/mitchellh/mapstructure"
)

// AuthMethod tags subjects provisioned or logged in through this service.
const AuthMethod = "userkey"

// MappingField selects which subject attribute an external payload is
// matched against.
type MappingField string

const (
	MapByUsername MappingField = "username"
	MapByEmail    MappingField = "email"
	MapByIDNumber MappingField = "idnumber"
)

// KnownMappingField reports whether f is one of the supported fields.
func KnownMappingField(f MappingField) bool {
	switch f {
	case MapByUsername, MapByEmail, MapByIDNumber:
		return true
	}
	return false
}

// Subject is the slice of the external user record this service reads
// and writes. Fields beyond these stay untouched on update.
type Subject struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	IDNumber  string `json:"idnumber,omitempty"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	City      string `json:"city,omitempty"`

	// AuthMethod records how the subject authenticates ("userkey" for
	// subjects owned by this service).
	AuthMethod string `json:"auth_method"`

	Confirmed bool `json:"confirmed"`
	Deleted   bool `json:"-"`
}

// UserPayload is the structured payload of a login-URL request.
type UserPayload struct {
	Username  string `json:"username" mapstructure:"username"`
	Email     string `json:"email" mapstructure:"email"`
	IDNumber  string `json:"idnumber" mapstructure:"idnumber"`
	FirstName string `json:"firstname" mapstructure:"firstname"`
	LastName  string `json:"lastname" mapstructure:"lastname"`

	// IP optionally pins the issued key to this address instead of the
	// caller's observed remote address.
	IP string `json:"ip" mapstructure:"ip"`
}

// Field returns the payload value for the given mapping field, or ""
// for an unrecognized field.
func (p UserPayload) Field(f MappingField) string {
	switch f {
	case MapByUsername:
		return p.Username
	case MapByEmail:
		return p.Email
	case MapByIDNumber:
		return p.IDNumber
	}
	return ""
}

// Env exposes the payload as an attribute map, e.g. for guard expressions.
func (p UserPayload) Env() map[string]any {
	return map[string]any{
		"username":  p.Username,
		"email":     p.Email,
		"idnumber":  p.IDNumber,
		"firstname": p.FirstName,
		"lastname":  p.LastName,
		"ip":        p.IP,
	}
}

// PayloadFromMap decodes a loosely-typed payload (as received from the
// web service layer) into a UserPayload. Unknown fields are rejected so
// callers notice typos in field names.
func PayloadFromMap(in map[string]any) (UserPayload, error) {
	var p UserPayload
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &p,
		ErrorUnused: true,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(in); err != nil {
		return p, err
	}
	return p, nil
}

// IdentityStore is the external identity collaborator. Only the
// operations the resolver and orchestrator need are modeled.
type IdentityStore interface {
	// Get returns ErrSubjectNotFound when no subject has the given ID
	// or the subject is deleted.
	Get(ctx context.Context, id string) (*Subject, error)

	// FindByField returns (nil, nil) when no subject matches; lookup
	// errors are returned as-is.
	FindByField(ctx context.Context, field MappingField, value string) (*Subject, error)

	// UsernameTaken and EmailTaken report whether another subject
	// (excluding excludeID) already uses the value.
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)

	Create(ctx context.Context, s Subject) (*Subject, error)
	Update(ctx context.Context, s Subject) error
}
