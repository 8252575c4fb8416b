// Package identity resolves external user payloads to local subjects,
// optionally provisioning or updating them along the way.
package identity

import (
	"context"
	"net/mail"

	"github.com/rs/zerolog/log"

	"github.com/catalyst/userkey/internal/core"
)

// Options carries the slice of service configuration the resolver needs.
type Options struct {
	MappingField         core.MappingField
	IPRestriction        bool
	CreateUser           bool
	UpdateUser           bool
	AllowDuplicateEmails bool
}

type Resolver struct {
	ids  core.IdentityStore
	opts Options
}

func NewResolver(ids core.IdentityStore, opts Options) *Resolver {
	if opts.MappingField == "" {
		opts.MappingField = core.MapByEmail
	}
	return &Resolver{ids: ids, opts: opts}
}

// action is the outcome of the create/update/reject decision.
type action int

const (
	actionReject action = iota
	actionCreate
	actionUpdate
	actionKeep
)

// decide picks what to do with the lookup result. Kept as an explicit
// dispatch so each branch has exactly one executor below.
func (r *Resolver) decide(existing *core.Subject) action {
	if existing == nil {
		if !r.opts.CreateUser {
			return actionReject
		}
		return actionCreate
	}
	if r.opts.UpdateUser {
		return actionUpdate
	}
	return actionKeep
}

// Resolve finds, creates or updates the subject the payload describes.
// A near-miss lookup fails with the same ErrSubjectNotFound as a clean
// miss; callers learn nothing about existing accounts.
func (r *Resolver) Resolve(ctx context.Context, payload core.UserPayload) (*core.Subject, error) {
	value := payload.Field(r.opts.MappingField)
	if value == "" {
		return nil, core.ErrMissingMappingValue
	}
	if r.opts.IPRestriction && payload.IP == "" {
		return nil, core.ErrMissingIP
	}

	existing, err := r.ids.FindByField(ctx, r.opts.MappingField, value)
	if err != nil {
		return nil, err
	}

	switch r.decide(existing) {
	case actionCreate:
		return r.create(ctx, payload)
	case actionUpdate:
		return r.update(ctx, existing, payload)
	case actionKeep:
		return existing, nil
	default:
		return nil, core.ErrSubjectNotFound
	}
}

// create provisions a new confirmed subject from the payload.
func (r *Resolver) create(ctx context.Context, payload core.UserPayload) (*core.Subject, error) {
	var missing []string
	if payload.Username == "" {
		missing = append(missing, "username")
	}
	if payload.FirstName == "" {
		missing = append(missing, "firstname")
	}
	if payload.LastName == "" {
		missing = append(missing, "lastname")
	}
	if payload.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return nil, &core.MissingFieldsError{Fields: missing}
	}

	if err := r.checkUniqueness(ctx, payload.Username, payload.Email, ""); err != nil {
		return nil, err
	}

	subj, err := r.ids.Create(ctx, core.Subject{
		Username:   payload.Username,
		Email:      payload.Email,
		IDNumber:   payload.IDNumber,
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		AuthMethod: core.AuthMethod,
		Confirmed:  true,
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().Str("subject", subj.ID).Str("username", subj.Username).Msg("subject created")
	return subj, nil
}

// update applies the supplied payload fields to an existing subject.
// The uniqueness re-check runs only when username or email actually
// changed; other field changes cannot introduce a conflict.
func (r *Resolver) update(ctx context.Context, existing *core.Subject, payload core.UserPayload) (*core.Subject, error) {
	updated := *existing

	if payload.Username != "" {
		updated.Username = payload.Username
	}
	if payload.Email != "" {
		updated.Email = payload.Email
	}
	if payload.IDNumber != "" {
		updated.IDNumber = payload.IDNumber
	}
	if payload.FirstName != "" {
		updated.FirstName = payload.FirstName
	}
	if payload.LastName != "" {
		updated.LastName = payload.LastName
	}

	if updated == *existing && existing.AuthMethod == core.AuthMethod {
		return existing, nil
	}

	if updated.Username != existing.Username || updated.Email != existing.Email {
		if err := r.checkUniqueness(ctx, updated.Username, updated.Email, existing.ID); err != nil {
			return nil, err
		}
	}

	updated.AuthMethod = core.AuthMethod
	if err := r.ids.Update(ctx, updated); err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().Str("subject", updated.ID).Msg("subject updated")
	return &updated, nil
}

// checkUniqueness validates the username and email against all other
// subjects, exactly as in create.
func (r *Resolver) checkUniqueness(ctx context.Context, username, email, excludeID string) error {
	taken, err := r.ids.UsernameTaken(ctx, username, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return core.ErrDuplicateUsername
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return core.ErrInvalidEmail
	}

	if !r.opts.AllowDuplicateEmails {
		taken, err := r.ids.EmailTaken(ctx, email, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return core.ErrDuplicateEmail
		}
	}
	return nil
}
