// Package login implements the request-handling state machine that ties
// together pre-login SSO redirects, key redemption, session activation
// and logout.
package login

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/catalyst/userkey/internal/core"
	"github.com/catalyst/userkey/internal/session"
)

// Env describes the execution context of the current request.
type Env struct {
	// RemoteAddr is the observed client address.
	RemoteAddr string

	// Interactive is true for real browser requests. Redirects are
	// refused outside interactive contexts.
	Interactive bool
}

// Outcome is a redirect instruction for the transport layer.
type Outcome struct {
	RedirectURL string

	// EndSession tells the transport layer to drop the browser session
	// entirely (logout), not just deauthenticate it.
	EndSession bool
}

// Options carries the slice of service configuration the orchestrator needs.
type Options struct {
	// BaseURL is the site root users land on when no wantsurl is given.
	BaseURL string

	// SSOURL, when set, is where anonymous users are redirected before
	// the login UI.
	SSOURL string

	// RedirectURL overrides the post-logout destination for sessions
	// established via key redemption.
	RedirectURL string
}

// Orchestrator depends on the key manager purely through its interface,
// so alternate key backends can be substituted without touching the
// flow logic here.
type Orchestrator struct {
	keys core.KeyManager
	ids  core.IdentityStore
	opts Options
}

func New(keys core.KeyManager, ids core.IdentityStore, opts Options) *Orchestrator {
	return &Orchestrator{keys: keys, ids: ids, opts: opts}
}

func (o *Orchestrator) siteRoot() string {
	return o.opts.BaseURL + "/"
}

// redirect gates every redirect on an interactive execution context.
func (o *Orchestrator) redirect(env Env, target string) (*Outcome, error) {
	if !env.Interactive {
		return nil, core.ErrUnsafeRedirect
	}
	return &Outcome{RedirectURL: target}, nil
}

// PreLogin clears the session's recorded SSO bypass decision. Run it
// before LoginRedirect only when the request carries a fresh, explicit
// decision that should replace the remembered one; a plain login page
// view keeps the decision for the rest of the browser session.
func (o *Orchestrator) PreLogin(st *session.State) {
	st.SSOBypass = false
	st.SSOBypassSet = false
}

// LoginRedirect runs the pre-login redirect decision. A nil outcome
// means: proceed with the normal login UI.
func (o *Orchestrator) LoginRedirect(env Env, st *session.State, skipRequested bool) (*Outcome, error) {
	if st.SSOBypassSet && st.SSOBypass {
		// the session already recorded a skip request
		return nil, nil
	}

	st.SSOBypass = skipRequested
	st.SSOBypassSet = true

	if o.opts.SSOURL != "" && !skipRequested {
		return o.redirect(env, o.opts.SSOURL)
	}
	return nil, nil
}

// RedeemLogin consumes a login key and activates a session for its
// bound subject. Any validation failure mid-login force-terminates a
// pre-existing authenticated session before the failure propagates;
// better to deauthenticate than to leave an inconsistent session.
func (o *Orchestrator) RedeemLogin(ctx context.Context, env Env, st *session.State, keyValue, wantsURL string) (*Outcome, error) {
	if keyValue == "" {
		return nil, core.ErrMissingKey
	}
	// refuse before touching the key, so prefetchers cannot burn it
	if !env.Interactive {
		return nil, core.ErrUnsafeRedirect
	}
	if wantsURL == "" {
		wantsURL = o.siteRoot()
	}

	rec, err := o.keys.Redeem(ctx, keyValue, env.RemoteAddr)
	if err != nil {
		if st.Authenticated() {
			log.Ctx(ctx).Warn().Str("subject", st.SubjectID).
				Msg("key validation failed mid-login, terminating session")
			st.Reset()
		}
		return nil, err
	}

	if st.Authenticated() {
		if st.SubjectID == rec.SubjectID {
			// same subject re-clicked the link; burn the key and move
			// on without re-running login
			if err := o.keys.Consume(ctx, rec.SubjectID); err != nil {
				return nil, err
			}
			return o.redirect(env, wantsURL)
		}
		// key belongs to someone else: force out the current subject
		st.Reset()
	}

	// single-use enforcement happens before session activation, so a
	// failure below can never leave the key redeemable again. Consume
	// also loses the race against a concurrent redemption that slipped
	// past Redeem together with this one.
	if err := o.keys.Consume(ctx, rec.SubjectID); err != nil {
		return nil, err
	}

	subj, err := o.ids.Get(ctx, rec.SubjectID)
	if err != nil {
		return nil, core.ErrInvalidSubject
	}

	st.SubjectID = subj.ID
	st.AuthenticatedViaKey = true

	log.Ctx(ctx).Info().Str("subject", subj.ID).Msg("session activated via key")
	return o.redirect(env, wantsURL)
}

// Logout terminates the current session, but only if it was established
// by this auth method (or no session is active at all). Sessions owned
// by other auth methods are left untouched.
func (o *Orchestrator) Logout(ctx context.Context, env Env, st *session.State, returnURL string) (*Outcome, error) {
	if returnURL == "" {
		return nil, core.ErrMissingReturn
	}
	if !env.Interactive {
		return nil, core.ErrUnsafeRedirect
	}

	if st.Authenticated() && !st.AuthenticatedViaKey {
		return nil, core.ErrIncorrectLogout
	}

	viaKey := st.AuthenticatedViaKey
	if st.Authenticated() {
		log.Ctx(ctx).Info().Str("subject", st.SubjectID).Msg("session terminated")
	}
	st.Reset()

	target := returnURL
	if viaKey && o.opts.RedirectURL != "" {
		target = o.opts.RedirectURL
	}

	out, err := o.redirect(env, target)
	if err != nil {
		return nil, err
	}
	out.EndSession = true
	return out, nil
}
