package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/catalyst/userkey/internal/api/presenter"
	"github.com/catalyst/userkey/internal/audit"
	"github.com/catalyst/userkey/internal/core"
)

// handleSignin runs the pre-login hook and the SSO redirect decision.
// It stands in for the host system's login page.
func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	_, st := s.sessionState(w, r)
	env := requestEnv(r)

	// an explicit skipsso parameter replaces whatever decision the
	// session recorded earlier; plain login page views keep it for the
	// rest of the browser session
	query := r.URL.Query()
	if query.Has("skipsso") {
		s.orchestrator.PreLogin(st)
	}

	outcome, err := s.orchestrator.LoginRedirect(env, st, query.Get("skipsso") == "1")
	if err != nil {
		s.errorPage(w, r, err)
		return
	}
	if outcome != nil {
		presenter.Redirect(w, r, outcome.RedirectURL)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, "<!doctype html><title>Sign in</title><p>Please sign in.</p>")
}

// handleLogin redeems a login key presented by the end user's browser.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	_, st := s.sessionState(w, r)
	env := requestEnv(r)

	keyValue := r.FormValue("key")
	wantsURL := r.FormValue("wantsurl")

	auditEntry := core.AuditEntry{
		ID:         core.CorrelationID(ctx),
		Time:       time.Now(),
		Action:     core.AuditActionRedeem,
		RemoteAddr: env.RemoteAddr,
	}
	if keyValue != "" {
		auditEntry.KeyFingerprint = audit.Fingerprint(keyValue)
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for key redemption")
		}
	}()

	outcome, err := s.orchestrator.RedeemLogin(ctx, env, st, keyValue, wantsURL)
	if err != nil {
		auditEntry.Error = errorKind(err)
		logger.Warn().Err(err).Msg("key redemption failed")
		s.errorPage(w, r, err)
		return
	}

	auditEntry.Success = true
	auditEntry.SubjectID = st.SubjectID
	presenter.Redirect(w, r, outcome.RedirectURL)
}

// handleLogout terminates key-authenticated sessions.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	id, st := s.sessionState(w, r)
	env := requestEnv(r)

	auditEntry := core.AuditEntry{
		ID:         core.CorrelationID(ctx),
		Time:       time.Now(),
		Action:     core.AuditActionLogout,
		SubjectID:  st.SubjectID,
		RemoteAddr: env.RemoteAddr,
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for logout")
		}
	}()

	outcome, err := s.orchestrator.Logout(ctx, env, st, r.FormValue("return"))
	if err != nil {
		auditEntry.Error = errorKind(err)
		logger.Warn().Err(err).Msg("logout refused")
		s.errorPage(w, r, err)
		return
	}

	auditEntry.Success = true
	if outcome.EndSession {
		s.endSession(w, id)
	}
	presenter.Redirect(w, r, outcome.RedirectURL)
}

// errorPage renders a generic error page identifying only the error
// kind. It deliberately reveals nothing about near-miss lookups or
// which part of a key validation failed beyond the kind itself.
func (s *Server) errorPage(w http.ResponseWriter, r *http.Request, err error) {
	kind := errorKind(err)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(errorStatus(err))
	_, _ = fmt.Fprintf(w,
		"<!doctype html><title>Login error</title><p>Unable to log you in: %s.</p><!-- correlation: %s -->",
		kind, core.CorrelationID(r.Context()))
}

func errorKind(err error) string {
	var ipMismatch *core.IPMismatchError
	switch {
	case errors.Is(err, core.ErrMissingKey):
		return "missing key"
	case errors.Is(err, core.ErrInvalidKey):
		return "invalid key"
	case errors.Is(err, core.ErrExpiredKey):
		return "expired key"
	case errors.As(err, &ipMismatch):
		return "client address mismatch"
	case errors.Is(err, core.ErrNoClientIP):
		return "client address unknown"
	case errors.Is(err, core.ErrInvalidSubject):
		return "invalid subject"
	case errors.Is(err, core.ErrMissingReturn):
		return "missing return url"
	case errors.Is(err, core.ErrIncorrectLogout):
		return "incorrect logout request"
	case errors.Is(err, core.ErrUnsafeRedirect):
		return "redirect not available"
	default:
		return "login failed"
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrMissingKey),
		errors.Is(err, core.ErrMissingReturn),
		errors.Is(err, core.ErrUnsafeRedirect):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrIncorrectLogout):
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}
