package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/catalyst/userkey/internal/api/presenter"
	"github.com/catalyst/userkey/internal/core"
	"github.com/catalyst/userkey/internal/service"
)

// handleLoginURL processes login-URL requests from the external system.
func (s *Server) handleLoginURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	// the payload arrives loosely typed: one field per subject
	// attribute, keyed by the configured mapping field
	raw := make(map[string]any)
	if err := DecodePayload(r, &raw, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode login url request payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	payload, err := core.PayloadFromMap(raw)
	if err != nil {
		logger.Warn().Err(err).Msg("unexpected fields in login url request payload")
		presenter.Error(w, r, "invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.loginURLSvc.RequestLoginURL(ctx, clientIP(r), payload)
	if err != nil {
		logger.Warn().Err(err).Msg("login url request failed")
		presenter.Err(w, r, err, "login url request failed")
		return
	}

	logger.Info().Msg("login url issued")
	presenter.JSON(w, r, result, http.StatusCreated)
}

// handleParameters describes the payload shape the login-URL endpoint
// expects under the current configuration, so the external system can
// validate calls before making them.
func (s *Server) handleParameters(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, service.RequestParameters(s.cfg), http.StatusOK)
}
