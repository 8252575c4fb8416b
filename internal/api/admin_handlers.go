package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/catalyst/userkey/internal/api/presenter"
	"github.com/catalyst/userkey/internal/core"
)

// handleAdminKeys lists live (unexpired) key records.
func (s *Server) handleAdminKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	keys, err := s.keyStore.ListActive(ctx, core.KeyScope)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list active keys")
		presenter.Error(w, r, "failed to list active keys", http.StatusInternalServerError)
		return
	}

	// never hand out redeemable key values over the admin API
	for i := range keys {
		keys[i].Value = ""
	}

	presenter.JSON(w, r, keys, http.StatusOK)
}

// handleAdminRevoke deletes every key for a subject.
func (s *Server) handleAdminRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	subjectID := r.PathValue("subject")
	if subjectID == "" {
		presenter.Error(w, r, "missing subject", http.StatusBadRequest)
		return
	}

	if err := s.keyManager.RevokeAll(ctx, subjectID); err != nil {
		logger.Error().Err(err).Str("subject", subjectID).Msg("failed to revoke keys")
		presenter.Error(w, r, "failed to revoke keys", http.StatusInternalServerError)
		return
	}

	logger.Info().Str("subject", subjectID).Msg("keys revoked")
	presenter.JSON(w, r, map[string]string{"status": "ok"}, http.StatusOK)
}

// handleAdminPurge removes expired key records.
func (s *Server) handleAdminPurge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	deleted, err := s.keyStore.DeleteExpired(ctx, core.KeyScope)
	if err != nil {
		logger.Error().Err(err).Msg("failed to purge expired keys")
		presenter.Error(w, r, "failed to purge expired keys", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("deleted", deleted).Msg("expired keys purged")
	presenter.JSON(w, r, map[string]int64{"deleted": deleted}, http.StatusOK)
}

// handleAdminAudit retrieves audit log entries.
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	searcher, ok := s.auditor.(core.AuditSearcher)
	if !ok {
		presenter.Error(w, r, "audit backend does not support queries", http.StatusNotImplemented)
		return
	}

	q := r.URL.Query()
	limit := 50
	if limitStr := q.Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil {
			logger.Warn().Err(err).Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = v
	}

	filterCorrelationID := q.Get("correlation_id")
	filterSubjectID := q.Get("subject_id")
	filterFingerprint := q.Get("fingerprint")

	var entries []core.AuditEntry
	var err error

	if filterCorrelationID != "" || filterSubjectID != "" || filterFingerprint != "" {
		entries, err = searcher.Find(func(entry core.AuditEntry) bool {
			if filterCorrelationID != "" && entry.ID != filterCorrelationID {
				return false
			}
			if filterSubjectID != "" && entry.SubjectID != filterSubjectID {
				return false
			}
			if filterFingerprint != "" && entry.KeyFingerprint != filterFingerprint {
				return false
			}
			return true
		}, limit)
	} else {
		entries, err = searcher.GetRecent(limit)
	}

	if err != nil {
		logger.Error().Err(err).Msg("failed to retrieve audit logs")
		presenter.Error(w, r, "failed to retrieve audit logs", http.StatusInternalServerError)
		return
	}

	presenter.JSON(w, r, entries, http.StatusOK)
}
