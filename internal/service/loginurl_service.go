package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/catalyst/userkey/internal/audit"
	"github.com/catalyst/userkey/internal/config"
	"github.com/catalyst/userkey/internal/core"
	"github.com/catalyst/userkey/internal/identity"
)

// LoginURLService handles login-URL requests from the external system:
// resolve (or provision) the subject, issue a single-use key, return
// the URL the end user's browser should be sent to.
type LoginURLService struct {
	cfg      *config.Config
	resolver *identity.Resolver
	keys     core.KeyManager
	auditor  core.Auditor
}

func NewLoginURLService(
	cfg *config.Config,
	resolver *identity.Resolver,
	keys core.KeyManager,
	auditor core.Auditor,
) *LoginURLService {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	return &LoginURLService{
		cfg:      cfg,
		resolver: resolver,
		keys:     keys,
		auditor:  auditor,
	}
}

// LoginURLResponse is returned to the requesting system.
type LoginURLResponse struct {
	LoginURL string `json:"loginurl"`
}

func (s *LoginURLService) RequestLoginURL(ctx context.Context, remoteAddr string, payload core.UserPayload) (*LoginURLResponse, error) {
	logger := log.Ctx(ctx)
	reqID := core.CorrelationID(ctx)

	auditEntry := core.AuditEntry{
		ID:           reqID,
		Time:         time.Now(),
		Action:       core.AuditActionLoginURL,
		MappingField: string(s.cfg.MappingField),
		MappingValue: payload.Field(s.cfg.MappingField),
		RemoteAddr:   remoteAddr,
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for login url request")
		}
	}()

	if s.cfg.Disabled {
		auditEntry.Error = "service disabled"
		return nil, httpError(http.StatusForbidden,
			errors.New("userkey authentication is disabled"))
	}

	if err := s.cfg.CompiledGuard.Allow(payload); err != nil {
		auditEntry.Error = "guard denied"
		return nil, httpError(http.StatusForbidden, err)
	}

	subject, err := s.resolver.Resolve(ctx, payload)
	if err != nil {
		auditEntry.Error = "identity resolution failed"
		return nil, httpError(resolutionStatus(err), err)
	}
	auditEntry.SubjectID = subject.ID

	logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("subject", subject.ID)
	})

	value, err := s.keys.Issue(ctx, subject.ID, remoteAddr, payload.IP)
	if err != nil {
		auditEntry.Error = "key issuance failed"
		return nil, httpError(http.StatusInternalServerError, err)
	}

	auditEntry.Success = true
	auditEntry.KeyFingerprint = audit.Fingerprint(value)

	return &LoginURLResponse{
		LoginURL: s.cfg.BaseURL + "/login?key=" + value,
	}, nil
}

// resolutionStatus maps resolver failures to HTTP status codes.
func resolutionStatus(err error) int {
	var missingFields *core.MissingFieldsError
	switch {
	case errors.Is(err, core.ErrSubjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateUsername), errors.Is(err, core.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, core.ErrMissingMappingValue),
		errors.Is(err, core.ErrMissingIP),
		errors.Is(err, core.ErrInvalidEmail),
		errors.As(err, &missingFields):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
