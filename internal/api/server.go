package api

import (
	"net"
	"net/http"

	"github.com/catalyst/userkey/internal/api/middleware"
	"github.com/catalyst/userkey/internal/audit"
	"github.com/catalyst/userkey/internal/config"
	"github.com/catalyst/userkey/internal/core"
	"github.com/catalyst/userkey/internal/identity"
	"github.com/catalyst/userkey/internal/login"
	"github.com/catalyst/userkey/internal/service"
	"github.com/catalyst/userkey/internal/session"
)

const sessionCookie = "userkey_session"

type Server struct {
	cfg          *config.Config
	keyManager   core.KeyManager
	keyStore     core.KeyStore
	ids          core.IdentityStore
	auditor      core.Auditor
	sessions     *session.Registry
	orchestrator *login.Orchestrator
	loginURLSvc  *service.LoginURLService
}

func NewServer(
	cfg *config.Config,
	keyManager core.KeyManager,
	keyStore core.KeyStore,
	ids core.IdentityStore,
	auditor core.Auditor,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}

	resolver := identity.NewResolver(ids, identity.Options{
		MappingField:         cfg.MappingField,
		IPRestriction:        cfg.IPRestriction,
		CreateUser:           cfg.CreateUser,
		UpdateUser:           cfg.UpdateUser,
		AllowDuplicateEmails: cfg.AllowDuplicateEmails,
	})

	orchestrator := login.New(keyManager, ids, login.Options{
		BaseURL:     cfg.BaseURL,
		SSOURL:      cfg.SSOURL,
		RedirectURL: cfg.RedirectURL,
	})

	svc := service.NewLoginURLService(cfg, resolver, keyManager, auditor)

	return &Server{
		cfg:          cfg,
		keyManager:   keyManager,
		keyStore:     keyStore,
		ids:          ids,
		auditor:      auditor,
		sessions:     session.NewRegistry(),
		orchestrator: orchestrator,
		loginURLSvc:  svc,
	}
}

func (s *Server) Routes(signingKey []byte) http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+VersionRoute, s.handleVersion)

	// browser-facing flow
	mux.HandleFunc("GET "+SigninRoute, s.handleSignin)
	mux.HandleFunc("GET "+LoginRoute, s.handleLogin)
	mux.HandleFunc("POST "+LoginRoute, s.handleLogin)
	mux.HandleFunc("GET "+LogoutRoute, s.handleLogout)

	// web service routes for the external system
	loginURLMux := http.NewServeMux()
	loginURLMux.HandleFunc("POST "+LoginURLRoute, s.handleLoginURL)
	loginURLMux.HandleFunc("GET "+ParametersRoute, s.handleParameters)
	mux.Handle("/v1/loginurl", middleware.CapabilityAuth(signingKey, middleware.CapGenerateKey)(loginURLMux))
	mux.Handle("/v1/loginurl/", middleware.CapabilityAuth(signingKey, middleware.CapGenerateKey)(loginURLMux))

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+ListKeysRoute, s.handleAdminKeys)
	adminMux.HandleFunc("POST "+PurgeKeysRoute, s.handleAdminPurge)
	adminMux.HandleFunc("DELETE "+RevokeKeysRoute, s.handleAdminRevoke)
	adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
	mux.Handle(AdminParent, middleware.CapabilityAuth(signingKey, middleware.CapAdmin)(adminMux))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}

// sessionState returns the state for the request's session cookie,
// starting a fresh session (and setting the cookie) when absent.
func (s *Server) sessionState(w http.ResponseWriter, r *http.Request) (string, *session.State) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if st, ok := s.sessions.Get(cookie.Value); ok {
			return cookie.Value, st
		}
	}

	id, st := s.sessions.Start()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, st
}

// endSession drops the session and clears the cookie.
func (s *Server) endSession(w http.ResponseWriter, id string) {
	s.sessions.Terminate(id)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// clientIP strips the port from the request's remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requestEnv classifies the execution context. Prefetchers and other
// background agents must never trigger redirects (or burn single-use
// keys following one).
func requestEnv(r *http.Request) login.Env {
	interactive := r.Header.Get("Sec-Purpose") == "" && r.Header.Get("Purpose") == ""
	return login.Env{
		RemoteAddr:  clientIP(r),
		Interactive: interactive,
	}
}
