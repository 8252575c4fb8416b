package api

const (
	HealthCheckRoute = "/healthz"
	VersionRoute     = "/version"

	// web service routes for the external system
	LoginURLRoute   = "/v1/loginurl"
	ParametersRoute = "/v1/loginurl/parameters"

	// browser-facing routes
	SigninRoute = "/signin"
	LoginRoute  = "/login"
	LogoutRoute = "/logout"

	AdminParent     = "/v1/admin/"
	ListKeysRoute   = AdminParent + "keys"
	RevokeKeysRoute = AdminParent + "keys/{subject}"
	PurgeKeysRoute  = AdminParent + "keys/purge"
	ListAuditsRoute = AdminParent + "audits"
)
