package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/catalyst/userkey/internal/audit"
	"github.com/catalyst/userkey/internal/config"
	"github.com/catalyst/userkey/internal/core"
	"github.com/catalyst/userkey/internal/identity"
	"github.com/catalyst/userkey/internal/keys"
	"github.com/catalyst/userkey/internal/service"
	"github.com/catalyst/userkey/internal/store"
)

const (
	testBaseURL = "https://site.example.com"
	testSecret  = "test-signing-secret"
)

type testServer struct {
	handler http.Handler
	ids     *identity.MemoryStore
	store   *store.MemoryKeyStore
	keys    *keys.Manager
	auditor *audit.InMemoryAuditor
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{
		BaseURL:      testBaseURL,
		MappingField: core.MapByEmail,
		CreateUser:   true,
		APISecret:    testSecret,
	}
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	ids := identity.NewMemoryStore()
	ks := store.NewMemoryKeyStore()
	km := keys.NewManager(ks, ids, keys.Options{
		Lifetime:      cfg.Lifetime(),
		IPRestriction: cfg.IPRestriction,
		Whitelist:     cfg.Whitelist,
	})
	auditor := audit.NewInMemoryAuditor()

	srv := NewServer(cfg, km, ks, ids, auditor)
	return &testServer{
		handler: srv.Routes([]byte(cfg.APISecret)),
		ids:     ids,
		store:   ks,
		keys:    km,
		auditor: auditor,
	}
}

func signToken(t *testing.T, capabilities ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          "external-system",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"capabilities": capabilities,
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() unexpected error: %v", err)
	}
	return signed
}

type reqOpts struct {
	token   string
	cookies []*http.Cookie
	headers map[string]string
}

func (ts *testServer) do(t *testing.T, method, target, body string, opts reqOpts) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "10.0.0.1:54321"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}
	for _, c := range opts.cookies {
		req.AddCookie(c)
	}
	for k, v := range opts.headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return out
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, "GET", HealthCheckRoute, "", reqOpts{})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestServer_Version(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, "GET", VersionRoute, "", reqOpts{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	info := decodeJSON[map[string]any](t, rec)
	if info["service"] != "userkey" {
		t.Errorf("service = %v, want userkey", info["service"])
	}
}

func TestServer_LoginURL_Auth(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name     string
		token    string
		wantCode int
	}{
		{name: "No Token", wantCode: http.StatusUnauthorized},
		{name: "Garbage Token", token: "garbage", wantCode: http.StatusUnauthorized},
		{name: "Wrong Capability", token: signToken(t, "userkey:admin"), wantCode: http.StatusForbidden},
		{name: "No Capabilities Claim", token: signToken(t), wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, "POST", LoginURLRoute, `{"email":"jane@example.com"}`, reqOpts{token: tt.token})
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

// TestServer_LoginFlow walks the full happy path: the external system
// requests a login URL, the browser follows it once, and a replay of
// the same URL fails.
func TestServer_LoginFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	token := signToken(t, "userkey:generatekey")

	rec := ts.do(t, "POST", LoginURLRoute,
		`{"email":"jane@example.com","username":"jane","firstname":"Jane","lastname":"Doe"}`,
		reqOpts{token: token})
	if rec.Code != http.StatusCreated {
		t.Fatalf("loginurl status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	resp := decodeJSON[service.LoginURLResponse](t, rec)
	if !strings.HasPrefix(resp.LoginURL, testBaseURL+"/login?key=") {
		t.Fatalf("LoginURL = %q, want %s/login?key=...", resp.LoginURL, testBaseURL)
	}

	parsed, err := url.Parse(resp.LoginURL)
	if err != nil {
		t.Fatalf("parsing login url: %v", err)
	}
	key := parsed.Query().Get("key")

	// first visit logs in and redirects to the site root
	rec = ts.do(t, "GET", "/login?key="+key, "", reqOpts{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d, want 303: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != testBaseURL+"/" {
		t.Errorf("Location = %q, want site root", loc)
	}

	// replaying the consumed key fails
	rec = ts.do(t, "GET", "/login?key="+key, "", reqOpts{})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("replay status = %d, want 401", rec.Code)
	}
}

func TestServer_Login_PrefetchDoesNotBurnKey(t *testing.T) {
	ts := newTestServer(t, nil)

	subj, err := ts.ids.Create(t.Context(), core.Subject{Username: "jane", Email: "jane@example.com"})
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	key, err := ts.keys.Issue(t.Context(), subj.ID, "10.0.0.1", "")
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	rec := ts.do(t, "GET", "/login?key="+key, "", reqOpts{
		headers: map[string]string{"Sec-Purpose": "prefetch"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("prefetch status = %d, want 400", rec.Code)
	}

	// the real click afterwards still works
	rec = ts.do(t, "GET", "/login?key="+key, "", reqOpts{})
	if rec.Code != http.StatusSeeOther {
		t.Errorf("login after prefetch status = %d, want 303: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_Login_WantsURL(t *testing.T) {
	ts := newTestServer(t, nil)

	subj, err := ts.ids.Create(t.Context(), core.Subject{Username: "jane", Email: "jane@example.com"})
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	key, err := ts.keys.Issue(t.Context(), subj.ID, "10.0.0.1", "")
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	dest := testBaseURL + "/course/7"
	rec := ts.do(t, "GET", "/login?key="+key+"&wantsurl="+url.QueryEscape(dest), "", reqOpts{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != dest {
		t.Errorf("Location = %q, want %q", loc, dest)
	}
}

func TestServer_Logout(t *testing.T) {
	ts := newTestServer(t, nil)

	subj, err := ts.ids.Create(t.Context(), core.Subject{Username: "jane", Email: "jane@example.com"})
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	key, err := ts.keys.Issue(t.Context(), subj.ID, "10.0.0.1", "")
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	rec := ts.do(t, "GET", "/login?key="+key, "", reqOpts{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d, want 303", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login did not set a session cookie")
	}

	retTo := testBaseURL + "/"
	rec = ts.do(t, "GET", "/logout?return="+url.QueryEscape(retTo), "", reqOpts{cookies: cookies})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("logout status = %d, want 303: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != retTo {
		t.Errorf("Location = %q, want %q", loc, retTo)
	}

	// the session cookie is cleared
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "userkey_session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("logout did not clear the session cookie")
	}
}

func TestServer_Logout_MissingReturn(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, "GET", "/logout", "", reqOpts{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServer_Signin_SSORedirect(t *testing.T) {
	const sso = "https://idp.example.com/launch"
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.SSOURL = sso
	})

	rec := ts.do(t, "GET", "/signin", "", reqOpts{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("signin status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != sso {
		t.Errorf("Location = %q, want %q", loc, sso)
	}

	// skipping SSO renders the login page instead
	rec = ts.do(t, "GET", "/signin?skipsso=1", "", reqOpts{})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin with skip status = %d, want 200", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("signin did not set a session cookie")
	}

	// the skip holds for the rest of the browser session
	rec = ts.do(t, "GET", "/signin", "", reqOpts{cookies: cookies})
	if rec.Code != http.StatusOK {
		t.Errorf("second signin status = %d, want 200 (skip remembered), Location = %q",
			rec.Code, rec.Header().Get("Location"))
	}

	// asking again without the skip parameter set goes back to SSO
	rec = ts.do(t, "GET", "/signin?skipsso=0", "", reqOpts{cookies: cookies})
	if rec.Code != http.StatusSeeOther {
		t.Errorf("signin with skip revoked status = %d, want 303", rec.Code)
	}
}

func TestServer_LoginURL_Disabled(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Disabled = true
	})
	token := signToken(t, "userkey:generatekey")

	rec := ts.do(t, "POST", LoginURLRoute, `{"email":"jane@example.com"}`, reqOpts{token: token})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestServer_LoginURL_UnknownField(t *testing.T) {
	ts := newTestServer(t, nil)
	token := signToken(t, "userkey:generatekey")

	rec := ts.do(t, "POST", LoginURLRoute, `{"email":"jane@example.com","shoesize":"44"}`, reqOpts{token: token})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_LoginURL_GuardDenied(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Guard = `email endsWith "@example.com"`
	})
	token := signToken(t, "userkey:generatekey")

	rec := ts.do(t, "POST", LoginURLRoute,
		`{"email":"mallory@evil.com","username":"mallory","firstname":"Mallory","lastname":"M"}`,
		reqOpts{token: token})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_Parameters(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.IPRestriction = true
	})
	token := signToken(t, "userkey:generatekey")

	rec := ts.do(t, "GET", ParametersRoute, "", reqOpts{token: token})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	spec := decodeJSON[service.ParameterSpec](t, rec)
	wantRequired := []string{"email", "ip"}
	if diff := cmp.Diff(wantRequired, spec.Required); diff != "" {
		t.Errorf("Required mismatch (-want +got):\n%s", diff)
	}
	wantOptional := []string{"firstname", "lastname", "username", "idnumber"}
	if diff := cmp.Diff(wantOptional, spec.Optional); diff != "" {
		t.Errorf("Optional mismatch (-want +got):\n%s", diff)
	}
}

func TestServer_Admin(t *testing.T) {
	ts := newTestServer(t, nil)
	token := signToken(t, "userkey:admin")

	subj, err := ts.ids.Create(t.Context(), core.Subject{Username: "jane", Email: "jane@example.com"})
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if _, err := ts.keys.Issue(t.Context(), subj.ID, "10.0.0.1", ""); err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	t.Run("List Keys Redacts Values", func(t *testing.T) {
		rec := ts.do(t, "GET", ListKeysRoute, "", reqOpts{token: token})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		records := decodeJSON[[]core.KeyRecord](t, rec)
		if len(records) != 1 {
			t.Fatalf("got %d records, want 1", len(records))
		}
		if records[0].Value != "" {
			t.Error("key value not redacted in admin listing")
		}
		if records[0].SubjectID != subj.ID {
			t.Errorf("subject = %q, want %q", records[0].SubjectID, subj.ID)
		}
	})

	t.Run("Revoke Keys", func(t *testing.T) {
		rec := ts.do(t, "DELETE", AdminParent+"keys/"+subj.ID, "", reqOpts{token: token})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		rec = ts.do(t, "GET", ListKeysRoute, "", reqOpts{token: token})
		if records := decodeJSON[[]core.KeyRecord](t, rec); len(records) != 0 {
			t.Errorf("got %d records after revoke, want 0", len(records))
		}
	})

	t.Run("Purge Expired Keys", func(t *testing.T) {
		rec := ts.do(t, "POST", PurgeKeysRoute, "", reqOpts{token: token})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		result := decodeJSON[map[string]int64](t, rec)
		if _, ok := result["deleted"]; !ok {
			t.Error("purge response missing deleted count")
		}
	})

	t.Run("List Audits", func(t *testing.T) {
		rec := ts.do(t, "GET", ListAuditsRoute+"?limit=10", "", reqOpts{token: token})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("Browser Token Rejected", func(t *testing.T) {
		rec := ts.do(t, "GET", ListKeysRoute, "", reqOpts{token: signToken(t, "userkey:generatekey")})
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestServer_CorrelationIDHeader(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, "GET", HealthCheckRoute, "", reqOpts{})
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("response missing X-Correlation-ID header")
	}
}
