package router

import (
	"context"
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/portal/api/handler"
	"github.com/fastygo/portal/api/shell"
	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/internal/config"
	"github.com/fastygo/portal/internal/infrastructure/monitor"
	"github.com/fastygo/portal/internal/middleware"
	"github.com/fastygo/portal/pkg/httpcontext"
	"github.com/fastygo/portal/repository/boltdb"
	authUC "github.com/fastygo/portal/usecase/auth"
	"github.com/fastygo/portal/usecase/navigation"
	"github.com/fastygo/portal/usecase/navigation/navigationtest"
	"github.com/fastygo/portal/usecase/session"
)

const cookieName = "portal_client"

type accounts map[string]domain.Identity

func (a accounts) Exchange(_ context.Context, creds domain.Credentials) (domain.Identity, error) {
	if id, ok := a[creds.Email]; ok && creds.Password == "secret" {
		return id, nil
	}
	return domain.Identity{}, domain.NewError(domain.ErrCodeUnauthorized, "Invalid email or password")
}

type pingOK struct{}

func (pingOK) Ping(context.Context) error { return nil }

type harness struct {
	t        *testing.T
	handler  fasthttp.RequestHandler
	identity *middleware.ClientIdentity
	repo     *boltdb.SessionRepository
	clock    *navigationtest.ManualClock
	watchdog *navigation.Watchdog
	cookie   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	repo, err := boltdb.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	clock := &navigationtest.ManualClock{}
	watchdog := navigation.NewWatchdog(navigation.DefaultDelay, clock, nil)
	sessions := session.NewManager(repo, nil)
	adapter := httpcontext.NewAdapter(time.Second)
	uc := authUC.New(accounts{
		"client@example.com": {Token: "t-client", Role: domain.RoleClient, UserID: "7", GroupID: "g1"},
		"agent@example.com":  {Token: "t-agent", Role: domain.RoleAgent, UserID: "3"},
	}, sessions, nil, nil, nil)

	mon := monitor.New(pingOK{}, nil, nil, time.Minute, nil)
	mon.Refresh()

	handlers := Handlers{
		Auth:    apiHandler.NewAuthHandler(uc, sessions, adapter, nil),
		Session: apiHandler.NewSessionHandler(adapter, nil),
		Health:  apiHandler.NewHealthHandler(mon, adapter, nil),
	}
	for _, sh := range shell.Shells() {
		handlers.Shells = append(handlers.Shells, apiHandler.NewShellHandler(sh, uc, watchdog, adapter, nil))
	}

	identity := middleware.NewClientIdentity(config.CookieConfig{
		Name:   cookieName,
		Secret: strings.Repeat("k", 32),
		Issuer: "portal-test",
		TTL:    time.Hour,
	}, nil)
	r := New(handlers, Middlewares{
		Identity: identity,
		Gate:     middleware.NewGate(sessions, watchdog, nil, nil, adapter, nil),
		Limiter:  middleware.NewRateLimiter(100, 100, false, nil),
	})

	return &harness{
		t:        t,
		handler:  r.Handler,
		identity: identity,
		repo:     repo,
		clock:    clock,
		watchdog: watchdog,
	}
}

func (h *harness) do(method, uri, contentType, body string) *fasthttp.RequestCtx {
	h.t.Helper()
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if h.cookie != "" {
		ctx.Request.Header.SetCookie(cookieName, h.cookie)
	}
	if body != "" {
		ctx.Request.Header.SetContentType(contentType)
		ctx.Request.SetBodyString(body)
	}
	h.handler(ctx)

	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)
	c.SetKey(cookieName)
	if ctx.Response.Header.Cookie(c) {
		h.cookie = string(c.Value())
	}
	return ctx
}

func (h *harness) get(uri string) *fasthttp.RequestCtx {
	return h.do(fasthttp.MethodGet, uri, "", "")
}

func (h *harness) login(email string) *fasthttp.RequestCtx {
	form := url.Values{"email": {email}, "password": {"secret"}}
	return h.do(fasthttp.MethodPost, "/login", "application/x-www-form-urlencoded", form.Encode())
}

func (h *harness) clientID() string {
	id, err := h.identity.Parse(h.cookie)
	require.NoError(h.t, err)
	return id
}

func (h *harness) storedRecord() domain.Record {
	rec, err := h.repo.Load(context.Background(), h.clientID())
	require.NoError(h.t, err)
	return rec
}

func location(ctx *fasthttp.RequestCtx) string {
	return string(ctx.Response.Header.Peek(fasthttp.HeaderLocation))
}

func TestRedirectThenReturnConsumedOnce(t *testing.T) {
	h := newHarness(t)

	ctx := h.get("/client/contract-list?x=1")
	assert.Equal(t, fasthttp.StatusFound, ctx.Response.StatusCode())
	assert.Equal(t, "/login", location(ctx))
	require.NotEmpty(t, h.cookie)

	ctx = h.login("client@example.com")
	assert.Equal(t, fasthttp.StatusFound, ctx.Response.StatusCode())
	assert.Equal(t, "/client/contract-list?x=1", location(ctx))

	ctx = h.get("/client/contract-list?x=1")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), `data-screen="contract-list"`)

	ctx = h.do(fasthttp.MethodPost, "/logout", "", "")
	assert.Equal(t, "/login", location(ctx))
	assert.True(t, h.storedRecord().Empty())

	ctx = h.login("client@example.com")
	assert.Equal(t, "/client/dashboard", location(ctx))
}

func TestWrongRoleBouncesToOwnDashboard(t *testing.T) {
	h := newHarness(t)
	h.get("/login")
	h.login("agent@example.com")

	ctx := h.get("/client/invoice-list")
	assert.Equal(t, fasthttp.StatusFound, ctx.Response.StatusCode())
	assert.Equal(t, "/agent/dashboard", location(ctx))

	ctx = h.get("/agent/invoice-list")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestNotFoundNavigatingAwayCancelsForcedLogout(t *testing.T) {
	h := newHarness(t)
	h.get("/login")
	h.login("client@example.com")

	ctx := h.get("/client/no-such-screen")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "5;url=/login")
	assert.True(t, h.watchdog.Armed(h.clientID()))

	h.clock.Advance(4900 * time.Millisecond)
	assert.True(t, h.storedRecord().Complete())

	ctx = h.get("/client/dashboard")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.False(t, h.watchdog.Armed(h.clientID()))

	h.clock.Advance(time.Second)
	assert.True(t, h.storedRecord().Complete())
}

func TestNotFoundClearsSessionAtTimeout(t *testing.T) {
	h := newHarness(t)
	h.get("/login")
	h.login("client@example.com")

	h.get("/client/no-such-screen")
	h.clock.Advance(5 * time.Second)
	assert.True(t, h.storedRecord().Empty())

	ctx := h.get("/client/dashboard")
	assert.Equal(t, "/login", location(ctx))
}

func TestLoginFailureRerendersForm(t *testing.T) {
	h := newHarness(t)
	form := url.Values{"email": {"client@example.com"}, "password": {"wrong"}}
	ctx := h.do(fasthttp.MethodPost, "/login", "application/x-www-form-urlencoded", form.Encode())

	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "Invalid email or password")
	assert.True(t, h.storedRecord().Empty())
}

func TestHomeRedirects(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "/login", location(h.get("/")))

	h.login("agent@example.com")
	assert.Equal(t, "/agent/dashboard", location(h.get("/")))
	assert.Equal(t, "/agent/dashboard", location(h.get("/agent")))
}

func TestSessionAPI(t *testing.T) {
	h := newHarness(t)

	ctx := h.get("/api/v1/session")
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Empty(t, location(ctx))

	h.login("client@example.com")
	ctx = h.get("/api/v1/session")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.NotContains(t, string(ctx.Response.Body()), "t-client")

	var envelope struct {
		Data domain.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &envelope))
	assert.Equal(t, domain.RoleClient, envelope.Data.Role)
	assert.Equal(t, "g1", envelope.Data.GroupID)

	ctx = h.do(fasthttp.MethodPost, "/api/v1/session/two-factor", "application/json", `{"enabled":true}`)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "true", h.storedRecord()[domain.KeyTwoFactor])

	ctx = h.do(fasthttp.MethodPost, "/api/v1/session/two-factor", "application/json", `{}`)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestTamperedCookieIsReplaced(t *testing.T) {
	h := newHarness(t)
	h.cookie = "not-a-token"
	h.get("/login")
	assert.NotEqual(t, "not-a-token", h.cookie)
	assert.NotEmpty(t, h.clientID())
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	ctx := h.get("/health")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestStaleForcedLogoutSparesFreshLogin(t *testing.T) {
	h := newHarness(t)
	h.login("agent@example.com")

	ctx := h.get("/agent/no-such-screen")
	require.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	h.clock.Advance(2 * time.Second)
	h.do(fasthttp.MethodPost, "/logout", "", "")
	assert.False(t, h.watchdog.Armed(h.clientID()))

	h.clock.Advance(time.Second)
	assert.Equal(t, "/client/dashboard", location(h.login("client@example.com")))

	h.clock.Advance(5 * time.Second)
	assert.Equal(t, "t-client", h.storedRecord()[domain.KeyAuthToken])

	ctx = h.get("/client/dashboard")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestLoginPageKeepsForcedLogoutArmed(t *testing.T) {
	h := newHarness(t)
	h.login("client@example.com")

	h.get("/client/no-such-screen")
	h.clock.Advance(4 * time.Second)
	ctx := h.get("/login")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.True(t, h.watchdog.Armed(h.clientID()))

	h.clock.Advance(time.Second)
	assert.True(t, h.storedRecord().Empty())
}

func TestUnauthenticatedAPICallIsNotRemembered(t *testing.T) {
	h := newHarness(t)

	ctx := h.do(fasthttp.MethodPost, "/api/v1/session/two-factor", "application/json", `{"enabled":true}`)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))
	assert.Contains(t, string(ctx.Response.Body()), `"code":"UNAUTHORIZED"`)

	assert.Equal(t, "/client/dashboard", location(h.login("client@example.com")))
}
