package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/portal/api/handler"
	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/internal/middleware"
)

type Handlers struct {
	Auth    *apiHandler.AuthHandler
	Session *apiHandler.SessionHandler
	Health  *apiHandler.HealthHandler
	Shells  []*apiHandler.ShellHandler
	Metrics fasthttp.RequestHandler
}

type Middlewares struct {
	Identity *middleware.ClientIdentity
	Gate     *middleware.Gate
	Limiter  *middleware.RateLimiter
}

func New(handlers Handlers, mw Middlewares) *router.Router {
	r := router.New()
	client := mw.Identity.Handle

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}

	// Public routes
	login := handlers.Auth.Login
	if mw.Limiter != nil {
		login = mw.Limiter.Limit(login)
	}
	public := func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return client(mw.Gate.Disarm(next))
	}
	r.GET("/", public(handlers.Auth.Home))
	// The not-found page refreshes to the login form when its timeout ends, so
	// showing the form leaves a pending forced logout armed.
	r.GET("/login", client(handlers.Auth.LoginPage))
	r.POST("/login", public(login))
	r.POST("/logout", public(handlers.Auth.Logout))

	// Session API, any signed-in role
	anyRole := mw.Gate.RequireAPI(domain.RoleNone)
	r.GET("/api/v1/session", client(anyRole(handlers.Session.Current)))
	r.POST("/api/v1/session/two-factor", client(anyRole(handlers.Session.SetTwoFactor)))

	// Role shells
	for _, sh := range handlers.Shells {
		prefix := sh.Role().Prefix()
		guarded := client(mw.Gate.Require(sh.Role())(sh.Serve))
		r.GET(prefix, guarded)
		r.ANY(prefix+"/{"+apiHandler.UserValueScreen+":*}", guarded)
	}

	return r
}
