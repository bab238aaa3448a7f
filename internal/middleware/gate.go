package middleware

import (
	"context"
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/portal/api/transport"
	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/internal/metrics"
	"github.com/fastygo/portal/pkg/httpcontext"
	appLogger "github.com/fastygo/portal/pkg/logger"
	"github.com/fastygo/portal/usecase"
	"github.com/fastygo/portal/usecase/gate"
	"github.com/fastygo/portal/usecase/navigation"
	"github.com/fastygo/portal/usecase/session"
)

const userValueSession = "session"

const loadingPage = `<!doctype html><html><head><meta http-equiv="refresh" content="1"><title>Loading</title></head><body><p>Loading&hellip;</p></body></html>`

// SessionFrom returns the restored session store attached by the gate.
func SessionFrom(ctx *fasthttp.RequestCtx) (*session.Store, bool) {
	store, ok := ctx.UserValue(userValueSession).(*session.Store)
	return store, ok
}

// Gate wraps role subtrees and decides between render and redirect per navigation.
type Gate struct {
	sessions *session.Manager
	watchdog *navigation.Watchdog
	audit    usecase.AuditSink
	metrics  *metrics.Metrics
	adapter  *httpcontext.Adapter
	logger   *zap.Logger
}

func NewGate(
	sessions *session.Manager,
	watchdog *navigation.Watchdog,
	audit usecase.AuditSink,
	m *metrics.Metrics,
	adapter *httpcontext.Adapter,
	logger *zap.Logger,
) *Gate {
	if audit == nil {
		audit = usecase.NopAudit{}
	}
	if adapter == nil {
		adapter = httpcontext.NewAdapter(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		sessions: sessions,
		watchdog: watchdog,
		audit:    audit,
		metrics:  m,
		adapter:  adapter,
		logger:   logger,
	}
}

// Require guards a page subtree with the given role. domain.RoleNone admits any
// signed-in role. Refused navigations are redirected.
func (g *Gate) Require(required domain.Role) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return g.guard(required, false)
}

// RequireAPI guards JSON endpoints. Refused calls get an error envelope instead of a
// redirect and never become the pending redirect target.
func (g *Gate) RequireAPI(required domain.Role) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return g.guard(required, true)
}

func (g *Gate) guard(required domain.Role, api bool) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			clientID := httpcontext.ClientID(ctx)
			stdCtx, cancel := g.adapter.Attach(ctx)
			defer cancel()
			log := appLogger.WithRequestID(stdCtx, g.logger)

			g.disarm(clientID, log)

			store := g.sessions.Open(clientID)
			store.Restore(stdCtx)

			requestURI := string(ctx.RequestURI())
			decision := gate.Decide(store, requestURI, required)
			g.metrics.GateDecision(decision.Kind.String(), string(required))
			log.Debug("gate decision",
				zap.String("uri", requestURI),
				zap.String("required_role", string(required)),
				zap.Stringer("state", decision.State()))

			switch decision.Kind {
			case gate.Loading:
				ctx.Response.Header.Set("Retry-After", "1")
				if api {
					respondAPIError(ctx, fasthttp.StatusServiceUnavailable, domain.ErrCodeUnavailable, "session loading")
					return
				}
				ctx.SetContentType("text/html; charset=utf-8")
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
				ctx.SetBodyString(loadingPage)

			case gate.RedirectLogin:
				current := store.Session()
				if decision.ClearSession {
					if err := store.Logout(stdCtx); err != nil {
						log.Error("failed to clear roleless session", zap.Error(err))
					}
				}
				if api {
					respondAPIError(ctx, fasthttp.StatusUnauthorized, domain.ErrCodeUnauthorized, domain.MessageOf(decision.Reason))
					return
				}
				if decision.Remember != "" {
					if err := store.RememberRedirect(stdCtx, decision.Remember); err != nil {
						log.Warn("failed to remember redirect target", zap.Error(err))
					}
				}
				g.record(stdCtx, log, domain.AuditEvent{
					ClientID: clientID,
					UserID:   current.UserID,
					Kind:     domain.AuditLoginRedirect,
					Path:     requestURI,
				})
				Redirect(ctx, decision.Location)

			case gate.RedirectDashboard:
				if api {
					respondAPIError(ctx, fasthttp.StatusForbidden, domain.ErrCodeForbidden, domain.MessageOf(decision.Reason))
					return
				}
				current := store.Session()
				g.record(stdCtx, log, domain.AuditEvent{
					ClientID: clientID,
					UserID:   current.UserID,
					Role:     current.Role,
					Kind:     domain.AuditRoleBounce,
					Path:     requestURI,
				})
				Redirect(ctx, decision.Location)

			default:
				ctx.SetUserValue(userValueSession, store)
				next(ctx)
			}
		}
	}
}

// Disarm cancels a pending forced logout on routes outside the gate, such as the
// login and logout endpoints.
func (g *Gate) Disarm(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		g.disarm(httpcontext.ClientID(ctx), g.logger)
		next(ctx)
	}
}

// Navigating anywhere cancels a forced logout left behind by a not-found screen.
func (g *Gate) disarm(clientID string, log *zap.Logger) {
	if g.watchdog != nil && g.watchdog.Disarm(clientID) {
		log.Info("pending forced logout cancelled by navigation", zap.String("client_id", clientID))
	}
}

func (g *Gate) record(ctx context.Context, log *zap.Logger, event domain.AuditEvent) {
	if err := g.audit.Record(ctx, event); err != nil {
		log.Warn("failed to record session event", zap.String("kind", string(event.Kind)), zap.Error(err))
	}
}

func respondAPIError(ctx *fasthttp.RequestCtx, status int, code domain.ErrorCode, message string) {
	body, _ := json.Marshal(transport.NewError(string(code), message, nil))
	ctx.Response.Header.Set(fasthttp.HeaderCacheControl, "no-store")
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

// Redirect answers with 302 and a path-only Location.
func Redirect(ctx *fasthttp.RequestCtx, location string) {
	ctx.Response.Header.Set(fasthttp.HeaderLocation, location)
	ctx.Response.Header.Set(fasthttp.HeaderCacheControl, "no-store")
	ctx.SetStatusCode(fasthttp.StatusFound)
}
