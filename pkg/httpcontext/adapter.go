package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/portal/pkg/logger"
)

// Key represents a context value key exported for reuse.
type Key string

const (
	KeyRemoteAddr Key = "remote_addr"
	KeyUserAgent  Key = "user_agent"
)

// UserValueClientID is the fasthttp user value holding the browser client id.
const UserValueClientID = "client_id"

// Adapter converts fasthttp.RequestCtx into a stdlib context with deadlines and metadata.
type Adapter struct {
	timeout time.Duration
}

// NewAdapter constructs a new Adapter using the provided timeout.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{timeout: timeout}
}

// Attach creates a context with the adapter timeout carrying request id, client id,
// remote address and user agent.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := RequestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set("X-Request-ID", reqID)

	if clientID := ClientID(ctx); clientID != "" {
		stdCtx = appLogger.ContextWithClientID(stdCtx, clientID)
	}
	if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, remoteAddr.String())
	}
	if ua := string(ctx.Request.Header.UserAgent()); ua != "" {
		stdCtx = context.WithValue(stdCtx, KeyUserAgent, ua)
	}

	return stdCtx, cancel
}

// ClientID returns the browser client id resolved by the client middleware.
func ClientID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue(UserValueClientID).(string)
	return id
}

// RequestID returns the caller-supplied request id or mints one, once per request.
func RequestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if id, ok := ctx.UserValue("request_id").(string); ok {
		return id
	}
	id := strings.TrimSpace(string(ctx.Request.Header.Peek("X-Request-ID")))
	if id == "" {
		id = uuid.NewString()
	}
	ctx.SetUserValue("request_id", id)
	return id
}

// ClientIP returns the socket address of the caller. When trustForwarded is set, as
// behind a reverse proxy, the first X-Forwarded-For entry wins.
func ClientIP(ctx *fasthttp.RequestCtx, trustForwarded bool) string {
	if xff := string(ctx.Request.Header.Peek("X-Forwarded-For")); trustForwarded && xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := ctx.RemoteIP(); ip != nil && !ip.IsUnspecified() {
		return ip.String()
	}
	return "unknown"
}
