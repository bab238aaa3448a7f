package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/portal/api/shell"
	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/internal/middleware"
	"github.com/fastygo/portal/pkg/httpcontext"
	appLogger "github.com/fastygo/portal/pkg/logger"
	authUC "github.com/fastygo/portal/usecase/auth"
	"github.com/fastygo/portal/usecase/gate"
	"github.com/fastygo/portal/usecase/navigation"
)

// UserValueScreen is the router parameter carrying the sub-path below a role prefix.
const UserValueScreen = "screen"

const forcedLogoutTimeout = 5 * time.Second

// ShellHandler dispatches the sub-paths of one role prefix to that role's screens.
// It runs behind the gate, so the session is present and matches the shell's role.
type ShellHandler struct {
	baseHandler
	shell    *shell.Shell
	uc       *authUC.UseCase
	watchdog *navigation.Watchdog
}

func NewShellHandler(s *shell.Shell, uc *authUC.UseCase, watchdog *navigation.Watchdog, adapter *httpcontext.Adapter, logger *zap.Logger) *ShellHandler {
	return &ShellHandler{
		baseHandler: newBaseHandler(adapter, logger),
		shell:       s,
		uc:          uc,
		watchdog:    watchdog,
	}
}

func (h *ShellHandler) Role() domain.Role {
	return h.shell.Role
}

func (h *ShellHandler) Serve(ctx *fasthttp.RequestCtx) {
	store, ok := middleware.SessionFrom(ctx)
	if !ok {
		middleware.Redirect(ctx, gate.LoginPath)
		return
	}

	subPath, _ := ctx.UserValue(UserValueScreen).(string)
	subPath = strings.Trim(subPath, "/")
	if subPath == "" {
		middleware.Redirect(ctx, h.shell.Role.Dashboard())
		return
	}

	if screen, found := h.shell.Lookup(subPath); found {
		body, err := shell.RenderScreen(h.shell, screen, store.Session())
		h.respondHTML(ctx, http.StatusOK, body, err)
		return
	}

	h.notFound(ctx, store.ClientID(), store.Session().Token)
}

// notFound renders the dead-end page and arms the forced logout of the session
// identified by token. Disarmed by later navigation of the same client.
func (h *ShellHandler) notFound(ctx *fasthttp.RequestCtx, clientID, token string) {
	path := string(ctx.Path())

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()
	log := appLogger.WithRequestID(stdCtx, h.logger)

	log.Info("navigation resolved",
		zap.String("path", path),
		zap.String("role", string(h.shell.Role)),
		zap.Stringer("state", domain.NavNotFound))

	if h.watchdog != nil && h.uc != nil {
		h.watchdog.Arm(clientID, func() {
			fireCtx, stop := context.WithTimeout(context.Background(), forcedLogoutTimeout)
			defer stop()
			if err := h.uc.ForceLogout(fireCtx, clientID, token, path); err != nil {
				h.logger.Error("forced logout failed", zap.String("client_id", clientID), zap.Error(err))
			}
		})
	}

	delay := navigation.DefaultDelay
	if h.watchdog != nil {
		delay = h.watchdog.Delay()
	}
	body, err := shell.RenderNotFound(path, gate.LoginPath, delay)
	h.respondHTML(ctx, http.StatusNotFound, body, err)
}
