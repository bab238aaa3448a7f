package handler

import (
	"net/http"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/portal/api/shell"
	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/internal/middleware"
	"github.com/fastygo/portal/pkg/httpcontext"
	appLogger "github.com/fastygo/portal/pkg/logger"
	authUC "github.com/fastygo/portal/usecase/auth"
	"github.com/fastygo/portal/usecase/gate"
	"github.com/fastygo/portal/usecase/session"
)

type AuthHandler struct {
	baseHandler
	uc       *authUC.UseCase
	sessions *session.Manager
}

func NewAuthHandler(uc *authUC.UseCase, sessions *session.Manager, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		sessions:    sessions,
	}
}

// LoginPage renders the sign-in form.
func (h *AuthHandler) LoginPage(ctx *fasthttp.RequestCtx) {
	body, err := shell.RenderLogin(shell.LoginView{})
	h.respondHTML(ctx, http.StatusOK, body, err)
}

// Login exchanges the submitted credentials and redirects to the pending target
// or the role dashboard. Failures re-render the form with the backend message.
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	creds := domain.Credentials{
		Email:    strings.TrimSpace(string(ctx.PostArgs().Peek("email"))),
		Password: string(ctx.PostArgs().Peek("password")),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()
	log := appLogger.WithRequestID(stdCtx, h.logger)

	if creds.Email == "" || creds.Password == "" {
		body, err := shell.RenderLogin(shell.LoginView{Email: creds.Email, Message: "Email and password are required"})
		h.respondHTML(ctx, http.StatusBadRequest, body, err)
		return
	}

	store := h.sessions.Open(httpcontext.ClientID(ctx))
	store.Restore(stdCtx)

	destination, err := h.uc.Login(stdCtx, store, creds)
	if err != nil {
		status, _ := mapError(err)
		log.Info("login failed", zap.String("email", creds.Email), zap.Int("status", status), zap.Error(err))
		message := domain.MessageOf(err)
		if status == http.StatusInternalServerError {
			message = "Login failed, please try again"
		}
		body, renderErr := shell.RenderLogin(shell.LoginView{Email: creds.Email, Message: message})
		h.respondHTML(ctx, status, body, renderErr)
		return
	}

	log.Info("login succeeded", zap.String("role", string(store.Role())), zap.String("destination", destination))
	middleware.Redirect(ctx, destination)
}

// Logout clears the session and returns to the login screen.
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	store := h.sessions.Open(httpcontext.ClientID(ctx))
	store.Restore(stdCtx)
	if err := h.uc.Logout(stdCtx, store); err != nil {
		h.respondError(ctx, err)
		return
	}
	middleware.Redirect(ctx, gate.LoginPath)
}

// Home sends the visitor to the dashboard of their role, or to the login screen.
func (h *AuthHandler) Home(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	store := h.sessions.Open(httpcontext.ClientID(ctx))
	store.Restore(stdCtx)
	if store.IsAuthenticated() && store.Role().IsValid() {
		middleware.Redirect(ctx, store.Role().Dashboard())
		return
	}
	middleware.Redirect(ctx, gate.LoginPath)
}
