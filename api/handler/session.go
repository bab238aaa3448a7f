package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/portal/api/transport"
	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/internal/middleware"
	"github.com/fastygo/portal/pkg/httpcontext"
)

// SessionHandler exposes the current session to the role shells' scripts.
type SessionHandler struct {
	baseHandler
}

func NewSessionHandler(adapter *httpcontext.Adapter, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{baseHandler: newBaseHandler(adapter, logger)}
}

// @Summary Current session
// @Tags session
// @Router /api/v1/session [get]
func (h *SessionHandler) Current(ctx *fasthttp.RequestCtx) {
	store, ok := middleware.SessionFrom(ctx)
	if !ok {
		h.respondError(ctx, domain.ErrNoSession)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, store.Session())
}

// @Summary Toggle the two-factor flag
// @Tags session
// @Router /api/v1/session/two-factor [post]
func (h *SessionHandler) SetTwoFactor(ctx *fasthttp.RequestCtx) {
	store, ok := middleware.SessionFrom(ctx)
	if !ok {
		h.respondError(ctx, domain.ErrNoSession)
		return
	}

	var req transport.TwoFactorRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Enabled == nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := store.SetTwoFactor(stdCtx, *req.Enabled); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, store.Session())
}
