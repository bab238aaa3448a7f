package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/internal/config"
	appLogger "github.com/fastygo/portal/pkg/logger"
)

const loginPath = "/auth/login"

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		Role    string          `json:"role"`
		ID      json.RawMessage `json:"id"`
		GroupID json.RawMessage `json:"group_id"`
	} `json:"user"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client performs the login exchange against the billing REST backend.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
	logger  *zap.Logger
}

// New builds a backend client. httpClient may be nil.
func New(cfg config.BackendConfig, httpClient *fasthttp.Client, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &fasthttp.Client{
			Name:                "billing-portal",
			MaxConnsPerHost:     64,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    httpClient,
		logger:  logger,
	}
}

// Exchange trades credentials for a bearer token and the principal's identity.
// A rejected login carries the backend's message in the returned domain error.
func (c *Client) Exchange(ctx context.Context, creds domain.Credentials) (domain.Identity, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return domain.Identity{}, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + loginPath)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBody(body)

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	log := appLogger.WithRequestID(ctx, c.logger)
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		log.Warn("login exchange failed", zap.Error(err))
		return domain.Identity{}, domain.WrapError(domain.ErrCodeUnavailable, domain.ErrBackendDown.Message, err)
	}

	var payload loginResponse
	decodeErr := json.Unmarshal(resp.Body(), &payload)
	status := resp.StatusCode()

	switch {
	case status >= 500:
		log.Warn("login exchange upstream error", zap.Int("status", status))
		return domain.Identity{}, domain.ErrBackendDown
	case status >= 400:
		return domain.Identity{}, domain.NewError(domain.ErrCodeUnauthorized, rejectionMessage(payload))
	case decodeErr != nil:
		return domain.Identity{}, domain.WrapError(domain.ErrCodeInternal, "malformed login response", decodeErr)
	}

	role, err := domain.ParseRole(payload.User.Role)
	if err != nil {
		log.Warn("backend returned unknown role", zap.String("role", payload.User.Role))
		return domain.Identity{}, domain.NewError(domain.ErrCodeUnauthorized, "account role is not supported by the portal")
	}

	identity := domain.Identity{
		Token:   payload.Token,
		Role:    role,
		UserID:  scalar(payload.User.ID),
		GroupID: scalar(payload.User.GroupID),
	}
	if identity.Token == "" || identity.UserID == "" {
		return domain.Identity{}, domain.WrapError(domain.ErrCodeInternal, "incomplete login response", domain.ErrInvalidLogin)
	}
	return identity, nil
}

func rejectionMessage(payload loginResponse) string {
	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Error != "":
		return payload.Error
	default:
		return domain.ErrLoginRejected.Message
	}
}

// scalar renders a JSON string or number as plain text; null and absent become "".
func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
