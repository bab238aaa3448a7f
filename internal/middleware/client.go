package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/portal/internal/config"
	"github.com/fastygo/portal/pkg/httpcontext"
)

type clientClaims struct {
	ClientID string `json:"cid"`
	jwt.RegisteredClaims
}

// ClientIdentity pins every browser to a client id carried in a signed cookie. The
// client id keys the durable session record, the pending redirect and the
// not-found watchdog.
type ClientIdentity struct {
	secret []byte
	cfg    config.CookieConfig
	logger *zap.Logger
}

func NewClientIdentity(cfg config.CookieConfig, logger *zap.Logger) *ClientIdentity {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "portal_client"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	return &ClientIdentity{secret: []byte(cfg.Secret), cfg: cfg, logger: logger}
}

func (ci *ClientIdentity) Handle(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		clientID, err := ci.Parse(string(ctx.Request.Header.Cookie(ci.cfg.Name)))
		if err != nil {
			if !errors.Is(err, errNoCookie) {
				ci.logger.Debug("replacing client cookie", zap.Error(err))
			}
			clientID = uuid.NewString()
			if err := ci.issue(ctx, clientID); err != nil {
				ci.logger.Error("failed to sign client cookie", zap.Error(err))
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				return
			}
		}
		ctx.SetUserValue(httpcontext.UserValueClientID, clientID)
		next(ctx)
	}
}

var errNoCookie = errors.New("no client cookie")

// Sign produces the cookie value for a client id.
func (ci *ClientIdentity) Sign(clientID string) (string, error) {
	now := time.Now()
	claims := clientClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ci.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ci.cfg.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ci.secret)
}

// Parse verifies a cookie value and returns the client id it carries.
func (ci *ClientIdentity) Parse(value string) (string, error) {
	if value == "" {
		return "", errNoCookie
	}
	claims := &clientClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return ci.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.ClientID == "" {
		return "", errors.New("invalid client cookie")
	}
	if ci.cfg.Issuer != "" && !claims.VerifyIssuer(ci.cfg.Issuer, true) {
		return "", errors.New("client cookie issuer mismatch")
	}
	return claims.ClientID, nil
}

func (ci *ClientIdentity) issue(ctx *fasthttp.RequestCtx, clientID string) error {
	value, err := ci.Sign(clientID)
	if err != nil {
		return err
	}
	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)
	c.SetKey(ci.cfg.Name)
	c.SetValue(value)
	c.SetPath("/")
	c.SetHTTPOnly(true)
	c.SetSecure(ci.cfg.Secure)
	c.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	c.SetExpire(time.Now().Add(ci.cfg.TTL))
	ctx.Response.Header.SetCookie(c)
	// Later middleware in this request reads the cookie from the request.
	ctx.Request.Header.SetCookie(ci.cfg.Name, value)
	return nil
}
