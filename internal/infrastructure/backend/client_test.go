package backend

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/internal/config"
)

func startBackend(t *testing.T, handler fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, handler) }()
	t.Cleanup(func() { ln.Close() })

	httpClient := &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
	return New(config.BackendConfig{BaseURL: "http://backend/api/", Timeout: time.Second}, httpClient, nil)
}

func TestExchangeSuccess(t *testing.T) {
	var gotPath string
	var gotCreds domain.Credentials
	client := startBackend(t, func(ctx *fasthttp.RequestCtx) {
		gotPath = string(ctx.Path())
		_ = json.Unmarshal(ctx.PostBody(), &gotCreds)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"token":"abc","user":{"role":"group_admin","id":17,"group_id":"g-3"}}`)
	})

	identity, err := client.Exchange(context.Background(), domain.Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "/api/auth/login", gotPath)
	assert.Equal(t, "a@b.c", gotCreds.Email)
	assert.Equal(t, domain.Identity{Token: "abc", Role: domain.RoleGroupAdmin, UserID: "17", GroupID: "g-3"}, identity)
}

func TestExchangeNullGroup(t *testing.T) {
	client := startBackend(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"token":"abc","user":{"role":"client","id":"u-1","group_id":null}}`)
	})

	identity, err := client.Exchange(context.Background(), domain.Credentials{})
	require.NoError(t, err)
	assert.Empty(t, identity.GroupID)
	assert.Equal(t, "u-1", identity.UserID)
}

func TestExchangeRejected(t *testing.T) {
	client := startBackend(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString(`{"message":"Invalid email or password"}`)
	})

	_, err := client.Exchange(context.Background(), domain.Credentials{})
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnauthorized))
	assert.Equal(t, "Invalid email or password", domain.MessageOf(err))
}

func TestExchangeUnknownRole(t *testing.T) {
	client := startBackend(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"token":"abc","user":{"role":"superuser","id":1}}`)
	})

	_, err := client.Exchange(context.Background(), domain.Credentials{})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnauthorized))
}

func TestExchangeUpstreamFailure(t *testing.T) {
	client := startBackend(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
	})

	_, err := client.Exchange(context.Background(), domain.Credentials{})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnavailable))
}

func TestScalar(t *testing.T) {
	assert.Equal(t, "12", scalar(json.RawMessage(`12`)))
	assert.Equal(t, "x", scalar(json.RawMessage(`"x"`)))
	assert.Equal(t, "", scalar(json.RawMessage(`null`)))
	assert.Equal(t, "", scalar(nil))
	assert.Equal(t, "", scalar(json.RawMessage(`{}`)))
}
