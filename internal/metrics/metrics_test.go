package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestCounters(t *testing.T) {
	m := New()
	m.GateDecision("redirect_login", "agent")
	m.GateDecision("render", "")
	m.ForcedLogout()
	m.Login("success")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.gateDecisions.WithLabelValues("redirect_login", "agent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gateDecisions.WithLabelValues("render", "any")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.forcedLogouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues("success")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.GateDecision("render", "agent")
	m.ForcedLogout()
	m.Login("failure")

	called := false
	h := m.Instrument(func(*fasthttp.RequestCtx) { called = true })
	h(&fasthttp.RequestCtx{})
	assert.True(t, called)
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ForcedLogout()

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/metrics")
	m.Handler()(&ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.True(t, strings.Contains(string(ctx.Response.Body()), "portal_forced_logouts_total 1"))
}
