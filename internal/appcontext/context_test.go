// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package appcontext_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/mfa-guard/internal/appcontext"
	"codeberg.org/oliverandrich/mfa-guard/internal/auth"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(t *testing.T) (echo.Context, *http.Request) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "192.0.2.1:1234"
	return e.NewContext(req, httptest.NewRecorder()), req
}

func TestWrap_Idempotent(t *testing.T) {
	c, _ := newContext(t)

	cc := appcontext.Wrap(c)

	assert.Same(t, cc, appcontext.Wrap(cc))
}

func TestContext_Principal(t *testing.T) {
	c, req := newContext(t)
	cc := appcontext.Wrap(c)
	assert.False(t, cc.IsAuthenticated())

	ctx := auth.WithSession(req.Context(), &session.Data{UserID: "user-1"})
	ctx = auth.WithMFAState(ctx, auth.MFAState{Enabled: true, Verified: true})
	c.SetRequest(req.WithContext(ctx))

	require.True(t, cc.IsAuthenticated())
	assert.Equal(t, "user-1", cc.Principal().UserID)
	assert.Equal(t, "user-1", cc.Session().UserID)
	assert.True(t, cc.MFA().Verified)
}

func TestContext_Client(t *testing.T) {
	c, _ := newContext(t)

	client := appcontext.Wrap(c).Client()

	assert.Equal(t, "192.0.2.1", client.IP)
	assert.Equal(t, "test-agent", client.UserAgent)
}
