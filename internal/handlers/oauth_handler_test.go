package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/services/figma"
)

type fakeOAuth struct {
	err     error
	refresh string
}

func (f *fakeOAuth) AuthorizeURL(state string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://www.figma.com/oauth?state=" + state, nil
}

func (f *fakeOAuth) Exchange(_ context.Context, code string) (*figma.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &figma.Token{AccessToken: "access-" + code, RefreshToken: "refresh", ExpiresIn: 3600}, nil
}

func (f *fakeOAuth) Refresh(_ context.Context, refreshToken string) (*figma.Token, error) {
	f.refresh = refreshToken
	if f.err != nil {
		return nil, f.err
	}
	return &figma.Token{AccessToken: "renewed", ExpiresIn: 3600}, nil
}

func TestOAuthStart(t *testing.T) {
	h := NewOAuthHandler(&fakeOAuth{}, "", arbor.NewLogger())
	rec := httptest.NewRecorder()
	h.StartHandler(rec, httptest.NewRequest(http.MethodGet, "/oauth/figma/start", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, "https://www.figma.com/oauth?state=state", resp["authorize_url"])

	h = NewOAuthHandler(&fakeOAuth{err: figma.ErrOAuthNotConfigured}, "", arbor.NewLogger())
	rec = httptest.NewRecorder()
	h.StartHandler(rec, httptest.NewRequest(http.MethodGet, "/oauth/figma/start", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOAuthCallback_JSON(t *testing.T) {
	h := NewOAuthHandler(&fakeOAuth{}, "", arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.CallbackHandler(rec, httptest.NewRequest(http.MethodGet, "/oauth/figma/callback", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.CallbackHandler(rec, httptest.NewRequest(http.MethodGet, "/oauth/figma/callback?code=abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var token figma.Token
	decodeBody(t, rec, &token)
	assert.Equal(t, "access-abc", token.AccessToken)
}

func TestOAuthCallback_Redirect(t *testing.T) {
	h := NewOAuthHandler(&fakeOAuth{}, "http://localhost:3000/done?from=figma", arbor.NewLogger())
	rec := httptest.NewRecorder()
	h.CallbackHandler(rec, httptest.NewRequest(http.MethodGet, "/oauth/figma/callback?code=xyz", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "figma", loc.Query().Get("from"))
	assert.Equal(t, "access-xyz", loc.Query().Get("access_token"))
	assert.Equal(t, "refresh", loc.Query().Get("refresh_token"))
	assert.Equal(t, "3600", loc.Query().Get("expires_in"))

	h = NewOAuthHandler(&fakeOAuth{err: errors.New(strings.Repeat("x", 600))}, "http://localhost:3000/done", arbor.NewLogger())
	rec = httptest.NewRecorder()
	h.CallbackHandler(rec, httptest.NewRequest(http.MethodGet, "/oauth/figma/callback?code=xyz", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err = url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Len(t, loc.Query().Get("error"), 500)
}

func TestOAuthRefresh(t *testing.T) {
	flow := &fakeOAuth{}
	h := NewOAuthHandler(flow, "", arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.RefreshHandler(rec, httptest.NewRequest(http.MethodPost, "/oauth/figma/refresh", strings.NewReader(`{"refresh_token":"r1"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r1", flow.refresh)

	rec = httptest.NewRecorder()
	h.RefreshHandler(rec, httptest.NewRequest(http.MethodPost, "/oauth/figma/refresh?refresh_token=r2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r2", flow.refresh)

	rec = httptest.NewRecorder()
	h.RefreshHandler(rec, httptest.NewRequest(http.MethodPost, "/oauth/figma/refresh", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h = NewOAuthHandler(&fakeOAuth{err: errors.New("invalid_grant")}, "", arbor.NewLogger())
	rec = httptest.NewRecorder()
	h.RefreshHandler(rec, httptest.NewRequest(http.MethodPost, "/oauth/figma/refresh?refresh_token=r3", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
