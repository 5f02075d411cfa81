package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/services/figma"
)

// OAuthHandler exposes the design API authorization-code flow
type OAuthHandler struct {
	oauth             OAuthFlow
	postLoginRedirect string
	logger            arbor.ILogger
}

// NewOAuthHandler creates the handler. When postLoginRedirect is set the callback
// redirects there with the token (or the error) as query parameters.
func NewOAuthHandler(oauth OAuthFlow, postLoginRedirect string, logger arbor.ILogger) *OAuthHandler {
	return &OAuthHandler{oauth: oauth, postLoginRedirect: postLoginRedirect, logger: logger}
}

// StartHandler handles GET /oauth/figma/start?state=
func (h *OAuthHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		state = "state"
	}
	authURL, err := h.oauth.AuthorizeURL(state)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"authorize_url": authURL})
}

// CallbackHandler handles GET /oauth/figma/callback?code=&state=
func (h *OAuthHandler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, http.StatusBadRequest, "Falta el parámetro code")
		return
	}

	token, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error().Err(err).Str("state", state).Msg("OAuth code exchange failed")
		if h.postLoginRedirect != "" {
			msg := err.Error()
			if len(msg) > 500 {
				msg = msg[:500]
			}
			http.Redirect(w, r, withQuery(h.postLoginRedirect, url.Values{"error": {msg}}), http.StatusFound)
			return
		}
		WriteError(w, oauthStatus(err), "Error canjeando código: "+err.Error())
		return
	}

	h.logger.Info().Str("state", state).Bool("refresh_token", token.RefreshToken != "").Msg("OAuth success")

	if h.postLoginRedirect != "" {
		http.Redirect(w, r, withQuery(h.postLoginRedirect, tokenValues(token)), http.StatusFound)
		return
	}
	WriteJSON(w, http.StatusOK, token)
}

// RefreshHandler handles POST /oauth/figma/refresh (refresh_token in query or JSON body)
func (h *OAuthHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	refreshToken := r.URL.Query().Get("refresh_token")
	if refreshToken == "" {
		var body struct {
			RefreshToken string `json:"refresh_token" validate:"required"`
		}
		if err := DecodeJSON(r, &body, false); err != nil {
			WriteError(w, http.StatusBadRequest, "Falta refresh_token")
			return
		}
		refreshToken = body.RefreshToken
	}

	token, err := h.oauth.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.logger.Error().Err(err).Msg("OAuth token refresh failed")
		WriteError(w, oauthStatus(err), "Error refrescando token: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, token)
}

func oauthStatus(err error) int {
	if errors.Is(err, figma.ErrOAuthNotConfigured) {
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

func tokenValues(t *figma.Token) url.Values {
	v := url.Values{}
	v.Set("access_token", t.AccessToken)
	if t.RefreshToken != "" {
		v.Set("refresh_token", t.RefreshToken)
	}
	if t.ExpiresIn > 0 {
		v.Set("expires_in", strconv.FormatInt(t.ExpiresIn, 10))
	}
	if t.TokenType != "" {
		v.Set("token_type", t.TokenType)
	}
	if t.Scope != "" {
		v.Set("scope", t.Scope)
	}
	return v
}

func withQuery(base string, v url.Values) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + v.Encode()
}
