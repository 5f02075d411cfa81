package figma

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"
)

const (
	DefaultAuthorizeURL = "https://www.figma.com/oauth"
	DefaultTokenURL     = "https://api.figma.com/v1/oauth/token"
)

// ErrOAuthNotConfigured is returned when the OAuth app credentials are missing
var ErrOAuthNotConfigured = errors.New("oauth app not configured")

// OAuthSettings identifies the OAuth app
type OAuthSettings struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
	AuthURL      string
	TokenURL     string
}

// Token is what the token endpoint returned
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scope        string    `json:"scope,omitempty"`
}

// OAuth runs the authorization-code flow against the design API
type OAuth struct {
	settings   OAuthSettings
	httpClient *http.Client
	logger     arbor.ILogger
}

// NewOAuth creates the OAuth helper. httpClient may be nil.
func NewOAuth(settings OAuthSettings, httpClient *http.Client, logger arbor.ILogger) *OAuth {
	if settings.AuthURL == "" {
		settings.AuthURL = DefaultAuthorizeURL
	}
	if settings.TokenURL == "" {
		settings.TokenURL = DefaultTokenURL
	}
	if strings.TrimSpace(settings.Scope) == "" {
		settings.Scope = "file_read"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuth{settings: settings, httpClient: httpClient, logger: logger}
}

func (o *OAuth) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     o.settings.ClientID,
		ClientSecret: o.settings.ClientSecret,
		RedirectURL:  o.settings.RedirectURI,
		Scopes:       []string{o.settings.Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   o.settings.AuthURL,
			TokenURL:  o.settings.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizeURL returns the URL the user is sent to for consent
func (o *OAuth) AuthorizeURL(state string) (string, error) {
	var missing []string
	if o.settings.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if o.settings.RedirectURI == "" {
		missing = append(missing, "redirect_uri")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: missing %s", ErrOAuthNotConfigured, strings.Join(missing, ", "))
	}
	if state == "" {
		state = "state"
	}
	return o.config().AuthCodeURL(state), nil
}

// Exchange trades an authorization code for a token
func (o *OAuth) Exchange(ctx context.Context, code string) (*Token, error) {
	if o.settings.ClientID == "" || o.settings.ClientSecret == "" || o.settings.RedirectURI == "" {
		return nil, fmt.Errorf("%w: client_id, client_secret and redirect_uri are required", ErrOAuthNotConfigured)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	tok, err := o.config().Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	o.logger.Info().Bool("refresh_token", tok.RefreshToken != "").Msg("OAuth code exchanged")
	return fromOAuth2(tok), nil
}

// Refresh obtains a new access token from a refresh token
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if o.settings.ClientID == "" || o.settings.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", ErrOAuthNotConfigured)
	}
	if refreshToken == "" {
		return nil, errors.New("refresh token is required")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	tok, err := o.config().TokenSource(ctx, expired).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	o.logger.Info().Msg("OAuth token refreshed")
	return fromOAuth2(tok), nil
}

func fromOAuth2(tok *oauth2.Token) *Token {
	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn,
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}
	if out.ExpiresIn == 0 {
		if v, ok := tok.Extra("expires_in").(float64); ok {
			out.ExpiresIn = int64(v)
		}
	}
	return out
}
