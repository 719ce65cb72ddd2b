package brightcove

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/fpang/dynamic-ingest/internal/ingesterr"
	"github.com/fpang/dynamic-ingest/internal/jsonutil"
)

// tokenResponse is the JSON response from the OAuth access_token endpoint.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenManager obtains and caches a client-credentials access token.
// It is safe for concurrent use; concurrent callers that find the cached
// token expired share a single refresh.
type TokenManager struct {
	creds      Credentials
	httpClient *http.Client
	tokenURL   string
	now        func() time.Time

	mu    sync.Mutex
	token Token
	group singleflight.Group
}

// NewTokenManager creates a token manager for creds. now defaults to
// time.Now when nil.
func NewTokenManager(creds Credentials, httpClient *http.Client, tokenURL string, now func() time.Time) *TokenManager {
	if now == nil {
		now = time.Now
	}
	return &TokenManager{
		creds:      creds,
		httpClient: httpClient,
		tokenURL:   tokenURL,
		now:        now,
	}
}

// Token returns a valid access token, acquiring a new one when none is
// cached or the cached one has expired. Failures are authentication errors
// and are never retried here.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	if t, ok := m.cached(); ok {
		return t, nil
	}

	// The refresh outlives any single caller; the HTTP client timeout
	// bounds it. A caller whose ctx ends stops waiting on its own.
	ch := m.group.DoChan("token", func() (any, error) {
		// Another caller may have refreshed while we waited on the group.
		if t, ok := m.cached(); ok {
			return t, nil
		}
		tok, err := m.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		m.mu.Lock()
		m.token = tok
		m.mu.Unlock()
		return tok.Value, nil
	})

	select {
	case <-ctx.Done():
		return "", ingesterr.Authentication("token request cancelled", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			log.Ctx(ctx).Trace().Msg("Shared in-flight token refresh")
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token so the next call refreshes.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.token = Token{}
	m.mu.Unlock()
}

// Cached returns the cached token, valid or not.
func (m *TokenManager) Cached() Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *TokenManager) cached() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token.Valid(m.now()) {
		return m.token.Value, true
	}
	return "", false
}

func (m *TokenManager) fetch(ctx context.Context) (Token, error) {
	logger := log.Ctx(ctx)
	startTime := time.Now()
	logger.Debug().Str("clientId", m.creds.ClientID).Msg("Requesting access token")

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, ingesterr.Authentication("build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.creds.ClientID, m.creds.ClientSecret)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Token{}, ingesterr.Authentication("token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, ingesterr.Authentication("read response", err)
	}
	logger.Debug().Int("statusCode", resp.StatusCode).Dur("duration", time.Since(startTime)).Msg("Token response")

	if jsonutil.IsEmpty(jsonutil.StripControl(body)) {
		e := ingesterr.Authentication("empty token response", nil)
		e.HTTPStatus = resp.StatusCode
		return Token{}, e
	}
	tr, err := jsonutil.Decode[tokenResponse](body)
	if err != nil {
		e := ingesterr.Authentication("parse token response", err)
		e.HTTPStatus = resp.StatusCode
		return Token{}, e
	}
	if tr.Error != "" || resp.StatusCode >= 400 {
		e := ingesterr.Authentication(fmt.Sprintf("token request rejected with status %d", resp.StatusCode), nil)
		e.HTTPStatus = resp.StatusCode
		e.RemoteCode = tr.Error
		e.RemoteMessage = tr.ErrorDescription
		return Token{}, e
	}
	if tr.AccessToken == "" {
		e := ingesterr.Authentication("no access token returned", nil)
		e.HTTPStatus = resp.StatusCode
		return Token{}, e
	}

	expiresAt := m.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	logger.Info().Time("expiresAt", expiresAt).Msg("Access token acquired")
	return Token{Value: tr.AccessToken, ExpiresAt: expiresAt}, nil
}
