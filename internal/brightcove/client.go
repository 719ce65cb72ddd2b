// Package brightcove provides a client for the Video Cloud CMS and Dynamic
// Ingest APIs, authorized with client-credentials OAuth tokens.
//
// Every remote call the ingest workflow needs is a typed method:
//   - CreateVideo: POST {cms}/{account}/videos
//   - UploadURLs: GET {ingest}/{account}/videos/{id}/upload-urls/{name}
//   - CreateIngestRequest: POST {ingest}/{account}/videos/{id}/ingest-requests
//   - IngestJobStatus: GET {ingest}/{account}/videos/{id}/ingest_jobs/{job}
//
// Responses are stripped of control characters before decoding. Error
// payloads become *ingesterr.Error values; the transient timeout code 103 is
// re-issued according to the client's RetryPolicy.
package brightcove

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fpang/dynamic-ingest/internal/ingesterr"
	"github.com/fpang/dynamic-ingest/internal/jsonutil"
)

const (
	// DefaultCMSURL is the CMS API accounts base URL.
	DefaultCMSURL = "https://cms.api.brightcove.com/v1/accounts"
	// DefaultIngestURL is the Dynamic Ingest API accounts base URL.
	DefaultIngestURL = "https://ingest.api.brightcove.com/v1/accounts"
	// DefaultOAuthURL is the client-credentials token endpoint.
	DefaultOAuthURL = "https://oauth.brightcove.com/v3/access_token"

	defaultTimeout = 30 * time.Second
)

// Endpoints holds the API base URLs. Empty fields keep their defaults.
type Endpoints struct {
	CMS    string
	Ingest string
	OAuth  string
}

// Client issues authorized calls against one Video Cloud account.
type Client struct {
	creds      Credentials
	httpClient *http.Client
	endpoints  Endpoints
	retry      RetryPolicy
	now        func() time.Time
	sleep      func(context.Context, time.Duration) error
	tokens     *TokenManager
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoints overrides the API base URLs.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) {
		if e.CMS != "" {
			c.endpoints.CMS = strings.TrimRight(e.CMS, "/")
		}
		if e.Ingest != "" {
			c.endpoints.Ingest = strings.TrimRight(e.Ingest, "/")
		}
		if e.OAuth != "" {
			c.endpoints.OAuth = e.OAuth
		}
	}
}

// WithRetry sets the transient-error retry policy. The default is NoRetry.
func WithRetry(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithClock sets the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSleep replaces the wait between retry attempts.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// NewClient validates creds and creates a client for their account.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		creds:      creds.trimmed(),
		httpClient: &http.Client{Timeout: defaultTimeout},
		endpoints: Endpoints{
			CMS:    DefaultCMSURL,
			Ingest: DefaultIngestURL,
			OAuth:  DefaultOAuthURL,
		},
		retry: NoRetry(),
		now:   time.Now,
		sleep: SleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tokens = NewTokenManager(c.creds, c.httpClient, c.endpoints.OAuth, c.now)
	return c, nil
}

// AccountID returns the account every call is scoped to.
func (c *Client) AccountID() string {
	return c.creds.AccountID
}

// Tokens returns the client's token manager.
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// --- Typed calls ---

// CreateVideo creates a video record and returns it with its new id.
func (c *Client) CreateVideo(ctx context.Context, meta VideoMetadata) (*Video, error) {
	const op = "create video"
	raw, err := c.call(ctx, op, http.MethodPost, c.cmsPath("videos"), meta)
	if err != nil {
		return nil, err
	}
	video, err := jsonutil.Decode[Video](raw)
	if err != nil {
		return nil, unexpected(op, ingesterr.CodeCMSRequestFailed, err)
	}
	if video.ID == "" {
		return nil, unexpected(op, ingesterr.CodeCMSRequestFailed, fmt.Errorf("no video id returned (body: %s)", jsonutil.Preview(raw, 200)))
	}
	video.Raw = raw
	log.Ctx(ctx).Info().Str("videoId", video.ID).Msg("Video created")
	return &video, nil
}

// UploadURLs requests temporary S3 credentials for uploading fileName to
// videoID. fileName must already be URL-encoded.
func (c *Client) UploadURLs(ctx context.Context, videoID, fileName string) (*UploadURLs, error) {
	const op = "get upload urls"
	raw, err := c.call(ctx, op, http.MethodGet, c.ingestPath("videos", url.PathEscape(videoID), "upload-urls", fileName), nil)
	if err != nil {
		return nil, err
	}
	urls, err := jsonutil.Decode[UploadURLs](raw)
	if err != nil {
		return nil, unexpected(op, ingesterr.CodeUploadURLRequestFailed, err)
	}
	if urls.Bucket == "" || urls.ObjectKey == "" || urls.APIRequestURL == "" {
		return nil, unexpected(op, ingesterr.CodeUploadURLRequestFailed, errors.New("response is missing bucket, object_key or api_request_url"))
	}
	return &urls, nil
}

// CreateIngestRequest starts an ingest job for videoID.
func (c *Client) CreateIngestRequest(ctx context.Context, videoID string, opts IngestOptions) (*IngestJob, error) {
	const op = "create ingest request"
	raw, err := c.call(ctx, op, http.MethodPost, c.ingestPath("videos", url.PathEscape(videoID), "ingest-requests"), opts)
	if err != nil {
		return nil, err
	}
	job, err := jsonutil.Decode[IngestJob](raw)
	if err != nil {
		return nil, unexpected(op, ingesterr.CodeIngestRequestFailed, err)
	}
	if job.ID == "" {
		return nil, unexpected(op, ingesterr.CodeIngestRequestFailed, fmt.Errorf("no job id returned (body: %s)", jsonutil.Preview(raw, 200)))
	}
	log.Ctx(ctx).Info().Str("videoId", videoID).Str("jobId", job.ID).Msg("Ingest request accepted")
	return &job, nil
}

// IngestJobStatus returns the current state of an ingest job.
func (c *Client) IngestJobStatus(ctx context.Context, videoID, jobID string) (*JobStatus, error) {
	const op = "get ingest job status"
	raw, err := c.call(ctx, op, http.MethodGet, c.ingestPath("videos", url.PathEscape(videoID), "ingest_jobs", url.PathEscape(jobID)), nil)
	if err != nil {
		return nil, err
	}
	status, err := jsonutil.Decode[JobStatus](raw)
	if err != nil {
		return nil, unexpected(op, ingesterr.CodeIngestRequestFailed, err)
	}
	return &status, nil
}

// --- Internal helpers ---

func (c *Client) cmsPath(parts ...string) string {
	return c.endpoints.CMS + "/" + url.PathEscape(c.creds.AccountID) + "/" + strings.Join(parts, "/")
}

func (c *Client) ingestPath(parts ...string) string {
	return c.endpoints.Ingest + "/" + url.PathEscape(c.creds.AccountID) + "/" + strings.Join(parts, "/")
}

// call issues one remote call, re-issuing it while the platform reports its
// transient timeout and attempts remain. The final transient failure is
// returned as an API error carrying the remote code.
func (c *Client) call(ctx context.Context, op, method, endpoint string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	logger := log.Ctx(ctx)
	maxAttempts := c.retry.attempts()
	for attempt := 1; ; attempt++ {
		raw, err := c.send(ctx, op, method, endpoint, payload)
		if err == nil {
			return raw, nil
		}

		var apiErr *ingesterr.Error
		if !errors.As(err, &apiErr) || !apiErr.Retryable() {
			return nil, err
		}
		if attempt >= maxAttempts {
			apiErr.Kind = ingesterr.KindAPI
			if maxAttempts > 1 {
				apiErr.Message = fmt.Sprintf("API error after %d attempts", attempt)
			}
			logger.Error().Str("op", op).Int("attempts", attempt).Msg("Transient error retry budget exhausted")
			return nil, apiErr
		}

		logger.Warn().Str("op", op).Int("attempt", attempt).Int("maxAttempts", maxAttempts).
			Dur("delay", c.retry.Delay).Msg("Transient API error, retrying")
		if err := c.sleep(ctx, c.retry.Delay); err != nil {
			return nil, ingesterr.Transport(op, err)
		}
	}
}

// send performs a single authorized request and returns the cleaned body.
func (c *Client) send(ctx context.Context, op, method, endpoint string, payload []byte) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := log.Ctx(ctx)
	startTime := time.Now()
	logger.Debug().Str("method", method).Str("path", req.URL.Path).Msg("Brightcove API request")
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		logger.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Brightcove API response")
		return nil, ingesterr.Transport(op, err)
	}
	defer resp.Body.Close()
	logger.Debug().Int("statusCode", resp.StatusCode).Dur("duration", duration).Msg("Brightcove API response")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ingesterr.Transport(op, fmt.Errorf("read response: %w", err))
	}
	clean := jsonutil.StripControl(body)

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	if apiErr := remoteError(op, resp.StatusCode, clean); apiErr != nil {
		level := zerolog.ErrorLevel
		if apiErr.Retryable() {
			level = zerolog.WarnLevel
		}
		logger.WithLevel(level).Str("op", op).Str("errorCode", apiErr.RemoteCode).
			Str("errorMessage", apiErr.RemoteMessage).Int("statusCode", resp.StatusCode).Msg("Brightcove API error")
		return nil, apiErr
	}
	if jsonutil.IsEmpty(clean) {
		e := apiError(op, resp.StatusCode, "", "empty response", "")
		return nil, e
	}
	return clean, nil
}

func unexpected(op string, code int, err error) *ingesterr.Error {
	return &ingesterr.Error{
		Kind:    ingesterr.KindAPI,
		Code:    code,
		Op:      op,
		Message: "unexpected response",
		Err:     err,
	}
}
