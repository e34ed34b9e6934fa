package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/auth"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/config"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"
)

// RefreshClient performs token refresh calls. It is deliberately separate
// from Client so the token manager can depend on it without a cycle.
type RefreshClient struct {
	cfg        *config.Config
	httpClient *http.Client
	log        zerolog.Logger
}

func NewRefreshClient(cfg *config.Config) *RefreshClient {
	return &RefreshClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: logger.Get(),
	}
}

func (r *RefreshClient) Refresh(ctx context.Context, tenant, refreshToken string) (*model.RefreshResponse, error) {
	tc, ok := r.cfg.Tenant(tenant)
	if !ok {
		return nil, fmt.Errorf("unknown tenant: %s", tenant)
	}

	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	url := tc.BaseURL + tc.RefreshEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewRetryableError(err, "token refresh request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var tokenResp model.RefreshResponse
		if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
			return nil, fmt.Errorf("failed to decode refresh response: %w", err)
		}
		return &tokenResp, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusBadRequest:
		// The refresh token itself was rejected; re-authentication required.
		return nil, errors.NewAuthError(fmt.Errorf("refresh rejected with status %d", resp.StatusCode))
	default:
		return nil, errors.NewRetryableError(fmt.Errorf("HTTP %d", resp.StatusCode), "token refresh failed")
	}
}

// Client is the per-tenant submission client. It resolves a token before
// each outbound request and attempts exactly one transparent
// refresh-and-retry when the server rejects the token; a second rejection
// surfaces as an AuthError rather than looping.
type Client struct {
	tc         *config.TenantConfig
	httpClient *http.Client
	tokens     *auth.Manager
	log        zerolog.Logger
}

func NewClient(tc *config.TenantConfig, tokens *auth.Manager) *Client {
	return &Client{
		tc: tc,
		httpClient: &http.Client{
			Timeout: tc.Timeout,
		},
		tokens: tokens,
		log:    logger.ForTenant(tc.ID),
	}
}

// Submit delivers one observation. Transport failures are retried with
// exponential backoff and jitter up to the configured attempt bound; other
// failures return immediately.
func (c *Client) Submit(ctx context.Context, endpoint string, request *model.SubmitRequest) (*model.SubmitResponse, error) {
	if endpoint == "" {
		endpoint = c.tc.BaseURL + c.tc.SubmitEndpoint
	}

	// At least one attempt regardless of how retries are configured.
	attempts := c.tc.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(c.tc.RetryDelay, attempt)):
			}
		}

		resp, err := c.submitOnce(ctx, endpoint, request)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !errors.IsRetryable(err) {
			return nil, err
		}
		c.log.Warn().Err(err).Int("attempt", attempt+1).Msg("Submission failed, retrying")
	}
	return nil, lastErr
}

func (c *Client) submitOnce(ctx context.Context, endpoint string, request *model.SubmitRequest) (*model.SubmitResponse, error) {
	token, err := c.tokens.AccessToken(ctx, c.tc.ID)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, endpoint, token, request)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		// One transparent re-authentication, then give up.
		token, err = c.tokens.InvalidateAndRefresh(ctx, c.tc.ID, token)
		if err != nil {
			return nil, err
		}
		resp, err = c.post(ctx, endpoint, token, request)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return nil, errors.NewAuthError(fmt.Errorf("request rejected again after token refresh"))
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var submitResp model.SubmitResponse
		if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &submitResp, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, errors.NewRetryableError(fmt.Errorf("HTTP %d", resp.StatusCode), "tenant service unavailable")
	default:
		// Business rejection (e.g. locked observation); permanent for this
		// payload.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("submission rejected with status %d: %s", resp.StatusCode, string(body))
	}
}

func (c *Client) post(ctx context.Context, endpoint, token string, request *model.SubmitRequest) (*http.Response, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewRetryableError(err, "HTTP request failed")
	}
	return resp, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// backoff doubles the base delay per attempt and adds up to 50% jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}
