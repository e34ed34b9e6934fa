package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"
)

// skewMargin absorbs clock drift and in-flight latency: a token within this
// margin of expiry is treated as already expired.
const skewMargin = 60 * time.Second

// CredentialStore persists the per-tenant token triple.
type CredentialStore interface {
	GetCredentials(ctx context.Context, tenant string) (*model.Credentials, error)
	SaveTokens(ctx context.Context, tenant, access string, refresh *string, expiresAt time.Time) error
}

// Refresher performs the actual token refresh call against the tenant's
// auth endpoint.
type Refresher interface {
	Refresh(ctx context.Context, tenant, refreshToken string) (*model.RefreshResponse, error)
}

// Manager hands out valid access tokens, refreshing at most once per tenant
// no matter how many callers arrive concurrently. Refresh is mutually
// exclusive per tenant; different tenants refresh independently.
type Manager struct {
	store     CredentialStore
	refresher Refresher
	locks     *mutexMap
	now       func() time.Time
	log       zerolog.Logger
}

func NewManager(store CredentialStore, refresher Refresher) *Manager {
	return &Manager{
		store:     store,
		refresher: refresher,
		locks:     newMutexMap(),
		now:       time.Now,
		log:       logger.Get(),
	}
}

// AccessToken returns a token valid for at least the skew margin. Concurrent
// callers with an expiring token block on the tenant lock and observe the
// already-refreshed value without issuing redundant refresh calls.
func (m *Manager) AccessToken(ctx context.Context, tenant string) (string, error) {
	creds, err := m.store.GetCredentials(ctx, tenant)
	if err != nil {
		return "", err
	}
	if m.valid(creds) {
		return creds.AccessToken, nil
	}

	m.locks.Lock(tenant)
	defer m.locks.Unlock(tenant)

	// Double check after acquiring the lock: another caller may have
	// refreshed while we waited.
	creds, err = m.store.GetCredentials(ctx, tenant)
	if err != nil {
		return "", err
	}
	if m.valid(creds) {
		return creds.AccessToken, nil
	}

	return m.refresh(ctx, tenant, creds)
}

// InvalidateAndRefresh is the companion hook for a single authentication
// rejection: the network client calls it with the rejected token and retries
// its request once with the result. If another caller already replaced the
// rejected token, no refresh call is issued.
func (m *Manager) InvalidateAndRefresh(ctx context.Context, tenant, rejected string) (string, error) {
	m.locks.Lock(tenant)
	defer m.locks.Unlock(tenant)

	creds, err := m.store.GetCredentials(ctx, tenant)
	if err != nil {
		return "", err
	}
	if creds != nil && creds.AccessToken != rejected {
		return creds.AccessToken, nil
	}

	return m.refresh(ctx, tenant, creds)
}

// refresh performs exactly one refresh call and persists the outcome. The
// caller must hold the tenant lock. Without a refresh token it fails
// immediately, with no network call; the user must re-authenticate.
func (m *Manager) refresh(ctx context.Context, tenant string, creds *model.Credentials) (string, error) {
	if creds == nil || creds.RefreshToken == "" {
		return "", errors.NewAuthError(errors.ErrNoRefreshToken)
	}

	m.log.Debug().Str("tenant", tenant).Msg("Refreshing access token")

	resp, err := m.refresher.Refresh(ctx, tenant, creds.RefreshToken)
	if err != nil {
		return "", err
	}

	expiresAt := m.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	var newRefresh *string
	if resp.RefreshToken != "" {
		newRefresh = &resp.RefreshToken
	}
	if err := m.store.SaveTokens(ctx, tenant, resp.AccessToken, newRefresh, expiresAt); err != nil {
		return "", err
	}

	m.log.Debug().Str("tenant", tenant).Time("expires_at", expiresAt).Msg("Token refreshed successfully")

	return resp.AccessToken, nil
}

func (m *Manager) valid(creds *model.Credentials) bool {
	return creds != nil && creds.AccessToken != "" && m.now().Before(creds.ExpiresAt.Add(-skewMargin))
}
