package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/auth"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/config"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/schedule"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/store"
)

// Service pulls station reference data (stations and their variable
// mappings) from each tenant's API and replaces the local cache atomically,
// so queue readers never observe a transiently empty station set.
type Service struct {
	cfg        *config.Config
	store      *store.Store
	tokens     *auth.Manager
	httpClient *http.Client
	now        func() time.Time
	log        zerolog.Logger
}

func NewService(cfg *config.Config, st *store.Store, tokens *auth.Manager) *Service {
	return &Service{
		cfg:        cfg,
		store:      st,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		log:        logger.Get(),
	}
}

// serverStation is the tenant API's station shape.
type serverStation struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Timezone string        `json:"timezone"`
	Schedule schedule.Spec `json:"schedule"`
}

// serverMapping links a station's variable name to its submission id.
type serverMapping struct {
	StationID         int64  `json:"station_id"`
	Variable          string `json:"variable"`
	VariableMappingID int64  `json:"variable_mapping_id"`
}

// PullTenant fetches stations and mappings concurrently, merges them and
// swaps the tenant's reference set in one transaction. Returns the number of
// stations stored.
func (s *Service) PullTenant(ctx context.Context, tenant string) (int, error) {
	tc, ok := s.cfg.Tenant(tenant)
	if !ok {
		return 0, fmt.Errorf("unknown tenant: %s", tenant)
	}

	log := logger.ForTenant(tenant)
	log.Info().Msg("Pulling station reference data")

	token, err := s.tokens.AccessToken(ctx, tenant)
	if err != nil {
		return 0, err
	}

	var stations []serverStation
	var mappings []serverMapping

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.fetch(gctx, tc.BaseURL+tc.StationsEndpoint, token, &stations)
	})
	g.Go(func() error {
		return s.fetch(gctx, tc.BaseURL+tc.MappingsEndpoint, token, &mappings)
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	byStation := make(map[int64][]model.VariableMapping)
	for _, m := range mappings {
		byStation[m.StationID] = append(byStation[m.StationID], model.VariableMapping{
			Variable:          m.Variable,
			VariableMappingID: m.VariableMappingID,
		})
	}

	pulledAt := s.now().UTC()
	merged := make([]*model.Station, 0, len(stations))
	for _, st := range stations {
		merged = append(merged, &model.Station{
			Tenant:    tenant,
			StationID: st.ID,
			Name:      st.Name,
			Timezone:  st.Timezone,
			Schedule:  st.Schedule,
			Mappings:  byStation[st.ID],
			PulledAt:  pulledAt,
		})
	}

	if err := s.store.ReplaceStations(ctx, tenant, merged); err != nil {
		return 0, err
	}

	log.Info().Int("stations", len(merged)).Msg("Station reference data replaced")
	return len(merged), nil
}

// PullAll refreshes every configured tenant; one tenant's failure does not
// stop the others.
func (s *Service) PullAll(ctx context.Context) error {
	var firstErr error
	for _, tc := range s.cfg.Tenants {
		if _, err := s.PullTenant(ctx, tc.ID); err != nil {
			s.log.Error().Err(err).Str("tenant", tc.ID).Msg("Reference data pull failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Service) fetch(ctx context.Context, url, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
