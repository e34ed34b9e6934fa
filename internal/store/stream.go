package store

import (
	"context"
	"sync"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
)

// Subscription is a reactive read stream over the observation queue. The
// current snapshot is delivered immediately on subscription and again after
// every mutation in scope. The channel holds the latest snapshot only; slow
// consumers see the freshest state, not every intermediate one.
type Subscription struct {
	C      <-chan []*model.Observation
	cancel func()
}

// Cancel detaches the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.cancel()
}

type subscriber struct {
	tenant    string
	stationID int64 // 0 means all stations of the tenant
	ch        chan []*model.Observation
}

type hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

// StreamAll subscribes to every record of a tenant, newest scheduled
// instant first.
func (s *Store) StreamAll(ctx context.Context, tenant string) (*Subscription, error) {
	return s.subscribe(ctx, tenant, 0)
}

// StreamByStation subscribes to one station's records.
func (s *Store) StreamByStation(ctx context.Context, tenant string, stationID int64) (*Subscription, error) {
	return s.subscribe(ctx, tenant, stationID)
}

func (s *Store) subscribe(ctx context.Context, tenant string, stationID int64) (*Subscription, error) {
	snapshot, err := s.snapshot(ctx, tenant, stationID)
	if err != nil {
		return nil, err
	}

	sub := &subscriber{
		tenant:    tenant,
		stationID: stationID,
		ch:        make(chan []*model.Observation, 1),
	}
	sub.ch <- snapshot

	s.hub.mu.Lock()
	s.hub.subs[sub] = struct{}{}
	s.hub.mu.Unlock()

	return &Subscription{
		C: sub.ch,
		cancel: func() {
			s.hub.mu.Lock()
			if _, ok := s.hub.subs[sub]; ok {
				delete(s.hub.subs, sub)
				close(sub.ch)
			}
			s.hub.mu.Unlock()
		},
	}, nil
}

func (s *Store) snapshot(ctx context.Context, tenant string, stationID int64) ([]*model.Observation, error) {
	if stationID == 0 {
		return s.ListAll(ctx, tenant)
	}
	return s.ListByStation(ctx, tenant, stationID)
}

// notify re-queries and re-emits the snapshot for every subscription whose
// scope covers the mutation. stationID 0 means the whole tenant changed.
func (h *hub) notify(s *Store, tenant string, stationID int64) {
	h.mu.Lock()
	var matched []*subscriber
	for sub := range h.subs {
		if sub.tenant != tenant {
			continue
		}
		if sub.stationID != 0 && stationID != 0 && sub.stationID != stationID {
			continue
		}
		matched = append(matched, sub)
	}
	h.mu.Unlock()

	for _, sub := range matched {
		snapshot, err := s.snapshot(context.Background(), sub.tenant, sub.stationID)
		if err != nil {
			log := logger.Get()
			log.Error().Err(err).Str("tenant", sub.tenant).Msg("Failed to build stream snapshot")
			continue
		}

		// Re-check membership under the lock so a concurrent Cancel cannot
		// close the channel between the check and the send.
		h.mu.Lock()
		if _, ok := h.subs[sub]; ok {
			// Latest-wins: replace a pending snapshot rather than block.
			select {
			case sub.ch <- snapshot:
			default:
				select {
				case <-sub.ch:
				default:
				}
				sub.ch <- snapshot
			}
		}
		h.mu.Unlock()
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}
