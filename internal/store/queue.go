package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"
)

const observationColumns = `tenant, station_id, station_name, timezone, scheduled_utc,
	created_at, updated_at, late, locked, schedule_mode, payload, status, remote_id, last_error`

// Upsert inserts or replaces the observation identified by its composite
// key. A second submit for the same key keeps one record holding the new
// payload; created_at is preserved.
func (s *Store) Upsert(ctx context.Context, obs *model.Observation) error {
	if err := s.upsertTx(ctx, s.db, obs); err != nil {
		return err
	}
	s.hub.notify(s, obs.Tenant, obs.StationID)
	return nil
}

// UpsertMany writes a batch of observations in one transaction.
func (s *Store) UpsertMany(ctx context.Context, observations []*model.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, obs := range observations {
		if err := s.upsertTx(ctx, tx, obs); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, obs := range observations {
		scope := fmt.Sprintf("%s/%d", obs.Tenant, obs.StationID)
		if !seen[scope] {
			seen[scope] = true
			s.hub.notify(s, obs.Tenant, obs.StationID)
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsertTx(ctx context.Context, ex execer, obs *model.Observation) error {
	query := `INSERT INTO observations (` + observationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant, station_id, scheduled_utc) DO UPDATE SET
			station_name = excluded.station_name,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at,
			late = excluded.late,
			locked = excluded.locked,
			schedule_mode = excluded.schedule_mode,
			payload = excluded.payload,
			status = excluded.status,
			last_error = excluded.last_error`

	_, err := ex.ExecContext(ctx, query,
		obs.Tenant, obs.StationID, obs.StationName, obs.Timezone,
		formatTime(obs.ScheduledUTC), formatTime(obs.CreatedAt), formatTime(obs.UpdatedAt),
		obs.Late, obs.Locked, obs.ScheduleMode, string(obs.Payload), obs.Status,
		obs.RemoteID, obs.LastError,
	)
	return err
}

// QueryPending returns up to limit records waiting for upload for the
// tenant, oldest created first. UPLOADING records are deliberately excluded;
// the stale sweep recovers them.
func (s *Store) QueryPending(ctx context.Context, tenant string, limit int) ([]*model.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations
		WHERE tenant = ? AND status IN (?, ?)
		ORDER BY created_at ASC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, tenant, model.StatusQueued, model.StatusFailed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanObservations(rows)
}

// Get returns the record for one key, or nil if absent.
func (s *Store) Get(ctx context.Context, key model.ObservationKey) (*model.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations
		WHERE tenant = ? AND station_id = ? AND scheduled_utc = ?`

	rows, err := s.db.QueryContext(ctx, query, key.Tenant, key.StationID, formatTime(key.ScheduledUTC))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	observations, err := scanObservations(rows)
	if err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, nil
	}
	return observations[0], nil
}

// UpdateStatus moves one record through the status state machine. Illegal
// transitions are rejected with ErrInvalidTransition.
func (s *Store) UpdateStatus(ctx context.Context, key model.ObservationKey, status model.ObservationStatus, errMsg *string, updatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current model.ObservationStatus
	row := tx.QueryRowContext(ctx,
		`SELECT status FROM observations WHERE tenant = ? AND station_id = ? AND scheduled_utc = ?`,
		key.Tenant, key.StationID, formatTime(key.ScheduledUTC))
	if err := row.Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("observation %s: not found", key)
		}
		return err
	}

	if !model.ValidTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, current, status)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE observations SET status = ?, last_error = ?, updated_at = ?
		 WHERE tenant = ? AND station_id = ? AND scheduled_utc = ?`,
		status, errMsg, formatTime(updatedAt),
		key.Tenant, key.StationID, formatTime(key.ScheduledUTC))
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.hub.notify(s, key.Tenant, key.StationID)
	return nil
}

// MarkSynced records a successful upload with the id assigned remotely.
func (s *Store) MarkSynced(ctx context.Context, key model.ObservationKey, remoteID int64, updatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current model.ObservationStatus
	row := tx.QueryRowContext(ctx,
		`SELECT status FROM observations WHERE tenant = ? AND station_id = ? AND scheduled_utc = ?`,
		key.Tenant, key.StationID, formatTime(key.ScheduledUTC))
	if err := row.Scan(&current); err != nil {
		return err
	}
	if !model.ValidTransition(current, model.StatusSynced) {
		return fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, current, model.StatusSynced)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE observations SET status = ?, remote_id = ?, last_error = NULL, updated_at = ?
		 WHERE tenant = ? AND station_id = ? AND scheduled_utc = ?`,
		model.StatusSynced, remoteID, formatTime(updatedAt),
		key.Tenant, key.StationID, formatTime(key.ScheduledUTC))
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.hub.notify(s, key.Tenant, key.StationID)
	return nil
}

// Retry is the operator-initiated FAILED -> QUEUED reset.
func (s *Store) Retry(ctx context.Context, key model.ObservationKey) error {
	return s.UpdateStatus(ctx, key, model.StatusQueued, nil, time.Now())
}

// RequeueStale sweeps UPLOADING records whose last update is older than the
// cutoff back to QUEUED. Recovers records orphaned by a crash or a cancelled
// pass. Returns the number of records requeued.
func (s *Store) RequeueStale(ctx context.Context, tenant string, olderThan time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-olderThan)

	res, err := s.db.ExecContext(ctx,
		`UPDATE observations SET status = ?, updated_at = ?
		 WHERE tenant = ? AND status = ? AND updated_at < ?`,
		model.StatusQueued, formatTime(now), tenant, model.StatusUploading, formatTime(cutoff))
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.hub.notify(s, tenant, 0)
	}
	return int(n), nil
}

// ListAll returns every record for a tenant, newest scheduled instant first.
func (s *Store) ListAll(ctx context.Context, tenant string) ([]*model.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations
		WHERE tenant = ? ORDER BY scheduled_utc DESC`

	rows, err := s.db.QueryContext(ctx, query, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// ListByStation returns a station's records, newest scheduled instant first.
func (s *Store) ListByStation(ctx context.Context, tenant string, stationID int64) ([]*model.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations
		WHERE tenant = ? AND station_id = ? ORDER BY scheduled_utc DESC`

	rows, err := s.db.QueryContext(ctx, query, tenant, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// QueueStatus summarises the tenant's queue plus distinct recent errors.
func (s *Store) QueueStatus(ctx context.Context, tenant string) (*model.QueueStatus, error) {
	query := `SELECT
		COUNT(CASE WHEN status = 'QUEUED' THEN 1 END),
		COUNT(CASE WHEN status = 'UPLOADING' THEN 1 END),
		COUNT(CASE WHEN status = 'SYNCED' THEN 1 END),
		COUNT(CASE WHEN status = 'FAILED' THEN 1 END),
		COALESCE(MAX(updated_at), '')
	FROM observations WHERE tenant = ?`

	var status model.QueueStatus
	var updatedAt string
	err := s.db.QueryRowContext(ctx, query, tenant).Scan(
		&status.QueuedCount, &status.UploadingCount,
		&status.SyncedCount, &status.FailedCount, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	status.Tenant = tenant
	if updatedAt != "" {
		if t, err := parseTime(updatedAt); err == nil {
			status.UpdatedAt = t
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT last_error FROM observations
		 WHERE tenant = ? AND status = 'FAILED' AND last_error IS NOT NULL`, tenant)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var errMsg string
			if rows.Scan(&errMsg) == nil {
				status.Errors = append(status.Errors, errMsg)
			}
		}
	}

	return &status, nil
}

func scanObservations(rows *sql.Rows) ([]*model.Observation, error) {
	var observations []*model.Observation
	for rows.Next() {
		var obs model.Observation
		var scheduled, created, updated, payload string
		err := rows.Scan(&obs.Tenant, &obs.StationID, &obs.StationName, &obs.Timezone,
			&scheduled, &created, &updated, &obs.Late, &obs.Locked,
			&obs.ScheduleMode, &payload, &obs.Status, &obs.RemoteID, &obs.LastError)
		if err != nil {
			return nil, err
		}

		if obs.ScheduledUTC, err = parseTime(scheduled); err != nil {
			return nil, fmt.Errorf("bad scheduled_utc %q: %w", scheduled, err)
		}
		if obs.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("bad created_at %q: %w", created, err)
		}
		if obs.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("bad updated_at %q: %w", updated, err)
		}
		obs.Payload = []byte(payload)

		observations = append(observations, &obs)
	}
	return observations, rows.Err()
}
