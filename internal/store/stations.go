package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/schedule"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"
)

// ReplaceStations swaps the tenant's entire station reference set in one
// transaction, so readers never observe a transiently empty collection.
func (s *Store) ReplaceStations(ctx context.Context, tenant string, stations []*model.Station) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stations WHERE tenant = ?`, tenant); err != nil {
		return err
	}

	for _, station := range stations {
		scheduleJSON, err := json.Marshal(station.Schedule)
		if err != nil {
			return fmt.Errorf("marshal schedule for station %d: %w", station.StationID, err)
		}
		mappingsJSON, err := json.Marshal(station.Mappings)
		if err != nil {
			return fmt.Errorf("marshal mappings for station %d: %w", station.StationID, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO stations (tenant, station_id, name, timezone, schedule, mappings, pulled_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tenant, station.StationID, station.Name, station.Timezone,
			string(scheduleJSON), string(mappingsJSON), formatTime(station.PulledAt))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetStation looks a station up by its remote id.
func (s *Store) GetStation(ctx context.Context, tenant string, stationID int64) (*model.Station, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tenant, station_id, name, timezone, schedule, mappings, pulled_at
		 FROM stations WHERE tenant = ? AND station_id = ?`, tenant, stationID)
	return scanStation(row)
}

// GetStationByName looks a station up by its display name, as spreadsheet
// imports reference stations by name.
func (s *Store) GetStationByName(ctx context.Context, tenant, name string) (*model.Station, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tenant, station_id, name, timezone, schedule, mappings, pulled_at
		 FROM stations WHERE tenant = ? AND name = ?`, tenant, name)
	return scanStation(row)
}

// ListStations returns the tenant's cached reference set.
func (s *Store) ListStations(ctx context.Context, tenant string) ([]*model.Station, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant, station_id, name, timezone, schedule, mappings, pulled_at
		 FROM stations WHERE tenant = ? ORDER BY station_id`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []*model.Station
	for rows.Next() {
		station, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, station)
	}
	return stations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(row rowScanner) (*model.Station, error) {
	var station model.Station
	var scheduleJSON, mappingsJSON, pulledAt string

	err := row.Scan(&station.Tenant, &station.StationID, &station.Name, &station.Timezone,
		&scheduleJSON, &mappingsJSON, &pulledAt)
	if err == sql.ErrNoRows {
		return nil, errors.ErrUnknownStation
	}
	if err != nil {
		return nil, err
	}

	var spec schedule.Spec
	if err := json.Unmarshal([]byte(scheduleJSON), &spec); err != nil {
		return nil, fmt.Errorf("bad schedule for station %d: %w", station.StationID, err)
	}
	station.Schedule = spec

	if err := json.Unmarshal([]byte(mappingsJSON), &station.Mappings); err != nil {
		return nil, fmt.Errorf("bad mappings for station %d: %w", station.StationID, err)
	}

	if station.PulledAt, err = parseTime(pulledAt); err != nil {
		return nil, err
	}
	return &station, nil
}
