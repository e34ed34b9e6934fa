package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"
)

// CreateImport registers a newly uploaded import file as UPLOADED.
func (s *Store) CreateImport(ctx context.Context, imp *model.ImportFile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO imports (id, tenant, object_key, status, row_count, skipped_rows, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		imp.ID, imp.Tenant, imp.ObjectKey, imp.Status, imp.RowCount, imp.SkippedRows,
		imp.ErrorMessage, formatTime(imp.CreatedAt), formatTime(imp.UpdatedAt))
	return err
}

// FinishImport records the parse outcome for one import file.
func (s *Store) FinishImport(ctx context.Context, id string, status model.ImportStatus, rowCount, skipped int, errMsg *string, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE imports SET status = ?, row_count = ?, skipped_rows = ?, error_message = ?, updated_at = ?
		 WHERE id = ?`,
		status, rowCount, skipped, errMsg, formatTime(updatedAt), id)
	return err
}

// GetImport returns one import record.
func (s *Store) GetImport(ctx context.Context, id string) (*model.ImportFile, error) {
	var imp model.ImportFile
	var created, updated string

	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant, object_key, status, row_count, skipped_rows, error_message, created_at, updated_at
		 FROM imports WHERE id = ?`, id)
	err := row.Scan(&imp.ID, &imp.Tenant, &imp.ObjectKey, &imp.Status, &imp.RowCount,
		&imp.SkippedRows, &imp.ErrorMessage, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, errors.ErrImportNotFound
	}
	if err != nil {
		return nil, err
	}

	if imp.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if imp.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &imp, nil
}
