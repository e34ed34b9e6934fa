package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"
)

func TestCredentialsRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	creds, err := st.GetCredentials(ctx, "tz-mets")
	require.NoError(t, err)
	assert.Nil(t, creds)

	expiresAt := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)
	refresh := "refresh-1"
	require.NoError(t, st.SaveTokens(ctx, "tz-mets", "access-1", &refresh, expiresAt))

	creds, err = st.GetCredentials(ctx, "tz-mets")
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "access-1", creds.AccessToken)
	assert.Equal(t, "refresh-1", creds.RefreshToken)
	assert.True(t, creds.ExpiresAt.Equal(expiresAt))
}

func TestSaveTokensNilRefreshKeepsPrevious(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	expiresAt := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)

	refresh := "refresh-1"
	require.NoError(t, st.SaveTokens(ctx, "tz-mets", "access-1", &refresh, expiresAt))
	require.NoError(t, st.SaveTokens(ctx, "tz-mets", "access-2", nil, expiresAt.Add(time.Hour)))

	creds, err := st.GetCredentials(ctx, "tz-mets")
	require.NoError(t, err)
	assert.Equal(t, "access-2", creds.AccessToken)
	assert.Equal(t, "refresh-1", creds.RefreshToken)
	assert.True(t, creds.ExpiresAt.Equal(expiresAt.Add(time.Hour)))
}

func TestImportLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	imp := &model.ImportFile{
		ID:        "imp-1",
		Tenant:    "tz-mets",
		ObjectKey: "imports/tz-mets/march.xlsx",
		Status:    model.ImportStatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.CreateImport(ctx, imp))

	require.NoError(t, st.FinishImport(ctx, "imp-1", model.ImportStatusParsedOK, 40, 2, nil, now.Add(time.Minute)))

	got, err := st.GetImport(ctx, "imp-1")
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusParsedOK, got.Status)
	assert.Equal(t, 40, got.RowCount)
	assert.Equal(t, 2, got.SkippedRows)
	assert.Nil(t, got.ErrorMessage)

	_, err = st.GetImport(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrImportNotFound)
}
