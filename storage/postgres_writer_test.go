package storage

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-surplus/models"
)

func newMockWriter(t *testing.T) (*PostgresWriter, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS calculations").WillReturnResult(sqlmock.NewResult(0, 0))

	pw, err := NewPostgresWriterFromDB(db)
	require.NoError(t, err)
	return pw, mock
}

func TestPostgresWriterInsertsBatch(t *testing.T) {
	pw, mock := newMockWriter(t)
	id := uuid.MustParse("4f8b7c1e-6a55-4d1b-9a3e-1f0c2d3b4a59")
	pw.newID = func() uuid.UUID { return id }

	bundles := sampleBundles()
	args := make([]driver.Value, 0, 2*calculationColumns)
	for range bundles {
		for c := 0; c < calculationColumns; c++ {
			args = append(args, sqlmock.AnyArg())
		}
	}

	mock.ExpectExec(`(?s)INSERT INTO calculations .* VALUES \(\$1,.*\$20\),\(\$21,.*\$40\)`).
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, pw.Write(bundles))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriterRowArgs(t *testing.T) {
	pw, _ := newMockWriter(t)
	id := uuid.New()
	pw.newID = func() uuid.UUID { return id }

	failed := pw.rowArgs(sampleBundles()[1])
	require.Len(t, failed, calculationColumns)
	assert.Equal(t, id, failed[0])
	assert.Equal(t, "broken", failed[1])
	assert.Equal(t, validFloat(1), failed[2])
	assert.Equal(t, validInt(2), failed[4])
	assert.Equal(t, sql.NullFloat64{}, failed[6])
	assert.Equal(t, sql.NullFloat64{}, failed[10])
	assert.Equal(t, sql.NullString{String: "InsufficientData", Valid: true}, failed[17])
	assert.Equal(t, sampleBundles()[1].CalculatedAt, failed[19])
}

func TestPostgresWriterWriteNothing(t *testing.T) {
	pw, mock := newMockWriter(t)
	require.NoError(t, pw.Write(nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriterFetchRecent(t *testing.T) {
	pw, mock := newMockWriter(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cols := []string{
		"id", "dataset",
		"demand_slope", "demand_intercept", "demand_n", "demand_r2",
		"supply_slope", "supply_intercept", "supply_n", "supply_r2",
		"eq_quantity", "eq_price", "consumer_surplus", "producer_surplus",
		"warning_kinds", "warning_messages",
		"failure_stage", "failure_kind", "failure_message",
		"calculated_at",
	}
	rows := sqlmock.NewRows(cols).
		AddRow("4f8b7c1e-6a55-4d1b-9a3e-1f0c2d3b4a59", "textbook",
			-2.0, 20.0, int64(4), 1.0,
			3.0, 5.0, int64(4), 1.0,
			3.0, 14.0, 9.0, 13.5,
			[]byte(`{sign_sanity}`), []byte(`{"demand slope is positive"}`),
			nil, nil, nil,
			at).
		AddRow("0b0d7c1e-6a55-4d1b-9a3e-1f0c2d3b4a59", "parallel",
			1.0, 2.0, int64(2), 1.0,
			1.0, 5.0, int64(2), 1.0,
			nil, nil, nil, nil,
			[]byte(`{}`), []byte(`{}`),
			"equilibrium", "ParallelCurves", "demand and supply lines are parallel",
			at)

	mock.ExpectQuery("SELECT id, dataset").WithArgs(10).WillReturnRows(rows)

	runs, err := pw.FetchRecent(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	ok := runs[0].Bundle
	assert.Equal(t, "4f8b7c1e-6a55-4d1b-9a3e-1f0c2d3b4a59", runs[0].ID.String())
	assert.Equal(t, &models.LineModel{Slope: -2, Intercept: 20}, ok.Demand)
	assert.Equal(t, &models.FitStats{N: 4, RSquared: 1}, ok.SupplyFit)
	assert.Equal(t, &models.EquilibriumPoint{Quantity: 3, Price: 14}, ok.Equilibrium)
	assert.Equal(t, &models.SurplusResult{Consumer: 9, Producer: 13.5}, ok.Surplus)
	assert.Equal(t, []models.Warning{{Kind: models.WarningSignSanity, Message: "demand slope is positive"}}, ok.Warnings)
	assert.Nil(t, ok.Failure)
	assert.True(t, at.Equal(ok.CalculatedAt))

	failed := runs[1].Bundle
	assert.Nil(t, failed.Equilibrium)
	assert.Nil(t, failed.Surplus)
	assert.Empty(t, failed.Warnings)
	require.NotNil(t, failed.Failure)
	assert.Equal(t, "ParallelCurves", failed.Failure.Kind)

	assert.NoError(t, mock.ExpectationsWereMet())
}
