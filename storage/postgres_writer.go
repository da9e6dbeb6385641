package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"market-surplus/models"
	"market-surplus/utils"
)

const calculationColumns = 20

var (
	_ BundleWriter = (*PostgresWriter)(nil)
	_ RunReader    = (*PostgresWriter)(nil)
)

// PostgresWriter persists calculation results to PostgreSQL.
type PostgresWriter struct {
	db    *sql.DB
	newID func() uuid.UUID
}

// NewPostgresWriter opens a connection to PostgreSQL, waits for it to accept
// pings, runs schema migrations, and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string, retry *utils.RetryConfig) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.Do(ctx, "postgres-ping", func(ctx context.Context) error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return NewPostgresWriterFromDB(db)
}

// NewPostgresWriterFromDB wraps an open handle and migrates the schema.
func NewPostgresWriterFromDB(db *sql.DB) (*PostgresWriter, error) {
	pw := &PostgresWriter{db: db, newID: uuid.New}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS calculations (
			id               UUID PRIMARY KEY,
			dataset          TEXT             NOT NULL,
			demand_slope     DOUBLE PRECISION,
			demand_intercept DOUBLE PRECISION,
			demand_n         INTEGER,
			demand_r2        DOUBLE PRECISION,
			supply_slope     DOUBLE PRECISION,
			supply_intercept DOUBLE PRECISION,
			supply_n         INTEGER,
			supply_r2        DOUBLE PRECISION,
			eq_quantity      DOUBLE PRECISION,
			eq_price         DOUBLE PRECISION,
			consumer_surplus DOUBLE PRECISION,
			producer_surplus DOUBLE PRECISION,
			warning_kinds    TEXT[]           NOT NULL DEFAULT '{}',
			warning_messages TEXT[]           NOT NULL DEFAULT '{}',
			failure_stage    TEXT,
			failure_kind     TEXT,
			failure_message  TEXT,
			calculated_at    TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_calculations_dataset       ON calculations(dataset);
		CREATE INDEX IF NOT EXISTS idx_calculations_calculated_at ON calculations(calculated_at);
	`)
	return err
}

// Write batch-inserts bundles, failed ones included, each under a fresh id.
func (pw *PostgresWriter) Write(bundles []*models.ResultBundle) error {
	const batchSize = 50
	for i := 0; i < len(bundles); i += batchSize {
		end := i + batchSize
		if end > len(bundles) {
			end = len(bundles)
		}
		if err := pw.insertBatch(bundles[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(batch []*models.ResultBundle) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*calculationColumns)

	for idx, b := range batch {
		base := idx * calculationColumns
		placeholders := make([]string, calculationColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs, pw.rowArgs(b)...)
	}

	query := fmt.Sprintf(`
		INSERT INTO calculations (
			id, dataset,
			demand_slope, demand_intercept, demand_n, demand_r2,
			supply_slope, supply_intercept, supply_n, supply_r2,
			eq_quantity, eq_price, consumer_surplus, producer_surplus,
			warning_kinds, warning_messages,
			failure_stage, failure_kind, failure_message,
			calculated_at
		)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	if _, err := pw.db.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert calculations: %w", err)
	}
	return nil
}

func (pw *PostgresWriter) rowArgs(b *models.ResultBundle) []interface{} {
	var (
		dSlope, dIntercept, dR2, sSlope, sIntercept, sR2 sql.NullFloat64
		dN, sN                                           sql.NullInt64
		eqQ, eqP, cs, ps                                 sql.NullFloat64
		fStage, fKind, fMessage                          sql.NullString
	)

	if b.Demand != nil {
		dSlope, dIntercept = validFloat(b.Demand.Slope), validFloat(b.Demand.Intercept)
	}
	if b.DemandFit != nil {
		dN, dR2 = validInt(b.DemandFit.N), validFloat(b.DemandFit.RSquared)
	}
	if b.Supply != nil {
		sSlope, sIntercept = validFloat(b.Supply.Slope), validFloat(b.Supply.Intercept)
	}
	if b.SupplyFit != nil {
		sN, sR2 = validInt(b.SupplyFit.N), validFloat(b.SupplyFit.RSquared)
	}
	if b.Equilibrium != nil {
		eqQ, eqP = validFloat(b.Equilibrium.Quantity), validFloat(b.Equilibrium.Price)
	}
	if b.Surplus != nil {
		cs, ps = validFloat(b.Surplus.Consumer), validFloat(b.Surplus.Producer)
	}
	if b.Failure != nil {
		fStage = sql.NullString{String: b.Failure.Stage, Valid: true}
		fKind = sql.NullString{String: b.Failure.Kind, Valid: true}
		fMessage = sql.NullString{String: b.Failure.Message, Valid: true}
	}

	kinds := make([]string, 0, len(b.Warnings))
	messages := make([]string, 0, len(b.Warnings))
	for _, w := range b.Warnings {
		kinds = append(kinds, string(w.Kind))
		messages = append(messages, w.Message)
	}

	calculatedAt := b.CalculatedAt
	if calculatedAt.IsZero() {
		calculatedAt = time.Now()
	}

	return []interface{}{
		pw.newID(), b.Dataset,
		dSlope, dIntercept, dN, dR2,
		sSlope, sIntercept, sN, sR2,
		eqQ, eqP, cs, ps,
		pq.Array(kinds), pq.Array(messages),
		fStage, fKind, fMessage,
		calculatedAt,
	}
}

// FetchRecent returns the newest persisted runs first.
func (pw *PostgresWriter) FetchRecent(limit int) ([]*models.StoredRun, error) {
	rows, err := pw.db.Query(`
		SELECT id, dataset,
			demand_slope, demand_intercept, demand_n, demand_r2,
			supply_slope, supply_intercept, supply_n, supply_r2,
			eq_quantity, eq_price, consumer_surplus, producer_surplus,
			warning_kinds, warning_messages,
			failure_stage, failure_kind, failure_message,
			calculated_at
		FROM calculations
		ORDER BY calculated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch recent: %w", err)
	}
	defer rows.Close()

	var runs []*models.StoredRun
	for rows.Next() {
		run := &models.StoredRun{Bundle: &models.ResultBundle{}}
		var (
			dSlope, dIntercept, dR2, sSlope, sIntercept, sR2 sql.NullFloat64
			dN, sN                                           sql.NullInt64
			eqQ, eqP, cs, ps                                 sql.NullFloat64
			kinds, messages                                  []string
			fStage, fKind, fMessage                          sql.NullString
		)
		b := run.Bundle

		if err := rows.Scan(
			&run.ID, &b.Dataset,
			&dSlope, &dIntercept, &dN, &dR2,
			&sSlope, &sIntercept, &sN, &sR2,
			&eqQ, &eqP, &cs, &ps,
			pq.Array(&kinds), pq.Array(&messages),
			&fStage, &fKind, &fMessage,
			&b.CalculatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}

		if dSlope.Valid && dIntercept.Valid {
			b.Demand = &models.LineModel{Slope: dSlope.Float64, Intercept: dIntercept.Float64}
		}
		if dN.Valid {
			b.DemandFit = &models.FitStats{N: int(dN.Int64), RSquared: dR2.Float64}
		}
		if sSlope.Valid && sIntercept.Valid {
			b.Supply = &models.LineModel{Slope: sSlope.Float64, Intercept: sIntercept.Float64}
		}
		if sN.Valid {
			b.SupplyFit = &models.FitStats{N: int(sN.Int64), RSquared: sR2.Float64}
		}
		if eqQ.Valid && eqP.Valid {
			b.Equilibrium = &models.EquilibriumPoint{Quantity: eqQ.Float64, Price: eqP.Float64}
		}
		if cs.Valid && ps.Valid {
			b.Surplus = &models.SurplusResult{Consumer: cs.Float64, Producer: ps.Float64}
		}
		for i, k := range kinds {
			w := models.Warning{Kind: models.WarningKind(k)}
			if i < len(messages) {
				w.Message = messages[i]
			}
			b.Warnings = append(b.Warnings, w)
		}
		if fKind.Valid {
			b.Failure = &models.Failure{Stage: fStage.String, Kind: fKind.String, Message: fMessage.String}
		}

		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

func validFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: true}
}

func validInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
