package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nvalkov/station-core/internal/telemetry"
)

// Store provides telemetry persistence on an open SQLite connection.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on db. The connection must already have the
// telemetry schema applied.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CommitBatch inserts a drained batch in one transaction. Either every row
// becomes durable or none does; a failure leaves the tables untouched so
// the caller can safely drop the batch and move on.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - scalars: Scalar rows to insert, may be empty
//   - batches: Acceleration batch rows to insert, may be empty
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (s *Store) CommitBatch(ctx context.Context, scalars []telemetry.ScalarSample, batches []telemetry.AccelBatch) error {
	if len(scalars) == 0 && len(batches) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning batch transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after a successful commit

	if err := insertScalars(ctx, tx, scalars); err != nil {
		return err
	}
	if err := insertAccelBatches(ctx, tx, batches); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

func insertScalars(ctx context.Context, tx *sql.Tx, scalars []telemetry.ScalarSample) error {
	if len(scalars) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scalar_samples (time_local, temp_c, hum_pct, wind_dir_deg, wind_dir_txt, wind_spd_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing scalar insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // statement close after use

	for _, sample := range scalars {
		if _, err := stmt.ExecContext(ctx,
			sample.TimeLocal,
			sample.TempC,
			sample.HumPct,
			sample.WindDirDeg,
			sample.WindDirTxt,
			sample.WindSpdMS,
			sample.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting scalar sample: %w", err)
		}
	}
	return nil
}

func insertAccelBatches(ctx context.Context, tx *sql.Tx, batches []telemetry.AccelBatch) error {
	if len(batches) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO accel_batches (chunk_start_us, fs_hz, sample_count, samples, created_at)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing accel insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // statement close after use

	for _, batch := range batches {
		samplesJSON, err := json.Marshal(batch.Samples)
		if err != nil {
			return fmt.Errorf("marshalling accel samples: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			batch.ChunkStartUS,
			batch.FsHz,
			len(batch.Samples),
			string(samplesJSON),
			batch.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting accel batch: %w", err)
		}
	}
	return nil
}

// CountScalar returns the number of stored scalar samples.
func (s *Store) CountScalar(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scalar_samples").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting scalar samples: %w", err)
	}
	return count, nil
}

// CountAccel returns the number of stored acceleration batches.
func (s *Store) CountAccel(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accel_batches").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting accel batches: %w", err)
	}
	return count, nil
}
