package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/nvalkov/station-core/internal/telemetry"
)

const (
	defaultListLimit = 200
	maxListLimit     = 1000
	maxListOffset    = 1_000_000_000
)

// Filter controls which rows a browse query returns. Bounds compare against
// time_local for scalar samples and created_at for acceleration batches;
// both columns hold RFC 3339 strings so lexicographic comparison is
// chronological.
type Filter struct {
	Start  string // optional: inclusive lower bound
	End    string // optional: exclusive upper bound
	Limit  int    // default 200, max 1000
	Offset int    // pagination offset
}

func (f Filter) clamped() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Offset > maxListOffset {
		f.Offset = maxListOffset
	}
	return f
}

func (f Filter) conditions(timeColumn string) (string, []any) {
	var conditions []string
	var args []any

	if f.Start != "" {
		conditions = append(conditions, timeColumn+" >= ?")
		args = append(args, f.Start)
	}
	if f.End != "" {
		conditions = append(conditions, timeColumn+" < ?")
		args = append(args, f.End)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// ScalarRow is a stored scalar sample with its row id.
type ScalarRow struct {
	ID int64 `json:"id"`
	telemetry.ScalarSample
}

// AccelRow is a stored acceleration batch without its sample payload.
// Browsing never decodes the JSON column; sample_count carries the size.
type AccelRow struct {
	ID           int64  `json:"id"`
	ChunkStartUS int64  `json:"chunk_start_us"`
	FsHz         int    `json:"fs_hz"`
	SampleCount  int    `json:"sample_count"`
	CreatedAt    string `json:"created_at"`
}

// ScalarList contains one page of scalar samples.
type ScalarList struct {
	Items  []ScalarRow `json:"items"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// AccelList contains one page of acceleration batch rows.
type AccelList struct {
	Items  []AccelRow `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// ListScalar returns stored scalar samples matching the filter, newest
// first.
func (s *Store) ListScalar(ctx context.Context, filter Filter) (*ScalarList, error) {
	filter = filter.clamped()
	where, args := filter.conditions("time_local")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM scalar_samples %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting scalar samples: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, time_local, temp_c, hum_pct, wind_dir_deg, wind_dir_txt, wind_spd_ms, created_at
		 FROM scalar_samples %s ORDER BY time_local DESC, id DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scalar samples: %w", err)
	}
	defer rows.Close()

	items := make([]ScalarRow, 0, filter.Limit)
	for rows.Next() {
		var row ScalarRow
		if err := rows.Scan(
			&row.ID,
			&row.TimeLocal,
			&row.TempC,
			&row.HumPct,
			&row.WindDirDeg,
			&row.WindDirTxt,
			&row.WindSpdMS,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning scalar sample: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scalar samples: %w", err)
	}

	return &ScalarList{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// ListAccel returns stored acceleration batch rows matching the filter,
// newest first.
func (s *Store) ListAccel(ctx context.Context, filter Filter) (*AccelList, error) {
	filter = filter.clamped()
	where, args := filter.conditions("created_at")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM accel_batches %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting accel batches: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, chunk_start_us, fs_hz, sample_count, created_at
		 FROM accel_batches %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying accel batches: %w", err)
	}
	defer rows.Close()

	items := make([]AccelRow, 0, filter.Limit)
	for rows.Next() {
		var row AccelRow
		if err := rows.Scan(
			&row.ID,
			&row.ChunkStartUS,
			&row.FsHz,
			&row.SampleCount,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning accel batch: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accel batches: %w", err)
	}

	return &AccelList{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
