// Package postgres stores monitored areas in PostgreSQL. Repositories accept
// a DBTX so the same code runs against a *pgxpool.Pool or inside a pgx.Tx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/flood-risk-monitor/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool opens a connection pool and verifies it with a ping.
func NewPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the monitored_areas table if it does not exist.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// AreaRepository implements monitor.AreaRepository on the monitored_areas table.
type AreaRepository struct {
	db       DBTX
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAreaRepository creates a repository backed by the given connection.
func NewAreaRepository(db DBTX, logger *slog.Logger) *AreaRepository {
	return &AreaRepository{
		db:       db,
		validate: validator.New(),
		logger:   logger,
	}
}

const areaColumns = `id, name, geometry,
	water_body, slope, elevation_m, population, flood_frequency,
	rainfall_mm_hr, forecast_rain_mm, wind_speed_kmh, temperature_c, humidity_pct, observed_at,
	risk_level, risk_score, risk_updated_at`

// ListAreas returns every stored area. Rows that fail validation are logged
// and left out so one bad record cannot block the rest.
func (r *AreaRepository) ListAreas(ctx context.Context) ([]domain.MonitoredArea, error) {
	rows, err := r.db.Query(ctx, `SELECT `+areaColumns+` FROM monitored_areas ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query areas: %w", err)
	}
	defer rows.Close()

	areas := make([]domain.MonitoredArea, 0)
	for rows.Next() {
		var row areaRow
		if err := row.scan(rows); err != nil {
			return nil, fmt.Errorf("scan area row: %w", err)
		}
		if err := r.validate.Struct(row); err != nil {
			r.logger.Warn("dropping invalid area record", "area_id", row.ID, "error", err)
			continue
		}
		areas = append(areas, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate area rows: %w", err)
	}
	return areas, nil
}

// GetArea returns one area by ID.
func (r *AreaRepository) GetArea(ctx context.Context, id string) (domain.MonitoredArea, error) {
	var row areaRow
	err := row.scan(r.db.QueryRow(ctx, `SELECT `+areaColumns+` FROM monitored_areas WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MonitoredArea{}, domain.ErrAreaNotFound
	}
	if err != nil {
		return domain.MonitoredArea{}, fmt.Errorf("get area %s: %w", id, err)
	}
	if err := r.validate.Struct(row); err != nil {
		return domain.MonitoredArea{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidArea, id, err)
	}
	return row.toDomain(), nil
}

const updateRiskSQL = `UPDATE monitored_areas SET
	rainfall_mm_hr = $2, forecast_rain_mm = $3, wind_speed_kmh = $4,
	temperature_c = $5, humidity_pct = $6, observed_at = $7,
	risk_level = $8, risk_score = $9, risk_updated_at = $10
	WHERE id = $1 AND risk_level IS NOT DISTINCT FROM $11`

// UpdateRisk writes the new weather and classification for one area. The
// write only applies while the stored level still equals update.PreviousLevel;
// otherwise it returns domain.ErrConflict, or domain.ErrAreaNotFound when the
// row is gone.
func (r *AreaRepository) UpdateRisk(ctx context.Context, id string, update domain.RiskUpdate) error {
	w := update.Weather
	tag, err := r.db.Exec(ctx, updateRiskSQL,
		id,
		w.RainfallMMPerHour, w.ForecastRainMM, w.WindSpeedKMH,
		w.TemperatureC, w.HumidityPct, nullTime(w.ObservedAt),
		string(update.Assessment.Level), update.Assessment.Score, update.UpdatedAt,
		nullString(string(update.PreviousLevel)),
	)
	if err != nil {
		return fmt.Errorf("update risk for %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM monitored_areas WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check area %s: %w", id, err)
	}
	if !exists {
		return domain.ErrAreaNotFound
	}
	return fmt.Errorf("update risk for %s: %w", id, domain.ErrConflict)
}

// areaRow mirrors one monitored_areas row. Validation runs on this type so
// malformed records are caught at the storage boundary.
type areaRow struct {
	ID       string `validate:"required"`
	Name     string
	Geometry []byte `validate:"required"`

	WaterBody      *string  `validate:"omitempty,oneof=sea river creek none"`
	Slope          *string  `validate:"omitempty,oneof=steep moderate gentle flat"`
	ElevationM     *float64 `validate:"omitempty,gte=-500,lte=9000"`
	Population     *int     `validate:"omitempty,gte=0"`
	FloodFrequency *string  `validate:"omitempty,oneof=rare occasional frequent very-frequent"`

	RainfallMMPerHour *float64 `validate:"omitempty,gte=0"`
	ForecastRainMM    *float64 `validate:"omitempty,gte=0"`
	WindSpeedKMH      *float64 `validate:"omitempty,gte=0"`
	TemperatureC      *float64
	HumidityPct       *float64 `validate:"omitempty,gte=0,lte=100"`
	ObservedAt        *time.Time

	RiskLevel     *string `validate:"omitempty,oneof='Very Low' Low Moderate High Severe"`
	RiskScore     *int    `validate:"omitempty,gte=0,lte=130"` // domain.MaxScore
	RiskUpdatedAt *time.Time
}

func (row *areaRow) scan(s pgx.Row) error {
	return s.Scan(
		&row.ID, &row.Name, &row.Geometry,
		&row.WaterBody, &row.Slope, &row.ElevationM, &row.Population, &row.FloodFrequency,
		&row.RainfallMMPerHour, &row.ForecastRainMM, &row.WindSpeedKMH, &row.TemperatureC, &row.HumidityPct, &row.ObservedAt,
		&row.RiskLevel, &row.RiskScore, &row.RiskUpdatedAt,
	)
}

// toDomain converts a validated row. Geometry that does not parse is left
// empty; the scheduler skips such areas.
func (row areaRow) toDomain() domain.MonitoredArea {
	geometry, err := domain.ParseGeometry(row.Geometry)
	if err != nil {
		geometry = domain.Geometry{}
	}

	area := domain.MonitoredArea{
		ID:       row.ID,
		Name:     row.Name,
		Geometry: geometry,
		Hydrology: domain.Hydrology{
			WaterBody:  deref(row.WaterBody),
			Slope:      deref(row.Slope),
			ElevationM: deref(row.ElevationM),
		},
		Population:     deref(row.Population),
		FloodFrequency: domain.FloodFrequency(deref(row.FloodFrequency)),
		Weather: domain.WeatherSample{
			RainfallMMPerHour: deref(row.RainfallMMPerHour),
			ForecastRainMM:    deref(row.ForecastRainMM),
			WindSpeedKMH:      deref(row.WindSpeedKMH),
			TemperatureC:      deref(row.TemperatureC),
			HumidityPct:       deref(row.HumidityPct),
			ObservedAt:        deref(row.ObservedAt),
		},
		RiskUpdatedAt: deref(row.RiskUpdatedAt),
	}
	if row.RiskLevel != nil {
		level := domain.RiskLevel(*row.RiskLevel)
		score := deref(row.RiskScore)
		area.Risk = domain.RiskAssessment{
			Score: score,
			Tier:  domain.ScoreTier(score),
			Level: level,
		}
	}
	return area
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
