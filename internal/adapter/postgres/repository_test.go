package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/couchcryptid/flood-risk-monitor/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row / Rows ---

// assign copies values into scan destinations; nil values leave the zero value.
func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(values[i]))
	}
	return nil
}

type mockRow struct {
	values  []any
	scanErr error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return assign(dest, r.values)
}

type mockRows struct {
	data   [][]any
	idx    int
	closed bool
	errVal error
}

func newMockRows(data ...[]any) *mockRows {
	return &mockRows{data: data, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *mockRows) Scan(dest ...any) error { return assign(dest, r.data[r.idx]) }

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.errVal }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

// --- fixtures ---

func ptr[T any](v T) *T { return &v }

var updatedAt = time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)

// riverRow returns column values in areaColumns order for a classified river area.
func riverRow(id string) []any {
	return []any{
		id, "Riverside", []byte(`{"type":"Point","coordinates":[-97.7431,30.2672]}`),
		ptr("river"), ptr("gentle"), ptr(12.0), ptr(1500), ptr("frequent"),
		ptr(10.0), ptr(50.0), ptr(20.0), ptr(18.5), ptr(91.0), ptr(updatedAt),
		ptr("Severe"), ptr(90), ptr(updatedAt),
	}
}

// bareRow returns a freshly inserted area with no weather or risk yet.
func bareRow(id string) []any {
	return []any{
		id, "", []byte(`{"type":"Polygon","coordinates":[[[-97.1,30.1],[-97.2,30.1],[-97.2,30.2],[-97.1,30.1]]]}`),
		nil, nil, nil, nil, nil,
		nil, nil, nil, nil, nil, nil,
		nil, nil, nil,
	}
}

func newTestRepo(db DBTX) *AreaRepository {
	return NewAreaRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// --- ListAreas ---

func TestAreaRepository_ListAreas(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)

	invalid := riverRow("bad")
	invalid[7] = ptr("sometimes")
	rows := newMockRows(riverRow("a"), invalid, bareRow("b"))
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	areas, err := repo.ListAreas(context.Background())
	require.NoError(t, err)
	require.Len(t, areas, 2, "invalid record is dropped")
	assert.True(t, rows.closed)

	want := domain.MonitoredArea{
		ID:       "a",
		Name:     "Riverside",
		Geometry: domain.PointGeometry(domain.Coordinate{Lat: 30.2672, Lon: -97.7431}),
		Hydrology: domain.Hydrology{
			WaterBody:  "river",
			Slope:      "gentle",
			ElevationM: 12,
		},
		Population:     1500,
		FloodFrequency: domain.FloodFrequent,
		Weather: domain.WeatherSample{
			RainfallMMPerHour: 10,
			ForecastRainMM:    50,
			WindSpeedKMH:      20,
			TemperatureC:      18.5,
			HumidityPct:       91,
			ObservedAt:        updatedAt,
		},
		Risk:          domain.RiskAssessment{Score: 90, Tier: domain.TierHigh, Level: domain.RiskSevere},
		RiskUpdatedAt: updatedAt,
	}
	gotPoint, err := areas[0].Geometry.RepresentativePoint()
	require.NoError(t, err)
	wantPoint, _ := want.Geometry.RepresentativePoint()
	assert.Equal(t, wantPoint, gotPoint)

	areas[0].Geometry, want.Geometry = domain.Geometry{}, domain.Geometry{}
	if diff := cmp.Diff(want, areas[0]); diff != "" {
		t.Errorf("area mismatch (-want +got):\n%s", diff)
	}

	bare := areas[1]
	assert.Equal(t, "b", bare.ID)
	assert.Empty(t, bare.Risk.Level)
	assert.Zero(t, bare.Population)
	assert.Equal(t, domain.TerrainFlat, bare.RiskAttributes().Terrain)
	coord, err := bare.Geometry.RepresentativePoint()
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Lat: 30.1, Lon: -97.1}, coord)

	db.AssertExpectations(t)
}

func TestAreaRepository_ListAreas_UnparseableGeometryKept(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)

	row := bareRow("x")
	row[2] = []byte(`not json`)
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(newMockRows(row), nil)

	areas, err := repo.ListAreas(context.Background())
	require.NoError(t, err)
	require.Len(t, areas, 1)

	_, err = areas[0].Geometry.RepresentativePoint()
	assert.ErrorIs(t, err, domain.ErrInvalidGeometry)
}

func TestAreaRepository_ListAreas_ScoresAboveHundredKept(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)

	high := riverRow("high")
	high[15] = ptr(110) // risk_score
	top := riverRow("top")
	top[15] = ptr(domain.MaxScore)
	over := riverRow("over")
	over[15] = ptr(domain.MaxScore + 1)
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(high, top, over), nil)

	areas, err := repo.ListAreas(context.Background())
	require.NoError(t, err)
	require.Len(t, areas, 2, "only the out-of-range score is dropped")
	assert.Equal(t, 110, areas[0].Risk.Score)
	assert.Equal(t, domain.RiskSevere, areas[0].Risk.Level)
	assert.Equal(t, domain.MaxScore, areas[1].Risk.Score)
}

func TestAreaRepository_GetArea_HighScore(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)
	ctx := context.Background()

	row := riverRow("a")
	row[15] = ptr(110) // risk_score
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"a"}).Return(&mockRow{values: row})

	area, err := repo.GetArea(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 110, area.Risk.Score)
}

func TestAreaRepository_ListAreas_QueryError(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := repo.ListAreas(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query areas")
}

func TestAreaRepository_ListAreas_IterationError(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)

	rows := newMockRows()
	rows.errVal = errors.New("conn closed")
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	_, err := repo.ListAreas(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iterate area rows")
}

// --- GetArea ---

func TestAreaRepository_GetArea(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"a"}).Return(&mockRow{values: riverRow("a")})

	area, err := repo.GetArea(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Riverside", area.Name)
	assert.Equal(t, domain.RiskSevere, area.Risk.Level)
	db.AssertExpectations(t)
}

func TestAreaRepository_GetArea_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"missing"}).Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetArea(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrAreaNotFound)
}

func TestAreaRepository_GetArea_Invalid(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)
	ctx := context.Background()

	row := riverRow("a")
	row[14] = ptr("Catastrophic") // risk_level
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"a"}).Return(&mockRow{values: row})

	_, err := repo.GetArea(ctx, "a")
	require.ErrorIs(t, err, domain.ErrInvalidArea)
}

// --- UpdateRisk ---

func severeUpdate(previous domain.RiskLevel) domain.RiskUpdate {
	return domain.RiskUpdate{
		Weather:       domain.WeatherSample{RainfallMMPerHour: 10, ForecastRainMM: 50, WindSpeedKMH: 20, HumidityPct: 70},
		Assessment:    domain.RiskAssessment{Score: 90, Tier: domain.TierHigh, Level: domain.RiskSevere},
		PreviousLevel: previous,
		UpdatedAt:     updatedAt,
	}
}

func TestAreaRepository_UpdateRisk(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 11 &&
			args[0] == "a" &&
			args[7] == "Severe" &&
			args[8] == 90 &&
			*(args[10].(*string)) == "Moderate" &&
			args[6].(*time.Time) == nil
	})).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	require.NoError(t, repo.UpdateRisk(ctx, "a", severeUpdate(domain.RiskModerate)))
	db.AssertExpectations(t)
}

func TestAreaRepository_UpdateRisk_FirstClassificationMatchesNull(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return args[10].(*string) == nil
	})).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	require.NoError(t, repo.UpdateRisk(ctx, "a", severeUpdate("")))
	db.AssertExpectations(t)
}

func TestAreaRepository_UpdateRisk_Conflict(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"a"}).Return(&mockRow{values: []any{true}})

	err := repo.UpdateRisk(ctx, "a", severeUpdate(domain.RiskLow))
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestAreaRepository_UpdateRisk_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"gone"}).Return(&mockRow{values: []any{false}})

	err := repo.UpdateRisk(ctx, "gone", severeUpdate(domain.RiskLow))
	require.ErrorIs(t, err, domain.ErrAreaNotFound)
}

func TestAreaRepository_UpdateRisk_ExecError(t *testing.T) {
	db := new(mockDBTX)
	repo := newTestRepo(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("deadlock detected"))

	err := repo.UpdateRisk(ctx, "a", severeUpdate(domain.RiskLow))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock")
}

// --- EnsureSchema ---

func TestEnsureSchema(t *testing.T) {
	db := new(mockDBTX)
	ctx := context.Background()

	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool {
		return sql == schemaSQL
	}), mock.Anything).Return(pgconn.NewCommandTag("CREATE TABLE"), nil)

	require.NoError(t, EnsureSchema(ctx, db))
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS monitored_areas")
	db.AssertExpectations(t)
}

func TestEnsureSchema_Error(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(pgconn.CommandTag{}, errors.New("permission denied"))

	err := EnsureSchema(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure schema")
}
